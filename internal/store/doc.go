// Package store provides storage and pub/sub functionality for the stream
// state.
//
// This package is internal to SnapView and keeps the latest published state
// record and, in relay mode, the latest good frame. It implements a
// publish-subscribe pattern for real-time updates to connected dashboard
// clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Record]: Storage representation of the stream state
//   - [Frame]: The last snapshot that loaded
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
//
// Users of the snapview library should not need to interact with this
// package directly. Storage is managed internally by the Viewer.
package store
