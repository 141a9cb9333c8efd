package store

import (
	"sync"
	"time"
)

// subscriberBuffer is the capacity of each subscriber channel.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Only the latest record and the latest frame are
// kept; each publish replaces the previous record.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the entire system.
type MemoryStore struct {
	mu       sync.RWMutex
	current  Record
	revision uint64
	frame    Frame
	hasFrame bool
	now      func() time.Time

	subscribers map[chan Record]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation holding
// initial as revision 0.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore(initial Record) *MemoryStore {
	initial.Revision = 0
	return &MemoryStore{
		current:     initial,
		now:         time.Now,
		subscribers: make(map[chan Record]struct{}),
	}
}

// Publish implements [Store.Publish].
//
// Revision assignment and fan-out happen under the same lock, so subscribers
// always see records in revision order.
func (m *MemoryStore) Publish(rec Record) Record {
	m.mu.Lock()
	m.revision++
	rec.Revision = m.revision
	rec.UpdatedAt = m.now()
	m.current = rec
	m.notifySubscribers(rec)
	m.mu.Unlock()

	return rec
}

// Current returns a copy of the latest published record.
func (m *MemoryStore) Current() Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetFrame implements [Store.SetFrame].
func (m *MemoryStore) SetFrame(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasFrame && f.Token < m.frame.Token {
		return
	}
	m.frame = f
	m.hasFrame = true
}

// Frame returns the stored frame. The data slice is shared and must not be
// modified.
func (m *MemoryStore) Frame() (Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame, m.hasFrame
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Record {
	ch := make(chan Record, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Record) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the record to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the message
// is dropped for that subscriber rather than blocking the publish path.
func (m *MemoryStore) notifySubscribers(rec Record) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- rec:
		default:
			// subscriber is slow, drop the message
		}
	}
}
