package store

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore(Record{Status: "IDLE", URL: "http://cam", Revision: 7})
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	cur := store.Current()
	if cur.Status != "IDLE" || cur.URL != "http://cam" {
		t.Errorf("Current() = %+v, want initial record", cur)
	}
	if cur.Revision != 0 {
		t.Errorf("initial Revision = %d, want 0", cur.Revision)
	}
	if _, ok := store.Frame(); ok {
		t.Error("Frame() ok = true on a new store")
	}
}

func TestMemoryStore_Publish(t *testing.T) {
	store := NewMemoryStore(Record{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	first := store.Publish(Record{Status: "ACTIVE", Phase: "LOADING", Revision: 99})
	second := store.Publish(Record{Status: "ERROR", Phase: "ERROR"})

	if first.Revision != 1 || second.Revision != 2 {
		t.Errorf("revisions = %d, %d, want 1, 2", first.Revision, second.Revision)
	}
	if !second.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", second.UpdatedAt, fixed)
	}

	cur := store.Current()
	if cur.Status != "ERROR" || cur.Revision != 2 {
		t.Errorf("Current() = %+v, want second record", cur)
	}
}

func TestMemoryStore_SetFrame(t *testing.T) {
	store := NewMemoryStore(Record{})

	store.SetFrame(Frame{Token: 10, ContentType: "image/jpeg", Data: []byte{1}})
	store.SetFrame(Frame{Token: 5, ContentType: "image/jpeg", Data: []byte{2}})

	f, ok := store.Frame()
	if !ok {
		t.Fatal("Frame() ok = false")
	}
	if f.Token != 10 || f.Data[0] != 1 {
		t.Errorf("Frame() = %+v, older frame replaced a newer one", f)
	}

	store.SetFrame(Frame{Token: 11, Data: []byte{3}})
	if f, _ := store.Frame(); f.Token != 11 {
		t.Errorf("Frame().Token = %d, want 11", f.Token)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore(Record{})

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Publish(Record{Status: "ACTIVE"})
	}()

	select {
	case rec := <-ch:
		if rec.Status != "ACTIVE" || rec.Revision != 1 {
			t.Errorf("received %+v, want ACTIVE revision 1", rec)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore(Record{})

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	// publish should fanout to all subscribers
	go func() {
		store.Publish(Record{Status: "ACTIVE"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

// TestMemoryStore_SubscribersSeeRevisionOrder verifies concurrent publishers
// never deliver revisions out of order.
func TestMemoryStore_SubscribersSeeRevisionOrder(t *testing.T) {
	store := NewMemoryStore(Record{})
	ch := store.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				store.Publish(Record{Status: "ACTIVE"})
			}
		}()
	}
	wg.Wait()
	store.Unsubscribe(ch)

	var last uint64
	for rec := range ch {
		if rec.Revision <= last {
			t.Fatalf("revision %d after %d", rec.Revision, last)
		}
		last = rec.Revision
	}
	if last != 50 {
		t.Errorf("last revision = %d, want 50", last)
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore(Record{})

	ch := store.Subscribe()
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_UnsubscribeStopsDelivery(t *testing.T) {
	store := NewMemoryStore(Record{})

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()

	store.Unsubscribe(ch1)

	go func() {
		store.Publish(Record{Status: "ACTIVE"})
	}()

	select {
	case <-ch2:
		// expected
	case <-time.After(1 * time.Second):
		t.Error("ch2 should still receive updates")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore(Record{})

	// create a subscriber but don't read from it
	_ = store.Subscribe()

	ch2 := store.Subscribe()

	done := make(chan bool)

	go func() {
		// this should not block even though the first subscriber is not being read
		for i := 0; i < 200; i++ {
			store.Publish(Record{Status: "ACTIVE"})
		}
		done <- true
	}()

	go func() {
		for range ch2 {
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Publish() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(Record{})

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Publish(Record{Status: "ACTIVE"})
				store.SetFrame(Frame{Token: int64(id*numUpdates + j)})
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.Current()
				_, _ = store.Frame()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()

	if got := store.Current().Revision; got != uint64(numGoroutines*numUpdates) {
		t.Errorf("Revision = %d, want %d", got, numGoroutines*numUpdates)
	}
}
