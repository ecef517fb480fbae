package syncstore

import (
	"sort"
	"sync"
	"time"
)

// Phase is the state of the last save round trip.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSyncing  Phase = "syncing"
	PhaseConflict Phase = "conflict"
	PhaseError    Phase = "error"
)

// Status is what subscribers observe.
type Status struct {
	Phase        Phase      `json:"phase"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	Error        string     `json:"error,omitempty"`
}

// broadcaster fans status changes out to subscribers. Callbacks run on the
// emitting goroutine, outside any lock, in subscription order.
type broadcaster struct {
	mu        sync.Mutex
	status    Status
	listeners map[int]func(Status)
	nextID    int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		status:    Status{Phase: PhaseIdle},
		listeners: map[int]func(Status){},
	}
}

func (b *broadcaster) current() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *broadcaster) subscribe(fn func(Status)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	st := b.status
	b.mu.Unlock()

	fn(st)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// emit applies patch to the current status and notifies every subscriber.
func (b *broadcaster) emit(patch func(*Status)) {
	b.update(patch)()
}

// update applies patch to the current status and returns a func that
// delivers the resulting snapshot to the subscribers of that moment.
func (b *broadcaster) update(patch func(*Status)) func() {
	b.mu.Lock()
	patch(&b.status)
	st := b.status
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	return func() {
		for _, fn := range fns {
			fn(st)
		}
	}
}
