package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"invitation-site/internal/models"
)

// ErrClosed is returned by stores that were already closed
var ErrClosed = errors.New("storage: store closed")

// subscriberBuffer is the number of pending snapshots kept per subscriber.
// When it is full the oldest pending snapshot is discarded.
const subscriberBuffer = 8

// Snapshot is the full content of the guests collection at one point in time.
// Err is set when the collection could not be read.
type Snapshot struct {
	Guests map[string]models.Guest
	Err    error
}

// Store is the shared guests collection.
//
// Push appends a guest under a generated key. Subscribe delivers the current
// collection immediately and again after every change; the returned function
// releases the subscription and closes the channel.
type Store interface {
	Push(ctx context.Context, guest models.Guest) (models.Guest, error)
	Get(ctx context.Context) (map[string]models.Guest, error)
	Subscribe(ctx context.Context) (<-chan Snapshot, func())
	Refresh(ctx context.Context) error
	Close() error
}

// newID returns a time-ordered key so that key order follows insertion order
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func copyGuests(guests map[string]models.Guest) map[string]models.Guest {
	out := make(map[string]models.Guest, len(guests))
	for id, g := range guests {
		out[id] = g
	}
	return out
}

// feed fans snapshots out to subscribers
type feed struct {
	mu     sync.Mutex
	subs   map[int]chan Snapshot
	next   int
	closed bool
}

func (f *feed) subscribe(ctx context.Context, initial Snapshot) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if f.subs == nil {
		f.subs = make(map[int]chan Snapshot)
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	ch <- initial
	f.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return ch, func() {
		stop()
		remove()
	}
}

func (f *feed) publish(snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot, the new one supersedes it.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

func (f *feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
