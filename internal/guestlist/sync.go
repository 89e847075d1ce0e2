// Package guestlist keeps a local, sorted copy of the shared guest list.
package guestlist

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"invitation-site/internal/models"
	"invitation-site/internal/storage"
)

// Source is the part of the shared store the synchronizer reads from
type Source interface {
	Get(ctx context.Context) (map[string]models.Guest, error)
	Subscribe(ctx context.Context) (<-chan storage.Snapshot, func())
}

// RenderFunc receives the sorted guest list after every snapshot
type RenderFunc func(guests []models.Guest)

// Sync owns the guest cache. Only its subscription goroutine replaces the
// cache once a snapshot has arrived.
type Sync struct {
	source Source
	log    zerolog.Logger

	mu     sync.RWMutex
	cache  []models.Guest
	loaded bool

	// lifecycle guards the running subscription
	lifecycle sync.Mutex
	dispose   func()
	done      chan struct{}

	onSnapshot func(count int, err error)
}

// New creates a synchronizer for source
func New(source Source, logger zerolog.Logger) *Sync {
	return &Sync{
		source: source,
		log:    logger.With().Str("component", "guestlist").Logger(),
	}
}

// OnSnapshot registers a hook called for every delivered snapshot.
// It must be set before Open.
func (s *Sync) OnSnapshot(hook func(count int, err error)) {
	s.onSnapshot = hook
}

// Open starts the subscription. Any subscription opened before is released
// first, so there is never more than one.
func (s *Sync) Open(ctx context.Context, render RenderFunc) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.closeLocked()

	ch, dispose := s.source.Subscribe(ctx)
	done := make(chan struct{})
	s.dispose = dispose
	s.done = done

	go func() {
		defer close(done)
		for snap := range ch {
			s.apply(snap, render)
		}
	}()
}

// Close releases the subscription and waits for pending deliveries
func (s *Sync) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.closeLocked()
}

func (s *Sync) closeLocked() {
	if s.dispose == nil {
		return
	}
	s.dispose()
	<-s.done
	s.dispose = nil
	s.done = nil
}

func (s *Sync) apply(snap storage.Snapshot, render RenderFunc) {
	if s.onSnapshot != nil {
		s.onSnapshot(len(snap.Guests), snap.Err)
	}

	if snap.Err != nil {
		s.log.Error().Err(snap.Err).Msg("Guest subscription error")
		if render != nil {
			render([]models.Guest{})
		}
		return
	}

	guests := Sorted(snap.Guests)

	s.mu.Lock()
	s.cache = guests
	s.loaded = true
	s.mu.Unlock()

	if render != nil {
		render(clone(guests))
	}
}

// FetchOnce reads the collection a single time. The cache is only filled
// when the subscription has not delivered yet. Errors yield an empty list.
func (s *Sync) FetchOnce(ctx context.Context) []models.Guest {
	collection, err := s.source.Get(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Error fetching guests")
		return []models.Guest{}
	}

	guests := Sorted(collection)

	s.mu.Lock()
	if !s.loaded {
		s.cache = guests
	}
	s.mu.Unlock()

	return clone(guests)
}

// Guests returns a copy of the cached list
func (s *Sync) Guests() []models.Guest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.cache)
}

func clone(guests []models.Guest) []models.Guest {
	out := make([]models.Guest, len(guests))
	copy(out, guests)
	return out
}

// Loaded reports whether a snapshot has been received
func (s *Sync) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Sorted converts the keyed collection into a list, most recent first.
// Guests with equal dates keep key order.
func Sorted(collection map[string]models.Guest) []models.Guest {
	keys := make([]string, 0, len(collection))
	for k := range collection {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	guests := make([]models.Guest, 0, len(keys))
	for _, k := range keys {
		guests = append(guests, collection[k])
	}
	sort.SliceStable(guests, func(i, j int) bool {
		return guests[i].Date.After(guests[j].Date)
	})
	return guests
}
