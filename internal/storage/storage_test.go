package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitation-site/internal/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(dir, "guests.json"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(context.Background(), filepath.Join(dir, "guests.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = fileStore.Close()
		_ = sqliteStore.Close()
	})
	return map[string]Store{"file": fileStore, "sqlite": sqliteStore}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestStore_PushAssignsUniqueKeys(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			date := time.Date(2025, 11, 16, 17, 0, 0, 0, time.UTC)

			first, err := store.Push(ctx, models.Guest{Name: "Aigerim", Date: date})
			require.NoError(t, err)
			second, err := store.Push(ctx, models.Guest{Name: "Aigerim", Date: date})
			require.NoError(t, err)

			assert.NotEmpty(t, first.ID)
			assert.NotEqual(t, first.ID, second.ID)

			guests, err := store.Get(ctx)
			require.NoError(t, err)
			require.Len(t, guests, 2)
			assert.Equal(t, "Aigerim", guests[first.ID].Name)
			assert.True(t, guests[first.ID].Date.Equal(date))
		})
	}
}

func TestStore_SubscribeDeliversFullSnapshots(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ch, dispose := store.Subscribe(ctx)
			defer dispose()

			initial := receive(t, ch)
			require.NoError(t, initial.Err)
			assert.Empty(t, initial.Guests)

			_, err := store.Push(ctx, models.Guest{Name: "Dana"})
			require.NoError(t, err)
			_, err = store.Push(ctx, models.Guest{Name: "Yerlan"})
			require.NoError(t, err)

			assert.Len(t, receive(t, ch).Guests, 1)
			assert.Len(t, receive(t, ch).Guests, 2)
		})
	}
}

func TestStore_DisposeClosesChannel(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ch, dispose := store.Subscribe(context.Background())
			receive(t, ch)

			dispose()
			dispose()

			_, ok := <-ch
			assert.False(t, ok)
		})
	}
}

func TestStore_ContextCancelReleasesSubscription(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			ch, dispose := store.Subscribe(ctx)
			defer dispose()
			receive(t, ch)

			cancel()
			assert.Eventually(t, func() bool {
				select {
				case _, ok := <-ch:
					return !ok
				default:
					return false
				}
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestStore_ClosedStoreRejectsWrites(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ch, _ := store.Subscribe(context.Background())
			receive(t, ch)
			require.NoError(t, store.Close())

			_, ok := <-ch
			assert.False(t, ok)

			_, err := store.Push(context.Background(), models.Guest{Name: "Late"})
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestStore_SnapshotsSurviveCallerCancellation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ch, dispose := store.Subscribe(context.Background())
			defer dispose()
			receive(t, ch)

			stored := 0
			for i := 0; i < 300; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i%60)*time.Microsecond)
				saved, err := store.Push(ctx, models.Guest{Name: "Guest"})
				cancel()
				if err != nil {
					continue
				}
				stored++

				snap := receive(t, ch)
				require.NoError(t, snap.Err, "write %d was stored but its snapshot failed", i)
				assert.Contains(t, snap.Guests, saved.ID)
				assert.GreaterOrEqual(t, len(snap.Guests), stored)
			}
		})
	}
}

func TestFileStore_ReloadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "guests.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	saved, err := store.Push(context.Background(), models.Guest{Name: "Madina"})
	require.NoError(t, err)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	guests, err := reopened.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Madina", guests[saved.ID].Name)
}

func TestFileStore_RefreshPicksUpForeignWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guests.json")
	reader, err := NewFileStore(path)
	require.NoError(t, err)
	writer, err := NewFileStore(path)
	require.NoError(t, err)

	ch, dispose := reader.Subscribe(context.Background())
	defer dispose()
	receive(t, ch)

	_, err = writer.Push(context.Background(), models.Guest{Name: "Arman"})
	require.NoError(t, err)
	require.NoError(t, reader.Refresh(context.Background()))

	assert.Len(t, receive(t, ch).Guests, 1)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guests.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestFeed_SlowSubscriberKeepsLatest(t *testing.T) {
	var f feed
	ch, dispose := f.subscribe(context.Background(), Snapshot{})
	defer dispose()

	for i := 1; i <= subscriberBuffer+3; i++ {
		guests := make(map[string]models.Guest, i)
		for j := 0; j < i; j++ {
			id := newID()
			guests[id] = models.Guest{ID: id}
		}
		f.publish(Snapshot{Guests: guests})
	}

	var last Snapshot
	for n := 0; n < subscriberBuffer; n++ {
		last = <-ch
	}
	assert.Len(t, last.Guests, subscriberBuffer+3)
	select {
	case <-ch:
		t.Fatal("buffer should be drained")
	default:
	}
}

func TestParseRelayPayload(t *testing.T) {
	origin, id, ok := parseRelayPayload(relayPayload("node-a", "guest-1"))
	require.True(t, ok)
	assert.Equal(t, "node-a", origin)
	assert.Equal(t, "guest-1", id)

	for _, bad := range []string{"", "no-separator", "/id", "origin/"} {
		_, _, ok := parseRelayPayload(bad)
		assert.False(t, ok, bad)
	}
}
