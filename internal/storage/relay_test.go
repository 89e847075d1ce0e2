package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitation-site/internal/models"
)

type recordingPublisher struct {
	channels []string
	messages []interface{}
	ctxErrs  []error
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, message)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return redis.NewIntResult(1, p.err)
}

// cancelAfterPush cancels the caller's context as soon as the write returns,
// like a browser that hangs up right after submitting.
type cancelAfterPush struct {
	Store
	cancel context.CancelFunc
}

func (c cancelAfterPush) Push(ctx context.Context, guest models.Guest) (models.Guest, error) {
	saved, err := c.Store.Push(ctx, guest)
	c.cancel()
	return saved, err
}

func newTestRelay(t *testing.T, inner Store, pub publisher) *RelayedStore {
	t.Helper()
	t.Cleanup(func() { _ = inner.Close() })
	return &RelayedStore{Store: inner, pub: pub, origin: "node-a", log: zerolog.Nop()}
}

func newRelayFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "guests.json"))
	require.NoError(t, err)
	return store
}

func TestRelayedStore_AnnouncesWrite(t *testing.T) {
	pub := &recordingPublisher{}
	relay := newTestRelay(t, newRelayFileStore(t), pub)

	saved, err := relay.Push(context.Background(), models.Guest{Name: "Aruzhan"})
	require.NoError(t, err)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, RelayChannel, pub.channels[0])
	origin, id, ok := parseRelayPayload(pub.messages[0].(string))
	require.True(t, ok)
	assert.Equal(t, "node-a", origin)
	assert.Equal(t, saved.ID, id)
}

func TestRelayedStore_AnnouncesAfterCallerCancels(t *testing.T) {
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	relay := newTestRelay(t, cancelAfterPush{Store: newRelayFileStore(t), cancel: cancel}, pub)

	_, err := relay.Push(ctx, models.Guest{Name: "Madina"})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	require.Len(t, pub.ctxErrs, 1)
	assert.NoError(t, pub.ctxErrs[0])
}

func TestRelayedStore_PublishFailureKeepsWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("connection refused")}
	inner := newRelayFileStore(t)
	relay := newTestRelay(t, inner, pub)

	saved, err := relay.Push(context.Background(), models.Guest{Name: "Dana"})
	require.NoError(t, err)

	guests, err := inner.Get(context.Background())
	require.NoError(t, err)
	assert.Contains(t, guests, saved.ID)
}

func TestRelayedStore_FailedWriteIsNotAnnounced(t *testing.T) {
	pub := &recordingPublisher{}
	inner := newRelayFileStore(t)
	relay := newTestRelay(t, inner, pub)
	require.NoError(t, inner.Close())

	_, err := relay.Push(context.Background(), models.Guest{Name: "Dana"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, pub.messages)
}
