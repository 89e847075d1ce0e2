package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"invitation-site/internal/models"
)

// RelayChannel is the Redis channel on which writes are announced
const RelayChannel = "guests"

const publishTimeout = 5 * time.Second

// publisher is the part of the Redis client used to announce writes
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RelayedStore announces every write on Redis so that other instances
// sharing the same backend re-broadcast their snapshot
type RelayedStore struct {
	Store
	client *redis.Client
	pub    publisher
	origin string
	log    zerolog.Logger
}

// NewRelayedStore wraps inner with a Redis change relay
func NewRelayedStore(inner Store, addr string, logger zerolog.Logger) *RelayedStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RelayedStore{
		Store:  inner,
		client: client,
		pub:    client,
		origin: newID(),
		log:    logger.With().Str("component", "relay").Logger(),
	}
}

// Ping checks the Redis connection
func (r *RelayedStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// Push stores the guest and announces the write. A failed announcement only
// delays other instances, so it is logged and not returned.
func (r *RelayedStore) Push(ctx context.Context, guest models.Guest) (models.Guest, error) {
	saved, err := r.Store.Push(ctx, guest)
	if err != nil {
		return saved, err
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.pub.Publish(pubCtx, RelayChannel, relayPayload(r.origin, saved.ID)).Err(); err != nil {
		r.log.Warn().Err(err).Str("guest_id", saved.ID).Msg("Failed to announce write")
	}
	return saved, nil
}

// Run listens for writes made by other instances until ctx is done
func (r *RelayedStore) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RelayChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, id, ok := parseRelayPayload(msg.Payload)
			if !ok {
				r.log.Warn().Str("payload", msg.Payload).Msg("Ignoring malformed relay message")
				continue
			}
			if origin == r.origin {
				continue
			}
			r.log.Debug().Str("guest_id", id).Msg("Remote write, refreshing")
			if err := r.Store.Refresh(ctx); err != nil {
				r.log.Error().Err(err).Msg("Error refreshing after remote write")
			}
		}
	}
}

// Close closes the Redis client and the wrapped store
func (r *RelayedStore) Close() error {
	return errors.Join(r.client.Close(), r.Store.Close())
}

func relayPayload(origin, id string) string {
	return origin + "/" + id
}

func parseRelayPayload(payload string) (origin, id string, ok bool) {
	origin, id, ok = strings.Cut(payload, "/")
	if !ok || origin == "" || id == "" {
		return "", "", false
	}
	return origin, id, true
}
