package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campusnotes/notes-admin/internal/pubsub"
)

const (
	keyPrefix      = "notes-admin:credential:"
	changesChannel = "notes-admin:credential-changes"
	credentialTTL  = 30 * 24 * time.Hour
)

// RedisCache keeps credentials in Redis hashes and relays changes between
// server instances over a pub/sub channel.
type RedisCache struct {
	client  redis.UniversalClient
	sub     *redis.PubSub
	changes *pubsub.Topic[string]
	log     zerolog.Logger
	done    chan struct{}
}

// NewRedis subscribes to the change channel and starts relaying messages to
// local watchers. Close stops the relay.
func NewRedis(ctx context.Context, client redis.UniversalClient, log zerolog.Logger) (*RedisCache, error) {
	sub := client.Subscribe(ctx, changesChannel)
	// Wait for the subscription confirmation so no change published after
	// NewRedis returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", changesChannel, err)
	}

	c := &RedisCache{
		client:  client,
		sub:     sub,
		changes: pubsub.NewTopic[string](),
		log:     log,
		done:    make(chan struct{}),
	}
	go c.relay()
	return c, nil
}

func (c *RedisCache) relay() {
	defer close(c.done)
	for msg := range c.sub.Channel() {
		c.changes.Publish(msg.Payload)
	}
	c.log.Debug().Msg("Credential change relay stopped")
}

func key(browserID string) string {
	return keyPrefix + browserID
}

func (c *RedisCache) Load(ctx context.Context, browserID string) (Credential, error) {
	fields, err := c.client.HGetAll(ctx, key(browserID)).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}
	return decode(fields), nil
}

func (c *RedisCache) Store(ctx context.Context, browserID string, cred Credential) error {
	var values []interface{}
	for k, v := range cred.fields() {
		values = append(values, k, v)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(browserID))
		pipe.HSet(ctx, key(browserID), values...)
		pipe.Expire(ctx, key(browserID), credentialTTL)
		pipe.Publish(ctx, changesChannel, browserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context, browserID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(browserID))
		pipe.Publish(ctx, changesChannel, browserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

func (c *RedisCache) Watch(browserID string, fn func()) func() {
	return c.changes.Subscribe(func(changed string) {
		if changed == browserID {
			fn()
		}
	})
}

// Close stops relaying changes. The Redis client itself is owned by the caller.
func (c *RedisCache) Close() error {
	err := c.sub.Close()
	<-c.done
	return err
}
