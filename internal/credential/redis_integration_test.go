//go:build integration

package credential

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisCacheSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	addr, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(addr)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())
}

func (s *RedisCacheSuite) TearDownSuite() {
	ctx := context.Background()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(ctx)
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisCacheSuite) TestStoreLoadClear() {
	ctx := context.Background()
	cache, err := NewRedis(ctx, s.client, zerolog.Nop())
	s.Require().NoError(err)
	defer cache.Close()

	want := Credential{Authenticated: true, Email: "admin@uni.edu", Provider: ProviderDemo}
	s.Require().NoError(cache.Store(ctx, "b1", want))

	got, err := cache.Load(ctx, "b1")
	s.Require().NoError(err)
	s.Equal(want, got)

	s.Require().NoError(cache.Clear(ctx, "b1"))
	got, err = cache.Load(ctx, "b1")
	s.Require().NoError(err)
	s.Equal(Credential{}, got)
}

// A write through one instance reaches watchers on another instance.
func (s *RedisCacheSuite) TestWatchAcrossInstances() {
	ctx := context.Background()
	writer, err := NewRedis(ctx, s.client, zerolog.Nop())
	s.Require().NoError(err)
	defer writer.Close()

	reader, err := NewRedis(ctx, s.client, zerolog.Nop())
	s.Require().NoError(err)
	defer reader.Close()

	changed := make(chan struct{}, 4)
	unsub := reader.Watch("b1", func() { changed <- struct{}{} })
	defer unsub()

	s.Require().NoError(writer.Clear(ctx, "b1"))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		s.Fail("watcher was not notified of a change made by another instance")
	}
}
