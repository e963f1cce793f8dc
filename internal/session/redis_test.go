package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"statusgen/internal/status"
)

func newRedisStates(t *testing.T) (*RedisStates, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStatesWithClient(client, ""), mr
}

func TestRedisStatesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStates(t)

	state := status.DefaultState()
	state.Viewers[0].Name = "Ti Jean"
	if err := s.Save(ctx, "abc", state, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists(DefaultKeyPrefix + "abc") {
		t.Fatal("expected prefixed key")
	}
	if ttl := mr.TTL(DefaultKeyPrefix + "abc"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	got, err := s.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Viewers[0].Name != "Ti Jean" || got.Config.StatusText != state.Config.StatusText {
		t.Fatalf("unexpected state %+v", got)
	}

	if err := s.Delete(ctx, "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStatesExpire(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStates(t)
	if err := s.Save(ctx, "abc", status.DefaultState(), time.Minute); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Load(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestStoreWithRedis(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStates(t)
	store := NewStore(s, Options{})
	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := NewStore(s, Options{})
	got, err := other.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get from second instance: %v", err)
	}
	if len(got.State().Viewers) != 3 {
		t.Fatalf("expected default viewers, got %d", len(got.State().Viewers))
	}
}
