package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rb := NewRedisBackend(rdb, "test")
	ctx := context.Background()

	want := Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := rb.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	if v, _ := mr.Get("test:auth_token"); v != "access" {
		t.Errorf("test:auth_token = %q", v)
	}
	if v, _ := mr.Get("test:auth_refresh"); v != "refresh" {
		t.Errorf("test:auth_refresh = %q", v)
	}
	if v, _ := mr.Get("test:auth_token_exp"); v != "2030-01-02T03:04:05Z" {
		t.Errorf("test:auth_token_exp = %q", v)
	}

	got, err := rb.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken ||
		!got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRedisBackend_EmptyFieldsAreDeleted(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rb := NewRedisBackend(rdb, "")
	ctx := context.Background()

	if err := rb.Save(ctx, Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := rb.Save(ctx, Session{AccessToken: "b"}); err != nil {
		t.Fatal(err)
	}

	if mr.Exists("workping:auth_refresh") || mr.Exists("workping:auth_token_exp") {
		t.Errorf("stale refresh or expiry keys left behind: %v", mr.Keys())
	}

	got, err := rb.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Session{AccessToken: "b"}) {
		t.Errorf("got %+v", got)
	}
}

func TestRedisBackend_Delete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rb := NewRedisBackend(rdb, "p")
	ctx := context.Background()

	if err := rb.Save(ctx, Session{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}
	if err := rb.Delete(ctx); err != nil {
		t.Fatal(err)
	}

	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys after delete: %v", keys)
	}
	if s, err := rb.Load(ctx); err != nil || !s.IsZero() {
		t.Errorf("load after delete = %+v, %v", s, err)
	}
}

func TestRedisBackend_CorruptExpiration(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rb := NewRedisBackend(rdb, "p")

	mr.Set("p:auth_token", "a")
	mr.Set("p:auth_token_exp", "later")

	if _, err := rb.Load(context.Background()); !errors.Is(err, ErrStorageCorrupted) {
		t.Errorf("err = %v, want ErrStorageCorrupted", err)
	}
}

func TestRedisBackend_ServerDownReadsAsNoSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	store := NewTokenStore(NewRedisBackend(rdb, "p"), discardLogger())
	ctx := context.Background()

	store.Write(ctx, Session{AccessToken: "a"})
	mr.Close()

	if s := store.Read(ctx); !s.IsZero() {
		t.Errorf("read with redis down = %+v, want zero", s)
	}
	// Must not panic or block.
	store.Write(ctx, Session{AccessToken: "b"})
	store.Clear(ctx)
}
