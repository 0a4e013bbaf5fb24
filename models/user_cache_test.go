package models

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"github.com/alicebob/miniredis/v2"
)

// The User:<username> cache must round-trip: a populated entry serves
// GetUserByUsername without a database, and RemoveInstanceRedis invalidates
// it. Runs against an in-memory redis.
func TestUserCacheHitAndInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	t.Setenv("REDIS_ADDRESS", mr.Addr())
	config.ConnectRedisWithRetry()

	cached := User{
		ID:       7,
		Username: "alice",
		Name:     "Alice",
		Role:     UserRoleChecker,
	}
	if err := config.SetRedisObject("User:alice", &cached, time.Hour); err != nil {
		t.Fatalf("cache write: %v", err)
	}

	got, err := GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("cache hit must not need the database: %v", err)
	}
	if got.ID != 7 || got.Username != "alice" || got.Role != UserRoleChecker {
		t.Fatalf("stale or wrong cached user: %+v", got)
	}

	if err := got.RemoveInstanceRedis(); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	var after User
	exists, err := config.GetRedisObject("User:alice", &after)
	if err != nil {
		t.Fatalf("cache read after invalidate: %v", err)
	}
	if exists {
		t.Fatal("invalidated entry must be gone")
	}
}
