package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rexliu/motoshop/pkg/core"
)

var testUser = core.User{ID: 3, Username: "cashier", Role: core.RoleStaff, Status: core.UserActive}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	s, err := m.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if s.Token == "" || s.UserID != 3 || s.Role != core.RoleStaff {
		t.Fatalf("unexpected session %+v", s)
	}
	got, err := m.Lookup(ctx, s.Token)
	if err != nil || got.Username != "cashier" {
		t.Fatalf("lookup: %+v %v", got, err)
	}

	clock = clock.Add(time.Minute)
	if _, err := m.Lookup(ctx, s.Token); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected expired token to be unauthorized, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expired session still stored")
	}

	s, _ = m.Issue(ctx, testUser)
	if err := m.Revoke(ctx, s.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Lookup(ctx, s.Token); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected revoked token to be unauthorized, got %v", err)
	}
	if _, err := m.Lookup(ctx, ""); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected empty token to be unauthorized, got %v", err)
	}
}

func TestRedisLifecycle(t *testing.T) {
	url := os.Getenv("MOTOSHOP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MOTOSHOP_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := DialRedis(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	s, err := r.Issue(ctx, testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := r.Lookup(ctx, s.Token)
	if err != nil || got.UserID != testUser.ID {
		t.Fatalf("lookup: %+v %v", got, err)
	}
	if err := r.Revoke(ctx, s.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := r.Lookup(ctx, s.Token); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected revoked token to be unauthorized, got %v", err)
	}
}
