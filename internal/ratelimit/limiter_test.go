package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	l := New(Config{RPS: 1, Burst: 2})
	l.now = func() time.Time { return now }

	if !l.Allow("client-a") || !l.Allow("client-a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("client-a") {
		t.Fatal("third request inside the same instant should be limited")
	}
	if !l.Allow("client-b") {
		t.Fatal("buckets are per client")
	}

	now = now.Add(time.Second)
	if !l.Allow("client-a") {
		t.Fatal("token should refill after one second at 1 rps")
	}
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	if l.Enabled() {
		t.Fatal("zero rps disables limiting")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("client") {
			t.Fatalf("request %d limited while disabled", i)
		}
	}
	if l.Tracked() != 0 {
		t.Fatalf("disabled limiter should not track clients, got %d", l.Tracked())
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("client") {
		t.Fatal("nil limiter allows everything")
	}
}

func TestLimiterPrunesIdleClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	l := New(Config{RPS: 5, Burst: 1, MaxKeys: 2})
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Second)
	l.Allow("b")
	now = now.Add(time.Second)
	l.Allow("c")
	if got := l.Tracked(); got != 2 {
		t.Fatalf("expected bucket count capped at 2, got %d", got)
	}

	now = now.Add(time.Hour)
	l.Allow("d")
	if got := l.Tracked(); got != 1 {
		t.Fatalf("expected idle buckets pruned, got %d", got)
	}
}
