package common

import (
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	l := NewRateLimiter(2, time.Second)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	steps := []struct {
		at   time.Duration
		ok   bool
		wait time.Duration
	}{
		{0, true, 0},
		{100 * time.Millisecond, true, 0},
		{200 * time.Millisecond, false, 1300 * time.Millisecond},
		// прошлое окно весит 0.6: 2*0.6 = 1.2 занятых слота
		{1400 * time.Millisecond, false, 100 * time.Millisecond},
		{1500 * time.Millisecond, true, 0},
		{1500 * time.Millisecond, false, 0},
		{5 * time.Second, true, 0},
	}
	for i, s := range steps {
		ok, wait := l.Reserve("u1", t0.Add(s.at))
		if ok != s.ok {
			t.Fatalf("step %d at %s: ok=%v, want %v", i, s.at, ok, s.ok)
		}
		if s.wait > 0 && wait != s.wait {
			t.Fatalf("step %d at %s: wait=%s, want %s", i, s.at, wait, s.wait)
		}
		if !ok && wait <= 0 {
			t.Fatalf("step %d: rejected call must report a positive wait", i)
		}
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)
	now := time.Now()
	if !l.Allow("web:alice", now) || !l.Allow("web:bob", now) {
		t.Fatalf("first call of each key must pass")
	}
	if l.Allow("web:alice", now.Add(time.Second)) {
		t.Fatalf("second call of alice must be blocked")
	}
}

func TestRateLimiterDropsIdleKeys(t *testing.T) {
	l := NewRateLimiter(5, time.Second)
	t0 := time.Now()
	l.Allow("a", t0)
	l.Allow("b", t0)
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
	l.Allow("c", t0.Add(3*time.Second))
	if l.Len() != 1 {
		t.Fatalf("idle keys must be dropped, len = %d", l.Len())
	}
}

func TestRateLimiterRejectionIsNotCounted(t *testing.T) {
	l := NewRateLimiter(2, time.Second)
	t0 := time.Now()
	l.Allow("k", t0)
	l.Allow("k", t0.Add(500*time.Millisecond))
	for i := 0; i < 10; i++ {
		if l.Allow("k", t0.Add(600*time.Millisecond+time.Duration(i)*10*time.Millisecond)) {
			t.Fatalf("call %d must be blocked", i)
		}
	}
	// в прошлом окне два принятых вызова с весом 0.5
	if !l.Allow("k", t0.Add(1500*time.Millisecond)) {
		t.Fatalf("rejected calls must not extend the block")
	}
}
