package middleware

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for limiter tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, clock *fakeClock) *RateLimiter {
	t.Helper()
	l, err := NewRateLimiter(RateLimiterConfig{Clock: clock.Now})
	if err != nil {
		t.Fatalf("NewRateLimiter() error = %v", err)
	}
	return l
}

func TestAdmit_RejectsAtCap(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)
	key := ClientKey{IP: "10.0.0.1", Class: "general"}

	for i := 0; i < GeneralCap; i++ {
		if d := l.Admit(key); !d.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}

	d := l.Admit(key)
	if d.Allowed {
		t.Fatal("request over cap was allowed")
	}
	if d.RetryAfterSeconds <= 0 || d.RetryAfterSeconds > int(Window.Seconds()) {
		t.Errorf("RetryAfterSeconds = %d, want in (0, %d]", d.RetryAfterSeconds, int(Window.Seconds()))
	}
}

func TestAdmit_WindowResets(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)
	key := ClientKey{IP: "10.0.0.1", Class: "general"}

	for i := 0; i < GeneralCap; i++ {
		l.Admit(key)
	}
	if d := l.Admit(key); d.Allowed {
		t.Fatal("expected rejection at cap")
	}

	clock.Advance(Window + time.Second)

	d := l.Admit(key)
	if !d.Allowed {
		t.Fatal("request after window reset was rejected")
	}

	// The counter restarted at 1: the full cap is available again.
	for i := 0; i < GeneralCap-1; i++ {
		if d := l.Admit(key); !d.Allowed {
			t.Fatalf("request %d after reset rejected, want allowed", i+2)
		}
	}
	if d := l.Admit(key); d.Allowed {
		t.Error("cap not enforced after reset")
	}
}

func TestAdmit_AuthClassUsesTighterCap(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)
	authKey := ClientKey{IP: "10.0.0.1", Class: "auth"}
	generalKey := ClientKey{IP: "10.0.0.1", Class: "general"}

	for i := 0; i < AuthCap; i++ {
		if d := l.Admit(authKey); !d.Allowed {
			t.Fatalf("auth request %d rejected, want allowed", i+1)
		}
	}
	if d := l.Admit(authKey); d.Allowed {
		t.Errorf("auth request %d allowed, want rejected", AuthCap+1)
	}

	// The same client still has the full general budget.
	for i := 0; i < GeneralCap; i++ {
		if d := l.Admit(generalKey); !d.Allowed {
			t.Fatalf("general request %d rejected, want allowed", i+1)
		}
	}
	if d := l.Admit(generalKey); d.Allowed {
		t.Errorf("general request %d allowed, want rejected", GeneralCap+1)
	}
}

func TestAdmit_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)

	for i := 0; i < GeneralCap; i++ {
		l.Admit(ClientKey{IP: "10.0.0.1", Class: "general"})
	}
	if d := l.Admit(ClientKey{IP: "10.0.0.2", Class: "general"}); !d.Allowed {
		t.Error("a different client was rejected by another client's bucket")
	}
}

func TestAdmit_ConcurrentSameKeyNeverExceedsCap(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)
	key := ClientKey{IP: "10.0.0.1", Class: "general"}

	const workers = 16
	const perWorker = 20 // 320 attempts against a cap of 120

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if d := l.Admit(key); d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != GeneralCap {
		t.Errorf("allowed = %d, want exactly %d", allowed, GeneralCap)
	}
}

func TestSweep_EvictsStaleEntries(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)

	l.Admit(ClientKey{IP: "10.0.0.1", Class: "general"})
	l.Admit(ClientKey{IP: "10.0.0.2", Class: "general"})

	clock.Advance(3 * Window)
	l.Admit(ClientKey{IP: "10.0.0.3", Class: "general"})

	removed := l.Sweep()
	if removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestRateLimiter_LRUBound(t *testing.T) {
	clock := newFakeClock()
	l, err := NewRateLimiter(RateLimiterConfig{Clock: clock.Now, MaxKeys: 8})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 32; i++ {
		l.Admit(ClientKey{IP: string(rune('a' + i)), Class: "general"})
	}
	if l.Len() > 8 {
		t.Errorf("Len() = %d, want at most 8", l.Len())
	}
}
