package httpmiddleware

import (
	"testing"
	"time"
)

func TestClientLimiterBurst(t *testing.T) {
	l := NewClientLimiter(3, 60)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.take("1.2.3.4", now) {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}
	if l.take("1.2.3.4", now) {
		t.Error("request over burst should be denied")
	}
}

func TestClientLimiterRefill(t *testing.T) {
	l := NewClientLimiter(1, 60) // one token per second
	now := time.Now()

	if !l.take("kiosk", now) {
		t.Fatal("first request should pass")
	}
	if l.take("kiosk", now.Add(100*time.Millisecond)) {
		t.Error("bucket should still be empty")
	}
	if !l.take("kiosk", now.Add(1100*time.Millisecond)) {
		t.Error("one second of refill should allow a request")
	}
}

func TestClientLimiterKeysAreIndependent(t *testing.T) {
	l := NewClientLimiter(1, 60)
	now := time.Now()

	if !l.take("a", now) {
		t.Fatal("first request for key a should pass")
	}
	if l.take("a", now) {
		t.Error("key a is exhausted")
	}
	if !l.take("b", now) {
		t.Error("key b has its own bucket")
	}
}

func TestClientLimiterDefaultBurst(t *testing.T) {
	l := NewClientLimiter(0, 2)
	if l.burst != 2 {
		t.Errorf("burst = %v; want sustained-rate fallback 2", l.burst)
	}
}

func TestClientLimiterPrunesIdleClients(t *testing.T) {
	l := NewClientLimiter(1, 60)
	now := time.Now()

	for i := 0; i < pruneAbove+1; i++ {
		l.take(string(rune('a'+i%26))+string(rune('0'+i/26)), now)
	}
	// a new key past the threshold triggers pruning of everything idle
	l.take("fresh", now.Add(pruneIdle+time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.clients) != 1 {
		t.Errorf("clients = %d; want only the fresh bucket", len(l.clients))
	}
}
