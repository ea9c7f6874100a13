package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4|/v1/register")
		if err != nil || !res.Allowed {
			t.Fatalf("hit %d: allowed=%v err=%v", i, res.Allowed, err)
		}
	}

	res, err := l.Allow(ctx, "1.2.3.4|/v1/register")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth hit should be blocked")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v", res.RetryAfter)
	}

	// otra key no comparte el bucket
	other, err := l.Allow(ctx, "5.6.7.8|/v1/register")
	if err != nil || !other.Allowed {
		t.Fatalf("other key blocked: %+v err=%v", other, err)
	}
}

func TestMemoryLimiterRemaining(t *testing.T) {
	l := NewMemoryLimiter(2, time.Hour)
	ctx := context.Background()

	res, _ := l.Allow(ctx, "k")
	if res.Remaining != 1 {
		t.Fatalf("remaining = %d", res.Remaining)
	}
	res, _ = l.Allow(ctx, "k")
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d", res.Remaining)
	}
}

func TestMemoryLimiterSweepsStaleBuckets(t *testing.T) {
	l := NewMemoryLimiter(10, 20*time.Millisecond)
	ctx := context.Background()

	for _, key := range []string{"a|/v1/register", "b|/v1/register", "c|/v1/register"} {
		if _, err := l.Allow(ctx, key); err != nil {
			t.Fatalf("Allow(%s): %v", key, err)
		}
	}

	// ventana vencida: el próximo Allow barre las entradas viejas en vez de
	// acumular una por IP para siempre
	time.Sleep(50 * time.Millisecond)
	if _, err := l.Allow(ctx, "d|/v1/register"); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("stale buckets not swept: %d entries", n)
	}
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for i := 0; i < 100; i++ {
		res, err := l.Allow(context.Background(), "any")
		if err != nil || !res.Allowed {
			t.Fatal("noop must always allow")
		}
	}
}
