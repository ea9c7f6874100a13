package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/konfera/internal/checkin"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []string
	block   chan struct{} // si no es nil, Submit espera acá
	outcome *Outcome
	err     error
}

func (f *fakeSubmitter) Submit(ctx context.Context, token, _ string) (*Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	block := f.block
	out, err := f.outcome, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newTestScanner(sub Submitter, onResult func(ScanResult)) *Scanner {
	return New(nil, sub, onResult, Config{
		DedupWindow:   50 * time.Millisecond,
		SubmitTimeout: time.Second,
		ResultHold:    NoResultHold,
	})
}

func TestScannerIgnoresFramesUntilAuthorized(t *testing.T) {
	sub := &fakeSubmitter{outcome: &Outcome{Status: checkin.StatusCheckedIn}}
	s := newTestScanner(sub, nil)

	if s.State() != StateAwaitingCredential {
		t.Fatalf("initial state = %v", s.State())
	}

	s.HandleFrame(context.Background(), "token-aaaa-bbbb")
	if sub.callCount() != 0 {
		t.Fatal("frame before Authorize must not submit")
	}

	s.Authorize("gk_test")
	if s.State() != StateScanning {
		t.Fatalf("state after Authorize = %v", s.State())
	}
}

func TestScannerSubmitsOncePerScan(t *testing.T) {
	var results []ScanResult
	var mu sync.Mutex
	sub := &fakeSubmitter{
		block:   make(chan struct{}),
		outcome: &Outcome{Status: checkin.StatusCheckedIn, Name: "Arben Lila"},
	}
	s := newTestScanner(sub, func(r ScanResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	s.Authorize("gk_test")

	// la misma credencial frente a la cámara: muchos frames idénticos
	frame := "https://x.example/verify?token=aaa.bbb.ccc"
	s.HandleFrame(context.Background(), frame)
	waitFor(t, func() bool { return s.State() == StateProcessing })

	for i := 0; i < 20; i++ {
		s.HandleFrame(context.Background(), frame)
	}
	if got := sub.callCount(); got != 1 {
		t.Fatalf("in-flight guard failed: %d submits", got)
	}

	close(sub.block)
	waitFor(t, func() bool { return s.State() == StateScanning })

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 || results[0].Kind != ResultFirstCheckIn {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestScannerDedupWindow(t *testing.T) {
	sub := &fakeSubmitter{outcome: &Outcome{Status: checkin.StatusCheckedIn}}
	var n atomic.Int32
	s := newTestScanner(sub, func(ScanResult) { n.Add(1) })
	s.Authorize("gk_test")

	frame := "token-xyz-123"
	s.HandleFrame(context.Background(), frame)
	waitFor(t, func() bool { return n.Load() == 1 })

	// re-lectura inmediata del mismo texto: dentro de la ventana, se ignora
	s.HandleFrame(context.Background(), frame)
	time.Sleep(20 * time.Millisecond)
	if sub.callCount() != 1 {
		t.Fatalf("dedup window failed: %d submits", sub.callCount())
	}

	// pasada la ventana, el mismo texto vuelve a contar
	time.Sleep(60 * time.Millisecond)
	s.HandleFrame(context.Background(), frame)
	waitFor(t, func() bool { return sub.callCount() == 2 })
}

func TestConfigResultHoldDefaults(t *testing.T) {
	// Cero = no configurado: toma el default.
	c := Config{}
	c.defaults()
	if c.ResultHold != 2*time.Second {
		t.Fatalf("ResultHold default = %v, want 2s", c.ResultHold)
	}

	// NoResultHold se respeta: no hay pausa post-resultado.
	c = Config{ResultHold: NoResultHold}
	c.defaults()
	if c.ResultHold >= 0 {
		t.Fatalf("NoResultHold coerced to %v", c.ResultHold)
	}
}

func TestScannerNoResultHoldReturnsImmediately(t *testing.T) {
	sub := &fakeSubmitter{outcome: &Outcome{Status: checkin.StatusCheckedIn}}
	s := newTestScanner(sub, nil)
	s.Authorize("gk_test")

	start := time.Now()
	s.HandleFrame(context.Background(), "token-sin-espera")
	waitFor(t, func() bool { return s.State() == StateScanning })

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("scan with NoResultHold stalled %v", elapsed)
	}
}

func TestScannerClassifiesOutcomes(t *testing.T) {
	cases := []struct {
		name string
		out  *Outcome
		err  error
		want ResultKind
	}{
		{"first", &Outcome{Status: checkin.StatusCheckedIn}, nil, ResultFirstCheckIn},
		{"dup", &Outcome{Status: checkin.StatusAlreadyCheckedIn}, nil, ResultAlreadyCheckedIn},
		{"unauthorized", nil, ErrUnauthorized, ResultUnauthorized},
		{"rejected", nil, ErrTicketRejected, ResultInvalidTicket},
		{"network", nil, errors.New("dial tcp: timeout"), ResultTransientError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestScanner(&fakeSubmitter{}, nil)
			got := s.classify(tc.out, tc.err)
			if got.Kind != tc.want {
				t.Fatalf("classify = %v, want %v", got.Kind, tc.want)
			}
		})
	}
}

func TestScannerRecoversAfterTransientError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("connection refused")}
	var kinds []ResultKind
	var mu sync.Mutex
	s := newTestScanner(sub, func(r ScanResult) {
		mu.Lock()
		kinds = append(kinds, r.Kind)
		mu.Unlock()
	})
	s.Authorize("gk_test")

	s.HandleFrame(context.Background(), "token-que-falla-1")
	waitFor(t, func() bool { return s.State() == StateScanning })

	// el loop sigue vivo: otro escaneo funciona
	sub.mu.Lock()
	sub.err = nil
	sub.outcome = &Outcome{Status: checkin.StatusCheckedIn}
	sub.mu.Unlock()

	s.HandleFrame(context.Background(), "token-que-anda-2")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if kinds[0] != ResultTransientError || kinds[1] != ResultFirstCheckIn {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}
