package registration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/konfera/internal/cache"
	"github.com/dropDatabas3/konfera/internal/store/core"
)

// countingStore cuenta los hits reales a la DB.
type countingStore struct {
	inner core.ConferenceStore
	hits  atomic.Int64
}

func (c *countingStore) GetConferenceBySlug(ctx context.Context, slug string) (*core.Conference, error) {
	c.hits.Add(1)
	time.Sleep(5 * time.Millisecond) // simular round-trip para juntar el estampida
	return c.inner.GetConferenceBySlug(ctx, slug)
}

func (c *countingStore) GetConferenceByID(ctx context.Context, id string) (*core.Conference, error) {
	return c.inner.GetConferenceByID(ctx, id)
}

func (c *countingStore) CountRegistrations(ctx context.Context, id string) (int, error) {
	return c.inner.CountRegistrations(ctx, id)
}

type staticStore struct{ conf *core.Conference }

func (s staticStore) GetConferenceBySlug(_ context.Context, slug string) (*core.Conference, error) {
	if slug != s.conf.Slug {
		return nil, core.ErrNotFound
	}
	cp := *s.conf
	return &cp, nil
}
func (s staticStore) GetConferenceByID(context.Context, string) (*core.Conference, error) {
	cp := *s.conf
	return &cp, nil
}
func (s staticStore) CountRegistrations(context.Context, string) (int, error) { return 0, nil }

func TestConferenceSourceCachesAndCollapses(t *testing.T) {
	counting := &countingStore{inner: staticStore{conf: &core.Conference{
		ID: "conf-1", Slug: "shfmk-2025", Currency: "EUR",
		Fees: map[string]float64{"farmacist": 35},
	}}}
	src := NewConferenceSource(counting, cache.NewMemory("t"), time.Minute)
	ctx := context.Background()

	// estampida: N lecturas concurrentes con cache frío
	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := src.BySlug(ctx, "shfmk-2025"); err != nil {
				t.Errorf("BySlug: %v", err)
			}
		}()
	}
	wg.Wait()

	// el estampida colapsa en una (muy raramente dos) consultas reales
	cold := counting.hits.Load()
	if cold >= n/2 {
		t.Fatalf("singleflight failed: %d store hits for %d callers", cold, n)
	}

	// lectura posterior: servida del cache, cero hits nuevos
	conf, err := src.BySlug(ctx, "shfmk-2025")
	if err != nil {
		t.Fatalf("BySlug: %v", err)
	}
	if conf.Fees["farmacist"] != 35 {
		t.Fatalf("fees no sobrevivieron el cache: %+v", conf.Fees)
	}
	if hits := counting.hits.Load(); hits != cold {
		t.Fatalf("cache miss after warm cache: %d hits", hits)
	}
}

func TestConferenceSourceNotFound(t *testing.T) {
	src := NewConferenceSource(staticStore{conf: &core.Conference{Slug: "otra"}},
		cache.NewMemory("t"), time.Minute)
	if _, err := src.BySlug(context.Background(), "shfmk-2025"); err == nil {
		t.Fatal("want error for unknown slug")
	}
}
