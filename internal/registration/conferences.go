package registration

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/konfera/internal/cache"
	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/store/core"
)

// ConferenceSource resuelve conferencias por slug con cache + singleflight.
// La metadata de la conferencia se lee en cada registro y cada listado del
// admin; el singleflight colapsa los misses concurrentes en UNA consulta.
type ConferenceSource struct {
	store core.ConferenceStore
	cache cache.Client
	ttl   time.Duration
	sf    singleflight.Group
}

func NewConferenceSource(store core.ConferenceStore, c cache.Client, ttl time.Duration) *ConferenceSource {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ConferenceSource{store: store, cache: c, ttl: ttl}
}

// BySlug retorna la conferencia, del cache si está fresca.
func (s *ConferenceSource) BySlug(ctx context.Context, slug string) (*core.Conference, error) {
	key := "conf:" + slug

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var c core.Conference
			if json.Unmarshal([]byte(raw), &c) == nil {
				return &c, nil
			}
			// entrada corrupta: la pisamos con el fetch de abajo
		}
	}

	v, err, _ := s.sf.Do(slug, func() (any, error) {
		c, err := s.store.GetConferenceBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(c); err == nil {
				if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
					logger.From(ctx).Warn("conference cache set failed",
						logger.Component("registration"), logger.Err(err))
				}
			}
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Conference), nil
}

// Invalidate borra la entrada (tras editar la conferencia por fuera).
func (s *ConferenceSource) Invalidate(ctx context.Context, slug string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "conf:"+slug)
	}
}
