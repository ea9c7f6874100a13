// Package memory implementa core.Store en memoria. Sirve para dev local y
// para los tests de concurrencia del check-in, donde el mutex juega el papel
// que en postgres juega el update condicional.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/konfera/internal/store/core"
)

type Store struct {
	mu            sync.Mutex
	conferences   map[string]*core.Conference   // por ID
	slugIndex     map[string]string             // slug → ID
	registrations map[string]*core.Registration // por ID
	gateKeys      map[string]*core.GateKey
}

func New() *Store {
	return &Store{
		conferences:   make(map[string]*core.Conference),
		slugIndex:     make(map[string]string),
		registrations: make(map[string]*core.Registration),
		gateKeys:      make(map[string]*core.GateKey),
	}
}

// SeedConference registra una conferencia (sólo memory; pg las carga por migración).
func (s *Store) SeedConference(c *core.Conference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conferences[c.ID] = &cp
	s.slugIndex[c.Slug] = c.ID
}

func (s *Store) GetConferenceBySlug(_ context.Context, slug string) (*core.Conference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.slugIndex[slug]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s.conferences[id]
	return &cp, nil
}

func (s *Store) GetConferenceByID(_ context.Context, id string) (*core.Conference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conferences[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CountRegistrations(_ context.Context, conferenceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.registrations {
		if r.ConferenceID == conferenceID && !r.IsSpam && !r.Archived {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateRegistration(_ context.Context, p core.NewRegistrationParams) (*core.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(p.Email)
	for _, r := range s.registrations {
		if r.ConferenceID == p.ConferenceID && r.Email == email {
			return nil, core.ErrConflict
		}
	}

	reg := &core.Registration{
		ID:           p.ID,
		ConferenceID: p.ConferenceID,
		FullName:     p.FullName,
		Email:        email,
		Phone:        p.Phone,
		Institution:  p.Institution,
		Category:     p.Category,
		FeeAmount:    p.FeeAmount,
		Currency:     p.Currency,
		QRToken:      p.QRToken,
		CreatedAt:    time.Now().UTC(),
	}
	s.registrations[reg.ID] = reg
	cp := *reg
	return &cp, nil
}

func (s *Store) GetRegistrationByID(_ context.Context, id string) (*core.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetRegistrationByEmail(_ context.Context, conferenceID, email string) (*core.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalizeEmail(email)
	for _, r := range s.registrations {
		if r.ConferenceID == conferenceID && r.Email == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListRegistrations(_ context.Context, p core.ListRegistrationsParams) ([]core.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Registration
	search := strings.ToLower(strings.TrimSpace(p.Search))
	for _, r := range s.registrations {
		if r.ConferenceID != p.ConferenceID {
			continue
		}
		if r.IsSpam && !p.IncludeSpam {
			continue
		}
		if r.Archived && !p.IncludeArchived {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.FullName), search) &&
			!strings.Contains(r.Email, search) {
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *Store) SaveQRToken(_ context.Context, registrationID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[registrationID]
	if !ok {
		return core.ErrNotFound
	}
	r.QRToken = token
	return nil
}

func (s *Store) SetEmailStatus(_ context.Context, registrationID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[registrationID]
	if !ok {
		return core.ErrNotFound
	}
	r.EmailStatus = status
	return nil
}

// CheckIn hace el compare-and-set bajo el mutex: mismo contrato que el update
// condicional de pg. Exactamente un caller concurrente recibe first=true.
func (s *Store) CheckIn(_ context.Context, registrationID string, at time.Time) (*core.Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[registrationID]
	if !ok || r.IsSpam || r.Archived {
		return nil, false, core.ErrNotFound
	}
	if r.CheckedInAt != nil {
		cp := *r
		return &cp, false, nil
	}

	t := at.UTC()
	r.CheckedIn = true
	r.CheckedInAt = &t
	cp := *r
	return &cp, true, nil
}

func (s *Store) ListGateKeys(_ context.Context) ([]core.GateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GateKey
	for _, k := range s.gateKeys {
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateGateKey(_ context.Context, k *core.GateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.gateKeys[cp.ID] = &cp
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
