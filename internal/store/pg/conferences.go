package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dropDatabas3/konfera/internal/store/core"
	"github.com/jackc/pgx/v5"
)

const conferenceCols = `id, name, slug, starts_at, ends_at, location,
	registration_deadline, max_participants, currency, fees, created_at`

func (s *Store) GetConferenceBySlug(ctx context.Context, slug string) (*core.Conference, error) {
	q := `SELECT ` + conferenceCols + ` FROM conferences WHERE slug = $1`
	return s.scanConference(s.pool.QueryRow(ctx, q, slug))
}

func (s *Store) GetConferenceByID(ctx context.Context, id string) (*core.Conference, error) {
	q := `SELECT ` + conferenceCols + ` FROM conferences WHERE id = $1`
	return s.scanConference(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) CountRegistrations(ctx context.Context, conferenceID string) (int, error) {
	const q = `SELECT COUNT(*) FROM registrations
		WHERE conference_id = $1 AND NOT is_spam AND NOT archived`
	var n int
	if err := s.pool.QueryRow(ctx, q, conferenceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (s *Store) scanConference(row pgx.Row) (*core.Conference, error) {
	var c core.Conference
	var feesRaw []byte
	var maxParticipants *int

	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.StartsAt, &c.EndsAt, &c.Location,
		&c.RegistrationDeadline, &maxParticipants, &c.Currency, &feesRaw, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan conference: %w", err)
	}

	if maxParticipants != nil {
		c.MaxParticipants = *maxParticipants
	}
	if len(feesRaw) > 0 {
		if err := json.Unmarshal(feesRaw, &c.Fees); err != nil {
			return nil, fmt.Errorf("decode fees: %w", err)
		}
	}
	return &c, nil
}
