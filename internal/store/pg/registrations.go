package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/konfera/internal/store/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const registrationCols = `id, conference_id, full_name, email, phone, institution,
	category, fee_amount, currency, qr_token, checked_in, checked_in_at,
	is_spam, archived, email_status, created_at`

func (s *Store) CreateRegistration(ctx context.Context, p core.NewRegistrationParams) (*core.Registration, error) {
	const q = `INSERT INTO registrations
		(id, conference_id, full_name, email, phone, institution, category,
		 fee_amount, currency, qr_token)
		VALUES ($1,$2,$3,LOWER($4),$5,$6,$7,$8,$9,$10)
		RETURNING ` + registrationCols

	row := s.pool.QueryRow(ctx, q,
		p.ID, p.ConferenceID, p.FullName, strings.TrimSpace(p.Email),
		nullIfEmpty(p.Phone), nullIfEmpty(p.Institution), p.Category,
		p.FeeAmount, p.Currency, p.QRToken,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrConflict
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return reg, nil
}

func (s *Store) GetRegistrationByID(ctx context.Context, id string) (*core.Registration, error) {
	q := `SELECT ` + registrationCols + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Store) GetRegistrationByEmail(ctx context.Context, conferenceID, email string) (*core.Registration, error) {
	q := `SELECT ` + registrationCols + ` FROM registrations
		WHERE conference_id = $1 AND email = LOWER($2) LIMIT 1`
	reg, err := scanRegistration(s.pool.QueryRow(ctx, q, conferenceID, strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Store) ListRegistrations(ctx context.Context, p core.ListRegistrationsParams) ([]core.Registration, error) {
	q := `SELECT ` + registrationCols + ` FROM registrations WHERE conference_id = $1`
	args := []any{p.ConferenceID}

	if !p.IncludeSpam {
		q += ` AND NOT is_spam`
	}
	if !p.IncludeArchived {
		q += ` AND NOT archived`
	}
	if p.Search != "" {
		// mismo truco que el admin original: espacios → comodines
		term := "%" + strings.ReplaceAll(p.Search, " ", "%") + "%"
		args = append(args, term)
		q += fmt.Sprintf(` AND (full_name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args))
	}
	q += ` ORDER BY created_at DESC`
	if p.Limit > 0 {
		args = append(args, p.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []core.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

func (s *Store) SaveQRToken(ctx context.Context, registrationID, token string) error {
	const q = `UPDATE registrations SET qr_token = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, registrationID, token)
	if err != nil {
		return fmt.Errorf("save qr token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SetEmailStatus(ctx context.Context, registrationID, status string) error {
	const q = `UPDATE registrations SET email_status = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, registrationID, status)
	if err != nil {
		return fmt.Errorf("set email status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// CheckIn: UN solo UPDATE condicional. La condición checked_in_at IS NULL
// cierra la ventana de carrera entre scanners concurrentes; la DB es el lock.
// Jamás reemplazar por SELECT + UPDATE.
func (s *Store) CheckIn(ctx context.Context, registrationID string, at time.Time) (*core.Registration, bool, error) {
	const q = `UPDATE registrations
		SET checked_in = TRUE, checked_in_at = $2
		WHERE id = $1 AND checked_in_at IS NULL AND NOT is_spam AND NOT archived
		RETURNING ` + registrationCols

	reg, err := scanRegistration(s.pool.QueryRow(ctx, q, registrationID, at.UTC()))
	if err == nil {
		return reg, true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, fmt.Errorf("check-in update: %w", err)
	}

	// El update no tocó nada: releer read-only para distinguir inexistente
	// de ya-checked-in (posiblemente por un request concurrente).
	existing, err := s.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return nil, false, err
	}
	if existing.IsSpam || existing.Archived {
		return nil, false, core.ErrNotFound
	}
	return existing, false, nil
}

// ─── helpers ───

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*core.Registration, error) {
	var r core.Registration
	var phone, institution, emailStatus *string

	err := row.Scan(&r.ID, &r.ConferenceID, &r.FullName, &r.Email, &phone,
		&institution, &r.Category, &r.FeeAmount, &r.Currency, &r.QRToken,
		&r.CheckedIn, &r.CheckedInAt, &r.IsSpam, &r.Archived, &emailStatus,
		&r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}

	r.Phone = deref(phone)
	r.Institution = deref(institution)
	r.EmailStatus = deref(emailStatus)
	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation detecta el unique_violation (23505) de postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
