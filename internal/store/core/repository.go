package core

import (
	"context"
	"time"
)

// ConferenceStore lee metadata de conferencias.
type ConferenceStore interface {
	// GetConferenceBySlug retorna ErrNotFound si el slug no existe.
	GetConferenceBySlug(ctx context.Context, slug string) (*Conference, error)
	GetConferenceByID(ctx context.Context, id string) (*Conference, error)
	CountRegistrations(ctx context.Context, conferenceID string) (int, error)
}

// RegistrationStore maneja las filas de inscripción.
type RegistrationStore interface {
	CreateRegistration(ctx context.Context, p NewRegistrationParams) (*Registration, error)
	GetRegistrationByID(ctx context.Context, id string) (*Registration, error)
	// GetRegistrationByEmail busca por (conferencia, email normalizado).
	GetRegistrationByEmail(ctx context.Context, conferenceID, email string) (*Registration, error)
	ListRegistrations(ctx context.Context, p ListRegistrationsParams) ([]Registration, error)
	SaveQRToken(ctx context.Context, registrationID, token string) error
	SetEmailStatus(ctx context.Context, registrationID, status string) error

	// CheckIn es el único camino de escritura sobre checked_in/checked_in_at.
	// Debe ser UN update condicional atómico (checked_in_at IS NULL), nunca
	// read-then-write: el store es el punto de serialización entre scanners
	// concurrentes. Retorna (fila, true) si este intento fue el primero,
	// (fila existente, false) si ya estaba checked-in, o ErrNotFound.
	CheckIn(ctx context.Context, registrationID string, at time.Time) (*Registration, bool, error)
}

// GateKeyStore maneja credenciales de puerta.
type GateKeyStore interface {
	ListGateKeys(ctx context.Context) ([]GateKey, error)
	CreateGateKey(ctx context.Context, k *GateKey) error
}

// Store agrupa todos los repositorios; lo implementan pg y memory.
type Store interface {
	ConferenceStore
	RegistrationStore
	GateKeyStore

	Ping(ctx context.Context) error
	Close()
}
