package core

import "time"

// Conference es la metadata de una edición de la conferencia.
type Conference struct {
	ID                   string
	Name                 string
	Slug                 string
	StartsAt             *time.Time
	EndsAt               *time.Time
	Location             string
	RegistrationDeadline *time.Time
	MaxParticipants      int // 0 = sin límite
	Currency             string
	// Fees mapea categoría → monto (ej: "farmacist" → 35).
	Fees      map[string]float64
	CreatedAt time.Time
}

// Registration es la fila de inscripción. Es el único estado mutable que
// toca el core de check-in, y solamente via el update condicional.
type Registration struct {
	ID           string
	ConferenceID string
	FullName     string
	Email        string
	Phone        string
	Institution  string
	Category     string
	FeeAmount    float64
	Currency     string
	QRToken      string
	CheckedIn    bool
	CheckedInAt  *time.Time
	IsSpam       bool
	Archived     bool
	EmailStatus  string
	CreatedAt    time.Time
}

// GateKey es una credencial de puerta para voluntarios del scanner.
// KeyHash es bcrypt; la credencial en claro nunca se persiste.
type GateKey struct {
	ID        string
	Label     string
	KeyHash   string
	Disabled  bool
	CreatedAt time.Time
}

// NewRegistrationParams agrupa los campos necesarios para crear una inscripción.
type NewRegistrationParams struct {
	ID           string
	ConferenceID string
	FullName     string
	Email        string
	Phone        string
	Institution  string
	Category     string
	FeeAmount    float64
	Currency     string
	QRToken      string
}

// ListRegistrationsParams filtra el listado del admin.
type ListRegistrationsParams struct {
	ConferenceID    string
	Search          string
	Limit           int
	IncludeSpam     bool
	IncludeArchived bool
}
