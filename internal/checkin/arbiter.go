// Package checkin decide el resultado de escanear un ticket en la puerta.
//
// El árbitro combina dos pasos: verificación criptográfica del token (offline,
// sin DB) y el marcado one-shot en el store. La garantía de "exactamente un
// checked_in por inscripción" NO vive acá: vive en el update condicional del
// store. Este paquete solo traduce sus resultados a estados de puerta.
package checkin

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/store/core"
	"github.com/dropDatabas3/konfera/internal/ticket"
)

// ErrInvalidTicket cubre cualquier fallo criptográfico o estructural del
// token. A la puerta no se le distingue el motivo: un ticket falsificado no
// merece feedback de por qué falló.
var ErrInvalidTicket = errors.New("checkin: invalid ticket")

// Status es el resultado de un intento de check-in sobre un ticket válido.
type Status int

const (
	// StatusCheckedIn: este intento fue el primero; la puerta abre.
	StatusCheckedIn Status = iota + 1
	// StatusAlreadyCheckedIn: el ticket ya fue usado (quizá hace milisegundos
	// por otro scanner). La puerta muestra el timestamp original.
	StatusAlreadyCheckedIn
)

// Wire retorna el valor del status en el JSON de respuesta. Los strings están
// fijados: los scanners desplegados los matchean textualmente.
func (s Status) Wire() string {
	switch s {
	case StatusCheckedIn:
		return "checked_in"
	case StatusAlreadyCheckedIn:
		return "already_checked_in"
	default:
		return "unknown"
	}
}

// ParseStatus mapea el string wire de vuelta al status tipado. Es el inverso
// exacto de Wire: el scanner lo usa para no matchear strings a mano.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "checked_in":
		return StatusCheckedIn, true
	case "already_checked_in":
		return StatusAlreadyCheckedIn, true
	default:
		return 0, false
	}
}

// Result es el veredicto del árbitro para un ticket válido.
type Result struct {
	Status       Status
	Registration *core.Registration
	Claims       *ticket.Claims
}

// Arbiter verifica tickets y arbitra el check-in exactamente-una-vez.
type Arbiter struct {
	store core.RegistrationStore
	pub   *rsa.PublicKey
	now   func() time.Time
}

func NewArbiter(store core.RegistrationStore, pub *rsa.PublicKey) *Arbiter {
	return &Arbiter{store: store, pub: pub, now: time.Now}
}

// CheckIn verifica el token y, si es válido, intenta marcar la inscripción.
// Retorna ErrInvalidTicket (cripto/estructura), core.ErrNotFound (sub no
// existe en DB: ticket de otra instancia o fila borrada), o un Result.
func (a *Arbiter) CheckIn(ctx context.Context, token string) (*Result, error) {
	claims, err := ticket.Verify(token, a.pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	reg, first, err := a.store.CheckIn(ctx, claims.Subject, a.now())
	if err != nil {
		return nil, err
	}

	status := StatusAlreadyCheckedIn
	if first {
		status = StatusCheckedIn
	}

	logger.From(ctx).Info("check-in arbitrated",
		logger.Component("checkin"),
		logger.RegistrationID(claims.Subject),
		logger.Conference(claims.Conference),
		logger.String("status", status.Wire()),
	)

	return &Result{Status: status, Registration: reg, Claims: claims}, nil
}

// Verify valida el token SIN mutar estado. Sirve para la página pública de
// verificación y para el endpoint GET /v1/verify.
func (a *Arbiter) Verify(ctx context.Context, token string) (*ticket.Claims, *core.Registration, error) {
	claims, err := ticket.Verify(token, a.pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	reg, err := a.store.GetRegistrationByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Token criptográficamente válido pero sin fila: lo reportamos
			// igual, la página muestra los claims y "sin registro en DB".
			return claims, nil, nil
		}
		return nil, nil, err
	}
	return claims, reg, nil
}
