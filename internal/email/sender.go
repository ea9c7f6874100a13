// Package email envía las confirmaciones de inscripción con el QR adjunto.
package email

import "context"

// Confirmation es el contenido de un email de confirmación de inscripción.
type Confirmation struct {
	To             string
	FullName       string
	ConferenceName string
	Category       string
	FeeAmount      float64
	Currency       string
	// VerificationURL es el link de verificación que también codifica el QR.
	VerificationURL string
	// QRPNG es el ticket renderizado; va inline en el HTML y como adjunto.
	QRPNG []byte
}

// Sender envía emails de confirmación. La implementación real es SMTP;
// los tests usan un fake que captura el mensaje.
type Sender interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// Noop descarta los emails. Para dev sin SMTP configurado.
type Noop struct{}

func (Noop) SendConfirmation(context.Context, Confirmation) error { return nil }
