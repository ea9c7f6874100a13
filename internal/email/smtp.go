package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/konfera/internal/observability/logger"
)

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPSender crea un SMTPSender con TLS en modo auto.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

// SendConfirmation arma y envía el multipart (texto + HTML + QR embebido).
func (s *SMTPSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	log := logger.From(ctx).With(
		logger.Component("email"),
		logger.String("host", s.Host),
		logger.String("to", c.To),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", c.To)
	m.SetHeader("Subject", fmt.Sprintf("Regjistrimi juaj — %s", c.ConferenceName))

	m.SetBody("text/plain", renderText(c))
	m.AddAlternative("text/html", renderHTML(c))

	if len(c.QRPNG) > 0 {
		m.Embed("ticket.png", mail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(c.QRPNG))
			return err
		}))
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info("confirmation email sent")
	return nil
}
