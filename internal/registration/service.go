// Package registration implementa el flujo de inscripción: validación,
// deadline y cupo, emisión del ticket firmado, QR y email de confirmación.
package registration

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/konfera/internal/email"
	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/store/core"
	"github.com/dropDatabas3/konfera/internal/ticket"
)

var (
	// ErrValidation: input inválido (campos vacíos, email malformado).
	ErrValidation = errors.New("registration: invalid input")
	// ErrDeadlinePassed: la fecha límite de inscripción ya pasó.
	ErrDeadlinePassed = errors.New("registration: deadline passed")
	// ErrCapacityReached: la conferencia llegó a max_participants.
	ErrCapacityReached = errors.New("registration: capacity reached")
	// ErrUnknownCategory: la categoría no tiene tarifa definida.
	ErrUnknownCategory = errors.New("registration: unknown category")
)

// Input es lo que llega del formulario público.
type Input struct {
	FullName    string
	Email       string
	Phone       string
	Institution string
	Category    string
}

// Output es el resultado de un registro (nuevo o repetido).
type Output struct {
	Registration    *core.Registration
	Token           string
	VerificationURL string
	QRPNG           []byte
	// AlreadyRegistered: el email ya estaba inscripto; se reenvió la
	// confirmación existente en vez de crear una fila nueva.
	AlreadyRegistered bool
	// EmailError: la inscripción quedó pero el email de confirmación falló.
	// Vacío si se envió (o si no hay sender configurado).
	EmailError string
}

// Service orquesta el flujo de inscripción.
type Service struct {
	store   core.Store
	confs   *ConferenceSource
	priv    *rsa.PrivateKey
	encoder *ticket.Encoder
	mail    email.Sender
	slug    string
	now     func() time.Time
}

func NewService(store core.Store, confs *ConferenceSource, priv *rsa.PrivateKey,
	encoder *ticket.Encoder, sender email.Sender, slug string) *Service {
	return &Service{
		store:   store,
		confs:   confs,
		priv:    priv,
		encoder: encoder,
		mail:    sender,
		slug:    slug,
		now:     time.Now,
	}
}

// Register procesa una inscripción nueva. Si el email ya existe para la
// conferencia, NO crea otra fila: reenvía la confirmación del registro
// existente y lo señala con AlreadyRegistered.
func (s *Service) Register(ctx context.Context, in Input) (*Output, error) {
	in = normalize(in)
	if err := validate(in); err != nil {
		return nil, err
	}

	conf, err := s.confs.BySlug(ctx, s.slug)
	if err != nil {
		return nil, fmt.Errorf("registration: load conference: %w", err)
	}

	// Email duplicado: camino idempotente, antes que deadline/cupo. Quien ya
	// está adentro puede repedir su ticket aunque la inscripción haya cerrado.
	if existing, err := s.store.GetRegistrationByEmail(ctx, conf.ID, in.Email); err == nil {
		return s.resendExisting(ctx, conf, existing)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	if conf.RegistrationDeadline != nil && s.now().After(*conf.RegistrationDeadline) {
		return nil, ErrDeadlinePassed
	}
	if conf.MaxParticipants > 0 {
		n, err := s.store.CountRegistrations(ctx, conf.ID)
		if err != nil {
			return nil, err
		}
		if n >= conf.MaxParticipants {
			return nil, ErrCapacityReached
		}
	}

	fee, ok := conf.Fees[in.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, in.Category)
	}

	id := uuid.NewString()
	token, err := ticket.Sign(ticket.Claims{
		Subject:    id,
		Name:       in.FullName,
		Category:   in.Category,
		Conference: conf.Slug,
		Fee:        fee,
		Currency:   conf.Currency,
	}, s.priv)
	if err != nil {
		return nil, fmt.Errorf("registration: sign ticket: %w", err)
	}

	reg, err := s.store.CreateRegistration(ctx, core.NewRegistrationParams{
		ID:           id,
		ConferenceID: conf.ID,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Institution:  in.Institution,
		Category:     in.Category,
		FeeAmount:    fee,
		Currency:     conf.Currency,
		QRToken:      token,
	})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			// Carrera entre dos submits del mismo email: el perdedor reenvía.
			if existing, err2 := s.store.GetRegistrationByEmail(ctx, conf.ID, in.Email); err2 == nil {
				return s.resendExisting(ctx, conf, existing)
			}
		}
		return nil, err
	}

	logger.From(ctx).Info("registration created",
		logger.Component("registration"),
		logger.RegistrationID(reg.ID),
		logger.Conference(conf.Slug),
		logger.Category(reg.Category),
	)

	out, err := s.buildOutput(conf, reg, token, false)
	if err != nil {
		return nil, err
	}
	s.deliverConfirmation(ctx, conf, reg, out)
	return out, nil
}

// Resend reenvía la confirmación de una inscripción existente (admin).
func (s *Service) Resend(ctx context.Context, registrationID string) error {
	reg, err := s.store.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return err
	}
	conf, err := s.store.GetConferenceByID(ctx, reg.ConferenceID)
	if err != nil {
		return err
	}

	out, err := s.prepareTicket(ctx, conf, reg)
	if err != nil {
		return err
	}
	s.deliverConfirmation(ctx, conf, reg, out)
	return nil
}

// ─── internos ───

func (s *Service) resendExisting(ctx context.Context, conf *core.Conference, reg *core.Registration) (*Output, error) {
	out, err := s.prepareTicket(ctx, conf, reg)
	if err != nil {
		return nil, err
	}
	out.AlreadyRegistered = true
	out.Registration = reg

	logger.From(ctx).Info("duplicate registration, resending confirmation",
		logger.Component("registration"),
		logger.RegistrationID(reg.ID),
	)

	s.deliverConfirmation(ctx, conf, reg, out)
	return out, nil
}

// prepareTicket asegura token + QR para una inscripción existente. Filas
// viejas pueden no tener token persistido; en ese caso se firma uno nuevo
// con el MISMO sub, que verifica igual.
func (s *Service) prepareTicket(ctx context.Context, conf *core.Conference, reg *core.Registration) (*Output, error) {
	token := reg.QRToken
	if token == "" {
		var err error
		token, err = ticket.Sign(ticket.Claims{
			Subject:    reg.ID,
			Name:       reg.FullName,
			Category:   reg.Category,
			Conference: conf.Slug,
			Fee:        reg.FeeAmount,
			Currency:   reg.Currency,
		}, s.priv)
		if err != nil {
			return nil, fmt.Errorf("registration: re-sign ticket: %w", err)
		}
		if err := s.store.SaveQRToken(ctx, reg.ID, token); err != nil {
			return nil, err
		}
	}
	return s.buildOutput(conf, reg, token, false)
}

func (s *Service) buildOutput(_ *core.Conference, reg *core.Registration, token string, already bool) (*Output, error) {
	verifyURL := s.encoder.BuildVerificationURL(token)
	png, err := s.encoder.RenderQR(verifyURL)
	if err != nil {
		return nil, err
	}
	return &Output{
		Registration:      reg,
		Token:             token,
		VerificationURL:   verifyURL,
		QRPNG:             png,
		AlreadyRegistered: already,
	}, nil
}

// deliverConfirmation envía el email con tolerancia: un SMTP caído no hace
// fallar la inscripción, solo queda marcada en email_status para reintento
// manual desde el admin.
func (s *Service) deliverConfirmation(ctx context.Context, conf *core.Conference, reg *core.Registration, out *Output) {
	if s.mail == nil {
		return
	}
	err := s.mail.SendConfirmation(ctx, email.Confirmation{
		To:              reg.Email,
		FullName:        reg.FullName,
		ConferenceName:  conf.Name,
		Category:        reg.Category,
		FeeAmount:       reg.FeeAmount,
		Currency:        reg.Currency,
		VerificationURL: out.VerificationURL,
		QRPNG:           out.QRPNG,
	})

	status := "sent"
	if err != nil {
		status = "error: " + truncate(err.Error(), 200)
		out.EmailError = truncate(err.Error(), 200)
		logger.From(ctx).Warn("confirmation email failed",
			logger.Component("registration"),
			logger.RegistrationID(reg.ID),
			logger.Err(err),
		)
	}
	if serr := s.store.SetEmailStatus(ctx, reg.ID, status); serr != nil {
		logger.From(ctx).Warn("set email status failed",
			logger.Component("registration"),
			logger.RegistrationID(reg.ID),
			logger.Err(serr),
		)
	}
}

func normalize(in Input) Input {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Institution = strings.TrimSpace(in.Institution)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

func validate(in Input) error {
	if in.FullName == "" {
		return fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if in.Category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
