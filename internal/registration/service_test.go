package registration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/konfera/internal/cache"
	"github.com/dropDatabas3/konfera/internal/email"
	"github.com/dropDatabas3/konfera/internal/store/core"
	"github.com/dropDatabas3/konfera/internal/store/memory"
	"github.com/dropDatabas3/konfera/internal/ticket"
)

var testKey *rsa.PrivateKey

func init() {
	var err error
	testKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
}

type captureSender struct {
	mu   sync.Mutex
	sent []email.Confirmation
	err  error
}

func (c *captureSender) SendConfirmation(_ context.Context, m email.Confirmation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestService(t *testing.T, sender email.Sender, mutate func(*core.Conference)) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	conf := &core.Conference{
		ID:       "conf-1",
		Name:     "Konferenca Shkencore",
		Slug:     "shfmk-2025",
		Currency: "EUR",
		Fees:     map[string]float64{"farmacist": 35, "teknik": 30},
	}
	if mutate != nil {
		mutate(conf)
	}
	st.SeedConference(conf)

	confs := NewConferenceSource(st, cache.NewMemory("t"), time.Minute)
	enc := &ticket.Encoder{BaseURL: "https://konferenca.example.org"}
	return NewService(st, confs, testKey, enc, sender, "shfmk-2025"), st
}

func validInput() Input {
	return Input{
		FullName: "Arben Lila",
		Email:    "arben@example.org",
		Category: "farmacist",
	}
}

func TestRegisterHappyPath(t *testing.T) {
	sender := &captureSender{}
	svc, st := newTestService(t, sender, nil)
	ctx := context.Background()

	out, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if out.AlreadyRegistered {
		t.Fatal("fresh registration flagged as duplicate")
	}
	if out.Registration.FeeAmount != 35 || out.Registration.Currency != "EUR" {
		t.Fatalf("fee/currency: %+v", out.Registration)
	}

	// el token emitido verifica y apunta a la fila creada
	claims, err := ticket.Verify(out.Token, &testKey.PublicKey)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject != out.Registration.ID || claims.Fee != 35 {
		t.Fatalf("claims: %+v", claims)
	}

	// token persistido para reenvíos
	row, err := st.GetRegistrationByID(ctx, out.Registration.ID)
	if err != nil || row.QRToken != out.Token {
		t.Fatalf("token not persisted: %v", err)
	}
	if row.EmailStatus != "sent" {
		t.Fatalf("email_status = %q", row.EmailStatus)
	}

	if sender.count() != 1 {
		t.Fatalf("emails sent = %d", sender.count())
	}
	if len(out.QRPNG) == 0 {
		t.Fatal("QR missing")
	}
}

func TestRegisterDuplicateEmailResends(t *testing.T) {
	sender := &captureSender{}
	svc, _ := newTestService(t, sender, nil)
	ctx := context.Background()

	first, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	in := validInput()
	in.Email = "  ARBEN@example.org " // mismo mail, otra forma
	second, err := svc.Register(ctx, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.AlreadyRegistered {
		t.Fatal("duplicate not flagged")
	}
	if second.Registration.ID != first.Registration.ID {
		t.Fatal("duplicate created a new row")
	}
	if second.Token != first.Token {
		t.Fatal("duplicate re-signed instead of reusing the stored token")
	}
	if sender.count() != 2 {
		t.Fatalf("expected resend, emails = %d", sender.count())
	}
}

func TestRegisterDeadlinePassed(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	svc, _ := newTestService(t, &captureSender{}, func(c *core.Conference) {
		c.RegistrationDeadline = &past
	})

	_, err := svc.Register(context.Background(), validInput())
	if !errors.Is(err, ErrDeadlinePassed) {
		t.Fatalf("want ErrDeadlinePassed, got %v", err)
	}
}

func TestRegisterCapacity(t *testing.T) {
	svc, _ := newTestService(t, &captureSender{}, func(c *core.Conference) {
		c.MaxParticipants = 1
	})
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first: %v", err)
	}

	in := validInput()
	in.Email = "otro@example.org"
	if _, err := svc.Register(ctx, in); !errors.Is(err, ErrCapacityReached) {
		t.Fatalf("want ErrCapacityReached, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, &captureSender{}, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Input)
		want   error
	}{
		{"empty name", func(i *Input) { i.FullName = " " }, ErrValidation},
		{"bad email", func(i *Input) { i.Email = "no-es-mail" }, ErrValidation},
		{"empty category", func(i *Input) { i.Category = "" }, ErrValidation},
		{"unknown category", func(i *Input) { i.Category = "astronaut" }, ErrUnknownCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := svc.Register(ctx, in); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterToleratesEmailFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	svc, st := newTestService(t, sender, nil)
	ctx := context.Background()

	out, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("registration must survive SMTP failure: %v", err)
	}
	if out.EmailError == "" {
		t.Fatal("EmailError should surface the failure to the caller")
	}

	row, err := st.GetRegistrationByID(ctx, out.Registration.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.EmailStatus == "" || row.EmailStatus == "sent" {
		t.Fatalf("email_status should record the failure, got %q", row.EmailStatus)
	}
}

func TestResend(t *testing.T) {
	sender := &captureSender{}
	svc, _ := newTestService(t, sender, nil)
	ctx := context.Background()

	out, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Resend(ctx, out.Registration.ID); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if sender.count() != 2 {
		t.Fatalf("emails = %d", sender.count())
	}

	if err := svc.Resend(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestResendReSignsMissingToken(t *testing.T) {
	sender := &captureSender{}
	svc, st := newTestService(t, sender, nil)
	ctx := context.Background()

	out, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// fila vieja sin token persistido
	if err := st.SaveQRToken(ctx, out.Registration.ID, ""); err != nil {
		t.Fatalf("clear token: %v", err)
	}

	if err := svc.Resend(ctx, out.Registration.ID); err != nil {
		t.Fatalf("Resend: %v", err)
	}

	row, _ := st.GetRegistrationByID(ctx, out.Registration.ID)
	if row.QRToken == "" {
		t.Fatal("token should be re-signed and persisted")
	}
	claims, err := ticket.Verify(row.QRToken, &testKey.PublicKey)
	if err != nil || claims.Subject != out.Registration.ID {
		t.Fatalf("re-signed token invalid: %v", err)
	}
}
