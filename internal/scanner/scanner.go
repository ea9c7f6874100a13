// Package scanner implementa el lado cliente de la puerta: el loop que toma
// frames decodificados de la cámara, extrae el token y dispara exactamente un
// intento de check-in por escaneo físico.
//
// La cámara en sí queda detrás de FrameSource: cada implementación (binding
// nativo, WebSocket desde un front, fixture de test) entrega el TEXTO ya
// decodificado del QR, un string por frame leído.
package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/konfera/internal/checkin"
	"github.com/dropDatabas3/konfera/internal/observability/logger"
)

// State es el estado del loop de escaneo.
type State int32

const (
	// StateAwaitingCredential: falta la credencial de puerta; la cámara no
	// se activa hasta que el operador la ingrese.
	StateAwaitingCredential State = iota
	StateScanning
	StateProcessing
	StateResult
)

func (s State) String() string {
	switch s {
	case StateAwaitingCredential:
		return "awaiting-credential"
	case StateScanning:
		return "scanning"
	case StateProcessing:
		return "processing"
	case StateResult:
		return "result"
	default:
		return "unknown"
	}
}

// FrameSource entrega el texto decodificado de cada frame con un QR legible.
// Frames sin QR no se entregan. Un error no-nulo termina el loop (cámara
// cerrada, contexto cancelado).
type FrameSource interface {
	NextFrame(ctx context.Context) (string, error)
}

// Submitter envía un intento de check-in al backend. La implementación real
// es Client (HTTP); los tests inyectan fakes.
type Submitter interface {
	Submit(ctx context.Context, token, credential string) (*Outcome, error)
}

// Outcome es la respuesta del backend a un check-in aceptado.
type Outcome struct {
	Status      checkin.Status
	Subject     string
	Name        string
	Category    string
	CheckedInAt *time.Time
}

// ResultKind clasifica el resultado de un escaneo para el operador.
type ResultKind int

const (
	ResultFirstCheckIn ResultKind = iota + 1
	ResultAlreadyCheckedIn
	// ResultInvalidTicket: ticket rechazado (firma, estructura o inexistente).
	// Deliberadamente sin distinguir el motivo.
	ResultInvalidTicket
	// ResultUnauthorized: credencial de puerta mala; reingresar credencial,
	// no re-escanear.
	ResultUnauthorized
	// ResultTransientError: red/timeout; el operador puede re-escanear.
	ResultTransientError
)

// ScanResult es el valor efímero que ve el operador tras cada intento.
// Nunca se persiste.
type ScanResult struct {
	Kind    ResultKind
	Outcome *Outcome
	Err     error
}

// NoResultHold desactiva la pausa post-resultado (ResultHold cero significa
// "no configurado" y toma el default).
const NoResultHold = time.Duration(-1)

// Config ajusta el comportamiento del loop.
type Config struct {
	// DedupWindow: ventana en la que un texto idéntico al anterior se ignora
	// (la misma credencial frente a la cámara produce decenas de frames).
	DedupWindow time.Duration
	// SubmitTimeout acota cada round-trip de check-in.
	SubmitTimeout time.Duration
	// ResultHold: cuánto se muestra el resultado antes de volver a escanear.
	// Cero toma el default; NoResultHold vuelve a escanear de inmediato.
	ResultHold time.Duration
}

func (c *Config) defaults() {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 3 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.ResultHold == 0 {
		c.ResultHold = 2 * time.Second
	}
}

// Scanner es el loop de puerta. Un Scanner por dispositivo/operador.
type Scanner struct {
	frames   FrameSource
	submit   Submitter
	onResult func(ScanResult)
	cfg      Config

	state    atomic.Int32
	inFlight atomic.Bool

	mu         sync.Mutex
	credential string
	lastText   string
	lastSeen   time.Time
}

func New(frames FrameSource, submit Submitter, onResult func(ScanResult), cfg Config) *Scanner {
	cfg.defaults()
	s := &Scanner{frames: frames, submit: submit, onResult: onResult, cfg: cfg}
	s.state.Store(int32(StateAwaitingCredential))
	return s
}

// State retorna el estado actual (para la UI del operador).
func (s *Scanner) State() State { return State(s.state.Load()) }

// Authorize guarda la credencial de puerta y habilita el escaneo.
// No valida contra el backend: la primera submission lo hará.
func (s *Scanner) Authorize(credential string) {
	s.mu.Lock()
	s.credential = credential
	s.mu.Unlock()
	if s.State() == StateAwaitingCredential {
		s.state.Store(int32(StateScanning))
	}
}

// Run consume frames hasta que el contexto se cancele o la fuente termine.
// Nunca entra en pánico por un frame malo: cualquier fallo degrada a un
// ScanResult visible y el loop sigue.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		text, err := s.frames.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		s.HandleFrame(ctx, text)
	}
}

// HandleFrame procesa un frame decodificado. Exportado por separado para que
// integraciones push (WebSocket) puedan alimentar el scanner sin FrameSource.
func (s *Scanner) HandleFrame(ctx context.Context, text string) {
	if s.State() == StateAwaitingCredential {
		return
	}
	// Guard de un solo request en vuelo: frames que llegan mientras se
	// procesa el anterior se descartan, son la misma credencial física.
	if s.inFlight.Load() {
		return
	}

	token, err := ExtractToken(text)
	if err != nil {
		return // frame sin token, seguir escaneando
	}

	s.mu.Lock()
	now := time.Now()
	if text == s.lastText && now.Sub(s.lastSeen) < s.cfg.DedupWindow {
		s.lastSeen = now
		s.mu.Unlock()
		return
	}
	s.lastText = text
	s.lastSeen = now
	credential := s.credential
	s.mu.Unlock()

	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	s.state.Store(int32(StateProcessing))

	go s.doSubmit(ctx, token, credential)
}

func (s *Scanner) doSubmit(ctx context.Context, token, credential string) {
	defer func() {
		s.inFlight.Store(false)
		s.state.Store(int32(StateScanning))
	}()

	sctx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	out, err := s.submit.Submit(sctx, token, credential)
	res := s.classify(out, err)

	s.state.Store(int32(StateResult))
	if s.onResult != nil {
		s.onResult(res)
	}
	if s.cfg.ResultHold > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.ResultHold):
		}
	}
}

func (s *Scanner) classify(out *Outcome, err error) ScanResult {
	switch {
	case err == nil && out != nil && out.Status == checkin.StatusCheckedIn:
		return ScanResult{Kind: ResultFirstCheckIn, Outcome: out}
	case err == nil && out != nil && out.Status == checkin.StatusAlreadyCheckedIn:
		return ScanResult{Kind: ResultAlreadyCheckedIn, Outcome: out}
	case errors.Is(err, ErrUnauthorized):
		return ScanResult{Kind: ResultUnauthorized, Err: err}
	case errors.Is(err, ErrTicketRejected):
		return ScanResult{Kind: ResultInvalidTicket, Err: err}
	default:
		// red, timeout, respuesta inclasificable: recuperable, re-escanear
		logger.L().Warn("check-in submission failed",
			logger.Component("scanner"), logger.Err(err))
		return ScanResult{Kind: ResultTransientError, Err: err}
	}
}
