// Package http expone la API: registro público, verificación de tickets,
// check-in de puerta y endpoints de admin.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/konfera/internal/checkin"
	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/rate"
	"github.com/dropDatabas3/konfera/internal/registration"
	"github.com/dropDatabas3/konfera/internal/store/core"
)

// Server agrupa los servicios detrás de la API.
type Server struct {
	regs    *registration.Service
	arbiter *checkin.Arbiter
	auth    *checkin.Authenticator
	store   core.Store
	slug    string

	adminKey       string
	limiter        rate.Limiter
	corsOrigins    []string
	metricsHandler http.Handler
}

// Options configura el server.
type Options struct {
	Registrations  *registration.Service
	Arbiter        *checkin.Arbiter
	GateAuth       *checkin.Authenticator
	Store          core.Store
	ConferenceSlug string

	AdminKey        string
	RegisterLimiter rate.Limiter
	CORSOrigins     []string
	MetricsHandler  http.Handler
}

func NewServer(o Options) *Server {
	return &Server{
		regs:           o.Registrations,
		arbiter:        o.Arbiter,
		auth:           o.GateAuth,
		store:          o.Store,
		slug:           o.ConferenceSlug,
		adminKey:       o.AdminKey,
		limiter:        o.RegisterLimiter,
		corsOrigins:    o.CORSOrigins,
		metricsHandler: o.MetricsHandler,
	}
}

// Routes arma el mux con toda la cadena de middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/register", WithRateLimit(http.HandlerFunc(s.handleRegister), s.limiter))
	mux.HandleFunc("GET /v1/verify", s.handleVerify)
	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.HandleFunc("POST /v1/checkin", s.handleCheckin)

	mux.HandleFunc("GET /v1/admin/registrations", s.requireAdmin(s.handleAdminList))
	mux.HandleFunc("POST /v1/admin/registrations/{id}/resend", s.requireAdmin(s.handleAdminResend))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	var h http.Handler = mux
	h = WithMetrics(h)
	h = WithLogging(h)
	h = WithRecover(h)
	h = WithSecurityHeaders(h)
	h = WithCORS(h, s.corsOrigins)
	h = WithRequestID(h)
	return h
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		logger.From(r.Context()).Warn("readyz: store not ready", logger.Err(err))
		WriteError(w, http.StatusServiceUnavailable, "not_ready", "store unavailable")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
