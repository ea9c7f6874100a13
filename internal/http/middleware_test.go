package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/konfera/internal/observability/logger"
)

func TestWithRequestIDScopesContextLogger(t *testing.T) {
	var sawScoped bool
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// El logger del contexto debe ser el scoped del middleware, no el
		// singleton de fallback.
		sawScoped = logger.From(r.Context()) != logger.L()
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/verify", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if !sawScoped {
		t.Fatal("handler no recibió un logger scoped en el contexto")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("falta X-Request-ID en la respuesta")
	}
}

func TestWithRequestIDPropagatesIncomingID(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "rid-entrante-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "rid-entrante-42" {
		t.Fatalf("X-Request-ID = %q, quería rid-entrante-42", got)
	}
}
