package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/konfera/internal/checkin"
)

func TestClientSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkin" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Gate-Key") != "gk_ok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		var req struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Token == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_ticket"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":      "checked_in",
			"subject":     "r1",
			"name":        "Arben Lila",
			"category":    "farmacist",
			"checkedInAt": "2025-09-12T09:30:00Z",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	out, err := c.Submit(ctx, "token-ok", "gk_ok")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != checkin.StatusCheckedIn || out.Name != "Arben Lila" {
		t.Fatalf("outcome: %+v", out)
	}
	if out.CheckedInAt == nil || out.CheckedInAt.Hour() != 9 {
		t.Fatalf("CheckedInAt: %v", out.CheckedInAt)
	}

	if _, err := c.Submit(ctx, "token-ok", "gk_wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := c.Submit(ctx, "bad", "gk_ok"); !errors.Is(err, ErrTicketRejected) {
		t.Fatalf("want ErrTicketRejected, got %v", err)
	}
}

func TestClientSubmitNetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nada escucha acá
	_, err := c.Submit(context.Background(), "tok", "gk")
	if err == nil {
		t.Fatal("expected network error")
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTicketRejected) {
		t.Fatalf("network error misclassified: %v", err)
	}
}
