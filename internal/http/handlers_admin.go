package http

import (
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/store/core"
)

// requireAdmin corta con 401 si el header X-Admin-Key no matchea.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Admin-Key")
		if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(s.adminKey)) != 1 {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "clave de admin inválida")
			return
		}
		next(w, r)
	}
}

type adminRegistration struct {
	ID          string     `json:"id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Institution string     `json:"institution,omitempty"`
	Category    string     `json:"category"`
	FeeAmount   float64    `json:"fee_amount"`
	Currency    string     `json:"currency"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	EmailStatus string     `json:"email_status,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// handleAdminList lista inscripciones; con ?format=csv exporta el padrón.
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	conf, err := s.store.GetConferenceBySlug(r.Context(), s.slug)
	if err != nil {
		logger.From(r.Context()).Error("admin list: load conference", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	regs, err := s.store.ListRegistrations(r.Context(), core.ListRegistrationsParams{
		ConferenceID:    conf.ID,
		Search:          q.Get("q"),
		Limit:           limit,
		IncludeSpam:     q.Get("include_spam") == "true",
		IncludeArchived: q.Get("include_archived") == "true",
	})
	if err != nil {
		logger.From(r.Context()).Error("admin list failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	if q.Get("format") == "csv" {
		writeRegistrationsCSV(w, regs)
		return
	}

	out := make([]adminRegistration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, adminRegistration{
			ID:          reg.ID,
			FullName:    reg.FullName,
			Email:       reg.Email,
			Phone:       reg.Phone,
			Institution: reg.Institution,
			Category:    reg.Category,
			FeeAmount:   reg.FeeAmount,
			Currency:    reg.Currency,
			CheckedIn:   reg.CheckedIn,
			CheckedInAt: reg.CheckedInAt,
			EmailStatus: reg.EmailStatus,
			CreatedAt:   reg.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"conference":    conf.Slug,
		"count":         len(out),
		"registrations": out,
	})
}

func writeRegistrationsCSV(w http.ResponseWriter, regs []core.Registration) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="registrations-%s.csv"`, time.Now().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "full_name", "email", "phone", "institution",
		"category", "fee_amount", "currency", "checked_in", "checked_in_at", "created_at"})

	for _, reg := range regs {
		checkedInAt := ""
		if reg.CheckedInAt != nil {
			checkedInAt = reg.CheckedInAt.UTC().Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			reg.ID,
			reg.FullName,
			reg.Email,
			reg.Phone,
			reg.Institution,
			reg.Category,
			strconv.FormatFloat(reg.FeeAmount, 'f', -1, 64),
			reg.Currency,
			strconv.FormatBool(reg.CheckedIn),
			checkedInAt,
			reg.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
}

// handleAdminResend reenvía el email de confirmación de una inscripción.
func (s *Server) handleAdminResend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "falta el id")
		return
	}

	if err := s.regs.Resend(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "inscripción inexistente")
			return
		}
		logger.From(r.Context()).Error("admin resend failed", logger.RegistrationID(id), logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	RecordTokenIssued("resend")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "resent", "id": id})
}
