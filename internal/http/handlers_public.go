package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/konfera/internal/checkin"
	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/registration"
	"github.com/dropDatabas3/konfera/internal/store/core"
)

type registerRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Institution string `json:"institution"`
	Category    string `json:"category"`
}

type registerResponse struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"` // registered | already_registered
	FullName        string  `json:"full_name"`
	Category        string  `json:"category"`
	FeeAmount       float64 `json:"fee_amount"`
	Currency        string  `json:"currency"`
	Token           string  `json:"token"`
	VerificationURL string  `json:"verification_url"`
	QRPNGBase64     string  `json:"qr_png_base64"`
	// EmailError: la inscripción quedó pero el email no salió; el cliente
	// muestra el QR igual y avisa que revise con el admin.
	EmailError string `json:"email_error,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	out, err := s.regs.Register(r.Context(), registration.Input{
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		Institution: req.Institution,
		Category:    req.Category,
	})
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrValidation),
			errors.Is(err, registration.ErrUnknownCategory):
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, registration.ErrDeadlinePassed):
			WriteError(w, http.StatusForbidden, "registration_closed", "la inscripción ya cerró")
		case errors.Is(err, registration.ErrCapacityReached):
			WriteError(w, http.StatusConflict, "capacity_reached", "no quedan cupos")
		default:
			logger.From(r.Context()).Error("register failed", logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	status := "registered"
	httpStatus := http.StatusCreated
	if out.AlreadyRegistered {
		status = "already_registered"
		httpStatus = http.StatusOK
		RecordTokenIssued("resend")
	} else {
		RecordRegistration()
		RecordTokenIssued("new")
	}

	WriteJSON(w, httpStatus, registerResponse{
		ID:              out.Registration.ID,
		Status:          status,
		FullName:        out.Registration.FullName,
		Category:        out.Registration.Category,
		FeeAmount:       out.Registration.FeeAmount,
		Currency:        out.Registration.Currency,
		Token:           out.Token,
		VerificationURL: out.VerificationURL,
		QRPNGBase64:     base64.StdEncoding.EncodeToString(out.QRPNG),
		EmailError:      out.EmailError,
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid  bool          `json:"valid"`
	Claims *verifyClaims `json:"claims,omitempty"`
	// Registration es nil si el token es válido pero no hay fila (ej. ticket
	// de otra edición de la conferencia).
	Registration *verifyRegistration `json:"registration,omitempty"`
}

type verifyClaims struct {
	Subject    string  `json:"subject"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Conference string  `json:"conference"`
	Fee        float64 `json:"fee"`
	Currency   string  `json:"currency"`
	IssuedAt   int64   `json:"issued_at"`
}

type verifyRegistration struct {
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

// handleVerify valida un ticket SIN consumirlo. GET toma ?token=, POST el body.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var token string
	if r.Method == http.MethodGet {
		token = r.URL.Query().Get("token")
	} else {
		var req verifyRequest
		if !ReadJSON(w, r, &req) {
			return
		}
		token = req.Token
	}
	if token == "" {
		WriteError(w, http.StatusBadRequest, "missing_token", "falta el parámetro token")
		return
	}

	claims, reg, err := s.arbiter.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, checkin.ErrInvalidTicket) {
			WriteJSON(w, http.StatusOK, verifyResponse{Valid: false})
			return
		}
		logger.From(r.Context()).Error("verify failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	resp := verifyResponse{
		Valid: true,
		Claims: &verifyClaims{
			Subject:    claims.Subject,
			Name:       claims.Name,
			Category:   claims.Category,
			Conference: claims.Conference,
			Fee:        claims.Fee,
			Currency:   claims.Currency,
			IssuedAt:   claims.IssuedAt,
		},
	}
	if reg != nil {
		resp.Registration = &verifyRegistration{
			CheckedIn:   reg.CheckedIn,
			CheckedInAt: reg.CheckedInAt,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

type checkinRequest struct {
	Token string `json:"token"`
}

type checkinResponse struct {
	Status      string `json:"status"` // checked_in | already_checked_in
	Subject     string `json:"subject"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	CheckedInAt string `json:"checkedInAt,omitempty"`
}

// handleCheckin es el endpoint de puerta. Autoriza ANTES de tocar cualquier
// dato de inscripción: sin credencial válida no se verifica ni el token.
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	gateLabel, err := s.auth.Authenticate(r.Context(), r.Header.Get("X-Gate-Key"))
	if err != nil {
		if errors.Is(err, checkin.ErrUnauthorized) {
			RecordCheckin("unauthorized")
			WriteError(w, http.StatusUnauthorized, "unauthorized", "credencial de puerta inválida")
			return
		}
		logger.From(r.Context()).Error("gate auth failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	var req checkinRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		RecordCheckin("invalid")
		WriteError(w, http.StatusBadRequest, "invalid_ticket", "bileta e pavlefshme")
		return
	}

	res, err := s.arbiter.CheckIn(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, checkin.ErrInvalidTicket):
			RecordCheckin("invalid")
			WriteError(w, http.StatusBadRequest, "invalid_ticket", "bileta e pavlefshme")
		case errors.Is(err, core.ErrNotFound):
			// Para el operador es lo mismo que inválido; el log server-side
			// lo distingue (posible reuso cross-conferencia).
			RecordCheckin("not_found")
			logger.From(r.Context()).Warn("checkin: token válido sin inscripción",
				logger.GateKey(gateLabel))
			WriteError(w, http.StatusNotFound, "invalid_ticket", "bileta e pavlefshme")
		default:
			logger.From(r.Context()).Error("checkin failed", logger.Err(err), logger.GateKey(gateLabel))
			WriteError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	RecordCheckin(res.Status.Wire())

	resp := checkinResponse{
		Status:   res.Status.Wire(),
		Subject:  res.Registration.ID,
		Name:     res.Registration.FullName,
		Category: res.Registration.Category,
	}
	if res.Registration.CheckedInAt != nil {
		resp.CheckedInAt = res.Registration.CheckedInAt.UTC().Format(time.RFC3339)
	}
	WriteJSON(w, http.StatusOK, resp)
}
