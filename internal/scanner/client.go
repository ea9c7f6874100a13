package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/konfera/internal/checkin"
)

var (
	// ErrUnauthorized: el backend rechazó la credencial de puerta.
	ErrUnauthorized = errors.New("scanner: unauthorized")
	// ErrTicketRejected: el backend rechazó el ticket (firma, estructura o
	// inscripción inexistente; el backend no distingue hacia afuera).
	ErrTicketRejected = errors.New("scanner: ticket rejected")
)

// Client es el Submitter real: POST /v1/checkin con la credencial en
// X-Gate-Key.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type checkinRequest struct {
	Token string `json:"token"`
}

type checkinResponse struct {
	Status      string `json:"status"`
	Subject     string `json:"subject"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	CheckedInAt string `json:"checkedInAt"`
	Error       string `json:"error"`
}

func (c *Client) Submit(ctx context.Context, token, credential string) (*Outcome, error) {
	body, err := json.Marshal(checkinRequest{Token: token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/checkin", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gate-Key", credential)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("scanner: submit: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("scanner: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return nil, ErrTicketRejected
	case http.StatusOK:
		// sigue abajo
	default:
		return nil, fmt.Errorf("scanner: unexpected status %d", resp.StatusCode)
	}

	var cr checkinResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("scanner: decode response: %w", err)
	}

	status, ok := checkin.ParseStatus(cr.Status)
	if !ok {
		return nil, fmt.Errorf("scanner: unknown status %q", cr.Status)
	}

	out := &Outcome{
		Status:   status,
		Subject:  cr.Subject,
		Name:     cr.Name,
		Category: cr.Category,
	}
	if cr.CheckedInAt != "" {
		if t, err := time.Parse(time.RFC3339, cr.CheckedInAt); err == nil {
			out.CheckedInAt = &t
		}
	}
	return out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
