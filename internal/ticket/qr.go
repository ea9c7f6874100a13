package ticket

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Nivel M: tolera artefactos de impresión/pantalla sin inflar el QR.
const qrSize = 256

// Encoder renderiza tokens como QR y construye URLs de verificación.
// No hace I/O: solo produce bytes.
type Encoder struct {
	// BaseURL del sitio público, ej. https://konferenca.example.org
	BaseURL string
}

// BuildVerificationURL arma <base>/verify?token=<token percent-encoded>.
// El scanner acepta tanto esta forma como el token pelado (ver scanner).
func (e *Encoder) BuildVerificationURL(token string) string {
	base := strings.TrimRight(e.BaseURL, "/")
	return base + "/verify?token=" + url.QueryEscape(token)
}

// RenderQR genera un PNG del payload (token pelado o URL de verificación).
func (e *Encoder) RenderQR(payload string) ([]byte, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("ticket: empty QR payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("ticket: render qr: %w", err)
	}
	return png, nil
}

// RenderQRDataURL genera el QR como data-URL, listo para <img src> en emails.
func (e *Encoder) RenderQRDataURL(payload string) (string, error) {
	png, err := e.RenderQR(payload)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
