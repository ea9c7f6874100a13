package scanner

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoToken: el frame decodificado no contiene nada usable como token.
// Se rechaza localmente, sin tocar la red.
var ErrNoToken = errors.New("scanner: no token found")

var (
	// token=<valor> embebido en cualquier parte del texto
	tokenParamRe = regexp.MustCompile(`token=([^&\s]+)`)
	// forma plausible de un token pelado (base64url + separadores JWT)
	bareTokenRe = regexp.MustCompile(`^[A-Za-z0-9_\-./~%+=]+$`)
)

// ExtractToken saca el token de un texto decodificado de QR. Acepta tres
// formas, en este orden de precedencia:
//
//  1. URL absoluta con query param "token".
//  2. Fallback por regex: token=<valor> en cualquier parte, URL-decoded.
//  3. El texto entero, trimmed, como token pelado.
//
// QRs viejos codifican el token pelado; los nuevos, la URL de verificación.
// El scanner tiene que bancar ambos.
func ExtractToken(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoToken
	}

	if u, err := url.Parse(text); err == nil && u.IsAbs() {
		if tok := u.Query().Get("token"); tok != "" {
			return tok, nil
		}
	}

	if m := tokenParamRe.FindStringSubmatch(text); m != nil {
		if dec, err := url.QueryUnescape(m[1]); err == nil && dec != "" {
			return dec, nil
		}
	}

	if bareTokenRe.MatchString(text) {
		return text, nil
	}
	return "", ErrNoToken
}
