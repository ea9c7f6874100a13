// Package ticket firma y verifica los tokens de inscripción que viajan dentro
// del QR. El formato es JWT compacto (header.claims.signature, base64url) con
// el algoritmo fijado a RS256: el verificador NUNCA acepta el algoritmo que
// declare el header del token (anti algorithm-confusion).
//
// Los tokens no llevan "exp" a propósito: la validez del ticket la acota el
// ciclo de vida de la conferencia y el flag one-shot de check-in, no un TTL.
// Decisión de producto, no un descuido.
package ticket

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Algoritmo único aceptado, pineado en firma y verificación.
const signingAlg = "RS256"

var (
	// ErrMalformedToken: la estructura no parsea (segmentos, base64, JSON).
	ErrMalformedToken = errors.New("ticket: malformed token")
	// ErrInvalidSignature: firma inválida o algoritmo no aceptado.
	ErrInvalidSignature = errors.New("ticket: invalid signature")
	// ErrMissingSubject: token válido pero sin claim "sub".
	ErrMissingSubject = errors.New("ticket: missing subject")
)

// Claims es el claim set tipado de un ticket de inscripción.
// Una vez firmado es inmutable: cualquier bit alterado invalida la firma.
type Claims struct {
	Subject    string  // id de la inscripción (UUID), claim "sub"
	Name       string  // nombre completo, para mostrar sin lookup
	Category   string  // categoría/tarifa del participante
	Conference string  // slug de la conferencia
	Fee        float64 // monto de la cuota
	Currency   string  // código tipo ISO ("EUR")
	IssuedAt   int64   // unix seconds; 0 en Sign = ahora
}

// tokenClaims es la forma wire. Los nombres cortos (cat/conf/fee/cur) están
// fijados por compatibilidad: tickets viejos deben seguir verificando.
type tokenClaims struct {
	Name string  `json:"name"`
	Cat  string  `json:"cat"`
	Conf string  `json:"conf"`
	Fee  float64 `json:"fee"`
	Cur  string  `json:"cur"`
	jwtv5.RegisteredClaims
}

// Sign emite un token compacto firmado con la clave privada del emisor.
func Sign(c Claims, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", fmt.Errorf("ticket: private key is required")
	}
	if c.Subject == "" {
		return "", ErrMissingSubject
	}

	iat := c.IssuedAt
	if iat == 0 {
		iat = time.Now().UTC().Unix()
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, tokenClaims{
		Name: c.Name,
		Cat:  c.Category,
		Conf: c.Conference,
		Fee:  c.Fee,
		Cur:  c.Currency,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:  c.Subject,
			IssuedAt: jwtv5.NewNumericDate(time.Unix(iat, 0)),
		},
	})
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("ticket: sign: %w", err)
	}
	return signed, nil
}

// Verify valida firma y estructura contra la clave pública y retorna el
// claim set tipado. Es cripto pura, sin red: el scanner puede verificar
// offline. El llamador decide qué errores distinguir; para el operador de
// puerta todos colapsan en "bileta e pavlefshme" (ver internal/http).
func Verify(token string, pub *rsa.PublicKey) (*Claims, error) {
	if pub == nil {
		return nil, fmt.Errorf("ticket: public key is required")
	}

	parsed, err := jwtv5.ParseWithClaims(token, &tokenClaims{},
		func(t *jwtv5.Token) (any, error) {
			// Doble cinturón: WithValidMethods ya pinea RS256, pero nunca
			// derivamos la clave del header.
			if _, ok := t.Method.(*jwtv5.SigningMethodRSA); !ok {
				return nil, jwtv5.ErrTokenUnverifiable
			}
			return pub, nil
		},
		jwtv5.WithValidMethods([]string{signingAlg}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		default:
			// Firma inválida, algoritmo rechazado, claims inverificables:
			// para afuera es todo firma inválida.
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	if tc.Subject == "" {
		return nil, ErrMissingSubject
	}

	out := &Claims{
		Subject:    tc.Subject,
		Name:       tc.Name,
		Category:   tc.Cat,
		Conference: tc.Conf,
		Fee:        tc.Fee,
		Currency:   tc.Cur,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Unix()
	}
	return out, nil
}
