// Package keys carga el material de firma RSA para los tokens de inscripción.
//
// El emisor (backend de registro) necesita la clave privada; los verificadores
// (scanners de puerta) solo la pública. Si no hay clave configurada se genera
// un par efímero en memoria, útil para demos pero inseguro en producción:
// cada proceso tendría un par distinto y los tickets ya emitidos dejarían de
// verificar tras un restart.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/konfera/internal/observability/logger"
)

// ErrKeyImport indica PEM malformado o algoritmo incompatible (no-RSA).
var ErrKeyImport = errors.New("keys: import failed")

// RSABits es el tamaño del par generado en modo demo.
const RSABits = 2048

// Material es el resultado de cargar (o generar) la clave privada.
type Material struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey

	// WasGenerated marca el modo demo: par efímero de proceso.
	WasGenerated bool

	// PEMs exportados. PrivateKeyPEM solo se llena en modo generado, para
	// que el operador pueda fijarlo si quiere conservar el par.
	PrivateKeyPEM string
	PublicKeyPEM  string
}

// NormalizePEM convierte secuencias literales `\n` en saltos de línea reales.
// Artefacto común de guardar PEMs multi-línea en config de una sola línea.
func NormalizePEM(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `\n`, "\n"))
}

// LoadPrivateKey importa una clave privada RSA desde PEM (PKCS#8 o PKCS#1).
// Con PEM vacío genera un par efímero y loguea un warning fuerte.
func LoadPrivateKey(configuredPEM string) (*Material, error) {
	configuredPEM = NormalizePEM(configuredPEM)
	if configuredPEM == "" {
		return generateEphemeral()
	}

	block, _ := pem.Decode([]byte(configuredPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeyImport)
	}

	var priv *rsa.PrivateKey
	switch block.Type {
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse PKCS#8: %v", ErrKeyImport, err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is %T, want RSA", ErrKeyImport, parsed)
		}
		priv = rsaKey
	case "RSA PRIVATE KEY":
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse PKCS#1: %v", ErrKeyImport, err)
		}
		priv = parsed
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrKeyImport, block.Type)
	}

	pubPEM, err := EncodePublicPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	return &Material{
		Private:      priv,
		Public:       &priv.PublicKey,
		PublicKeyPEM: pubPEM,
	}, nil
}

// LoadPublicKey importa una clave pública RSA desde PEM (PKIX o PKCS#1).
// Es lo único que necesita un verificador standalone.
func LoadPublicKey(publicPEM string) (*rsa.PublicKey, error) {
	publicPEM = NormalizePEM(publicPEM)
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeyImport)
	}

	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse PKIX: %v", ErrKeyImport, err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is %T, want RSA", ErrKeyImport, parsed)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		parsed, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse PKCS#1: %v", ErrKeyImport, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrKeyImport, block.Type)
	}
}

// VerificationKey resuelve la clave con la que se verifican los tickets.
// Si hay una pública configurada manda ella (permite verificar contra un par
// distinto al de firma, p.ej. durante una rotación); si no, la del material.
func VerificationKey(m *Material, configuredPEM string) (*rsa.PublicKey, error) {
	if NormalizePEM(configuredPEM) == "" {
		return m.Public, nil
	}
	return LoadPublicKey(configuredPEM)
}

// generateEphemeral crea un par RSA de proceso. Nunca se persiste.
func generateEphemeral() (*Material, error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSABits)
	if err != nil {
		return nil, fmt.Errorf("keys: generate: %w", err)
	}

	privPEM, err := EncodePrivatePEM(priv)
	if err != nil {
		return nil, err
	}
	pubPEM, err := EncodePublicPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	logger.L().Warn("DEMO MODE: no private key configured, generated ephemeral RSA pair",
		logger.Component("keys"),
		logger.Int("bits", RSABits),
	)
	logger.L().Warn("tickets signed with this pair become unverifiable after restart; " +
		"distribute the logged public key only for this process lifetime")

	return &Material{
		Private:       priv,
		Public:        &priv.PublicKey,
		WasGenerated:  true,
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
	}, nil
}

// EncodePrivatePEM serializa en PKCS#8 ("PRIVATE KEY").
func EncodePrivatePEM(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("keys: marshal PKCS#8: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// EncodePublicPEM serializa en PKIX ("PUBLIC KEY").
func EncodePublicPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("keys: marshal PKIX: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
