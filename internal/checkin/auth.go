package checkin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/konfera/internal/store/core"
)

// ErrUnauthorized: credencial de puerta ausente, deshabilitada o desconocida.
var ErrUnauthorized = errors.New("checkin: unauthorized gate key")

// Authenticator valida credenciales de puerta (header X-Gate-Key).
// En DB van bcrypt-hashed; devKeys son claves en claro de config, solo para
// dev y tests de integración.
type Authenticator struct {
	keys    core.GateKeyStore
	devKeys []string
}

func NewAuthenticator(keys core.GateKeyStore, devKeys []string) *Authenticator {
	return &Authenticator{keys: keys, devKeys: devKeys}
}

// Authenticate retorna el label de la credencial que matchea, o ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, presented string) (string, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return "", ErrUnauthorized
	}

	for _, dk := range a.devKeys {
		if subtle.ConstantTimeCompare([]byte(dk), []byte(presented)) == 1 {
			return "dev", nil
		}
	}

	if a.keys != nil {
		stored, err := a.keys.ListGateKeys(ctx)
		if err != nil {
			return "", fmt.Errorf("checkin: list gate keys: %w", err)
		}
		for _, k := range stored {
			if k.Disabled {
				continue
			}
			if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(presented)) == nil {
				return k.Label, nil
			}
		}
	}

	return "", ErrUnauthorized
}

// GenerateGateKey crea una credencial nueva: retorna la clave en claro (para
// entregarle al voluntario UNA vez) y la fila con el hash para persistir.
func GenerateGateKey(label string) (plain string, key *core.GateKey, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("checkin: generate gate key: %w", err)
	}
	plain = "gk_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("checkin: hash gate key: %w", err)
	}

	return plain, &core.GateKey{
		ID:      hex.EncodeToString(raw[:8]),
		Label:   label,
		KeyHash: string(hash),
	}, nil
}
