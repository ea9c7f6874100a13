package pg

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/konfera/internal/store/core"
)

func (s *Store) ListGateKeys(ctx context.Context) ([]core.GateKey, error) {
	const q = `SELECT id, label, key_hash, disabled, created_at
		FROM gate_keys ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list gate keys: %w", err)
	}
	defer rows.Close()

	var out []core.GateKey
	for rows.Next() {
		var k core.GateKey
		if err := rows.Scan(&k.ID, &k.Label, &k.KeyHash, &k.Disabled, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) CreateGateKey(ctx context.Context, k *core.GateKey) error {
	const q = `INSERT INTO gate_keys (id, label, key_hash, disabled)
		VALUES ($1,$2,$3,$4)`
	if _, err := s.pool.Exec(ctx, q, k.ID, k.Label, k.KeyHash, k.Disabled); err != nil {
		return fmt.Errorf("create gate key: %w", err)
	}
	return nil
}
