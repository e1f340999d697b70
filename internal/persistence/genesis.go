package persistence

import (
	"TokenLedger/internal/core"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrGenesisMismatch means the ledger is being started with construction
// parameters other than the ones its log was written under.
var ErrGenesisMismatch = errors.New("genesis config mismatch")

// GenesisStore keeps the single event_log.genesis row.
type GenesisStore struct {
	db *sql.DB
}

func NewGenesisStore(db *sql.DB) *GenesisStore {
	return &GenesisStore{db: db}
}

// Ensure records g on the first start and checks it against the recorded
// row on every later one. created reports whether this call wrote the row.
func (gs *GenesisStore) Ensure(ctx context.Context, g core.Genesis) (created bool, err error) {
	params, err := json.Marshal(g)
	if err != nil {
		return false, fmt.Errorf("marshal genesis: %w", err)
	}
	fp := g.Fingerprint()

	res, err := gs.db.ExecContext(ctx, `
		INSERT INTO event_log.genesis (id, fingerprint, params)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, fp[:], params)
	if err != nil {
		return false, fmt.Errorf("record genesis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return true, nil
	}

	stored, err := gs.Load(ctx)
	if err != nil {
		return false, err
	}
	if diff := stored.Diff(g); len(diff) > 0 {
		return false, fmt.Errorf("%w: %s differ from the recorded values", ErrGenesisMismatch, strings.Join(diff, ", "))
	}
	return false, nil
}

// Load returns the recorded genesis.
func (gs *GenesisStore) Load(ctx context.Context) (core.Genesis, error) {
	var data []byte
	err := gs.db.QueryRowContext(ctx, `SELECT params FROM event_log.genesis WHERE id = 1`).Scan(&data)
	if err != nil {
		return core.Genesis{}, fmt.Errorf("load genesis: %w", err)
	}
	var g core.Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return core.Genesis{}, fmt.Errorf("unmarshal genesis: %w", err)
	}
	return g, nil
}
