package query

import (
	"TokenLedger/internal/ledger"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultLimit applies when a list query passes a non-positive limit.
const DefaultLimit = 100

// QueryService provides read-only access to the projection tables and the
// event log. Responses carry as_of_sequence, the projection watermark; the
// authoritative live state is served by the engine itself.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetHoldings returns every projected balance of holder in both books.
func (qs *QueryService) GetHoldings(ctx context.Context, holder ledger.Identity) ([]HoldingResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT book, holder, asset_id::TEXT, balance::TEXT, last_sequence
		FROM projections.balances
		WHERE holder = $1
		ORDER BY book, asset_id
	`, holderKey(holder))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HoldingResponse
	for rows.Next() {
		h := HoldingResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(&h.Book, &h.Holder, &h.AssetID, &h.Balance, &h.LastSequence); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetPurchases returns buyer's marketplace purchases, newest first. Pass
// the smallest sequence of the previous page as beforeSequence to page.
func (qs *QueryService) GetPurchases(
	ctx context.Context,
	buyer ledger.Identity,
	limit int,
	beforeSequence *int64,
) ([]PurchaseResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT sequence, request_id, buyer, asset_id::TEXT, amount::TEXT, total_cost::TEXT, timestamp
		FROM projections.purchases
		WHERE buyer = $1
	`
	args := []interface{}{holderKey(buyer)}
	query, args = page(query, args, "sequence", limit, beforeSequence)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseResponse
	for rows.Next() {
		p := PurchaseResponse{AsOfSequence: asOfSeq}
		var ts time.Time
		if err := rows.Scan(&p.Sequence, &p.RequestID, &p.Buyer, &p.AssetID, &p.Amount, &p.TotalCost, &ts); err != nil {
			return nil, err
		}
		p.Timestamp = ts.UTC().Format(time.RFC3339Nano)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetMovementHistory returns logged movements where holder is the source
// or destination, newest first.
func (qs *QueryService) GetMovementHistory(
	ctx context.Context,
	holder ledger.Identity,
	limit int,
	beforeSequence *int64,
) ([]MovementHistoryEntry, error) {
	query := `
		SELECT movement_id, request_id, sequence, book, operator, from_holder, to_holder,
		       asset_id::TEXT, amount::TEXT, movement_type
		FROM event_log.movements
		WHERE (from_holder = $1 OR to_holder = $1)
	`
	args := []interface{}{holderKey(holder)}
	query, args = page(query, args, "sequence", limit, beforeSequence)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MovementHistoryEntry
	for rows.Next() {
		var m MovementHistoryEntry
		if err := rows.Scan(
			&m.MovementID, &m.RequestID, &m.Sequence, &m.Book, &m.Operator,
			&m.From, &m.To, &m.AssetID, &m.Amount, &m.Type,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetEnvelope returns the logged envelope at sequence. It returns
// ErrNotFound when the sequence is not in the log.
func (qs *QueryService) GetEnvelope(ctx context.Context, sequence int64) (*EnvelopeResponse, error) {
	var (
		e                   EnvelopeResponse
		payload, events     []byte
		stateHash, prevHash []byte
		ts                  time.Time
	)
	err := qs.db.QueryRowContext(ctx, `
		SELECT sequence, request_id, command_type, caller, payload, events, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence = $1
	`, sequence).Scan(&e.Sequence, &e.RequestID, &e.CommandType, &e.Caller, &payload, &events, &stateHash, &prevHash, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Payload = payload
	e.Events = events
	e.StateHash = "0x" + hex.EncodeToString(stateHash)
	e.PrevHash = "0x" + hex.EncodeToString(prevHash)
	e.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	return &e, nil
}

// ErrNotFound is returned for lookups of absent rows.
var ErrNotFound = errors.New("not found")

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the log and that the
// projected holdings of each asset equal its logged minted minus burned.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash <> e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		WITH supply AS (
			SELECT book, asset_id,
			       SUM(CASE movement_type WHEN 'mint' THEN amount WHEN 'burn' THEN -amount ELSE 0 END) AS supply
			FROM event_log.movements
			GROUP BY book, asset_id
		), holdings AS (
			SELECT book, asset_id, SUM(balance) AS holdings
			FROM projections.balances
			GROUP BY book, asset_id
		)
		SELECT COALESCE(s.book, h.book), COALESCE(s.asset_id, h.asset_id)::TEXT,
		       COALESCE(h.holdings, 0)::TEXT, COALESCE(s.supply, 0)::TEXT
		FROM supply s
		FULL OUTER JOIN holdings h ON h.book = s.book AND h.asset_id = s.asset_id
		WHERE COALESCE(h.holdings, 0) <> COALESCE(s.supply, 0)
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var u UnbalancedAsset
		if err := balanceRows.Scan(&u.Book, &u.AssetID, &u.Holdings, &u.Supply); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, u)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

// page appends the cursor condition, ordering and limit to a query whose
// WHERE clause is already open.
func page(query string, args []interface{}, column string, limit int, before *int64) (string, []interface{}) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if before != nil {
		args = append(args, *before)
		query += fmt.Sprintf(" AND %s < $%d", column, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY %s DESC LIMIT $%d", column, len(args))
	return query, args
}

func holderKey(id ledger.Identity) string {
	return strings.ToLower(id.Hex())
}
