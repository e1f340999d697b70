package projection

import (
	"TokenLedger/internal/core"
	"TokenLedger/internal/event"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WorkerID names the watermark row this worker owns.
const WorkerID = "main"

// ProjectionWorker updates projection tables from applied commands. The
// projection channel is non-blocking with drop; a worker that falls behind
// is rebuilt from the event log with RebuildProjections.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	metrics   *observability.Metrics
	logger    zerolog.Logger
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.CoreOutput, metrics *observability.Metrics, logger zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				// projections are eventually consistent and can be rebuilt
				pw.logger.Warn().Err(err).Int64("sequence", output.Envelope.Sequence).Msg("projection update failed")
				continue
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues("balances").Observe(time.Since(start).Seconds())
			}
			pw.lastSeq = output.Envelope.Sequence
		}
	}
}

// LastSequence is the last sequence projected by this worker.
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output core.CoreOutput) error {
	env := output.Envelope

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if output.Batch != nil {
		for _, m := range output.Batch.Movements {
			if err := updateBalanceProjection(ctx, tx, m); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	for _, e := range env.Events {
		p, ok := e.(*event.AssetPurchase)
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.purchases (sequence, request_id, buyer, asset_id, amount, total_cost, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (sequence) DO NOTHING
		`, env.Sequence, env.RequestID, holderKey(p.Buyer), assetKey(p.AssetID),
			p.Amount.Dec(), p.TotalCost.Dec(), env.Timestamp); err != nil {
			return fmt.Errorf("purchase projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, WorkerID, env.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func updateBalanceProjection(ctx context.Context, tx *sql.Tx, m ledger.Movement) error {
	book, asset, amount := m.Book.String(), assetKey(m.AssetID), m.Amount.Dec()

	if m.From != ledger.ZeroIdentity {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (book, holder, asset_id, balance, last_sequence)
			VALUES ($1, $2, $3, -$4::NUMERIC, $5)
			ON CONFLICT (book, holder, asset_id)
			DO UPDATE SET balance = projections.balances.balance - $4::NUMERIC, last_sequence = $5
		`, book, holderKey(m.From), asset, amount, m.Sequence); err != nil {
			return err
		}
	}

	if m.To != ledger.ZeroIdentity {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (book, holder, asset_id, balance, last_sequence)
			VALUES ($1, $2, $3, $4::NUMERIC, $5)
			ON CONFLICT (book, holder, asset_id)
			DO UPDATE SET balance = projections.balances.balance + $4::NUMERIC, last_sequence = $5
		`, book, holderKey(m.To), asset, amount, m.Sequence); err != nil {
			return err
		}
	}

	return nil
}

func holderKey(id ledger.Identity) string {
	return strings.ToLower(id.Hex())
}

func assetKey(id ledger.AssetID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// RebuildProjections rebuilds all projection tables from the event log.
func RebuildProjections(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.purchases`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Credits and debits per holder, zero address excluded.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (book, holder, asset_id, balance, last_sequence)
		SELECT book, holder, asset_id, SUM(delta), MAX(sequence)
		FROM (
			SELECT book, to_holder AS holder, asset_id, amount AS delta, sequence
			FROM event_log.movements WHERE movement_type <> 'burn'
			UNION ALL
			SELECT book, from_holder AS holder, asset_id, -amount AS delta, sequence
			FROM event_log.movements WHERE movement_type <> 'mint'
		) d
		GROUP BY book, holder, asset_id
	`); err != nil {
		return fmt.Errorf("rebuild balances: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.purchases (sequence, request_id, buyer, asset_id, amount, total_cost, timestamp)
		SELECT e.sequence, e.request_id, lower(ev->'data'->>'buyer'),
		       (ev->'data'->>'asset_id')::NUMERIC,
		       (ev->'data'->>'amount')::NUMERIC,
		       (ev->'data'->>'total_cost')::NUMERIC,
		       e.timestamp
		FROM event_log.events e, jsonb_array_elements(e.events) ev
		WHERE ev->>'type' = 'AssetPurchase'
	`); err != nil {
		return fmt.Errorf("rebuild purchases: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		SELECT 'main', COALESCE(MAX(sequence), 0), NOW() FROM event_log.events
	`); err != nil {
		return fmt.Errorf("rebuild watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info().Msg("projection rebuild complete")
	return nil
}
