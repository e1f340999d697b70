package persistence

import (
	"TokenLedger/internal/core"
	"TokenLedger/internal/event"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventLogWriter writes envelopes and movements to Postgres using
// multi-row INSERTs inside the caller's transaction.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence    int64
	RequestID   string
	CommandType string
	Caller      string
	Payload     []byte // JSON-encoded command, replayable; sent as text for JSONB
	Events      []byte // JSON array of event records
	StateHash   []byte
	PrevHash    []byte
	Timestamp   time.Time
}

// MovementRow represents a row in event_log.movements. Asset ids and
// amounts are decimal strings stored as NUMERIC.
type MovementRow struct {
	MovementID string
	BatchID    string
	RequestID  string
	Sequence   int64
	Book       string
	Operator   string
	From       string
	To         string
	AssetID    string
	Amount     string
	Type       string
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowsFromOutput converts one engine output into its log rows.
func RowsFromOutput(out core.CoreOutput) (EventRow, []MovementRow, error) {
	env := out.Envelope
	events, err := event.MarshalEvents(env.Events)
	if err != nil {
		return EventRow{}, nil, err
	}

	row := EventRow{
		Sequence:    env.Sequence,
		RequestID:   env.RequestID,
		CommandType: env.CommandType,
		Caller:      strings.ToLower(env.Caller.Hex()),
		Payload:     env.Payload,
		Events:      events,
		StateHash:   env.StateHash[:],
		PrevHash:    env.PrevHash[:],
		Timestamp:   env.Timestamp,
	}

	var movements []MovementRow
	if out.Batch != nil {
		movements = make([]MovementRow, 0, len(out.Batch.Movements))
		for _, m := range out.Batch.Movements {
			movements = append(movements, MovementRow{
				MovementID: m.MovementID.String(),
				BatchID:    m.BatchID.String(),
				RequestID:  m.EventRef,
				Sequence:   m.Sequence,
				Book:       m.Book.String(),
				Operator:   strings.ToLower(m.Operator.Hex()),
				From:       strings.ToLower(m.From.Hex()),
				To:         strings.ToLower(m.To.Hex()),
				AssetID:    strconv.FormatUint(uint64(m.AssetID), 10),
				Amount:     m.Amount.Dec(),
				Type:       m.Type.String(),
			})
		}
	}
	return row, movements, nil
}

// WriteEventBatch writes a batch of envelopes to event_log.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, request_id, command_type, caller, payload, events, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.RequestID, e.CommandType, e.Caller,
			string(e.Payload), string(e.Events), e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT DO NOTHING" // a retried flush rewrites the same rows

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteMovementBatch writes a batch of movements to event_log.movements.
func (w *EventLogWriter) WriteMovementBatch(ctx context.Context, tx *sql.Tx, movements []MovementRow) error {
	if len(movements) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.movements
		(movement_id, batch_id, request_id, sequence, book, operator, from_holder, to_holder, asset_id, amount, movement_type)
		VALUES `

	values := make([]string, 0, len(movements))
	args := make([]interface{}, 0, len(movements)*11)

	for i, m := range movements {
		base := i * 11
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			m.MovementID, m.BatchID, m.RequestID, m.Sequence,
			m.Book, m.Operator, m.From, m.To, m.AssetID, m.Amount, m.Type,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (movement_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
