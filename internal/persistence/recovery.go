package persistence

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/observability"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// replayPageSize is how many envelopes are read per query during replay.
const replayPageSize = 1000

// EventSource is the read side of the event log used for recovery.
type EventSource interface {
	LoadLatestSnapshot(ctx context.Context) (*core.SnapshotState, error)
	LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error)
}

// RecoveryResult summarizes a recovery run.
type RecoveryResult struct {
	SnapshotSequence int64 // 0 when recovery started from genesis
	Replayed         int64
	NextSequence     int64
	StateHash        [32]byte
}

// Recover restores the engine from the latest verified snapshot and then
// replays every later envelope, checking each state hash against the log.
// Any mismatch aborts recovery.
func Recover(
	ctx context.Context,
	engine *core.Engine,
	src EventSource,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) (*RecoveryResult, error) {
	start := time.Now()
	result := &RecoveryResult{}

	snap, err := src.LoadLatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		if err := engine.RestoreFromSnapshot(snap); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
		result.SnapshotSequence = snap.Sequence
		logger.Info().Int64("sequence", snap.Sequence).Msg("snapshot restored")
	} else {
		logger.Info().Msg("no verified snapshot, replaying from genesis")
	}

	next := engine.GetSequence()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := src.LoadEventsFrom(ctx, next, replayPageSize)
		if err != nil {
			return nil, fmt.Errorf("load events from %d: %w", next, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			cmd, err := command.Decode(row.CommandType, row.Payload)
			if err != nil {
				return nil, fmt.Errorf("decode sequence %d: %w", row.Sequence, err)
			}

			var hash [32]byte
			copy(hash[:], row.StateHash)
			if err := engine.Replay(cmd, row.Sequence, hash); err != nil {
				return nil, err
			}
			result.Replayed++
			next = row.Sequence + 1
		}

		if len(rows) < replayPageSize {
			break
		}
	}

	result.NextSequence = engine.GetSequence()
	result.StateHash = engine.GetStateHash()

	if metrics != nil {
		metrics.ReplayEventsTotal.Add(float64(result.Replayed))
		metrics.ReplayDuration.Set(time.Since(start).Seconds())
		metrics.CoreSequence.Set(float64(result.NextSequence))
	}

	logger.Info().
		Int64("snapshot_sequence", result.SnapshotSequence).
		Int64("replayed", result.Replayed).
		Int64("next_sequence", result.NextSequence).
		Dur("took", time.Since(start)).
		Msg("recovery complete")

	return result, nil
}
