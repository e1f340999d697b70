package persistence

import (
	"TokenLedger/internal/core"
	"TokenLedger/internal/observability"
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotStore is the write side used by SnapshotWorker.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *core.SnapshotState) (int, error)
	VerifySnapshot(ctx context.Context, sequence int64) (bool, error)
}

// SnapshotSource produces snapshots of live state.
type SnapshotSource interface {
	GetSequence() int64
	CreateSnapshotState() *core.SnapshotState
}

// SnapshotWorker takes a snapshot every `every` applied commands, checked on
// a timer. A snapshot only becomes eligible for recovery once the envelope
// at its sequence is persisted with the same state hash.
type SnapshotWorker struct {
	source   SnapshotSource
	store    SnapshotStore
	every    int64
	interval time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger

	lastSeq int64
	pending []int64
}

func NewSnapshotWorker(
	source SnapshotSource,
	store SnapshotStore,
	every int64,
	interval time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SnapshotWorker {
	return &SnapshotWorker{
		source:   source,
		store:    store,
		every:    every,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		lastSeq:  source.GetSequence() - 1,
	}
}

// Run blocks until ctx is cancelled.
func (sw *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sw.Tick(ctx)
		}
	}
}

// Tick takes a snapshot if enough commands were applied since the last
// one, then tries to verify pending snapshots.
func (sw *SnapshotWorker) Tick(ctx context.Context) {
	if applied := sw.source.GetSequence() - 1; applied-sw.lastSeq >= sw.every {
		sw.take(ctx)
	}
	sw.verifyPending(ctx)
}

func (sw *SnapshotWorker) take(ctx context.Context) {
	start := time.Now()
	snap := sw.source.CreateSnapshotState()

	size, err := sw.store.SaveSnapshot(ctx, snap)
	if err != nil {
		sw.logger.Error().Err(err).Int64("sequence", snap.Sequence).Msg("snapshot save failed")
		return
	}
	sw.lastSeq = snap.Sequence
	sw.pending = append(sw.pending, snap.Sequence)

	if sw.metrics != nil {
		sw.metrics.SnapshotTaken.Inc()
		sw.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		sw.metrics.SnapshotSizeBytes.Set(float64(size))
	}
	sw.logger.Info().Int64("sequence", snap.Sequence).Int("bytes", size).Msg("snapshot saved")
}

func (sw *SnapshotWorker) verifyPending(ctx context.Context) {
	remaining := sw.pending[:0]
	for _, seq := range sw.pending {
		ok, err := sw.store.VerifySnapshot(ctx, seq)
		if err != nil {
			sw.logger.Warn().Err(err).Int64("sequence", seq).Msg("snapshot verification failed")
			remaining = append(remaining, seq)
			continue
		}
		if !ok {
			remaining = append(remaining, seq)
			continue
		}
		if sw.metrics != nil {
			sw.metrics.SnapshotLastSeq.Set(float64(seq))
		}
		sw.logger.Info().Int64("sequence", seq).Msg("snapshot verified")
	}
	sw.pending = remaining
}

// Pending returns the sequences of saved but unverified snapshots.
func (sw *SnapshotWorker) Pending() []int64 {
	return append([]int64(nil), sw.pending...)
}
