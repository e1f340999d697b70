package persistence_test

import (
	"TokenLedger/internal/core"
	"TokenLedger/internal/persistence"
	"TokenLedger/internal/testutil"
	"context"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_PersistSnapshotRecover(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx))

	live, outputs := liveOutputs(t)

	in := make(chan core.CoreOutput, len(outputs))
	for _, o := range outputs {
		in <- o
	}
	close(in)

	var committed int
	worker := persistence.NewPersistenceWorker(db, in, 2, 50*time.Millisecond, nil, zerolog.Nop())
	worker.OnCommit(func(batch []core.CoreOutput) { committed += len(batch) })
	require.NoError(t, worker.Run(ctx))
	assert.Equal(t, len(outputs), committed)

	sm := persistence.NewSnapshotManager(db)
	latest, err := sm.GetLatestSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(outputs)), latest)

	dedup := persistence.NewPostgresIdempotencyChecker(db)
	dup, err := dedup.IsDuplicate(outputs[0].Envelope.RequestID)
	require.NoError(t, err)
	assert.True(t, dup)
	dup, err = dedup.IsDuplicate("never-seen")
	require.NoError(t, err)
	assert.False(t, dup)

	ids, err := dedup.RecentRequestIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{outputs[len(outputs)-2].Envelope.RequestID, outputs[len(outputs)-1].Envelope.RequestID}, ids)

	_, err = sm.SaveSnapshot(ctx, live.CreateSnapshotState())
	require.NoError(t, err)
	ok, err := sm.VerifySnapshot(ctx, latest)
	require.NoError(t, err)
	assert.True(t, ok)

	fresh := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	res, err := persistence.Recover(ctx, fresh, sm, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, latest, res.SnapshotSequence)
	assert.Equal(t, live.GetStateHash(), res.StateHash)
}

func TestPostgres_GenesisGuard(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx))

	gs := persistence.NewGenesisStore(db)
	cfg := testutil.EngineConfig()

	created, err := gs.Ensure(ctx, cfg.Genesis())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = gs.Ensure(ctx, cfg.Genesis())
	require.NoError(t, err)
	assert.False(t, created)

	cfg.MainPrice = testutil.U(1)
	_, err = gs.Ensure(ctx, cfg.Genesis())
	assert.ErrorIs(t, err, persistence.ErrGenesisMismatch)
	assert.ErrorContains(t, err, "main_price")
}
