package persistence_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/persistence"
	"TokenLedger/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySource serves an in-memory event log.
type memorySource struct {
	snap    *core.SnapshotState
	rows    []persistence.EventRow
	loadErr error
}

func (m *memorySource) LoadLatestSnapshot(ctx context.Context) (*core.SnapshotState, error) {
	return m.snap, nil
}

func (m *memorySource) LoadEventsFrom(ctx context.Context, from int64, limit int) ([]persistence.EventRow, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []persistence.EventRow
	for _, r := range m.rows {
		if r.Sequence >= from && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func process(t *testing.T, e *core.Engine, cmd command.Command) {
	t.Helper()
	_, err := e.Process(cmd)
	require.NoError(t, err, command.Describe(cmd))
}

// liveOutputs runs a short scenario and returns the engine and what it
// sent to persistence.
func liveOutputs(t *testing.T) (*core.Engine, []core.CoreOutput) {
	t.Helper()
	e, persistChan, _ := testutil.NewTestEngine()

	process(t, e, &command.AddAdmin{Header: testutil.Header(testutil.Deployer), Account: testutil.Bob})
	process(t, e, &command.WhitelistAdd{Header: testutil.Header(testutil.Bob), Account: testutil.Alice})
	process(t, e, &command.BuyPresale{Header: testutil.Header(testutil.Alice), Amount: testutil.U(2), Paid: testutil.Dec("2000000000000000")})
	process(t, e, &command.Launch{Header: testutil.Header(testutil.Deployer)})
	process(t, e, &command.Claim{Header: testutil.Header(testutil.Alice)})

	outs := testutil.Drain(persistChan)
	require.Len(t, outs, 5)
	return e, outs
}

// liveLog is liveOutputs converted to log rows.
func liveLog(t *testing.T) (*core.Engine, []persistence.EventRow) {
	t.Helper()
	e, outs := liveOutputs(t)

	var rows []persistence.EventRow
	for _, out := range outs {
		row, _, err := persistence.RowsFromOutput(out)
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return e, rows
}

func TestRecover_FromGenesis(t *testing.T) {
	live, rows := liveLog(t)

	fresh := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	res, err := persistence.Recover(context.Background(), fresh, &memorySource{rows: rows}, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.SnapshotSequence)
	assert.Equal(t, int64(5), res.Replayed)
	assert.Equal(t, live.GetSequence(), res.NextSequence)
	assert.Equal(t, live.GetStateHash(), res.StateHash)
	assert.Equal(t, "2", fresh.BalanceOf(ledger.BookToken, testutil.Alice, ledger.MainID).Dec())
}

func TestRecover_FromSnapshotReplaysTail(t *testing.T) {
	live, rows := liveLog(t)

	// snapshot after the first three commands
	partial := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	_, err := persistence.Recover(context.Background(), partial, &memorySource{rows: rows[:3]}, nil, zerolog.Nop())
	require.NoError(t, err)

	data, err := json.Marshal(partial.CreateSnapshotState())
	require.NoError(t, err)
	var snap core.SnapshotState
	require.NoError(t, json.Unmarshal(data, &snap))

	fresh := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	res, err := persistence.Recover(context.Background(), fresh, &memorySource{snap: &snap, rows: rows}, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.SnapshotSequence)
	assert.Equal(t, int64(2), res.Replayed)
	assert.Equal(t, live.GetStateHash(), res.StateHash)
}

func TestRecover_TamperedHashFails(t *testing.T) {
	_, rows := liveLog(t)
	rows[2].StateHash = make([]byte, 32)

	fresh := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	_, err := persistence.Recover(context.Background(), fresh, &memorySource{rows: rows}, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence 3")
}

func TestRecover_GapFails(t *testing.T) {
	_, rows := liveLog(t)
	rows = append(rows[:1], rows[2:]...)

	fresh := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	_, err := persistence.Recover(context.Background(), fresh, &memorySource{rows: rows}, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestRecover_SourceError(t *testing.T) {
	fresh := core.NewEngine(testutil.EngineConfig(), 1, nil, nil, nil, nil)
	_, err := persistence.Recover(context.Background(), fresh, &memorySource{loadErr: errors.New("db down")}, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
