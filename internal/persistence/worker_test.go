package persistence_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/persistence"
	"TokenLedger/internal/testutil"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsFromOutput(t *testing.T) {
	e, persistChan, _ := testutil.NewTestEngine()
	process(t, e, &command.Mint{
		Header: testutil.Header(testutil.Deployer), Book: ledger.BookToken,
		To: testutil.Alice, AssetID: ledger.MainID, Amount: testutil.Dec("1000000000000000000000"),
	})

	outs := testutil.Drain(persistChan)
	require.Len(t, outs, 1)

	row, movements, err := persistence.RowsFromOutput(outs[0])
	require.NoError(t, err)

	assert.Equal(t, int64(1), row.Sequence)
	assert.Equal(t, "mint", row.CommandType)
	assert.Equal(t, strings.ToLower(testutil.Deployer.Hex()), row.Caller)
	assert.Len(t, row.StateHash, 32)
	assert.Len(t, row.PrevHash, 32)

	var records []struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(row.Events, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "TransferSingle", records[0].Type)

	require.Len(t, movements, 1)
	m := movements[0]
	assert.Equal(t, "token", m.Book)
	assert.Equal(t, "mint", m.Type)
	assert.Equal(t, "1000000000000000000000", m.Amount)
	assert.Equal(t, strings.ToLower(ledger.ZeroIdentity.Hex()), m.From)
	assert.Equal(t, row.RequestID, m.RequestID)
}

type fakeStore struct {
	saved    []int64
	verified map[int64]bool
}

func (f *fakeStore) SaveSnapshot(ctx context.Context, snap *core.SnapshotState) (int, error) {
	f.saved = append(f.saved, snap.Sequence)
	return 128, nil
}

func (f *fakeStore) VerifySnapshot(ctx context.Context, seq int64) (bool, error) {
	return f.verified[seq], nil
}

func TestSnapshotWorker_TakesEveryN(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()
	store := &fakeStore{verified: map[int64]bool{}}
	sw := persistence.NewSnapshotWorker(e, store, 2, time.Hour, nil, zerolog.Nop())

	process(t, e, &command.WhitelistAdd{Header: testutil.Header(testutil.Deployer), Account: testutil.Alice})
	sw.Tick(context.Background())
	assert.Empty(t, store.saved, "one command is below the threshold")

	process(t, e, &command.WhitelistAdd{Header: testutil.Header(testutil.Deployer), Account: testutil.Bob})
	sw.Tick(context.Background())
	assert.Equal(t, []int64{2}, store.saved)
	assert.Equal(t, []int64{2}, sw.Pending())

	store.verified[2] = true
	sw.Tick(context.Background())
	assert.Empty(t, sw.Pending())
	assert.Equal(t, []int64{2}, store.saved, "no new commands, no new snapshot")
}
