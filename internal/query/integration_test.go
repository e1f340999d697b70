package query_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/persistence"
	"TokenLedger/internal/projection"
	"TokenLedger/internal/query"
	"TokenLedger/internal/testutil"
	"context"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryService_AgainstProjections(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx))

	e, persistChan, projChan := testutil.NewTestEngine()
	const season = ledger.AssetID(7)
	for _, cmd := range []command.Command{
		&command.Mint{Header: testutil.Header(testutil.Deployer), Book: ledger.BookToken, To: testutil.Alice, AssetID: ledger.MainID, Amount: testutil.U(10)},
		&command.Mint{Header: testutil.Header(testutil.Deployer), Book: ledger.BookSeasonal, To: testutil.Market, AssetID: season, Amount: testutil.U(5)},
		&command.SetAssetPrice{Header: testutil.Header(testutil.Deployer), AssetID: season, Price: testutil.U(1)},
		&command.BuyAsset{Header: testutil.Header(testutil.Alice), AssetID: season, Amount: testutil.U(2)},
	} {
		_, err := e.Process(cmd)
		require.NoError(t, err, command.Describe(cmd))
	}

	persistIn := feed(testutil.Drain(persistChan))
	require.NoError(t, persistence.NewPersistenceWorker(db, persistIn, 16, 10*time.Millisecond, nil, zerolog.Nop()).Run(ctx))

	projIn := feed(testutil.Drain(projChan))
	pw := projection.NewProjectionWorker(db, projIn, nil, zerolog.Nop())
	require.NoError(t, pw.Run(ctx))
	assert.Equal(t, int64(4), pw.LastSequence())

	qs := query.NewQueryService(db)

	holdings, err := qs.GetHoldings(ctx, testutil.Alice)
	require.NoError(t, err)
	byBook := map[string]string{}
	for _, h := range holdings {
		byBook[h.Book+"/"+h.AssetID] = h.Balance
		assert.Equal(t, int64(4), h.AsOfSequence)
	}
	assert.Equal(t, "8", byBook["token/1"])
	assert.Equal(t, "2", byBook["seasonal/7"])

	purchases, err := qs.GetPurchases(ctx, testutil.Alice, 10, nil)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "2", purchases[0].TotalCost)

	history, err := qs.GetMovementHistory(ctx, testutil.Alice, 10, nil)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	env, err := qs.GetEnvelope(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "buy_asset", env.CommandType)
	assert.Equal(t, strings.ToLower(testutil.Alice.Hex()), env.Caller)

	_, err = qs.GetEnvelope(ctx, 99)
	assert.ErrorIs(t, err, query.ErrNotFound)

	report, err := qs.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.IsHealthy, "%+v", report)

	// rebuild yields the same read model
	require.NoError(t, projection.RebuildProjections(ctx, db, zerolog.Nop()))
	rebuilt, err := qs.GetHoldings(ctx, testutil.Alice)
	require.NoError(t, err)
	assert.ElementsMatch(t, holdings, rebuilt)
}

func feed(outs []core.CoreOutput) chan core.CoreOutput {
	ch := make(chan core.CoreOutput, len(outs))
	for _, o := range outs {
		ch <- o
	}
	close(ch)
	return ch
}
