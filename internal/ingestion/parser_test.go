package ingestion_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ingestion"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/testutil"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFromJSON(t *testing.T, subject string, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return ingestion.RawCommand{
		Subject:  subject,
		Data:     data,
		Received: time.UnixMicro(1_700_000_000_000_000),
	}
}

func TestCommandTypeFromSubject(t *testing.T) {
	name, err := ingestion.CommandTypeFromSubject("mzcal.commands.buy_presale")
	require.NoError(t, err)
	assert.Equal(t, "buy_presale", name)

	name, err = ingestion.CommandTypeFromSubject("other.subject")
	require.NoError(t, err)
	assert.Equal(t, "", name)

	_, err = ingestion.CommandTypeFromSubject("mzcal.commands.buy.presale")
	assert.ErrorIs(t, err, fault.ErrUnknownCommand)
}

func TestParseRawCommand_TypeFromSubject(t *testing.T) {
	raw := rawFromJSON(t, "mzcal.commands.buy_presale", map[string]interface{}{
		"request_id": "r-1",
		"caller":     testutil.Alice.Hex(),
		"amount":     "3",
		"paid":       "3000000000000000",
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	require.NoError(t, err)

	bp, ok := cmd.(*command.BuyPresale)
	require.True(t, ok, "got %T", cmd)
	assert.Equal(t, "r-1", bp.RequestID())
	assert.Equal(t, testutil.Alice, bp.Caller())
	assert.Equal(t, "3", bp.Amount.Dec())
	assert.Equal(t, "3000000000000000", bp.Paid.Dec())
	assert.Equal(t, raw.Received.UnixMicro(), bp.Timestamp().UnixMicro(), "stamped with receive time")
}

func TestParseRawCommand_PayloadTimestampWins(t *testing.T) {
	raw := rawFromJSON(t, "mzcal.commands.launch", map[string]interface{}{
		"request_id":   "r-2",
		"caller":       testutil.Deployer.Hex(),
		"timestamp_us": 42,
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cmd.Timestamp().UnixMicro())
}

func TestParseRawCommand_MarketMintTargetsSeasonalBook(t *testing.T) {
	raw := rawFromJSON(t, "mzcal.commands.market_mint", map[string]interface{}{
		"request_id": "r-3",
		"caller":     testutil.Deployer.Hex(),
		"book":       "token",
		"to":         testutil.Market.Hex(),
		"asset_id":   7,
		"amount":     "5",
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	require.NoError(t, err)
	m, ok := cmd.(*command.Mint)
	require.True(t, ok)
	assert.Equal(t, ledger.BookSeasonal, m.Book)
	assert.Equal(t, ledger.AssetID(7), m.AssetID)
}

func TestParseRawCommand_EmptyBookIsToken(t *testing.T) {
	raw := rawFromJSON(t, "mzcal.commands.mint", map[string]interface{}{
		"request_id": "r-4",
		"caller":     testutil.Deployer.Hex(),
		"to":         testutil.Bob.Hex(),
		"amount":     "5",
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	require.NoError(t, err)
	m, ok := cmd.(*command.Mint)
	require.True(t, ok)
	assert.Equal(t, ledger.BookToken, m.Book)
}

func TestParseRawCommand_Errors(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		body    interface{}
		want    error
	}{
		{"unknown type", "mzcal.commands.fly", map[string]interface{}{"request_id": "x", "caller": testutil.Alice.Hex()}, fault.ErrUnknownCommand},
		{"missing request id", "mzcal.commands.claim", map[string]interface{}{"caller": testutil.Alice.Hex()}, fault.ErrMissingRequestID},
		{"bad caller", "mzcal.commands.claim", map[string]interface{}{"request_id": "x", "caller": "alice"}, fault.ErrInvalidAddress},
		{"bad amount", "mzcal.commands.buy_mzcal", map[string]interface{}{"request_id": "x", "caller": testutil.Alice.Hex(), "amount": "-1", "paid": "0"}, fault.ErrInvalidAmount},
		{"unknown book", "mzcal.commands.mint", map[string]interface{}{"request_id": "x", "caller": testutil.Alice.Hex(), "book": "tokn", "to": testutil.Bob.Hex(), "amount": "1"}, fault.ErrUnknownBook},
		{"unknown burn book", "mzcal.commands.burn", map[string]interface{}{"request_id": "x", "caller": testutil.Alice.Hex(), "book": "presale", "holder": testutil.Bob.Hex(), "amount": "1"}, fault.ErrUnknownBook},
		{"empty basket amount", "mzcal.commands.create_trade_basket", map[string]interface{}{"request_id": "x", "caller": testutil.Alice.Hex(), "entries": []map[string]interface{}{{"contract_ref": testutil.Market.Hex(), "asset_id": 3}}}, fault.ErrBasketEntryAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ingestion.ParseRawCommand(rawFromJSON(t, tc.subject, tc.body))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := ingestion.ParseRawCommand(ingestion.RawCommand{Subject: "mzcal.commands.claim", Data: []byte("{")})
	assert.ErrorIs(t, err, fault.ErrPayloadParseFail)
}
