package core_test

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/event"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/state"
	"TokenLedger/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const season ledger.AssetID = 7

var market = testutil.Market

// newMarketEngine stocks the marketplace with 5 units of asset 7 at price
// 10 and gives alice 30 MZCAL.
func newMarketEngine(t *testing.T) *core.Engine {
	t.Helper()
	e, _, _ := testutil.NewTestEngine()
	mustProcess(t, e, &command.Mint{Header: h(deployer), Book: ledger.BookSeasonal, To: market, AssetID: season, Amount: u(5)})
	mustProcess(t, e, &command.SetAssetPrice{Header: h(deployer), AssetID: season, Price: u(10)})
	mustProcess(t, e, &command.Mint{Header: h(deployer), Book: ledger.BookToken, To: alice, AssetID: ledger.MainID, Amount: u(30)})
	return e
}

func TestSetAssetPrice(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()

	_, ok := e.AssetPrice(season)
	assert.False(t, ok)

	_, err := e.Process(&command.SetAssetPrice{Header: h(alice), AssetID: season, Price: u(1)})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	r := mustProcess(t, e, &command.SetAssetPrice{Header: h(deployer), AssetID: season, Price: u(0)})
	assert.Equal(t, []event.Event{&event.PriceUpdated{Kind: state.PriceAsset, AssetID: season, Price: u(0), By: deployer}}, r.Events)

	price, ok := e.AssetPrice(season)
	assert.True(t, ok, "zero is a set price")
	assert.True(t, price.IsZero())
}

func TestSeasonalMintBurn_UsesTokenAdmins(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()

	_, err := e.Process(&command.Mint{Header: h(alice), Book: ledger.BookSeasonal, To: alice, AssetID: season, Amount: u(1)})
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	mustProcess(t, e, &command.AddAdmin{Header: h(deployer), Account: alice})
	mustProcess(t, e, &command.Mint{Header: h(alice), Book: ledger.BookSeasonal, To: bob, AssetID: season, Amount: u(2)})

	_, err = e.Process(&command.Burn{Header: h(testutil.Carol), Book: ledger.BookSeasonal, Holder: bob, AssetID: season, Amount: u(1)})
	assert.ErrorIs(t, err, fault.ErrNotOwnerOrAdmin)
	mustProcess(t, e, &command.Burn{Header: h(bob), Book: ledger.BookSeasonal, Holder: bob, AssetID: season, Amount: u(1)})

	assert.Equal(t, "1", e.BalanceOf(ledger.BookSeasonal, bob, season).Dec())
	// the books do not share balances even when ids coincide
	assert.True(t, e.BalanceOf(ledger.BookToken, bob, season).IsZero())
}

func TestBuyAsset(t *testing.T) {
	e := newMarketEngine(t)

	r := mustProcess(t, e, &command.BuyAsset{Header: h(alice), AssetID: season, Amount: u(2)})
	assert.Equal(t, []event.Event{
		&event.TransferSingle{Book: ledger.BookSeasonal, Operator: alice, From: market, To: alice, AssetID: season, Amount: u(2)},
		&event.TransferSingle{Book: ledger.BookToken, Operator: market, From: alice, To: ledger.ZeroIdentity, AssetID: ledger.MainID, Amount: u(20)},
		&event.AssetPurchase{Buyer: alice, AssetID: season, Amount: u(2), TotalCost: u(20)},
	}, r.Events)

	assert.Equal(t, "2", e.BalanceOf(ledger.BookSeasonal, alice, season).Dec())
	assert.Equal(t, "3", e.BalanceOf(ledger.BookSeasonal, market, season).Dec())
	assert.Equal(t, "10", e.BalanceOf(ledger.BookToken, alice, ledger.MainID).Dec())
	assert.Equal(t, "10", e.TotalSupply(ledger.BookToken, ledger.MainID).Dec())
	assert.Equal(t, "5", e.TotalSupply(ledger.BookSeasonal, season).Dec())
}

func TestBuyAsset_CheckOrder(t *testing.T) {
	e := newMarketEngine(t)

	_, err := e.Process(&command.BuyAsset{Header: h(alice), AssetID: 99, Amount: u(1)})
	assert.ErrorIs(t, err, fault.ErrPriceNotSet)

	// stock is checked before the buyer's funds
	_, err = e.Process(&command.BuyAsset{Header: h(bob), AssetID: season, Amount: u(6)})
	assert.ErrorIs(t, err, fault.ErrInsufficientSupply)

	_, err = e.Process(&command.BuyAsset{Header: h(alice), AssetID: season, Amount: u(4)})
	assert.ErrorIs(t, err, fault.ErrInsufficientPayment)

	assert.Equal(t, "30", e.BalanceOf(ledger.BookToken, alice, ledger.MainID).Dec())
	assert.Equal(t, "5", e.BalanceOf(ledger.BookSeasonal, market, season).Dec())
}

func TestBuyAsset_FreeAsset(t *testing.T) {
	e := newMarketEngine(t)
	mustProcess(t, e, &command.SetAssetPrice{Header: h(deployer), AssetID: season, Price: u(0)})

	r := mustProcess(t, e, &command.BuyAsset{Header: h(bob), AssetID: season, Amount: u(1)})
	assert.Equal(t, []event.EventType{event.EventTypeTransferSingle, event.EventTypeAssetPurchase}, eventTypes(r.Events))
	assert.Equal(t, "1", e.BalanceOf(ledger.BookSeasonal, bob, season).Dec())
}

func TestBuyAsset_MarketCannotBuy(t *testing.T) {
	e := newMarketEngine(t)

	_, err := e.Process(&command.BuyAsset{Header: h(market), AssetID: season, Amount: u(1)})
	assert.ErrorIs(t, err, fault.ErrInvalidAddress)
}

func TestTradeBasket(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()
	entries := []state.BasketEntry{
		{ContractRef: testutil.Token, AssetID: ledger.MainID, Amount: u(3)},
		{ContractRef: market, AssetID: season, Amount: u(1)},
	}

	r := mustProcess(t, e, &command.CreateTradeBasket{Header: h(alice), Entries: entries})
	assert.Equal(t, []event.EventType{event.EventTypeTradeBasketCreated}, eventTypes(r.Events))
	assert.Equal(t, entries, e.TradeBasket(alice))

	mustProcess(t, e, &command.CreateTradeBasket{Header: h(alice), Entries: entries[1:]})
	assert.Equal(t, entries[1:], e.TradeBasket(alice))
	assert.Nil(t, e.TradeBasket(bob))

	r = mustProcess(t, e, &command.ClearTradeBasket{Header: h(alice)})
	assert.Equal(t, []event.Event{&event.TradeBasketCleared{Owner: alice}}, r.Events)
	assert.Nil(t, e.TradeBasket(alice))

	// clearing an absent basket still succeeds
	mustProcess(t, e, &command.ClearTradeBasket{Header: h(alice)})

	_, err := e.Process(&command.CreateTradeBasket{Header: h(alice), Entries: []state.BasketEntry{{ContractRef: market}}})
	require.ErrorIs(t, err, fault.ErrBasketEntryAmount)
}

func TestMetadata(t *testing.T) {
	e, _, _ := testutil.NewTestEngine()

	md := e.Metadata(ledger.BookSeasonal)
	assert.Equal(t, "Seasonal NFTs", md.Name)
	assert.Equal(t, "SFT", md.Symbol)
	assert.Equal(t, "https://seasonal.example/0000000000000000000000000000000000000000000000000000000000000007.json", e.URI(ledger.BookSeasonal, season))
	assert.Equal(t, "https://tokens.example/0000000000000000000000000000000000000000000000000000000000000001.json", e.URI(ledger.BookToken, ledger.MainID))
	assert.Equal(t, market, e.Address(ledger.BookSeasonal))
	assert.Equal(t, testutil.Token, e.Address(ledger.BookToken))
}
