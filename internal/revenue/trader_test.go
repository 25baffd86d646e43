package revenue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/trading"
	"github.com/rtoken-labs/rvm/internal/types"
)

func dec(s string) sdkmath.LegacyDec { return sdkmath.LegacyMustNewDecFromStr(s) }

// stubAsset is a priced, non-collateral registry entry.
type stubAsset struct {
	erc20     types.ERC20
	low, high sdkmath.LegacyDec
	priced    bool
}

func newStubAsset(last byte, symbol, low, high string) *stubAsset {
	var addr common.Address
	addr[19] = last
	return &stubAsset{
		erc20:  types.ERC20{Address: addr, Symbol: symbol, Decimals: 18},
		low:    dec(low),
		high:   dec(high),
		priced: true,
	}
}

func (a *stubAsset) ERC20() types.ERC20 { return a.erc20 }
func (a *stubAsset) Price(_ time.Time) (sdkmath.LegacyDec, sdkmath.LegacyDec, bool) {
	return a.low, a.high, a.priced
}
func (a *stubAsset) MaxTradeVolume() sdkmath.LegacyDec      { return sdkmath.LegacyNewDec(1_000_000) }
func (a *stubAsset) Refresh(_ context.Context, _ time.Time) {}
func (a *stubAsset) RewardsPending(_ context.Context) (types.ERC20, sdkmath.LegacyDec) {
	return types.ERC20{}, sdkmath.LegacyZeroDec()
}
func (a *stubAsset) ClaimRewards(_ context.Context) (types.ERC20, sdkmath.LegacyDec, error) {
	return types.ERC20{}, sdkmath.LegacyZeroDec(), nil
}
func (a *stubAsset) IsCollateral() bool { return false }

// captureSink records everything absorbed.
type captureSink struct {
	mu       sync.Mutex
	absorbed map[common.Address]sdkmath.LegacyDec
}

func newCaptureSink() *captureSink {
	return &captureSink{absorbed: make(map[common.Address]sdkmath.LegacyDec)}
}

func (s *captureSink) Absorb(erc20 common.Address, amount sdkmath.LegacyDec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.absorbed[erc20]
	if !ok {
		prev = sdkmath.LegacyZeroDec()
	}
	s.absorbed[erc20] = prev.Add(amount)
	return nil
}

func (s *captureSink) total(erc20 common.Address) sdkmath.LegacyDec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if got, ok := s.absorbed[erc20]; ok {
		return got
	}
	return sdkmath.LegacyZeroDec()
}

type traderFixture struct {
	trader *Trader
	venue  *trading.MemVenue
	sink   *captureSink
	rsr    *stubAsset
	comp   *stubAsset
	reg    *registry.Registry
	params *types.ProtocolParameters
}

func newTraderFixture(t *testing.T) *traderFixture {
	t.Helper()
	rtokenAsset := newStubAsset(100, "RTKN", "1", "1")
	rsr := newStubAsset(101, "RSR", "0.005", "0.006")
	comp := newStubAsset(10, "COMP", "50", "52")

	reg, err := registry.New(rtokenAsset, rsr)
	require.NoError(t, err)
	require.NoError(t, reg.Register(comp))

	venue := trading.NewMemVenue()
	sink := newCaptureSink()
	params := &types.ProtocolParameters{
		MaxTradeSlippage: dec("0.01"),
		MinTradeVolume:   sdkmath.LegacyNewDec(100),
		MaxTradeVolume:   sdkmath.LegacyNewDec(1_000_000),
		AuctionLength:    30 * time.Minute,
		RTokenDist:       60,
		RSRDist:          40,
	}
	trader, err := NewTrader(Config{
		Name:       "rsr-trader",
		Registry:   reg,
		Venue:      venue,
		Account:    bank.NewAccount("rsr-trader"),
		TokenToBuy: rsr.erc20,
		Sink:       sink,
		Parameters: params,
	})
	require.NoError(t, err)
	return &traderFixture{trader: trader, venue: venue, sink: sink, rsr: rsr, comp: comp, reg: reg, params: params}
}

func TestTraderForwardsTokenToBuyToSink(t *testing.T) {
	f := newTraderFixture(t)
	now := time.Now()
	require.NoError(t, f.trader.Account().Credit(f.rsr.erc20.Address, sdkmath.LegacyNewDec(500)))

	require.NoError(t, f.trader.ManageTokens(context.Background(), []common.Address{f.rsr.erc20.Address}, now))

	assert.True(t, f.sink.total(f.rsr.erc20.Address).Equal(sdkmath.LegacyNewDec(500)))
	assert.True(t, f.trader.Account().Balance(f.rsr.erc20.Address).IsZero())
}

func TestTraderAuctionsRevenueTokenIntoTokenToBuy(t *testing.T) {
	f := newTraderFixture(t)
	now := time.Now()
	// 10 COMP at a $50 low is $500 of value, well above dust.
	require.NoError(t, f.trader.Account().Credit(f.comp.erc20.Address, sdkmath.LegacyNewDec(10)))

	actionable := f.trader.AuctionableERC20s(now)
	require.Equal(t, []common.Address{f.comp.erc20.Address}, actionable)

	require.NoError(t, f.trader.ManageTokens(context.Background(), actionable, now))

	open := f.trader.Book().Open(f.comp.erc20.Address)
	require.NotNil(t, open)
	assert.True(t, open.SellAmount.Equal(sdkmath.LegacyNewDec(10)))
	// min buy = 10 x 0.99 x 50 / 0.006
	assert.True(t, open.MinBuyAmount.Equal(dec("10").Mul(dec("0.99")).Mul(dec("50")).QuoRoundUp(dec("0.006"))))
	assert.True(t, f.trader.Account().Balance(f.comp.erc20.Address).IsZero(), "sell amount escrowed")

	// The token is no longer actionable while its trade is open.
	assert.Empty(t, f.trader.AuctionableERC20s(now))

	// Settlement forwards the clearing buy amount to the sink.
	end := now.Add(31 * time.Minute)
	due := f.trader.Settleable(end)
	require.Len(t, due, 1)
	require.NoError(t, f.trader.SettleTrade(context.Background(), f.comp.erc20.Address, end))
	assert.True(t, f.sink.total(f.rsr.erc20.Address).Equal(open.MinBuyAmount))
	assert.Nil(t, f.trader.Book().Open(f.comp.erc20.Address))
}

func TestSettleTradeReturnsUnsoldToAccount(t *testing.T) {
	f := newTraderFixture(t)
	now := time.Now()
	require.NoError(t, f.trader.Account().Credit(f.comp.erc20.Address, sdkmath.LegacyNewDec(10)))
	require.NoError(t, f.trader.ManageTokens(context.Background(), []common.Address{f.comp.erc20.Address}, now))

	open := f.trader.Book().Open(f.comp.erc20.Address)
	require.NotNil(t, open)

	// Only 4 of the 10 COMP clear; the rest must return for a later auction.
	require.NoError(t, f.venue.SetResult(open.AuctionID, types.TradeResult{
		ClearingSellAmount: sdkmath.LegacyNewDec(4),
		ClearingBuyAmount:  sdkmath.LegacyNewDec(33_000),
	}))

	end := now.Add(31 * time.Minute)
	require.NoError(t, f.trader.SettleTrade(context.Background(), f.comp.erc20.Address, end))

	assert.True(t, f.sink.total(f.rsr.erc20.Address).Equal(sdkmath.LegacyNewDec(33_000)))
	assert.True(t, f.trader.Account().Balance(f.comp.erc20.Address).Equal(sdkmath.LegacyNewDec(6)),
		"unsold sell amount returned")
	// The remainder is worth $300 and shows up for the next cycle.
	assert.Equal(t, []common.Address{f.comp.erc20.Address}, f.trader.AuctionableERC20s(end))
}

// flakyVenue fails AuctionResult a set number of times before recovering.
type flakyVenue struct {
	*trading.MemVenue
	failures int
}

func (v *flakyVenue) AuctionResult(ctx context.Context, auctionID uint64) (types.TradeResult, error) {
	if v.failures > 0 {
		v.failures--
		return types.TradeResult{}, errors.New("venue unreachable")
	}
	return v.MemVenue.AuctionResult(ctx, auctionID)
}

func TestSettleTradeRetriesAfterVenueError(t *testing.T) {
	f := newTraderFixture(t)
	now := time.Now()
	venue := &flakyVenue{MemVenue: f.venue, failures: 1}
	trader, err := NewTrader(Config{
		Name:       "rsr-trader",
		Registry:   f.reg,
		Venue:      venue,
		Account:    bank.NewAccount("rsr-trader"),
		TokenToBuy: f.rsr.erc20,
		Sink:       f.sink,
		Parameters: f.params,
	})
	require.NoError(t, err)

	require.NoError(t, trader.Account().Credit(f.comp.erc20.Address, sdkmath.LegacyNewDec(10)))
	require.NoError(t, trader.ManageTokens(context.Background(), []common.Address{f.comp.erc20.Address}, now))
	open := trader.Book().Open(f.comp.erc20.Address)
	require.NotNil(t, open)

	end := now.Add(31 * time.Minute)
	require.Error(t, trader.SettleTrade(context.Background(), f.comp.erc20.Address, end))
	require.Len(t, trader.Settleable(end), 1, "trade stays on the book for a retry")

	require.NoError(t, trader.SettleTrade(context.Background(), f.comp.erc20.Address, end))
	assert.True(t, f.sink.total(f.rsr.erc20.Address).Equal(open.MinBuyAmount))
	assert.Nil(t, trader.Book().Open(f.comp.erc20.Address))
}

func TestTraderLeavesDustAlone(t *testing.T) {
	f := newTraderFixture(t)
	now := time.Now()
	// 1 COMP at $50 is under the $100 minimum trade volume.
	require.NoError(t, f.trader.Account().Credit(f.comp.erc20.Address, sdkmath.LegacyOneDec()))

	assert.Empty(t, f.trader.AuctionableERC20s(now))
	require.NoError(t, f.trader.ManageTokens(context.Background(), []common.Address{f.comp.erc20.Address}, now))
	assert.Nil(t, f.trader.Book().Open(f.comp.erc20.Address))
	assert.True(t, f.trader.Account().Balance(f.comp.erc20.Address).Equal(sdkmath.LegacyOneDec()))
}

func TestTraderRejectsUnpricedToken(t *testing.T) {
	f := newTraderFixture(t)
	now := time.Now()
	f.comp.priced = false
	require.NoError(t, f.trader.Account().Credit(f.comp.erc20.Address, sdkmath.LegacyNewDec(10)))

	assert.Empty(t, f.trader.AuctionableERC20s(now))
	err := f.trader.ManageTokens(context.Background(), []common.Address{f.comp.erc20.Address}, now)
	assert.ErrorIs(t, err, ErrUnpricedToken)
}

func TestManageTokensEmptyInput(t *testing.T) {
	f := newTraderFixture(t)
	err := f.trader.ManageTokens(context.Background(), nil, time.Now())
	assert.ErrorIs(t, err, ErrNothingToManage)
}
