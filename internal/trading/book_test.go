package trading

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtoken-labs/rvm/internal/types"
)

func testTrade(last byte, symbol string, end time.Time) *types.Trade {
	var addr common.Address
	addr[19] = last
	return &types.Trade{
		AuctionID:    uint64(last),
		Sell:         types.ERC20{Address: addr, Symbol: symbol, Decimals: 18},
		Buy:          types.ERC20{Symbol: "USDC", Decimals: 6},
		SellAmount:   sdkmath.LegacyNewDec(100),
		MinBuyAmount: sdkmath.LegacyNewDec(99),
		EndTime:      end,
	}
}

func TestBookRejectsSecondTradeForSameSellToken(t *testing.T) {
	b := NewBook("backing-manager")
	now := time.Now()

	first := testTrade(1, "DAI", now.Add(time.Hour))
	require.NoError(t, b.Add(first))
	assert.Equal(t, "backing-manager", first.Trader)

	err := b.Add(testTrade(1, "DAI", now.Add(2*time.Hour)))
	assert.ErrorIs(t, err, ErrTradeOpen)

	// A different sell token is fine.
	require.NoError(t, b.Add(testTrade(2, "USDT", now.Add(time.Hour))))
	assert.Len(t, b.OpenTrades(), 2)
}

func TestBookTakeEnforcesEndTime(t *testing.T) {
	b := NewBook("rsr-trader")
	now := time.Now()
	tr := testTrade(1, "DAI", now.Add(30*time.Minute))
	require.NoError(t, b.Add(tr))

	_, err := b.Take(tr.Sell.Address, now)
	assert.ErrorIs(t, err, ErrTradeNotOver)
	assert.NotNil(t, b.Open(tr.Sell.Address), "a failed take leaves the trade open")

	got, err := b.Take(tr.Sell.Address, now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, tr.AuctionID, got.AuctionID)
	assert.Nil(t, b.Open(tr.Sell.Address))

	_, err = b.Take(tr.Sell.Address, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoOpenTrade)
}

func TestBookSettleableKeepsStartOrder(t *testing.T) {
	b := NewBook("rtoken-trader")
	now := time.Now()

	early := testTrade(1, "DAI", now.Add(-time.Minute))
	late := testTrade(2, "USDT", now.Add(time.Hour))
	alsoEarly := testTrade(3, "FRAX", now.Add(-time.Second))
	require.NoError(t, b.Add(early))
	require.NoError(t, b.Add(late))
	require.NoError(t, b.Add(alsoEarly))

	due := b.Settleable(now)
	require.Len(t, due, 2)
	assert.Equal(t, early.AuctionID, due[0].AuctionID)
	assert.Equal(t, alsoEarly.AuctionID, due[1].AuctionID)
}
