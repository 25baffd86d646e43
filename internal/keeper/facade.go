/*

This file contains read-only views over the protocol components, shaped for
the dashboard API and for operators polling the keeper.

*/

package keeper

import (
	"context"
	"time"

	"github.com/rtoken-labs/rvm/internal/types"
)

// StatusReport is a point-in-time view of protocol health.
type StatusReport struct {
	Timestamp           time.Time `json:"timestamp"`
	BasketNonce         uint64    `json:"basket_nonce"`
	BasketStatus        string    `json:"basket_status"`
	FullyCollateralized bool      `json:"fully_collateralized"`
	BasketsHeld         string    `json:"baskets_held"`
	BasketsNeeded       string    `json:"baskets_needed"`
	OpenBackingTrades   int       `json:"open_backing_trades"`
	OpenRevenueTrades   int       `json:"open_revenue_trades"`
	PendingRewards      bool      `json:"pending_rewards"`
	RegisteredAssets    int       `json:"registered_assets"`
}

// CanRunRecollateralizationAuctions reports whether a rebalance action would
// be accepted right now.
func (k *Keeper) CanRunRecollateralizationAuctions(now time.Time) bool {
	if k.basket.Status() != types.StatusSound {
		return false
	}
	if k.backing.FullyCollateralized() {
		return false
	}
	if len(k.backing.Book().OpenTrades()) > 0 {
		return false
	}
	_, err := k.backing.NextTrade(now)
	return err == nil
}

// RevenueAuctionERC20s lists, per trader, the tokens a manageTokens call
// would act on.
func (k *Keeper) RevenueAuctionERC20s(now time.Time) (rsr, rtoken []string) {
	for _, addr := range k.rsrTrader.AuctionableERC20s(now) {
		rsr = append(rsr, addr.Hex())
	}
	for _, addr := range k.rtokenTrader.AuctionableERC20s(now) {
		rtoken = append(rtoken, addr.Hex())
	}
	return rsr, rtoken
}

// TradesForBackingManager returns the backing manager's open trades.
func (k *Keeper) TradesForBackingManager() []*types.Trade {
	return k.backing.Book().OpenTrades()
}

// TradesForRevenueTraders returns both revenue traders' open trades.
func (k *Keeper) TradesForRevenueTraders() []*types.Trade {
	trades := k.rsrTrader.Book().OpenTrades()
	return append(trades, k.rtokenTrader.Book().OpenTrades()...)
}

// Status assembles the dashboard health view.
func (k *Keeper) Status(ctx context.Context, now time.Time) StatusReport {
	held := k.basket.BasketsHeldBy(k.backing.Account())
	return StatusReport{
		Timestamp:           now,
		BasketNonce:         k.basket.Nonce(),
		BasketStatus:        k.basket.Status().String(),
		FullyCollateralized: k.backing.FullyCollateralized(),
		BasketsHeld:         held.String(),
		BasketsNeeded:       k.backing.BasketsNeeded().String(),
		OpenBackingTrades:   len(k.TradesForBackingManager()),
		OpenRevenueTrades:   len(k.TradesForRevenueTraders()),
		PendingRewards:      k.backing.HasPendingRewards(ctx),
		RegisteredAssets:    len(k.reg.Assets()),
	}
}
