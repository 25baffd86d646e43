/*

This file contains the keeper scheduler. Each poll refreshes every registered
asset and then walks a fixed priority order, returning at most one (target,
calldata) action per poll: restore the basket, claim rewards, recollateralize,
settle finished auctions, then run the revenue traders. A nil action means
nothing is actionable right now.

*/

package keeper

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/backing"
	"github.com/rtoken-labs/rvm/internal/basket"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/revenue"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Addresses are the deployed facade targets the keeper encodes actions
// against.
type Addresses struct {
	AssetRegistry  common.Address
	BasketHandler  common.Address
	BackingManager common.Address
	RSRTrader      common.Address
	RTokenTrader   common.Address
}

// Keeper computes the single next protocol action from current component
// state.
type Keeper struct {
	log          zerolog.Logger
	reg          *registry.Registry
	basket       *basket.Handler
	backing      *backing.Manager
	rsrTrader    *revenue.Trader
	rtokenTrader *revenue.Trader
	addrs        Addresses
}

// Config wires a Keeper. All fields are required.
type Config struct {
	Registry     *registry.Registry
	Basket       *basket.Handler
	Backing      *backing.Manager
	RSRTrader    *revenue.Trader
	RTokenTrader *revenue.Trader
	Addresses    Addresses
}

func New(cfg Config) (*Keeper, error) {
	if cfg.Registry == nil || cfg.Basket == nil || cfg.Backing == nil ||
		cfg.RSRTrader == nil || cfg.RTokenTrader == nil {
		return nil, errors.New("keeper: missing dependency")
	}
	return &Keeper{
		log:          logger.GetForComponent("keeper"),
		reg:          cfg.Registry,
		basket:       cfg.Basket,
		backing:      cfg.Backing,
		rsrTrader:    cfg.RSRTrader,
		rtokenTrader: cfg.RTokenTrader,
		addrs:        cfg.Addresses,
	}, nil
}

// NextAction refreshes all assets and returns the highest-priority actionable
// step, or nil when nothing needs doing. It never returns more than one
// action per call.
func (k *Keeper) NextAction(ctx context.Context, now time.Time) (*types.Action, error) {
	k.reg.Refresh(ctx, now)

	// A disabled basket blocks everything else; switch to backups first.
	if k.basket.Status() == types.StatusDisabled {
		if k.basket.SelectionExists() {
			return &types.Action{
				Name:     "refreshBasket",
				Target:   k.addrs.BasketHandler,
				Calldata: EncodeRefreshBasket(),
			}, nil
		}
		k.log.Warn().Msg("Basket is disabled and no valid backup selection exists")
		return nil, nil
	}

	if k.backing.HasPendingRewards(ctx) || k.backing.HasForwardableRevenue() {
		return &types.Action{
			Name:     "claimRewards",
			Target:   k.addrs.BackingManager,
			Calldata: EncodeClaimRewards(),
		}, nil
	}

	if trades := k.backing.Settleable(now); len(trades) > 0 {
		return &types.Action{
			Name:     "settleTrade",
			Target:   k.addrs.BackingManager,
			Calldata: EncodeSettleTrade(trades[0].Sell.Address),
		}, nil
	}

	if k.basket.Status() == types.StatusSound && !k.backing.FullyCollateralized() {
		if len(k.backing.Book().OpenTrades()) == 0 {
			if _, err := k.backing.NextTrade(now); err == nil {
				return &types.Action{
					Name:     "rebalance",
					Target:   k.addrs.BackingManager,
					Calldata: EncodeRebalance(uint8(types.TradeKindBatchAuction)),
				}, nil
			}
		}
	}

	for _, tr := range []struct {
		trader *revenue.Trader
		target common.Address
	}{
		{k.rtokenTrader, k.addrs.RTokenTrader},
		{k.rsrTrader, k.addrs.RSRTrader},
	} {
		if erc20s := tr.trader.AuctionableERC20s(now); len(erc20s) > 0 {
			return &types.Action{
				Name:     "manageTokens",
				Target:   tr.target,
				Calldata: EncodeManageTokens(erc20s),
			}, nil
		}
		if trades := tr.trader.Settleable(now); len(trades) > 0 {
			return &types.Action{
				Name:     "settleTrade",
				Target:   tr.target,
				Calldata: EncodeSettleTrade(trades[0].Sell.Address),
			}, nil
		}
	}

	return nil, nil
}
