package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/backing"
	"github.com/rtoken-labs/rvm/internal/basket"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/revenue"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownTarget = errors.New("action targets an unknown address")
	ErrBadArguments  = errors.New("calldata arguments do not match the method")
)

// Executor carries out a scheduled action.
type Executor interface {
	Execute(ctx context.Context, action *types.Action, now time.Time) error
}

// LocalExecutor decodes an action's calldata and dispatches it to the
// in-process components, mirroring what the deployed facade would do with the
// same bytes.
type LocalExecutor struct {
	log     zerolog.Logger
	basket  *basket.Handler
	backing *backing.Manager
	traders map[common.Address]*revenue.Trader
	addrs   Addresses
}

func NewLocalExecutor(basketHandler *basket.Handler, backingManager *backing.Manager,
	rsrTrader, rtokenTrader *revenue.Trader, addrs Addresses) (*LocalExecutor, error) {
	if basketHandler == nil || backingManager == nil || rsrTrader == nil || rtokenTrader == nil {
		return nil, errors.New("local executor: missing dependency")
	}
	return &LocalExecutor{
		log:     logger.GetForComponent("executor"),
		basket:  basketHandler,
		backing: backingManager,
		traders: map[common.Address]*revenue.Trader{
			addrs.RSRTrader:    rsrTrader,
			addrs.RTokenTrader: rtokenTrader,
		},
		addrs: addrs,
	}, nil
}

func (e *LocalExecutor) Execute(ctx context.Context, action *types.Action, now time.Time) error {
	if action == nil {
		return nil
	}
	name, args, err := DecodeCall(action.Calldata)
	if err != nil {
		return err
	}

	switch name {
	case "refreshBasket":
		return e.basket.RefreshBasket(now)

	case "claimRewards":
		if err := e.backing.ClaimRewards(ctx); err != nil {
			return err
		}
		// Forwarding is best-effort here; not collateralized yet is fine.
		if err := e.backing.ForwardRevenue(now); err != nil &&
			!errors.Is(err, backing.ErrNotCollateralized) && !errors.Is(err, backing.ErrBasketDisabled) {
			return err
		}
		return nil

	case "rebalance":
		kind, ok := args[0].(uint8)
		if !ok {
			return fmt.Errorf("%w: rebalance kind", ErrBadArguments)
		}
		return e.backing.Rebalance(ctx, types.TradeKind(kind), now)

	case "settleTrade":
		sell, ok := args[0].(common.Address)
		if !ok {
			return fmt.Errorf("%w: settleTrade sell", ErrBadArguments)
		}
		if action.Target == e.addrs.BackingManager {
			return e.backing.SettleTrade(ctx, sell, now)
		}
		trader, ok := e.traders[action.Target]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, action.Target.Hex())
		}
		return trader.SettleTrade(ctx, sell, now)

	case "manageTokens":
		erc20s, ok := args[0].([]common.Address)
		if !ok {
			return fmt.Errorf("%w: manageTokens erc20s", ErrBadArguments)
		}
		trader, ok := e.traders[action.Target]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, action.Target.Hex())
		}
		return trader.ManageTokens(ctx, erc20s, now)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownSelector, name)
	}
}
