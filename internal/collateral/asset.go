package collateral

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
)

// SimpleAsset is a priced, non-basket token: RSR, reward tokens, the RToken
// itself when held as plain revenue. It has no default machinery.
type SimpleAsset struct {
	cfg    Config
	log    zerolog.Logger
	prices priceBuffer
}

// NewSimpleAsset creates a plain asset from its configuration.
func NewSimpleAsset(cfg Config) (*SimpleAsset, error) {
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	return &SimpleAsset{
		cfg:    cfg,
		log:    logger.GetForComponent("asset").With().Str("erc20", cfg.ERC20.Symbol).Logger(),
		prices: newPriceBuffer(cfg.PriceTimeout),
	}, nil
}

func (a *SimpleAsset) ERC20() types.ERC20 { return a.cfg.ERC20 }

func (a *SimpleAsset) MaxTradeVolume() sdkmath.LegacyDec { return a.cfg.MaxTradeVolume }

func (a *SimpleAsset) IsCollateral() bool { return false }

// Refresh snapshots the latest oracle price. A feed outage is no new
// information; the previous snapshot keeps serving until the price timeout.
func (a *SimpleAsset) Refresh(ctx context.Context, now time.Time) {
	price, err := a.cfg.PriceFeed.Price(ctx, now)
	if err != nil {
		a.log.Debug().Err(err).Msg("Price feed unavailable, keeping saved price")
		return
	}
	low, high := bounds(price, a.cfg.OracleError)
	a.prices.save(low, high, now)
}

func (a *SimpleAsset) Price(now time.Time) (low, high sdkmath.LegacyDec, ok bool) {
	return a.prices.current(now)
}

func (a *SimpleAsset) RewardsPending(ctx context.Context) (types.ERC20, sdkmath.LegacyDec) {
	return rewardsPending(ctx, a.cfg.Rewards, a.log)
}

func (a *SimpleAsset) ClaimRewards(ctx context.Context) (types.ERC20, sdkmath.LegacyDec, error) {
	return claimRewards(ctx, a.cfg.Rewards, a.log)
}

// rewardsPending folds reward source failures into a zero amount.
func rewardsPending(ctx context.Context, rewards RewardSource, log zerolog.Logger) (types.ERC20, sdkmath.LegacyDec) {
	if rewards == nil {
		return types.ERC20{}, sdkmath.LegacyZeroDec()
	}
	pending, err := rewards.Pending(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Reward source unavailable, reporting zero pending")
		return rewards.RewardToken(), sdkmath.LegacyZeroDec()
	}
	return rewards.RewardToken(), pending
}

// claimRewards claims from the reward source. Zero claimed is a valid outcome
// and is logged like any other claim.
func claimRewards(ctx context.Context, rewards RewardSource, log zerolog.Logger) (types.ERC20, sdkmath.LegacyDec, error) {
	if rewards == nil {
		return types.ERC20{}, sdkmath.LegacyZeroDec(), nil
	}
	claimed, err := rewards.Claim(ctx)
	if err != nil {
		return rewards.RewardToken(), sdkmath.LegacyZeroDec(), err
	}
	log.Info().
		Str("rewardToken", rewards.RewardToken().Symbol).
		Str("amount", claimed.String()).
		Msg("Rewards claimed")
	return rewards.RewardToken(), claimed, nil
}
