package collateral

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
)

// FiatCollateral is collateral pegged 1:1 to a fiat target unit (e.g. USDC to
// USD). Its reference unit is the token itself, so refPerTok is constant 1 and
// only the peg can default, softly.
//
// Status machine:
//
//	SOUND    --(peg deviates beyond threshold)------------> IFFY
//	IFFY     --(deviation persists past delayUntilDefault)-> DISABLED
//	IFFY     --(deviation clears before the delay)---------> SOUND
//	DISABLED is terminal.
//
// A feed outage during Refresh is treated as no new information: failure to
// observe is not evidence of default.
type FiatCollateral struct {
	cfg         Config
	log         zerolog.Logger
	status      types.CollateralStatus
	whenDefault time.Time
	prices      priceBuffer
}

// NewFiatCollateral creates fiat-pegged collateral from its configuration.
func NewFiatCollateral(cfg Config) (*FiatCollateral, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	return newFiatCollateral(cfg), nil
}

func newFiatCollateral(cfg Config) *FiatCollateral {
	return &FiatCollateral{
		cfg: cfg,
		log: logger.GetForComponent("collateral").With().
			Str("erc20", cfg.ERC20.Symbol).
			Str("target", string(cfg.TargetName)).
			Logger(),
		status:      types.StatusSound,
		whenDefault: types.NeverDefault,
		prices:      newPriceBuffer(cfg.PriceTimeout),
	}
}

func (c *FiatCollateral) ERC20() types.ERC20 { return c.cfg.ERC20 }

func (c *FiatCollateral) TargetName() types.TargetName { return c.cfg.TargetName }

func (c *FiatCollateral) MaxTradeVolume() sdkmath.LegacyDec { return c.cfg.MaxTradeVolume }

func (c *FiatCollateral) IsCollateral() bool { return true }

func (c *FiatCollateral) Status() types.CollateralStatus { return c.status }

func (c *FiatCollateral) WhenDefault() time.Time { return c.whenDefault }

func (c *FiatCollateral) RefPerTok() sdkmath.LegacyDec { return sdkmath.LegacyOneDec() }

func (c *FiatCollateral) TargetPerRef() sdkmath.LegacyDec { return sdkmath.LegacyOneDec() }

func (c *FiatCollateral) Price(now time.Time) (low, high sdkmath.LegacyDec, ok bool) {
	return c.prices.current(now)
}

func (c *FiatCollateral) RewardsPending(ctx context.Context) (types.ERC20, sdkmath.LegacyDec) {
	return rewardsPending(ctx, c.cfg.Rewards, c.log)
}

func (c *FiatCollateral) ClaimRewards(ctx context.Context) (types.ERC20, sdkmath.LegacyDec, error) {
	return claimRewards(ctx, c.cfg.Rewards, c.log)
}

// Refresh pulls the latest peg price and advances the status machine.
func (c *FiatCollateral) Refresh(ctx context.Context, now time.Time) {
	if c.status == types.StatusDisabled {
		return
	}

	price, err := c.cfg.PriceFeed.Price(ctx, now)
	if err != nil {
		c.log.Debug().Err(err).Msg("Price feed unavailable, status unchanged")
		c.resolvePending(now)
		return
	}

	low, high := bounds(price, c.cfg.OracleError)
	c.prices.save(low, high, now)
	c.pegCheck(price, sdkmath.LegacyOneDec(), now)
	c.resolvePending(now)
}

// pegCheck compares the observed target price against the peg and moves
// between SOUND and IFFY.
func (c *FiatCollateral) pegCheck(observed, peg sdkmath.LegacyDec, now time.Time) {
	delta := peg.Mul(c.cfg.DefaultThreshold)
	if observed.LT(peg.Sub(delta)) || observed.GT(peg.Add(delta)) {
		c.markIffy(observed, now)
	} else {
		c.markSound()
	}
}

func (c *FiatCollateral) markIffy(observed sdkmath.LegacyDec, now time.Time) {
	if c.status != types.StatusSound {
		return
	}
	c.status = types.StatusIffy
	c.whenDefault = now.Add(c.cfg.DelayUntilDefault)
	c.log.Warn().
		Str("observed", observed.String()).
		Time("whenDefault", c.whenDefault).
		Msg("Peg deviation detected, collateral is IFFY")
}

func (c *FiatCollateral) markSound() {
	if c.status != types.StatusIffy {
		return
	}
	c.status = types.StatusSound
	c.whenDefault = types.NeverDefault
	c.log.Info().Msg("Peg deviation cleared, collateral is SOUND again")
}

// resolvePending disables collateral whose IFFY grace window has elapsed.
func (c *FiatCollateral) resolvePending(now time.Time) {
	if c.status == types.StatusIffy && !c.whenDefault.After(now) {
		c.disable(now, "grace window elapsed without recovery")
	}
}

// disable is the terminal transition, used by both the soft-default expiry and
// the hard-default paths of the embedding kinds.
func (c *FiatCollateral) disable(now time.Time, reason string) {
	c.status = types.StatusDisabled
	c.whenDefault = now
	c.log.Warn().Str("reason", reason).Msg("Collateral DISABLED")
}
