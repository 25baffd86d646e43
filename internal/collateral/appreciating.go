package collateral

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/types"
)

// AppreciatingCollateral is a yield-bearing wrapped token (cToken, aToken,
// eToken and kin) whose exchange rate into the underlying reference unit is
// expected to only ever grow. The reported refPerTok is a ratcheting floor:
// the live rate discounted by the revenue-hiding fraction, never decreasing.
// A rate reading below the floor is an invariant break and hard-defaults the
// collateral immediately, with no IFFY grace. A reverting rate source is
// treated the same way; only price feed outages are non-evidence.
type AppreciatingCollateral struct {
	FiatCollateral
	rate    RateSource
	exposed sdkmath.LegacyDec // ratcheting refPerTok floor, net of revenue hiding
}

// NewAppreciatingCollateral creates wrapped-yield collateral over a rate source.
func NewAppreciatingCollateral(cfg Config, rate RateSource) (*AppreciatingCollateral, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("rate source cannot be nil"))
	}
	return &AppreciatingCollateral{
		FiatCollateral: *newFiatCollateral(cfg),
		rate:           rate,
		exposed:        sdkmath.LegacyZeroDec(),
	}, nil
}

// NewRTokenCollateral creates collateral backed by another RToken. The rate
// source reports basket units per RToken, which appreciates through melting,
// so the mechanics are exactly the appreciating kind's.
func NewRTokenCollateral(cfg Config, buRate RateSource) (*AppreciatingCollateral, error) {
	return NewAppreciatingCollateral(cfg, buRate)
}

func (c *AppreciatingCollateral) RefPerTok() sdkmath.LegacyDec { return c.exposed }

// Refresh reads the exchange rate first: a failed read or a rate below the
// ratchet floor hard-defaults in the same call. Only then is the peg checked,
// with the usual soft-default handling.
func (c *AppreciatingCollateral) Refresh(ctx context.Context, now time.Time) {
	if c.status == types.StatusDisabled {
		return
	}

	actual, err := c.rate.ExchangeRate(ctx)
	if err != nil || actual.IsNil() || !actual.IsPositive() {
		c.disable(now, "exchange rate source failed")
		return
	}
	if actual.LT(c.exposed) {
		c.log.Warn().
			Str("rate", actual.String()).
			Str("floor", c.exposed.String()).
			Msg("Exchange rate fell below the hidden floor")
		c.disable(now, "exchange rate decreased")
		return
	}
	hidden := actual.Mul(sdkmath.LegacyOneDec().Sub(c.cfg.RevenueHiding))
	if hidden.GT(c.exposed) {
		c.exposed = hidden
	}

	price, err := c.cfg.PriceFeed.Price(ctx, now)
	if err != nil {
		c.log.Debug().Err(err).Msg("Price feed unavailable, status unchanged")
		c.resolvePending(now)
		return
	}

	low, high := bounds(price, c.cfg.OracleError)
	c.prices.save(low.Mul(c.exposed), high.Mul(c.exposed), now)
	c.pegCheck(price, sdkmath.LegacyOneDec(), now)
	c.resolvePending(now)
}
