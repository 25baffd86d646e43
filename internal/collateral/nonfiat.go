package collateral

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/oracle"
	"github.com/rtoken-labs/rvm/internal/types"
)

// NonFiatCollateral is collateral pegged to a non-fiat target (e.g. a wrapped
// BTC token with target BTC). The primary feed is the peg check (target per
// reference, expected to hold at 1); a second feed prices the target in the
// unit of account.
type NonFiatCollateral struct {
	FiatCollateral
	uoaFeed *oracle.Feed
}

// NewNonFiatCollateral creates non-fiat-pegged collateral. cfg.PriceFeed is
// the peg feed; uoaFeed prices the target unit.
func NewNonFiatCollateral(cfg Config, uoaFeed *oracle.Feed) (*NonFiatCollateral, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	if uoaFeed == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("unit-of-account feed cannot be nil"))
	}
	return &NonFiatCollateral{
		FiatCollateral: *newFiatCollateral(cfg),
		uoaFeed:        uoaFeed,
	}, nil
}

// Refresh needs both feeds for a price snapshot; either one failing is no new
// information. The peg check runs whenever the peg feed answers.
func (c *NonFiatCollateral) Refresh(ctx context.Context, now time.Time) {
	if c.status == types.StatusDisabled {
		return
	}

	peg, pegErr := c.cfg.PriceFeed.Price(ctx, now)
	if pegErr != nil {
		c.log.Debug().Err(pegErr).Msg("Peg feed unavailable, status unchanged")
		c.resolvePending(now)
		return
	}

	uoa, uoaErr := c.uoaFeed.Price(ctx, now)
	if uoaErr == nil {
		low, high := bounds(uoa.Mul(peg), c.cfg.OracleError)
		c.prices.save(low, high, now)
	} else {
		c.log.Debug().Err(uoaErr).Msg("Unit-of-account feed unavailable, keeping saved price")
	}

	c.pegCheck(peg, sdkmath.LegacyOneDec(), now)
	c.resolvePending(now)
}
