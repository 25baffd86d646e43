package collateral

import (
	"context"
	"errors"
	"time"

	"github.com/rtoken-labs/rvm/internal/types"
)

// SelfReferentialCollateral is collateral whose target unit is the token
// itself (e.g. native wrapped ETH with target ETH). There is no peg to break,
// so it never soft-defaults; the feed only prices it in the unit of account.
type SelfReferentialCollateral struct {
	FiatCollateral
}

// NewSelfReferentialCollateral creates self-referential collateral. The
// soft-default parameters are unused and may be zero.
func NewSelfReferentialCollateral(cfg Config) (*SelfReferentialCollateral, error) {
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	if cfg.TargetName == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("target name cannot be empty"))
	}
	return &SelfReferentialCollateral{FiatCollateral: *newFiatCollateral(cfg)}, nil
}

// Refresh only snapshots the unit-of-account price; status stays SOUND.
func (c *SelfReferentialCollateral) Refresh(ctx context.Context, now time.Time) {
	if c.status == types.StatusDisabled {
		return
	}

	price, err := c.cfg.PriceFeed.Price(ctx, now)
	if err != nil {
		c.log.Debug().Err(err).Msg("Price feed unavailable, keeping saved price")
		return
	}
	low, high := bounds(price, c.cfg.OracleError)
	c.prices.save(low, high, now)
}
