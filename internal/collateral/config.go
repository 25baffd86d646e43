package collateral

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/oracle"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig = errors.New("collateral configuration is invalid")
)

// Config holds the immutable parameters of an asset or collateral plugin.
// All oracle and timing parameters are fixed at construction; only Refresh
// mutates plugin state afterwards.
type Config struct {
	ERC20      types.ERC20
	TargetName types.TargetName

	// PriceFeed is the primary feed. For pegged kinds it reports the target
	// unit price of the reference unit and doubles as the peg check input.
	PriceFeed *oracle.Feed

	// OracleError widens the feed answer into [price/(1+err) .. price*(1+err)]
	// style low/high bounds. Fraction in [0, 1).
	OracleError sdkmath.LegacyDec

	// MaxTradeVolume is the per-auction unit-of-account cap.
	MaxTradeVolume sdkmath.LegacyDec

	// PriceTimeout is how long a saved price remains usable after the last
	// good oracle read before the asset becomes unpriced.
	PriceTimeout time.Duration

	// DefaultThreshold is the tolerated relative peg deviation before the
	// collateral turns IFFY. Fraction in (0, 1). Unused by kinds without a peg.
	DefaultThreshold sdkmath.LegacyDec

	// DelayUntilDefault is the grace window between IFFY and DISABLED.
	DelayUntilDefault time.Duration

	// RevenueHiding is the conservative discount applied to the reported
	// exchange rate so a single favorable misread cannot inflate basket
	// value. Fraction in [0, 1). Only appreciating kinds use it.
	RevenueHiding sdkmath.LegacyDec

	// Rewards is the optional claimable reward stream.
	Rewards RewardSource
}

// validate checks the fields every kind requires. requirePeg additionally
// checks the soft-default parameters used by pegged kinds.
func (c Config) validate(requirePeg bool) error {
	if c.ERC20.IsZero() {
		return errors.Join(ErrInvalidConfig, errors.New("erc20 address cannot be zero"))
	}
	if c.ERC20.Decimals > 18 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("erc20 decimals %d exceed 18", c.ERC20.Decimals))
	}
	if c.PriceFeed == nil {
		return errors.Join(ErrInvalidConfig, errors.New("price feed cannot be nil"))
	}
	if c.OracleError.IsNil() || c.OracleError.IsNegative() || c.OracleError.GTE(sdkmath.LegacyOneDec()) {
		return errors.Join(ErrInvalidConfig, errors.New("oracle error must be in [0, 1)"))
	}
	if c.MaxTradeVolume.IsNil() || !c.MaxTradeVolume.IsPositive() {
		return errors.Join(ErrInvalidConfig, errors.New("max trade volume must be positive"))
	}
	if c.PriceTimeout <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("price timeout must be positive"))
	}
	if c.RevenueHiding.IsNil() || c.RevenueHiding.IsNegative() || c.RevenueHiding.GTE(sdkmath.LegacyOneDec()) {
		return errors.Join(ErrInvalidConfig, errors.New("revenue hiding must be in [0, 1)"))
	}
	if requirePeg {
		if c.TargetName == "" {
			return errors.Join(ErrInvalidConfig, errors.New("target name cannot be empty"))
		}
		if c.DefaultThreshold.IsNil() || !c.DefaultThreshold.IsPositive() || c.DefaultThreshold.GTE(sdkmath.LegacyOneDec()) {
			return errors.Join(ErrInvalidConfig, errors.New("default threshold must be in (0, 1)"))
		}
		if c.DelayUntilDefault <= 0 {
			return errors.Join(ErrInvalidConfig, errors.New("delay until default must be positive"))
		}
	}
	return nil
}

// priceBuffer is the last good low/high price snapshot. While the snapshot is
// younger than the price timeout the asset reports it frozen; beyond that the
// asset is unpriced.
type priceBuffer struct {
	savedLow  sdkmath.LegacyDec
	savedHigh sdkmath.LegacyDec
	savedAt   time.Time
	timeout   time.Duration
}

func newPriceBuffer(timeout time.Duration) priceBuffer {
	return priceBuffer{
		savedLow:  sdkmath.LegacyZeroDec(),
		savedHigh: sdkmath.LegacyZeroDec(),
		timeout:   timeout,
	}
}

func (p *priceBuffer) save(low, high sdkmath.LegacyDec, now time.Time) {
	p.savedLow = low
	p.savedHigh = high
	p.savedAt = now
}

func (p *priceBuffer) current(now time.Time) (low, high sdkmath.LegacyDec, ok bool) {
	if p.savedAt.IsZero() || now.Sub(p.savedAt) > p.timeout {
		return sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec(), false
	}
	return p.savedLow, p.savedHigh, true
}

// bounds widens a point price into low/high using the oracle error fraction.
func bounds(price, oracleError sdkmath.LegacyDec) (low, high sdkmath.LegacyDec) {
	delta := price.Mul(oracleError)
	return price.Sub(delta), price.Add(delta)
}
