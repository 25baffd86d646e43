/*

This file contains the asset and collateral plugin interfaces. Every token the
protocol touches is registered as an Asset; basket-eligible tokens additionally
implement Collateral with the SOUND/IFFY/DISABLED status machine. The concrete
kinds are a closed set: fiat-pegged, appreciating (yield-bearing wrapped
tokens), non-fiat-pegged, self-referential, and RToken-as-collateral.

*/

package collateral

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/types"
)

// Asset is any registered token: priced, capped for trading, and optionally
// carrying a claimable reward stream.
type Asset interface {
	// ERC20 returns the token identity.
	ERC20() types.ERC20

	// Price returns the low/high unit-of-account price bounds. ok is false
	// when the asset is currently unpriced (no good oracle data within the
	// price timeout); callers must not trade an unpriced asset.
	Price(now time.Time) (low, high sdkmath.LegacyDec, ok bool)

	// MaxTradeVolume is the per-auction unit-of-account cap for this asset.
	MaxTradeVolume() sdkmath.LegacyDec

	// Refresh pulls the latest oracle data. It never returns an error: source
	// failures are folded into status and saved-price state. Idempotent; safe
	// to call any number of times at the same instant.
	Refresh(ctx context.Context, now time.Time)

	// RewardsPending reports the claimable reward amount, zero when the asset
	// has no reward stream or the source is unavailable.
	RewardsPending(ctx context.Context) (types.ERC20, sdkmath.LegacyDec)

	// ClaimRewards pulls reward tokens. Zero is a valid claimed amount; "no
	// rewards available" is never an error.
	ClaimRewards(ctx context.Context) (types.ERC20, sdkmath.LegacyDec, error)

	// IsCollateral reports whether the asset also implements Collateral.
	IsCollateral() bool
}

// Collateral is a basket-eligible asset with an exchange rate into its
// reference unit and default detection.
type Collateral interface {
	Asset

	// TargetName is the target unit tag this collateral represents.
	TargetName() types.TargetName

	// Status returns the health after the most recent Refresh.
	Status() types.CollateralStatus

	// WhenDefault is the pending default deadline, types.NeverDefault if none.
	WhenDefault() time.Time

	// RefPerTok is the exchange rate from token units to reference units.
	// Non-decreasing except across a hard default.
	RefPerTok() sdkmath.LegacyDec

	// TargetPerRef is the target units per reference unit.
	TargetPerRef() sdkmath.LegacyDec
}

// RateSource reports a wrapped token's exchange rate into its underlying
// reference unit. A failing or reverting source is treated as a hard default
// by the appreciating collateral kinds.
type RateSource interface {
	ExchangeRate(ctx context.Context) (sdkmath.LegacyDec, error)
}

// RewardSource is a yield source's claimable reward stream.
type RewardSource interface {
	RewardToken() types.ERC20
	Pending(ctx context.Context) (sdkmath.LegacyDec, error)
	Claim(ctx context.Context) (sdkmath.LegacyDec, error)
}
