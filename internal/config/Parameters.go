/*

This file contains the default protocol parameters. These values are used if
no active parameters are found in the database during initialization.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/types"
)

// DefaultParametersName is the config name the keeper loads at startup.
const DefaultParametersName = "default"

// DefaultParametersVersion is bumped whenever the defaults below change.
const DefaultParametersVersion = 1

// DefaultProtocolParameters provides a conservative baseline.
func DefaultProtocolParameters() types.ProtocolParameters {
	return types.ProtocolParameters{
		// 1% worst-case slippage tolerance on auctions. Auctions clear at or
		// above minBuyAmount, so this bounds the value leaked per trade.
		MaxTradeSlippage: sdkmath.LegacyNewDecWithPrec(1, 2),

		// Skip trades below $100 of unit-of-account. Dust auctions cost more
		// in keeper attention than they recover.
		MinTradeVolume: sdkmath.LegacyNewDec(100),

		// Cap any single auction at $1M to limit market impact.
		MaxTradeVolume: sdkmath.LegacyNewDec(1_000_000),

		// Batch auctions run for 30 minutes before settlement.
		AuctionLength: 30 * time.Minute,

		// 60% of revenue to RToken holders via the Furnace, 40% to stakers.
		RTokenDist: 60,
		RSRDist:    40,
	}
}
