/*

This file contains the tunable protocol parameters governing trade sizing,
slippage tolerance, auction timing, and the revenue split between the RSR and
RToken destinations. Different parameter sets can be persisted and activated
through the state store.

*/

package types

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

var ErrInvalidParameters = errors.New("protocol parameters are invalid")

// ProtocolParameters holds the trading and distribution knobs shared by the
// backing manager and the revenue traders.
type ProtocolParameters struct {
	// MaxTradeSlippage is the fraction of sell value conceded to the venue
	// when computing the worst-case minimum buy amount (e.g. 0.01 for 1%).
	MaxTradeSlippage sdkmath.LegacyDec `json:"max_trade_slippage"`

	// MinTradeVolume is the unit-of-account value below which no auction is
	// started for a holding (dust policy).
	MinTradeVolume sdkmath.LegacyDec `json:"min_trade_volume"`

	// MaxTradeVolume is the fallback unit-of-account cap per auction, applied
	// alongside the per-asset cap.
	MaxTradeVolume sdkmath.LegacyDec `json:"max_trade_volume"`

	// AuctionLength is how long a batch auction runs before it can settle.
	AuctionLength time.Duration `json:"auction_length"`

	// RTokenDist and RSRDist are the integer revenue shares for the Furnace
	// (RToken melting) and StRSR destinations. Either may be zero; not both.
	RTokenDist uint64 `json:"rtoken_dist"`
	RSRDist    uint64 `json:"rsr_dist"`
}

// Validate rejects parameter sets that would break trade sizing invariants.
func (p ProtocolParameters) Validate() error {
	if p.MaxTradeSlippage.IsNil() || p.MaxTradeSlippage.IsNegative() || p.MaxTradeSlippage.GTE(sdkmath.LegacyOneDec()) {
		return errors.Join(ErrInvalidParameters, errors.New("max trade slippage must be in [0, 1)"))
	}
	if p.MinTradeVolume.IsNil() || p.MinTradeVolume.IsNegative() {
		return errors.Join(ErrInvalidParameters, errors.New("min trade volume cannot be negative"))
	}
	if p.MaxTradeVolume.IsNil() || !p.MaxTradeVolume.IsPositive() {
		return errors.Join(ErrInvalidParameters, errors.New("max trade volume must be positive"))
	}
	if p.MaxTradeVolume.LT(p.MinTradeVolume) {
		return errors.Join(ErrInvalidParameters,
			fmt.Errorf("max trade volume %s is below min trade volume %s", p.MaxTradeVolume, p.MinTradeVolume))
	}
	if p.AuctionLength <= 0 {
		return errors.Join(ErrInvalidParameters, errors.New("auction length must be positive"))
	}
	if p.RTokenDist == 0 && p.RSRDist == 0 {
		return errors.Join(ErrInvalidParameters, errors.New("at least one revenue destination must have a nonzero share"))
	}
	return nil
}
