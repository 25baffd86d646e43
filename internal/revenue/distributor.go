package revenue

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDistribution = errors.New("invalid revenue distribution")
)

// Distribution holds the revenue split weights. RTokenDist routes through the
// RToken trader to the Furnace, RSRDist through the RSR trader to StRSR.
// Either weight may be zero, not both.
type Distribution struct {
	RTokenDist uint64
	RSRDist    uint64
}

func (d Distribution) Validate() error {
	if d.RTokenDist == 0 && d.RSRDist == 0 {
		return fmt.Errorf("%w: both shares are zero", ErrInvalidDistribution)
	}
	return nil
}

// Distributor splits revenue amounts between the two trader destinations.
type Distributor struct {
	dist Distribution
}

func NewDistributor(dist Distribution) (*Distributor, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{dist: dist}, nil
}

func (d *Distributor) Distribution() Distribution { return d.dist }

// SetDistribution replaces the split weights after validation.
func (d *Distributor) SetDistribution(dist Distribution) error {
	if err := dist.Validate(); err != nil {
		return err
	}
	d.dist = dist
	return nil
}

// Split divides amount into the RSR and RToken portions. The RSR portion is
// truncated so the two parts always sum exactly to amount; a zero weight
// yields a zero portion without error.
func (d *Distributor) Split(amount sdkmath.LegacyDec) (toRSR, toRToken sdkmath.LegacyDec) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec()
	}
	total := d.dist.RTokenDist + d.dist.RSRDist
	toRSR = amount.MulInt64(int64(d.dist.RSRDist)).QuoInt64(int64(total))
	toRToken = amount.Sub(toRSR)
	return toRSR, toRToken
}
