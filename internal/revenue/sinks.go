package revenue

import (
	"github.com/ethereum/go-ethereum/common"
	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/rtoken"
)

// Sink receives a trader's finished revenue in its tokenToBuy.
type Sink interface {
	Absorb(erc20 common.Address, amount sdkmath.LegacyDec) error
}

// FurnaceSink melts RToken revenue, appreciating the remaining supply.
type FurnaceSink struct {
	rtok *rtoken.RToken
}

func NewFurnaceSink(rtok *rtoken.RToken) *FurnaceSink {
	return &FurnaceSink{rtok: rtok}
}

func (s *FurnaceSink) Absorb(_ common.Address, amount sdkmath.LegacyDec) error {
	return s.rtok.Melt(amount)
}

// StRSRSink credits RSR revenue to the staking pool account.
type StRSRSink struct {
	pool *bank.Account
}

func NewStRSRSink(pool *bank.Account) *StRSRSink {
	return &StRSRSink{pool: pool}
}

func (s *StRSRSink) Absorb(erc20 common.Address, amount sdkmath.LegacyDec) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	return s.pool.Credit(erc20, amount)
}
