package chain

import (
	"context"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rtoken-labs/rvm/internal/utils"
)

// ContractRateSource reads a wrapped token's exchange rate from a view
// function returning uint256, e.g. "exchangeRateStored()" for cTokens or
// "convertToAssets(uint256)" style getters exposed as a no-arg wrapper.
// A revert or bad answer surfaces as an error, which collateral plugins
// treat as a hard default.
type ContractRateSource struct {
	caller   Caller
	contract common.Address
	selector []byte
	decimals uint8
}

func NewContractRateSource(caller Caller, contract common.Address, signature string, decimals uint8) (*ContractRateSource, error) {
	if caller == nil {
		return nil, fmt.Errorf("rate source: caller is required")
	}
	if contract == (common.Address{}) {
		return nil, fmt.Errorf("rate source: contract address is required")
	}
	if signature == "" {
		return nil, fmt.Errorf("rate source: function signature is required")
	}
	return &ContractRateSource{
		caller:   caller,
		contract: contract,
		selector: crypto.Keccak256([]byte(signature))[:4],
		decimals: decimals,
	}, nil
}

// ExchangeRate implements collateral.RateSource.
func (s *ContractRateSource) ExchangeRate(ctx context.Context) (sdkmath.LegacyDec, error) {
	out, err := call(ctx, s.caller, s.contract, s.selector)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("rate call to %s: %w", s.contract.Hex(), err)
	}
	if len(out) < 32 {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("rate call to %s: short return of %d bytes", s.contract.Hex(), len(out))
	}
	raw := new(big.Int).SetBytes(out[:32])
	rate, err := utils.RawToDec(raw, s.decimals)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("convert rate: %w", err)
	}
	return rate, nil
}
