/*

This file contains the shared collateral vocabulary: status enum, target units,
and the ERC20 identity used as the key across the registry, basket, and traders.

*/

package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralStatus is the health of a single collateral plugin.
type CollateralStatus int

const (
	StatusSound CollateralStatus = iota
	StatusIffy
	StatusDisabled
)

func (s CollateralStatus) String() string {
	switch s {
	case StatusSound:
		return "SOUND"
	case StatusIffy:
		return "IFFY"
	case StatusDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// WorstStatus returns the more severe of two statuses.
func WorstStatus(a, b CollateralStatus) CollateralStatus {
	if a > b {
		return a
	}
	return b
}

// TargetName is the target unit a collateral is pegged to (e.g. "USD", "ETH", "BTC").
type TargetName string

const (
	TargetUSD TargetName = "USD"
	TargetETH TargetName = "ETH"
	TargetBTC TargetName = "BTC"
)

// NeverDefault is the whenDefault sentinel for collateral that has no pending default.
var NeverDefault = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// ERC20 identifies a token. Address is the canonical key; symbol and decimals
// are carried for display and chain-boundary conversion.
type ERC20 struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// IsZero reports whether the token identity is unset.
func (e ERC20) IsZero() bool {
	return e.Address == (common.Address{})
}
