/*

This file contains the ABI surface the keeper schedules against. Every action
the keeper emits is a (target, calldata) pair encoded with the standard
4-byte selector convention so it can be submitted as-is or dry-run against a
deployed facade.

*/

package keeper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const keeperABIJSON = `[
	{"type":"function","name":"refreshBasket","inputs":[]},
	{"type":"function","name":"claimRewards","inputs":[]},
	{"type":"function","name":"rebalance","inputs":[{"name":"kind","type":"uint8"}]},
	{"type":"function","name":"settleTrade","inputs":[{"name":"sell","type":"address"}]},
	{"type":"function","name":"manageTokens","inputs":[{"name":"erc20s","type":"address[]"}]}
]`

var keeperABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(keeperABIJSON))
	if err != nil {
		panic(fmt.Sprintf("keeper ABI is malformed: %v", err))
	}
	keeperABI = parsed
}

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownSelector = errors.New("unknown calldata selector")
	ErrShortCalldata   = errors.New("calldata shorter than a selector")
)

func EncodeRefreshBasket() []byte {
	data, _ := keeperABI.Pack("refreshBasket")
	return data
}

func EncodeClaimRewards() []byte {
	data, _ := keeperABI.Pack("claimRewards")
	return data
}

func EncodeRebalance(kind uint8) []byte {
	data, _ := keeperABI.Pack("rebalance", kind)
	return data
}

func EncodeSettleTrade(sell common.Address) []byte {
	data, _ := keeperABI.Pack("settleTrade", sell)
	return data
}

func EncodeManageTokens(erc20s []common.Address) []byte {
	data, _ := keeperABI.Pack("manageTokens", erc20s)
	return data
}

// DecodeCall resolves calldata back to its method name and unpacked arguments.
func DecodeCall(calldata []byte) (string, []interface{}, error) {
	if len(calldata) < 4 {
		return "", nil, ErrShortCalldata
	}
	method, err := keeperABI.MethodById(calldata[:4])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %x", ErrUnknownSelector, calldata[:4])
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return "", nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return method.Name, args, nil
}
