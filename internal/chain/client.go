/*

This package contains the on-chain adapters: a Chainlink aggregator price
source, ERC-20 balance snapshots, contract exchange-rate reads, and an
eth_call dry-run executor. Everything speaks through the standard ethclient.

*/

package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Error definitions for zero-tolerance error handling
var (
	ErrEmptyEndpoint = errors.New("rpc endpoint is required")
	ErrEmptyResult   = errors.New("contract call returned no data")
)

// Caller is the subset of the Ethereum RPC the adapters use.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an EVM RPC endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, ErrEmptyEndpoint
	}
	return ethclient.Dial(trimmed)
}

func call(ctx context.Context, caller Caller, to common.Address, data []byte) ([]byte, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}
