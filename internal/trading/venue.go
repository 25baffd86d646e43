/*

This file contains the batch-auction venue interface and an in-process venue
used by tests and shadow mode. The real auction house is an external,
trust-minimized market; the protocol only hands it a sized sell order and
later reads back the clearing amounts.

*/

package trading

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownAuction = errors.New("unknown auction id")
	ErrAuctionLive    = errors.New("auction has not ended")
)

// Venue is the external batch-auction market. It accepts a sell order and
// eventually reports a clearing sell/buy amount.
type Venue interface {
	InitiateAuction(ctx context.Context, sell, buy types.ERC20, sellAmount, minBuyAmount sdkmath.LegacyDec) (uint64, error)
	AuctionResult(ctx context.Context, auctionID uint64) (types.TradeResult, error)
}

type memAuction struct {
	sell, buy    types.ERC20
	sellAmount   sdkmath.LegacyDec
	minBuyAmount sdkmath.LegacyDec
	result       *types.TradeResult
}

// MemVenue is a deterministic in-process venue. By default every auction
// clears the full sell amount at exactly the minimum buy amount; tests can
// script a different clearing via SetResult.
type MemVenue struct {
	nextID   uint64
	auctions map[uint64]*memAuction
}

// NewMemVenue creates an empty in-process venue.
func NewMemVenue() *MemVenue {
	return &MemVenue{auctions: make(map[uint64]*memAuction)}
}

func (v *MemVenue) InitiateAuction(_ context.Context, sell, buy types.ERC20, sellAmount, minBuyAmount sdkmath.LegacyDec) (uint64, error) {
	v.nextID++
	v.auctions[v.nextID] = &memAuction{
		sell:         sell,
		buy:          buy,
		sellAmount:   sellAmount,
		minBuyAmount: minBuyAmount,
	}
	return v.nextID, nil
}

func (v *MemVenue) AuctionResult(_ context.Context, auctionID uint64) (types.TradeResult, error) {
	a, ok := v.auctions[auctionID]
	if !ok {
		return types.TradeResult{}, fmt.Errorf("%w: %d", ErrUnknownAuction, auctionID)
	}
	if a.result != nil {
		return *a.result, nil
	}
	return types.TradeResult{
		ClearingSellAmount: a.sellAmount,
		ClearingBuyAmount:  a.minBuyAmount,
	}, nil
}

// SetResult overrides the clearing amounts for one auction.
func (v *MemVenue) SetResult(auctionID uint64, result types.TradeResult) error {
	a, ok := v.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAuction, auctionID)
	}
	a.result = &result
	return nil
}
