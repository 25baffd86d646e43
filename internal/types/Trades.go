/*

This file contains trade types shared by the backing manager and the revenue
traders. Amounts are whole-token quantities as 18-decimal fixed point; the
chain boundary converts to raw integer amounts via internal/utils.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// TradeKind selects the auction mechanism used for a trade.
type TradeKind uint8

const (
	TradeKindBatchAuction TradeKind = iota
	TradeKindDutchAuction
)

func (k TradeKind) String() string {
	switch k {
	case TradeKindBatchAuction:
		return "BATCH_AUCTION"
	case TradeKindDutchAuction:
		return "DUTCH_AUCTION"
	default:
		return "UNKNOWN"
	}
}

// TradeRequest is a fully sized sell order, ready to hand to the auction venue.
type TradeRequest struct {
	Sell         ERC20             `json:"sell"`
	Buy          ERC20             `json:"buy"`
	SellAmount   sdkmath.LegacyDec `json:"sell_amount"`
	MinBuyAmount sdkmath.LegacyDec `json:"min_buy_amount"`
}

// Trade is an in-flight auction. Exactly one open trade may exist per
// (trader, sell token) pair at any time.
type Trade struct {
	AuctionID    uint64            `json:"auction_id"`
	Trader       string            `json:"trader"`
	Sell         ERC20             `json:"sell"`
	Buy          ERC20             `json:"buy"`
	SellAmount   sdkmath.LegacyDec `json:"sell_amount"`
	MinBuyAmount sdkmath.LegacyDec `json:"min_buy_amount"`
	StartedAt    time.Time         `json:"started_at"`
	EndTime      time.Time         `json:"end_time"`
}

// TradeResult is the clearing report from the auction venue, valid only after
// the trade's EndTime has passed.
type TradeResult struct {
	ClearingSellAmount sdkmath.LegacyDec `json:"clearing_sell_amount"`
	ClearingBuyAmount  sdkmath.LegacyDec `json:"clearing_buy_amount"`
}

// TraderTrades is the facade response enumerating what a trader could do next.
type TraderTrades struct {
	TradesToBeStarted []TradeRequest `json:"trades_to_be_started"`
	TradesToBeSettled []Trade        `json:"trades_to_be_settled"`
}
