package trading

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rtoken-labs/rvm/internal/types"
)

var (
	ErrTradeOpen    = errors.New("a trade is already open for this sell token")
	ErrNoOpenTrade  = errors.New("no open trade for this sell token")
	ErrTradeNotOver = errors.New("trade has not reached its end time")
)

// Book tracks one trader's in-flight auctions. At most one open trade may
// exist per sell token; violating this would let two keepers double-sell the
// same collateral.
type Book struct {
	trader string
	open   map[common.Address]*types.Trade
	order  []common.Address
}

// NewBook creates an empty trade book for the named trader.
func NewBook(trader string) *Book {
	return &Book{
		trader: trader,
		open:   make(map[common.Address]*types.Trade),
	}
}

// Open returns the open trade for a sell token, nil if none.
func (b *Book) Open(sell common.Address) *types.Trade {
	return b.open[sell]
}

// Add records a newly started trade, rejecting a second trade for the same
// sell token.
func (b *Book) Add(t *types.Trade) error {
	if t == nil {
		return errors.New("trade cannot be nil")
	}
	addr := t.Sell.Address
	if existing := b.open[addr]; existing != nil {
		return fmt.Errorf("%w: %s selling %s in auction %d",
			ErrTradeOpen, b.trader, t.Sell.Symbol, existing.AuctionID)
	}
	t.Trader = b.trader
	b.open[addr] = t
	b.order = append(b.order, addr)
	return nil
}

// Remove frees the slot for a settled trade.
func (b *Book) Remove(sell common.Address) {
	delete(b.open, sell)
	for i, addr := range b.order {
		if addr == sell {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// OpenTrades returns the in-flight trades in start order.
func (b *Book) OpenTrades() []*types.Trade {
	out := make([]*types.Trade, 0, len(b.order))
	for _, addr := range b.order {
		out = append(out, b.open[addr])
	}
	return out
}

// Settleable returns the trades whose end time has passed, in start order.
func (b *Book) Settleable(now time.Time) []*types.Trade {
	var out []*types.Trade
	for _, addr := range b.order {
		if t := b.open[addr]; t != nil && !t.EndTime.After(now) {
			out = append(out, t)
		}
	}
	return out
}

// Take removes and returns a settleable trade, rejecting settlement of a
// still-running auction.
func (b *Book) Take(sell common.Address, now time.Time) (*types.Trade, error) {
	t := b.open[sell]
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoOpenTrade, sell.Hex())
	}
	if t.EndTime.After(now) {
		return nil, fmt.Errorf("%w: auction %d ends at %s", ErrTradeNotOver, t.AuctionID, t.EndTime)
	}
	b.Remove(sell)
	return t, nil
}
