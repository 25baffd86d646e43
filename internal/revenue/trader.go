/*

This file contains the revenue trader. Each trader owns an account of revenue
tokens, sells everything that is not its tokenToBuy at auction, and forwards
tokenToBuy straight to its sink (Furnace for the RToken trader, StRSR for the
RSR trader).

*/

package revenue

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/trading"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNothingToManage = errors.New("no revenue tokens to manage")
	ErrUnpricedToken   = errors.New("token is unpriced")
)

// Trader auctions revenue tokens into a single tokenToBuy and forwards the
// proceeds to its sink. At most one trade per sell token is open at a time.
type Trader struct {
	log        zerolog.Logger
	name       string
	reg        *registry.Registry
	venue      trading.Venue
	book       *trading.Book
	account    *bank.Account
	tokenToBuy types.ERC20
	sink       Sink
	params     *types.ProtocolParameters
}

// Config wires a Trader. All fields are required.
type Config struct {
	Name       string
	Registry   *registry.Registry
	Venue      trading.Venue
	Account    *bank.Account
	TokenToBuy types.ERC20
	Sink       Sink
	Parameters *types.ProtocolParameters
}

func NewTrader(cfg Config) (*Trader, error) {
	if cfg.Name == "" {
		return nil, errors.New("trader name is required")
	}
	if cfg.Registry == nil || cfg.Venue == nil || cfg.Account == nil || cfg.Sink == nil || cfg.Parameters == nil {
		return nil, fmt.Errorf("trader %s: missing dependency", cfg.Name)
	}
	if cfg.TokenToBuy.IsZero() {
		return nil, fmt.Errorf("trader %s: tokenToBuy is required", cfg.Name)
	}
	return &Trader{
		log:        logger.GetForComponent("revenue_trader").With().Str("trader", cfg.Name).Logger(),
		name:       cfg.Name,
		reg:        cfg.Registry,
		venue:      cfg.Venue,
		book:       trading.NewBook(cfg.Name),
		account:    cfg.Account,
		tokenToBuy: cfg.TokenToBuy,
		sink:       cfg.Sink,
		params:     cfg.Parameters,
	}, nil
}

func (t *Trader) Name() string { return t.name }

func (t *Trader) Account() *bank.Account { return t.account }

func (t *Trader) Book() *trading.Book { return t.book }

// AuctionableERC20s lists held tokens that could be auctioned right now:
// non-tokenToBuy, priced, above the minimum trade volume, and with no open
// trade. A held tokenToBuy balance also makes the trader actionable since
// ManageTokens forwards it.
func (t *Trader) AuctionableERC20s(now time.Time) []common.Address {
	var out []common.Address
	for _, addr := range t.account.Tokens() {
		bal := t.account.Balance(addr)
		if !bal.IsPositive() {
			continue
		}
		if addr == t.tokenToBuy.Address {
			out = append(out, addr)
			continue
		}
		if t.book.Open(addr) != nil {
			continue
		}
		asset, err := t.reg.ToAsset(addr)
		if err != nil {
			continue
		}
		low, _, ok := asset.Price(now)
		if !ok || !low.IsPositive() {
			continue
		}
		if bal.Mul(low).LT(t.params.MinTradeVolume) {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// ManageTokens processes the given held tokens: tokenToBuy balances are
// forwarded to the sink, everything else is put up for auction when it is
// priced, above the dust threshold, and not already trading.
func (t *Trader) ManageTokens(ctx context.Context, erc20s []common.Address, now time.Time) error {
	if len(erc20s) == 0 {
		return ErrNothingToManage
	}

	var errs []error
	for _, addr := range erc20s {
		if addr == t.tokenToBuy.Address {
			if err := t.forwardToSink(addr); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := t.startAuction(ctx, addr, now); err != nil {
			errs = append(errs, fmt.Errorf("auction %s: %w", addr.Hex(), err))
		}
	}
	return errors.Join(errs...)
}

func (t *Trader) forwardToSink(addr common.Address) error {
	bal := t.account.Balance(addr)
	if !bal.IsPositive() {
		return nil
	}
	if err := t.account.Debit(addr, bal); err != nil {
		return err
	}
	if err := t.sink.Absorb(addr, bal); err != nil {
		return err
	}
	t.log.Info().
		Str("erc20", addr.Hex()).
		Str("amount", bal.String()).
		Msg("Revenue forwarded to sink")
	return nil
}

func (t *Trader) startAuction(ctx context.Context, addr common.Address, now time.Time) error {
	if t.book.Open(addr) != nil {
		return trading.ErrTradeOpen
	}
	asset, err := t.reg.ToAsset(addr)
	if err != nil {
		return err
	}
	sellLow, _, ok := asset.Price(now)
	if !ok || !sellLow.IsPositive() {
		return ErrUnpricedToken
	}
	_, buyHigh, ok := t.buyAsset(now)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnpricedToken, t.tokenToBuy.Symbol)
	}

	bal := t.account.Balance(addr)
	if bal.Mul(sellLow).LT(t.params.MinTradeVolume) {
		return nil // dust, leave it for a later cycle
	}
	sellAmount := trading.CapSellAmount(bal, sellLow, asset.MaxTradeVolume())
	minBuy := trading.MinBuyAmount(sellAmount, sellLow, buyHigh, t.params.MaxTradeSlippage)

	auctionID, err := t.venue.InitiateAuction(ctx, asset.ERC20(), t.tokenToBuy, sellAmount, minBuy)
	if err != nil {
		return err
	}
	trade := &types.Trade{
		AuctionID:    auctionID,
		Trader:       t.name,
		Sell:         asset.ERC20(),
		Buy:          t.tokenToBuy,
		SellAmount:   sellAmount,
		MinBuyAmount: minBuy,
		StartedAt:    now,
		EndTime:      now.Add(t.params.AuctionLength),
	}
	if err := t.book.Add(trade); err != nil {
		return err
	}
	if err := t.account.Debit(addr, sellAmount); err != nil {
		t.book.Remove(addr)
		return err
	}
	t.log.Info().
		Uint64("auctionID", auctionID).
		Str("sell", trade.Sell.Symbol).
		Str("sellAmount", sellAmount.String()).
		Str("minBuyAmount", minBuy.String()).
		Msg("Revenue auction started")
	return nil
}

func (t *Trader) buyAsset(now time.Time) (low, high sdkmath.LegacyDec, ok bool) {
	asset, err := t.reg.ToAsset(t.tokenToBuy.Address)
	if err != nil {
		return sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec(), false
	}
	return asset.Price(now)
}

// Settleable lists trades past their end time.
func (t *Trader) Settleable(now time.Time) []*types.Trade {
	return t.book.Settleable(now)
}

// SettleTrade closes a finished auction, forwards the clearing buy amount
// straight to the sink, and returns any unsold remainder to the trader's
// account so a later ManageTokens can auction it again.
func (t *Trader) SettleTrade(ctx context.Context, sell common.Address, now time.Time) error {
	trade, err := t.book.Take(sell, now)
	if err != nil {
		return err
	}
	result, err := t.venue.AuctionResult(ctx, trade.AuctionID)
	if err != nil {
		// Keep the trade settleable so a later poll can retry.
		if addErr := t.book.Add(trade); addErr != nil {
			err = errors.Join(err, addErr)
		}
		t.log.Error().Err(err).Uint64("auctionID", trade.AuctionID).Msg("Failed to fetch auction result")
		return err
	}
	if err := t.sink.Absorb(trade.Buy.Address, result.ClearingBuyAmount); err != nil {
		return err
	}
	unsold := trade.SellAmount.Sub(result.ClearingSellAmount)
	if unsold.IsPositive() {
		if err := t.account.Credit(trade.Sell.Address, unsold); err != nil {
			return err
		}
	}
	t.log.Info().
		Uint64("auctionID", trade.AuctionID).
		Str("clearingSell", result.ClearingSellAmount.String()).
		Str("clearingBuy", result.ClearingBuyAmount.String()).
		Str("unsold", unsold.String()).
		Msg("Revenue auction settled")
	return nil
}
