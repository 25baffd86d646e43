/*

This file contains the backing manager: reward claiming, the single-trade
recollateralization step, settlement, and forwarding of excess backing to the
revenue traders.

*/

package backing

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/basket"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/revenue"
	"github.com/rtoken-labs/rvm/internal/rtoken"
	"github.com/rtoken-labs/rvm/internal/trading"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrBasketDisabled        = errors.New("basket is disabled")
	ErrAlreadyCollateralized = errors.New("already collateralized")
	ErrNoTradeAvailable      = errors.New("no viable trade")
	ErrTradeKindUnsupported  = errors.New("unsupported trade kind")
	ErrNotCollateralized     = errors.New("backing is not fully collateralized")
)

// Manager holds the backing account and drives recollateralization. It starts
// at most one trade per call to Rebalance, holding at most one open trade at
// a time.
type Manager struct {
	log          zerolog.Logger
	reg          *registry.Registry
	basket       *basket.Handler
	venue        trading.Venue
	book         *trading.Book
	account      *bank.Account
	rtok         *rtoken.RToken
	dist         *revenue.Distributor
	rsrTrader    *revenue.Trader
	rtokenTrader *revenue.Trader
	params       *types.ProtocolParameters
}

// Config wires a Manager. All fields are required.
type Config struct {
	Registry     *registry.Registry
	Basket       *basket.Handler
	Venue        trading.Venue
	Account      *bank.Account
	RToken       *rtoken.RToken
	Distributor  *revenue.Distributor
	RSRTrader    *revenue.Trader
	RTokenTrader *revenue.Trader
	Parameters   *types.ProtocolParameters
}

func New(cfg Config) (*Manager, error) {
	if cfg.Registry == nil || cfg.Basket == nil || cfg.Venue == nil || cfg.Account == nil ||
		cfg.RToken == nil || cfg.Distributor == nil || cfg.RSRTrader == nil ||
		cfg.RTokenTrader == nil || cfg.Parameters == nil {
		return nil, errors.New("backing manager: missing dependency")
	}
	return &Manager{
		log:          logger.GetForComponent("backing_manager"),
		reg:          cfg.Registry,
		basket:       cfg.Basket,
		venue:        cfg.Venue,
		book:         trading.NewBook("backingManager"),
		account:      cfg.Account,
		rtok:         cfg.RToken,
		dist:         cfg.Distributor,
		rsrTrader:    cfg.RSRTrader,
		rtokenTrader: cfg.RTokenTrader,
		params:       cfg.Parameters,
	}, nil
}

func (m *Manager) Account() *bank.Account { return m.account }

func (m *Manager) Book() *trading.Book { return m.book }

// BasketsNeeded is the basket units the RToken supply is entitled to.
func (m *Manager) BasketsNeeded() sdkmath.LegacyDec { return m.rtok.BasketsNeeded() }

// FullyCollateralized reports whether the backing account covers basketsNeeded
// of the current basket.
func (m *Manager) FullyCollateralized() bool {
	return m.basket.FullyCollateralized(m.account, m.rtok.BasketsNeeded())
}

// HasPendingRewards reports whether any registered asset has a claimable
// reward stream right now.
func (m *Manager) HasPendingRewards(ctx context.Context) bool {
	for _, asset := range m.reg.Assets() {
		if _, amount := asset.RewardsPending(ctx); amount.IsPositive() {
			return true
		}
	}
	return false
}

// ClaimRewards pulls reward tokens from every registered asset into the
// backing account. Individual claim failures are aggregated, not fatal.
func (m *Manager) ClaimRewards(ctx context.Context) error {
	var errs []error
	for _, asset := range m.reg.Assets() {
		reward, amount, err := asset.ClaimRewards(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", asset.ERC20().Symbol, err))
			continue
		}
		if !amount.IsPositive() {
			continue
		}
		if err := m.account.Credit(reward.Address, amount); err != nil {
			errs = append(errs, err)
			continue
		}
		m.log.Info().
			Str("source", asset.ERC20().Symbol).
			Str("reward", reward.Symbol).
			Str("amount", amount.String()).
			Msg("Rewards claimed")
	}
	return errors.Join(errs...)
}

// NextTrade computes the single best recollateralization trade: sell the
// largest surplus (valued at its low price) to buy the largest deficit
// (valued at its high price). Unpriced tokens and dust below the minimum
// trade volume are skipped.
func (m *Manager) NextTrade(now time.Time) (types.TradeRequest, error) {
	if m.basket.Status() == types.StatusDisabled {
		return types.TradeRequest{}, ErrBasketDisabled
	}
	basketsNeeded := m.rtok.BasketsNeeded()
	basketsHeld := m.basket.BasketsHeldBy(m.account)
	if basketsHeld.GTE(basketsNeeded) {
		return types.TradeRequest{}, ErrAlreadyCollateralized
	}

	surplus, surplusValue, sellLow := m.largestSurplus(basketsNeeded, now)
	deficit, deficitAmount, buyHigh := m.largestDeficit(basketsNeeded, now)
	if surplus == (common.Address{}) || deficit == (common.Address{}) {
		return types.TradeRequest{}, ErrNoTradeAvailable
	}
	if surplusValue.LT(m.params.MinTradeVolume) {
		return types.TradeRequest{}, fmt.Errorf("%w: surplus %s below minimum trade volume", ErrNoTradeAvailable, surplusValue)
	}

	sellAsset, err := m.reg.ToAsset(surplus)
	if err != nil {
		return types.TradeRequest{}, err
	}
	buyAsset, err := m.reg.ToAsset(deficit)
	if err != nil {
		return types.TradeRequest{}, err
	}

	sellAmount := m.surplusAmount(surplus, basketsNeeded)
	sellAmount = trading.CapSellAmount(sellAmount, sellLow, sellAsset.MaxTradeVolume())

	// Do not sell more than the deficit is worth at worst-case prices.
	deficitValue := deficitAmount.Mul(buyHigh)
	if sellAmount.Mul(sellLow).GT(deficitValue) && sellLow.IsPositive() {
		sellAmount = deficitValue.Quo(sellLow)
	}

	minBuy := trading.MinBuyAmount(sellAmount, sellLow, buyHigh, m.params.MaxTradeSlippage)
	if !minBuy.IsPositive() {
		return types.TradeRequest{}, ErrNoTradeAvailable
	}
	return types.TradeRequest{
		Sell:         sellAsset.ERC20(),
		Buy:          buyAsset.ERC20(),
		SellAmount:   sellAmount,
		MinBuyAmount: minBuy,
	}, nil
}

// largestSurplus finds the held token with the greatest value above what the
// basket needs, valued at the low price. RSR held by the backing account also
// counts as sellable surplus.
func (m *Manager) largestSurplus(basketsNeeded sdkmath.LegacyDec, now time.Time) (best common.Address, bestValue, bestLow sdkmath.LegacyDec) {
	bestValue = sdkmath.LegacyZeroDec()
	bestLow = sdkmath.LegacyZeroDec()
	for _, addr := range m.account.Tokens() {
		if m.book.Open(addr) != nil {
			continue
		}
		amount := m.surplusAmount(addr, basketsNeeded)
		if !amount.IsPositive() {
			continue
		}
		asset, err := m.reg.ToAsset(addr)
		if err != nil {
			continue
		}
		low, _, ok := asset.Price(now)
		if !ok || !low.IsPositive() {
			continue
		}
		if value := amount.Mul(low); value.GT(bestValue) {
			best, bestValue, bestLow = addr, value, low
		}
	}
	return best, bestValue, bestLow
}

// surplusAmount is the held balance above basket requirements for addr.
func (m *Manager) surplusAmount(addr common.Address, basketsNeeded sdkmath.LegacyDec) sdkmath.LegacyDec {
	needed := m.basket.Quantity(addr).Mul(basketsNeeded)
	surplus := m.account.Balance(addr).Sub(needed)
	if surplus.IsNegative() {
		return sdkmath.LegacyZeroDec()
	}
	return surplus
}

// largestDeficit finds the basket member the account is shortest of, measured
// in unit-of-account at the high price.
func (m *Manager) largestDeficit(basketsNeeded sdkmath.LegacyDec, now time.Time) (best common.Address, bestAmount, bestHigh sdkmath.LegacyDec) {
	bestAmount = sdkmath.LegacyZeroDec()
	bestHigh = sdkmath.LegacyZeroDec()
	bestValue := sdkmath.LegacyZeroDec()
	for _, addr := range m.basket.ERC20s() {
		needed := m.basket.Quantity(addr).Mul(basketsNeeded)
		deficit := needed.Sub(m.account.Balance(addr))
		if !deficit.IsPositive() {
			continue
		}
		asset, err := m.reg.ToAsset(addr)
		if err != nil {
			continue
		}
		_, high, ok := asset.Price(now)
		if !ok || !high.IsPositive() {
			continue
		}
		if value := deficit.Mul(high); value.GT(bestValue) {
			best, bestAmount, bestHigh, bestValue = addr, deficit, high, value
		}
	}
	return best, bestAmount, bestHigh
}

// Rebalance starts the next recollateralization auction. Only batch auctions
// are supported; at most one backing trade is open at a time.
func (m *Manager) Rebalance(ctx context.Context, kind types.TradeKind, now time.Time) error {
	if kind != types.TradeKindBatchAuction {
		return fmt.Errorf("%w: %d", ErrTradeKindUnsupported, kind)
	}
	if len(m.book.OpenTrades()) > 0 {
		return trading.ErrTradeOpen
	}

	req, err := m.NextTrade(now)
	if err != nil {
		return err
	}
	auctionID, err := m.venue.InitiateAuction(ctx, req.Sell, req.Buy, req.SellAmount, req.MinBuyAmount)
	if err != nil {
		return err
	}
	trade := &types.Trade{
		AuctionID:    auctionID,
		Trader:       "backingManager",
		Sell:         req.Sell,
		Buy:          req.Buy,
		SellAmount:   req.SellAmount,
		MinBuyAmount: req.MinBuyAmount,
		StartedAt:    now,
		EndTime:      now.Add(m.params.AuctionLength),
	}
	if err := m.book.Add(trade); err != nil {
		return err
	}
	if err := m.account.Debit(req.Sell.Address, req.SellAmount); err != nil {
		m.book.Remove(req.Sell.Address)
		return err
	}
	m.log.Info().
		Uint64("auctionID", auctionID).
		Str("sell", req.Sell.Symbol).
		Str("buy", req.Buy.Symbol).
		Str("sellAmount", req.SellAmount.String()).
		Str("minBuyAmount", req.MinBuyAmount.String()).
		Msg("Recollateralization auction started")
	return nil
}

// Settleable lists backing trades past their end time.
func (m *Manager) Settleable(now time.Time) []*types.Trade {
	return m.book.Settleable(now)
}

// SettleTrade closes a finished backing auction, crediting the clearing buy
// amount and any unsold remainder back into the backing account.
func (m *Manager) SettleTrade(ctx context.Context, sell common.Address, now time.Time) error {
	trade, err := m.book.Take(sell, now)
	if err != nil {
		return err
	}
	result, err := m.venue.AuctionResult(ctx, trade.AuctionID)
	if err != nil {
		// Keep the trade settleable so a later poll can retry.
		if addErr := m.book.Add(trade); addErr != nil {
			err = errors.Join(err, addErr)
		}
		m.log.Error().Err(err).Uint64("auctionID", trade.AuctionID).Msg("Failed to fetch auction result")
		return err
	}
	if err := m.account.Credit(trade.Buy.Address, result.ClearingBuyAmount); err != nil {
		return err
	}
	unsold := trade.SellAmount.Sub(result.ClearingSellAmount)
	if unsold.IsPositive() {
		if err := m.account.Credit(trade.Sell.Address, unsold); err != nil {
			return err
		}
	}
	m.log.Info().
		Uint64("auctionID", trade.AuctionID).
		Str("sell", trade.Sell.Symbol).
		Str("clearingBuy", result.ClearingBuyAmount.String()).
		Str("unsold", unsold.String()).
		Msg("Recollateralization auction settled")
	return nil
}

// HasForwardableRevenue reports whether ForwardRevenue would move anything:
// the backing is fully collateralized and some held token exceeds what the
// basket needs.
func (m *Manager) HasForwardableRevenue() bool {
	if m.basket.Status() == types.StatusDisabled || !m.FullyCollateralized() {
		return false
	}
	basketsNeeded := m.rtok.BasketsNeeded()
	for _, addr := range m.account.Tokens() {
		if m.book.Open(addr) != nil {
			continue
		}
		if m.surplusAmount(addr, basketsNeeded).IsPositive() {
			return true
		}
	}
	return false
}

// ForwardRevenue moves backing above what basketsNeeded requires into the
// revenue trader accounts per the distribution split. A zero share for either
// destination is skipped without error. Only runs while fully collateralized.
func (m *Manager) ForwardRevenue(now time.Time) error {
	if m.basket.Status() == types.StatusDisabled {
		return ErrBasketDisabled
	}
	if !m.FullyCollateralized() {
		return ErrNotCollateralized
	}

	basketsNeeded := m.rtok.BasketsNeeded()
	var errs []error
	for _, addr := range m.account.Tokens() {
		if m.book.Open(addr) != nil {
			continue
		}
		surplus := m.surplusAmount(addr, basketsNeeded)
		if !surplus.IsPositive() {
			continue
		}
		toRSR, toRToken := m.dist.Split(surplus)
		if err := m.forward(addr, m.rsrTrader, toRSR); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.forward(addr, m.rtokenTrader, toRToken); err != nil {
			errs = append(errs, err)
			continue
		}
		m.log.Info().
			Str("erc20", addr.Hex()).
			Str("toRSR", toRSR.String()).
			Str("toRToken", toRToken.String()).
			Msg("Revenue forwarded to traders")
	}
	return errors.Join(errs...)
}

func (m *Manager) forward(addr common.Address, trader *revenue.Trader, amount sdkmath.LegacyDec) error {
	if !amount.IsPositive() {
		return nil
	}
	return m.account.Transfer(trader.Account(), addr, amount)
}
