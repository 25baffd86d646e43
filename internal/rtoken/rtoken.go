/*

This file contains the RToken supply ledger: issuance against basket
quantities, redemption guarded by the basket nonce, and melting (the Furnace
destination), which raises the basket units backing each remaining RToken.

*/

package rtoken

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/basket"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrBasketNotSound     = errors.New("basket is not sound")
	ErrNotCollateralized  = errors.New("backing does not cover baskets needed")
	ErrStaleBasketRedeem  = errors.New("basket nonce is stale")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInsufficientSupply = errors.New("amount exceeds total supply")
)

// RToken tracks total supply and basketsNeeded. Collateral enters and leaves
// the backing account on issue and redeem; melting burns supply without
// touching backing, so basket units per RToken appreciate.
type RToken struct {
	log     zerolog.Logger
	erc20   types.ERC20
	basket  *basket.Handler
	backing *bank.Account

	totalSupply   sdkmath.LegacyDec
	basketsNeeded sdkmath.LegacyDec
}

// New creates an RToken ledger over the basket handler and backing account.
func New(erc20 types.ERC20, basketHandler *basket.Handler, backing *bank.Account) *RToken {
	return &RToken{
		log:           logger.GetForComponent("rtoken").With().Str("erc20", erc20.Symbol).Logger(),
		erc20:         erc20,
		basket:        basketHandler,
		backing:       backing,
		totalSupply:   sdkmath.LegacyZeroDec(),
		basketsNeeded: sdkmath.LegacyZeroDec(),
	}
}

func (r *RToken) ERC20() types.ERC20 { return r.erc20 }

func (r *RToken) TotalSupply() sdkmath.LegacyDec { return r.totalSupply }

func (r *RToken) BasketsNeeded() sdkmath.LegacyDec { return r.basketsNeeded }

// BasketsPerRToken is the exchange rate from RToken to basket units; 1 while
// supply is zero. It grows through melting.
func (r *RToken) BasketsPerRToken() sdkmath.LegacyDec {
	if r.totalSupply.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	return r.basketsNeeded.Quo(r.totalSupply)
}

// Issue mints amount RToken against a deposit of the current basket
// quantities into the backing account. Requires a SOUND basket whose backing
// already covers the outstanding supply; minting against a deficit would hand
// new issuers a claim on collateral the protocol does not hold.
func (r *RToken) Issue(amount sdkmath.LegacyDec, now time.Time) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.basket.Status() != types.StatusSound {
		return fmt.Errorf("%w: status is %s", ErrBasketNotSound, r.basket.Status())
	}
	if !r.basket.FullyCollateralized(r.backing, r.basketsNeeded) {
		return fmt.Errorf("%w: held %s baskets, need %s",
			ErrNotCollateralized, r.basket.BasketsHeldBy(r.backing), r.basketsNeeded)
	}

	baskets := amount.Mul(r.BasketsPerRToken())
	for _, erc20 := range r.basket.ERC20s() {
		q := r.basket.Quantity(erc20)
		if !q.IsPositive() {
			return fmt.Errorf("%w: member %s has zero quantity", ErrBasketNotSound, erc20.Hex())
		}
		if err := r.backing.Credit(erc20, q.Mul(baskets)); err != nil {
			return err
		}
	}

	r.totalSupply = r.totalSupply.Add(amount)
	r.basketsNeeded = r.basketsNeeded.Add(baskets)
	r.log.Info().
		Str("amount", amount.String()).
		Str("baskets", baskets.String()).
		Str("totalSupply", r.totalSupply.String()).
		Msg("RToken issued")
	return nil
}

// Redeem burns amount RToken for a prorata share of the backing. The caller's
// basketNonce must match the current basket; redeeming against a stale,
// possibly more favorable, quantity table is rejected.
func (r *RToken) Redeem(amount sdkmath.LegacyDec, basketNonce uint64, now time.Time) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if basketNonce != r.basket.Nonce() {
		return fmt.Errorf("%w: redeem against nonce %d, current is %d",
			ErrStaleBasketRedeem, basketNonce, r.basket.Nonce())
	}
	if amount.GT(r.totalSupply) {
		return fmt.Errorf("%w: %s > %s", ErrInsufficientSupply, amount, r.totalSupply)
	}

	baskets := amount.Mul(r.BasketsPerRToken())
	for _, erc20 := range r.basket.ERC20s() {
		out := r.basket.Quantity(erc20).Mul(baskets)
		if bal := r.backing.Balance(erc20); out.GT(bal) {
			// Under-collateralized redemption pays out what is actually held.
			out = bal
		}
		if err := r.backing.Debit(erc20, out); err != nil {
			return err
		}
	}

	r.totalSupply = r.totalSupply.Sub(amount)
	r.basketsNeeded = r.basketsNeeded.Sub(baskets)
	r.log.Info().
		Str("amount", amount.String()).
		Str("baskets", baskets.String()).
		Uint64("nonce", basketNonce).
		Msg("RToken redeemed")
	return nil
}

// Melt burns amount RToken without releasing backing, raising basket units
// per remaining RToken. This is the Furnace revenue destination.
func (r *RToken) Melt(amount sdkmath.LegacyDec) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	if amount.GT(r.totalSupply) {
		return fmt.Errorf("%w: melt %s > %s", ErrInsufficientSupply, amount, r.totalSupply)
	}
	r.totalSupply = r.totalSupply.Sub(amount)
	r.log.Info().
		Str("amount", amount.String()).
		Str("basketsPerRToken", r.BasketsPerRToken().String()).
		Msg("RToken melted")
	return nil
}
