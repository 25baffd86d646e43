/*

This file contains the token balance ledger held by each protocol component.
The backing manager owns the backing collateral; each revenue trader owns only
what was explicitly forwarded to it. No component may spend another's balance.

*/

package bank

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount is invalid")
)

// Ledger is the read side of a token balance store.
type Ledger interface {
	// Balance returns the whole-token balance held for an ERC20, zero if none.
	Balance(erc20 common.Address) sdkmath.LegacyDec
	// Tokens returns the addresses with a nonzero balance, in first-credit order.
	Tokens() []common.Address
}

// Account is an in-memory ledger with explicit credit and debit. The protocol
// runs strictly serialized, so no locking is needed.
type Account struct {
	owner    string
	balances map[common.Address]sdkmath.LegacyDec
	order    []common.Address
}

// NewAccount creates an empty account for the named owner.
func NewAccount(owner string) *Account {
	return &Account{
		owner:    owner,
		balances: make(map[common.Address]sdkmath.LegacyDec),
	}
}

// Owner returns the component name this account belongs to.
func (a *Account) Owner() string {
	return a.owner
}

// Balance returns the held amount of an ERC20, zero if none.
func (a *Account) Balance(erc20 common.Address) sdkmath.LegacyDec {
	if bal, ok := a.balances[erc20]; ok {
		return bal
	}
	return sdkmath.LegacyZeroDec()
}

// Tokens returns addresses with a nonzero balance, in first-credit order.
func (a *Account) Tokens() []common.Address {
	out := make([]common.Address, 0, len(a.order))
	for _, addr := range a.order {
		if a.balances[addr].IsPositive() {
			out = append(out, addr)
		}
	}
	return out
}

// Credit adds amount to the account's balance of erc20.
func (a *Account) Credit(erc20 common.Address, amount sdkmath.LegacyDec) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: credit of %s", ErrInvalidAmount, amount)
	}
	if amount.IsZero() {
		return nil
	}
	if _, ok := a.balances[erc20]; !ok {
		a.order = append(a.order, erc20)
		a.balances[erc20] = sdkmath.LegacyZeroDec()
	}
	a.balances[erc20] = a.balances[erc20].Add(amount)
	return nil
}

// Debit removes amount from the account's balance of erc20.
func (a *Account) Debit(erc20 common.Address, amount sdkmath.LegacyDec) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: debit of %s", ErrInvalidAmount, amount)
	}
	bal := a.Balance(erc20)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s holds %s, debit of %s", ErrInsufficientBalance, a.owner, bal, amount)
	}
	a.balances[erc20] = bal.Sub(amount)
	return nil
}

// Transfer moves amount of erc20 from this account to another.
func (a *Account) Transfer(to *Account, erc20 common.Address, amount sdkmath.LegacyDec) error {
	if err := a.Debit(erc20, amount); err != nil {
		return err
	}
	return to.Credit(erc20, amount)
}
