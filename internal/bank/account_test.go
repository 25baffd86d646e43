package bank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(last byte) common.Address {
	var a common.Address
	a[19] = last
	return a
}

func TestAccountCreditDebit(t *testing.T) {
	a := NewAccount("backing")
	usdc := addr(1)

	assert.True(t, a.Balance(usdc).IsZero())
	require.NoError(t, a.Credit(usdc, sdkmath.LegacyNewDec(100)))
	require.NoError(t, a.Debit(usdc, sdkmath.LegacyNewDec(40)))
	assert.True(t, a.Balance(usdc).Equal(sdkmath.LegacyNewDec(60)))

	err := a.Debit(usdc, sdkmath.LegacyNewDec(61))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, a.Balance(usdc).Equal(sdkmath.LegacyNewDec(60)), "failed debit is atomic")

	assert.ErrorIs(t, a.Credit(usdc, sdkmath.LegacyNewDec(-1)), ErrInvalidAmount)
	assert.ErrorIs(t, a.Debit(usdc, sdkmath.LegacyNewDec(-1)), ErrInvalidAmount)
	assert.NoError(t, a.Credit(usdc, sdkmath.LegacyZeroDec()))
}

func TestAccountTokensKeepsFirstCreditOrder(t *testing.T) {
	a := NewAccount("trader")
	first, second, third := addr(3), addr(1), addr(2)
	for _, token := range []common.Address{first, second, third} {
		require.NoError(t, a.Credit(token, sdkmath.LegacyOneDec()))
	}
	assert.Equal(t, []common.Address{first, second, third}, a.Tokens())

	// A fully spent token drops out of the listing.
	require.NoError(t, a.Debit(second, sdkmath.LegacyOneDec()))
	assert.Equal(t, []common.Address{first, third}, a.Tokens())
}

func TestTransfer(t *testing.T) {
	from := NewAccount("backing")
	to := NewAccount("rsr-trader")
	usdc := addr(1)
	require.NoError(t, from.Credit(usdc, sdkmath.LegacyNewDec(10)))

	require.NoError(t, from.Transfer(to, usdc, sdkmath.LegacyNewDec(4)))
	assert.True(t, from.Balance(usdc).Equal(sdkmath.LegacyNewDec(6)))
	assert.True(t, to.Balance(usdc).Equal(sdkmath.LegacyNewDec(4)))

	err := from.Transfer(to, usdc, sdkmath.LegacyNewDec(100))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, to.Balance(usdc).Equal(sdkmath.LegacyNewDec(4)))
}
