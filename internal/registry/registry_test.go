package registry

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtoken-labs/rvm/internal/types"
)

type fakeAsset struct {
	erc20     types.ERC20
	isColl    bool
	refreshed int
}

func newFakeAsset(last byte, symbol string, isColl bool) *fakeAsset {
	var addr common.Address
	addr[19] = last
	return &fakeAsset{
		erc20:  types.ERC20{Address: addr, Symbol: symbol, Decimals: 18},
		isColl: isColl,
	}
}

func (a *fakeAsset) ERC20() types.ERC20 { return a.erc20 }
func (a *fakeAsset) Price(_ time.Time) (sdkmath.LegacyDec, sdkmath.LegacyDec, bool) {
	return sdkmath.LegacyOneDec(), sdkmath.LegacyOneDec(), true
}
func (a *fakeAsset) MaxTradeVolume() sdkmath.LegacyDec      { return sdkmath.LegacyNewDec(1_000_000) }
func (a *fakeAsset) Refresh(_ context.Context, _ time.Time) { a.refreshed++ }
func (a *fakeAsset) RewardsPending(_ context.Context) (types.ERC20, sdkmath.LegacyDec) {
	return types.ERC20{}, sdkmath.LegacyZeroDec()
}
func (a *fakeAsset) ClaimRewards(_ context.Context) (types.ERC20, sdkmath.LegacyDec, error) {
	return types.ERC20{}, sdkmath.LegacyZeroDec(), nil
}
func (a *fakeAsset) IsCollateral() bool { return a.isColl }

func newTestRegistry(t *testing.T) (*Registry, *fakeAsset, *fakeAsset) {
	t.Helper()
	rtkn := newFakeAsset(100, "RTKN", false)
	rsr := newFakeAsset(101, "RSR", false)
	reg, err := New(rtkn, rsr)
	require.NoError(t, err)
	return reg, rtkn, rsr
}

func TestNewSeedsAnchorAssets(t *testing.T) {
	reg, rtkn, rsr := newTestRegistry(t)
	assert.Equal(t, rtkn.erc20, reg.RToken())
	assert.Equal(t, rsr.erc20, reg.RSR())
	require.Len(t, reg.ERC20s(), 2)

	_, err := New(nil, rsr)
	assert.ErrorIs(t, err, ErrNilAsset)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	usdc := newFakeAsset(1, "USDC", true)
	require.NoError(t, reg.Register(usdc))

	err := reg.Register(newFakeAsset(1, "USDC", true))
	assert.ErrorIs(t, err, ErrDuplicateAsset)
	assert.Len(t, reg.ERC20s(), 3)
}

func TestSwapRegisteredKeepsIndex(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	require.NoError(t, reg.Register(newFakeAsset(1, "USDC", true)))
	require.NoError(t, reg.Register(newFakeAsset(2, "USDT", true)))

	v2 := newFakeAsset(1, "USDC", true)
	replaced, err := reg.SwapRegistered(v2)
	require.NoError(t, err)
	assert.True(t, replaced)

	// Registration order is stable across a swap.
	erc20s := reg.ERC20s()
	require.Len(t, erc20s, 4)
	assert.Equal(t, "USDC", erc20s[2].Symbol)

	got, err := reg.ToAsset(v2.erc20.Address)
	require.NoError(t, err)
	assert.Same(t, v2, got.(*fakeAsset))

	_, err = reg.SwapRegistered(newFakeAsset(9, "GHOST", true))
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestToCollRejectsPlainAssets(t *testing.T) {
	reg, rtkn, _ := newTestRegistry(t)

	_, err := reg.ToColl(rtkn.erc20.Address)
	assert.ErrorIs(t, err, ErrNotCollateral)

	var unknown common.Address
	unknown[19] = 42
	_, err = reg.ToAsset(unknown)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRefreshFansOut(t *testing.T) {
	reg, rtkn, rsr := newTestRegistry(t)
	usdc := newFakeAsset(1, "USDC", true)
	require.NoError(t, reg.Register(usdc))

	reg.Refresh(context.Background(), time.Now())
	reg.Refresh(context.Background(), time.Now())
	assert.Equal(t, 2, rtkn.refreshed)
	assert.Equal(t, 2, rsr.refreshed)
	assert.Equal(t, 2, usdc.refreshed)
}
