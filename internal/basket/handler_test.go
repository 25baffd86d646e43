package basket

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/types"
)

// mockColl is a registry-compatible collateral stub with settable state.
type mockColl struct {
	erc20        types.ERC20
	target       types.TargetName
	status       types.CollateralStatus
	refPerTok    sdkmath.LegacyDec
	targetPerRef sdkmath.LegacyDec
	low, high    sdkmath.LegacyDec
	priced       bool
	isColl       bool
}

func (m *mockColl) ERC20() types.ERC20 { return m.erc20 }
func (m *mockColl) Price(_ time.Time) (sdkmath.LegacyDec, sdkmath.LegacyDec, bool) {
	return m.low, m.high, m.priced
}
func (m *mockColl) MaxTradeVolume() sdkmath.LegacyDec         { return sdkmath.LegacyNewDec(1_000_000) }
func (m *mockColl) Refresh(_ context.Context, _ time.Time)    {}
func (m *mockColl) RewardsPending(_ context.Context) (types.ERC20, sdkmath.LegacyDec) {
	return types.ERC20{}, sdkmath.LegacyZeroDec()
}
func (m *mockColl) ClaimRewards(_ context.Context) (types.ERC20, sdkmath.LegacyDec, error) {
	return types.ERC20{}, sdkmath.LegacyZeroDec(), nil
}
func (m *mockColl) IsCollateral() bool                 { return m.isColl }
func (m *mockColl) TargetName() types.TargetName       { return m.target }
func (m *mockColl) Status() types.CollateralStatus     { return m.status }
func (m *mockColl) WhenDefault() time.Time             { return types.NeverDefault }
func (m *mockColl) RefPerTok() sdkmath.LegacyDec       { return m.refPerTok }
func (m *mockColl) TargetPerRef() sdkmath.LegacyDec    { return m.targetPerRef }

func newMockColl(last byte, symbol string, target types.TargetName) *mockColl {
	var addr common.Address
	addr[19] = last
	return &mockColl{
		erc20:        types.ERC20{Address: addr, Symbol: symbol, Decimals: 18},
		target:       target,
		status:       types.StatusSound,
		refPerTok:    sdkmath.LegacyOneDec(),
		targetPerRef: sdkmath.LegacyOneDec(),
		low:          sdkmath.LegacyMustNewDecFromStr("0.999"),
		high:         sdkmath.LegacyMustNewDecFromStr("1.001"),
		priced:       true,
		isColl:       true,
	}
}

func newMockAsset(last byte, symbol string) *mockColl {
	m := newMockColl(last, symbol, "")
	m.isColl = false
	return m
}

// fixture builds a registry with USDC/USDT prime candidates and DAI/FRAX
// backups, plus RToken and RSR anchor assets.
type fixture struct {
	reg     *registry.Registry
	handler *Handler
	usdc    *mockColl
	usdt    *mockColl
	dai     *mockColl
	frax    *mockColl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.New(newMockAsset(100, "RTKN"), newMockAsset(101, "RSR"))
	require.NoError(t, err)

	f := &fixture{
		reg:  reg,
		usdc: newMockColl(1, "USDC", types.TargetUSD),
		usdt: newMockColl(2, "USDT", types.TargetUSD),
		dai:  newMockColl(3, "DAI", types.TargetUSD),
		frax: newMockColl(4, "FRAX", types.TargetUSD),
	}
	for _, c := range []*mockColl{f.usdc, f.usdt, f.dai, f.frax} {
		require.NoError(t, reg.Register(c))
	}
	f.handler = NewHandler(reg)
	return f
}

func TestRefreshBasketSetsPrimeBasket(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	require.NoError(t, f.handler.SetPrimeBasket(
		[]common.Address{f.usdc.erc20.Address, f.usdt.erc20.Address},
		[]sdkmath.LegacyDec{sdkmath.LegacyMustNewDecFromStr("0.5"), sdkmath.LegacyMustNewDecFromStr("0.5")},
	))

	// Before the first refresh the basket is disabled.
	assert.Equal(t, types.StatusDisabled, f.handler.Status())
	assert.Equal(t, uint64(0), f.handler.Nonce())

	require.NoError(t, f.handler.RefreshBasket(now))
	assert.Equal(t, uint64(1), f.handler.Nonce())
	assert.Equal(t, types.StatusSound, f.handler.Status())
	assert.Len(t, f.handler.ERC20s(), 2)
	assert.True(t, f.handler.Quantity(f.usdc.erc20.Address).Equal(sdkmath.LegacyMustNewDecFromStr("0.5")))
}

func TestRefreshBasketSwitchesToBackups(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	require.NoError(t, f.handler.SetPrimeBasket(
		[]common.Address{f.usdc.erc20.Address, f.usdt.erc20.Address},
		[]sdkmath.LegacyDec{sdkmath.LegacyMustNewDecFromStr("0.5"), sdkmath.LegacyMustNewDecFromStr("0.5")},
	))
	require.NoError(t, f.handler.SetBackupConfig(types.TargetUSD, 2,
		[]common.Address{f.dai.erc20.Address, f.frax.erc20.Address}))
	require.NoError(t, f.handler.RefreshBasket(now))
	require.Equal(t, uint64(1), f.handler.Nonce())

	// USDC defaults: its 0.5 target is split across both SOUND backups.
	f.usdc.status = types.StatusDisabled
	assert.Equal(t, types.StatusDisabled, f.handler.Status())
	require.True(t, f.handler.SelectionExists())

	require.NoError(t, f.handler.RefreshBasket(now.Add(time.Minute)))
	assert.Equal(t, uint64(2), f.handler.Nonce())
	assert.Equal(t, types.StatusSound, f.handler.Status())

	members := f.handler.ERC20s()
	require.Len(t, members, 3)
	quarter := sdkmath.LegacyMustNewDecFromStr("0.25")
	assert.True(t, f.handler.Quantity(f.dai.erc20.Address).Equal(quarter))
	assert.True(t, f.handler.Quantity(f.frax.erc20.Address).Equal(quarter))
	assert.True(t, f.handler.Quantity(f.usdt.erc20.Address).Equal(sdkmath.LegacyMustNewDecFromStr("0.5")))
	assert.True(t, f.handler.Quantity(f.usdc.erc20.Address).IsZero(), "defaulted member leaves the basket")
}

func TestRefreshBasketFailsWithoutBackups(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	require.NoError(t, f.handler.SetPrimeBasket(
		[]common.Address{f.usdc.erc20.Address},
		[]sdkmath.LegacyDec{sdkmath.LegacyOneDec()},
	))
	require.NoError(t, f.handler.RefreshBasket(now))

	f.usdc.status = types.StatusDisabled
	assert.False(t, f.handler.SelectionExists())

	err := f.handler.RefreshBasket(now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrNoValidBasket)
	assert.Equal(t, types.StatusDisabled, f.handler.Status())
	// Nonce does not advance on a failed switch.
	assert.Equal(t, uint64(1), f.handler.Nonce())
	// All quantities read zero while disabled.
	assert.True(t, f.handler.Quantity(f.usdc.erc20.Address).IsZero())
}

func TestQuantityDecreasesAsCollateralAppreciates(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	require.NoError(t, f.handler.SetPrimeBasket(
		[]common.Address{f.usdc.erc20.Address},
		[]sdkmath.LegacyDec{sdkmath.LegacyOneDec()},
	))
	require.NoError(t, f.handler.RefreshBasket(now))

	before := f.handler.Quantity(f.usdc.erc20.Address)
	f.usdc.refPerTok = sdkmath.LegacyMustNewDecFromStr("1.1")
	after := f.handler.Quantity(f.usdc.erc20.Address)

	assert.True(t, before.Equal(sdkmath.LegacyOneDec()))
	assert.True(t, after.LT(before), "fewer tokens needed per basket as the rate grows")
}

func TestBasketsHeldAndFullCollateralization(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	require.NoError(t, f.handler.SetPrimeBasket(
		[]common.Address{f.usdc.erc20.Address, f.usdt.erc20.Address},
		[]sdkmath.LegacyDec{sdkmath.LegacyMustNewDecFromStr("0.5"), sdkmath.LegacyMustNewDecFromStr("0.5")},
	))
	require.NoError(t, f.handler.RefreshBasket(now))

	acct := bank.NewAccount("backing")
	require.NoError(t, acct.Credit(f.usdc.erc20.Address, sdkmath.LegacyNewDec(50)))
	require.NoError(t, acct.Credit(f.usdt.erc20.Address, sdkmath.LegacyNewDec(40)))

	// The short leg bounds the held units: min(50/0.5, 40/0.5) = 80.
	held := f.handler.BasketsHeldBy(acct)
	assert.True(t, held.Equal(sdkmath.LegacyNewDec(80)), "got %s", held)

	assert.True(t, f.handler.FullyCollateralized(acct, sdkmath.LegacyNewDec(80)))
	assert.False(t, f.handler.FullyCollateralized(acct, sdkmath.LegacyNewDec(81)))
	assert.True(t, f.handler.FullyCollateralized(acct, sdkmath.LegacyZeroDec()),
		"zero demand is always covered")
}
