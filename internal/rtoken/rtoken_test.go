package rtoken

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/basket"
	"github.com/rtoken-labs/rvm/internal/registry"
	"github.com/rtoken-labs/rvm/internal/types"
)

type stubColl struct {
	erc20  types.ERC20
	status types.CollateralStatus
}

func newStubColl(last byte, symbol string) *stubColl {
	var addr common.Address
	addr[19] = last
	return &stubColl{
		erc20:  types.ERC20{Address: addr, Symbol: symbol, Decimals: 18},
		status: types.StatusSound,
	}
}

func (c *stubColl) ERC20() types.ERC20 { return c.erc20 }
func (c *stubColl) Price(_ time.Time) (sdkmath.LegacyDec, sdkmath.LegacyDec, bool) {
	return sdkmath.LegacyMustNewDecFromStr("0.999"), sdkmath.LegacyMustNewDecFromStr("1.001"), true
}
func (c *stubColl) MaxTradeVolume() sdkmath.LegacyDec      { return sdkmath.LegacyNewDec(1_000_000) }
func (c *stubColl) Refresh(_ context.Context, _ time.Time) {}
func (c *stubColl) RewardsPending(_ context.Context) (types.ERC20, sdkmath.LegacyDec) {
	return types.ERC20{}, sdkmath.LegacyZeroDec()
}
func (c *stubColl) ClaimRewards(_ context.Context) (types.ERC20, sdkmath.LegacyDec, error) {
	return types.ERC20{}, sdkmath.LegacyZeroDec(), nil
}
func (c *stubColl) IsCollateral() bool              { return true }
func (c *stubColl) TargetName() types.TargetName    { return types.TargetUSD }
func (c *stubColl) Status() types.CollateralStatus  { return c.status }
func (c *stubColl) WhenDefault() time.Time          { return types.NeverDefault }
func (c *stubColl) RefPerTok() sdkmath.LegacyDec    { return sdkmath.LegacyOneDec() }
func (c *stubColl) TargetPerRef() sdkmath.LegacyDec { return sdkmath.LegacyOneDec() }

type fixture struct {
	rtok    *RToken
	handler *basket.Handler
	backing *bank.Account
	usdc    *stubColl
	usdt    *stubColl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rtkn := newStubColl(100, "RTKN")
	rsr := newStubColl(101, "RSR")
	reg, err := registry.New(rtkn, rsr)
	require.NoError(t, err)

	usdc := newStubColl(1, "USDC")
	usdt := newStubColl(2, "USDT")
	require.NoError(t, reg.Register(usdc))
	require.NoError(t, reg.Register(usdt))

	handler := basket.NewHandler(reg)
	require.NoError(t, handler.SetPrimeBasket(
		[]common.Address{usdc.erc20.Address, usdt.erc20.Address},
		[]sdkmath.LegacyDec{sdkmath.LegacyMustNewDecFromStr("0.5"), sdkmath.LegacyMustNewDecFromStr("0.5")},
	))
	require.NoError(t, handler.RefreshBasket(time.Now()))

	backing := bank.NewAccount("backing")
	return &fixture{
		rtok:    New(rtkn.erc20, handler, backing),
		handler: handler,
		backing: backing,
		usdc:    usdc,
		usdt:    usdt,
	}
}

func TestIssueRedeemRoundTrip(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	require.NoError(t, f.rtok.Issue(sdkmath.LegacyNewDec(100), now))
	assert.True(t, f.rtok.TotalSupply().Equal(sdkmath.LegacyNewDec(100)))
	assert.True(t, f.rtok.BasketsNeeded().Equal(sdkmath.LegacyNewDec(100)))
	assert.True(t, f.backing.Balance(f.usdc.erc20.Address).Equal(sdkmath.LegacyNewDec(50)))
	assert.True(t, f.backing.Balance(f.usdt.erc20.Address).Equal(sdkmath.LegacyNewDec(50)))

	require.NoError(t, f.rtok.Redeem(sdkmath.LegacyNewDec(100), f.handler.Nonce(), now))
	assert.True(t, f.rtok.TotalSupply().IsZero())
	assert.True(t, f.backing.Balance(f.usdc.erc20.Address).IsZero())
	assert.True(t, f.backing.Balance(f.usdt.erc20.Address).IsZero())
}

func TestRedeemRejectsStaleNonce(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.rtok.Issue(sdkmath.LegacyNewDec(10), now))

	err := f.rtok.Redeem(sdkmath.LegacyNewDec(10), f.handler.Nonce()+1, now)
	assert.ErrorIs(t, err, ErrStaleBasketRedeem)
	assert.True(t, f.rtok.TotalSupply().Equal(sdkmath.LegacyNewDec(10)))
}

func TestRedeemCapsAtHeldBalance(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.rtok.Issue(sdkmath.LegacyNewDec(100), now))

	// Backing goes missing: a full redemption pays out only what is held.
	require.NoError(t, f.backing.Debit(f.usdc.erc20.Address, sdkmath.LegacyNewDec(30)))
	require.NoError(t, f.rtok.Redeem(sdkmath.LegacyNewDec(100), f.handler.Nonce(), now))
	assert.True(t, f.backing.Balance(f.usdc.erc20.Address).IsZero())
	assert.True(t, f.rtok.TotalSupply().IsZero())
}

func TestIssueRequiresSoundBasket(t *testing.T) {
	f := newFixture(t)
	f.usdc.status = types.StatusIffy

	err := f.rtok.Issue(sdkmath.LegacyNewDec(1), time.Now())
	assert.ErrorIs(t, err, ErrBasketNotSound)
}

func TestIssueRequiresFullCollateralization(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.rtok.Issue(sdkmath.LegacyNewDec(100), now))

	// A sound basket is not enough: backing short of basketsNeeded blocks
	// minting until recollateralization catches up.
	require.NoError(t, f.backing.Debit(f.usdc.erc20.Address, sdkmath.LegacyNewDec(30)))
	err := f.rtok.Issue(sdkmath.LegacyNewDec(10), now)
	assert.ErrorIs(t, err, ErrNotCollateralized)
	assert.True(t, f.rtok.TotalSupply().Equal(sdkmath.LegacyNewDec(100)))

	// Restoring the backing reopens issuance.
	require.NoError(t, f.backing.Credit(f.usdc.erc20.Address, sdkmath.LegacyNewDec(30)))
	assert.NoError(t, f.rtok.Issue(sdkmath.LegacyNewDec(10), now))
}

func TestMeltRaisesBasketsPerRToken(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.rtok.Issue(sdkmath.LegacyNewDec(100), now))
	assert.True(t, f.rtok.BasketsPerRToken().Equal(sdkmath.LegacyOneDec()))

	require.NoError(t, f.rtok.Melt(sdkmath.LegacyNewDec(20)))
	assert.True(t, f.rtok.TotalSupply().Equal(sdkmath.LegacyNewDec(80)))
	assert.True(t, f.rtok.BasketsNeeded().Equal(sdkmath.LegacyNewDec(100)), "melting never releases backing")
	assert.True(t, f.rtok.BasketsPerRToken().Equal(sdkmath.LegacyMustNewDecFromStr("1.25")))

	// Zero is a no-op, negative is rejected, over-supply is rejected.
	assert.NoError(t, f.rtok.Melt(sdkmath.LegacyZeroDec()))
	assert.ErrorIs(t, f.rtok.Melt(sdkmath.LegacyNewDec(-1)), ErrInvalidAmount)
	assert.ErrorIs(t, f.rtok.Melt(sdkmath.LegacyNewDec(81)), ErrInsufficientSupply)
}
