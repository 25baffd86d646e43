package revenue

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionValidate(t *testing.T) {
	assert.NoError(t, Distribution{RTokenDist: 60, RSRDist: 40}.Validate())
	assert.NoError(t, Distribution{RTokenDist: 1, RSRDist: 0}.Validate())
	assert.NoError(t, Distribution{RTokenDist: 0, RSRDist: 1}.Validate())
	assert.ErrorIs(t, Distribution{}.Validate(), ErrInvalidDistribution)
}

func TestDistributorSplit(t *testing.T) {
	d, err := NewDistributor(Distribution{RTokenDist: 60, RSRDist: 40})
	require.NoError(t, err)

	amount := sdkmath.LegacyNewDec(1000)
	toRSR, toRToken := d.Split(amount)
	assert.True(t, toRSR.Equal(sdkmath.LegacyNewDec(400)), "got %s", toRSR)
	assert.True(t, toRToken.Equal(sdkmath.LegacyNewDec(600)), "got %s", toRToken)
	// The two legs always reassemble the whole amount.
	assert.True(t, toRSR.Add(toRToken).Equal(amount))
}

func TestDistributorSplitOddAmount(t *testing.T) {
	d, err := NewDistributor(Distribution{RTokenDist: 1, RSRDist: 2})
	require.NoError(t, err)

	amount := sdkmath.LegacyNewDec(100)
	toRSR, toRToken := d.Split(amount)
	assert.True(t, toRSR.Add(toRToken).Equal(amount))
	// The RSR leg truncates; the remainder lands on the RToken leg.
	assert.True(t, toRSR.LTE(amount.MulInt64(2).QuoInt64(3)))
}

func TestDistributorSingleDestination(t *testing.T) {
	onlyRSR, err := NewDistributor(Distribution{RSRDist: 100})
	require.NoError(t, err)
	toRSR, toRToken := onlyRSR.Split(sdkmath.LegacyNewDec(50))
	assert.True(t, toRSR.Equal(sdkmath.LegacyNewDec(50)))
	assert.True(t, toRToken.IsZero())

	onlyRToken, err := NewDistributor(Distribution{RTokenDist: 100})
	require.NoError(t, err)
	toRSR, toRToken = onlyRToken.Split(sdkmath.LegacyNewDec(50))
	assert.True(t, toRSR.IsZero())
	assert.True(t, toRToken.Equal(sdkmath.LegacyNewDec(50)))
}

func TestSetDistributionRejectsInvalid(t *testing.T) {
	d, err := NewDistributor(Distribution{RTokenDist: 60, RSRDist: 40})
	require.NoError(t, err)
	assert.ErrorIs(t, d.SetDistribution(Distribution{}), ErrInvalidDistribution)
	// A failed update leaves the old distribution in place.
	assert.Equal(t, uint64(60), d.Distribution().RTokenDist)
}
