package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	reading Reading
	err     error
}

func (s *fakeSource) LatestAnswer(_ context.Context, _ string) (Reading, error) {
	return s.reading, s.err
}

func TestNewFeedValidation(t *testing.T) {
	src := &fakeSource{}
	_, err := NewFeed(nil, "eth-usd", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidFeedConfig)
	_, err = NewFeed(src, "", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidFeedConfig)
	_, err = NewFeed(src, "eth-usd", 0)
	assert.ErrorIs(t, err, ErrInvalidFeedConfig)

	f, err := NewFeed(src, "eth-usd", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "eth-usd", f.FeedID())
	assert.Equal(t, time.Hour, f.Timeout())
}

func TestFeedPrice(t *testing.T) {
	now := time.Now()
	src := &fakeSource{reading: Reading{
		Price:     sdkmath.LegacyMustNewDecFromStr("1.001"),
		UpdatedAt: now.Add(-time.Minute),
	}}
	f, err := NewFeed(src, "usdc-usd", time.Hour)
	require.NoError(t, err)

	price, err := f.Price(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, price.Equal(sdkmath.LegacyMustNewDecFromStr("1.001")))
}

func TestFeedPriceErrors(t *testing.T) {
	now := time.Now()
	f := func(src *fakeSource) *Feed {
		feed, err := NewFeed(src, "usdc-usd", time.Hour)
		require.NoError(t, err)
		return feed
	}

	_, err := f(&fakeSource{err: errors.New("rpc down")}).Price(context.Background(), now)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = f(&fakeSource{reading: Reading{
		Price:     sdkmath.LegacyZeroDec(),
		UpdatedAt: now,
	}}).Price(context.Background(), now)
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = f(&fakeSource{reading: Reading{
		Price:     sdkmath.LegacyOneDec(),
		UpdatedAt: now.Add(-2 * time.Hour),
	}}).Price(context.Background(), now)
	assert.ErrorIs(t, err, ErrStaleAnswer)
}
