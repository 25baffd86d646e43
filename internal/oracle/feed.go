/*

This file contains the price feed adapter. A Feed wraps an external oracle
source and applies an explicit staleness deadline: callers get ErrStaleAnswer
instead of a silently old value. Feed never panics and never trusts an
out-of-range answer.

*/

package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidFeedConfig = errors.New("feed configuration is invalid")
	ErrSourceUnavailable = errors.New("oracle source unavailable")
	ErrInvalidAnswer     = errors.New("oracle answer is out of range")
	ErrStaleAnswer       = errors.New("oracle answer is stale")
)

// Reading is one oracle answer with its report time.
type Reading struct {
	Price     sdkmath.LegacyDec
	UpdatedAt time.Time
}

// Source is the external price oracle contract. It may fail or return an
// out-of-range value; Feed folds both into error returns rather than
// propagating panics or trusting bad data.
type Source interface {
	LatestAnswer(ctx context.Context, feedID string) (Reading, error)
}

// Feed is a single price feed with a staleness deadline.
type Feed struct {
	source  Source
	feedID  string
	timeout time.Duration
}

// NewFeed creates a feed over a source. The timeout is the maximum accepted
// age of an answer before it is reported as stale.
func NewFeed(source Source, feedID string, timeout time.Duration) (*Feed, error) {
	if source == nil {
		return nil, errors.Join(ErrInvalidFeedConfig, errors.New("source cannot be nil"))
	}
	if feedID == "" {
		return nil, errors.Join(ErrInvalidFeedConfig, errors.New("feed ID cannot be empty"))
	}
	if timeout <= 0 {
		return nil, errors.Join(ErrInvalidFeedConfig, errors.New("timeout must be positive"))
	}
	return &Feed{source: source, feedID: feedID, timeout: timeout}, nil
}

// FeedID returns the identifier passed to the source on every read.
func (f *Feed) FeedID() string {
	return f.feedID
}

// Timeout returns the staleness deadline.
func (f *Feed) Timeout() time.Duration {
	return f.timeout
}

// Price returns the latest answer, or an error if the source failed, the
// answer is non-positive, or the answer is older than the staleness deadline.
func (f *Feed) Price(ctx context.Context, now time.Time) (sdkmath.LegacyDec, error) {
	reading, err := f.source.LatestAnswer(ctx, f.feedID)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: feed %s: %w", ErrSourceUnavailable, f.feedID, err)
	}
	if reading.Price.IsNil() || !reading.Price.IsPositive() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: feed %s answered %s", ErrInvalidAnswer, f.feedID, reading.Price)
	}
	if now.Sub(reading.UpdatedAt) > f.timeout {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: feed %s last updated %s", ErrStaleAnswer, f.feedID, reading.UpdatedAt)
	}
	return reading.Price, nil
}
