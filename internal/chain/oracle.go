package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rtoken-labs/rvm/internal/oracle"
	"github.com/rtoken-labs/rvm/internal/utils"
)

const aggregatorABIJSON = `[
	{"type":"function","name":"latestRoundData","inputs":[],"outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}]},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var aggregatorABI = mustParseABI(aggregatorABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("aggregator ABI is malformed: %v", err))
	}
	return parsed
}

// ChainlinkSource reads Chainlink aggregator contracts. The feed ID is the
// aggregator's hex address; feed decimals are fetched once and cached.
type ChainlinkSource struct {
	caller Caller

	mu       sync.Mutex
	decimals map[common.Address]uint8
}

func NewChainlinkSource(caller Caller) (*ChainlinkSource, error) {
	if caller == nil {
		return nil, fmt.Errorf("chainlink source: caller is required")
	}
	return &ChainlinkSource{
		caller:   caller,
		decimals: make(map[common.Address]uint8),
	}, nil
}

// LatestAnswer implements oracle.Source over latestRoundData.
func (s *ChainlinkSource) LatestAnswer(ctx context.Context, feedID string) (oracle.Reading, error) {
	if !common.IsHexAddress(feedID) {
		return oracle.Reading{}, fmt.Errorf("feed ID %q is not an address", feedID)
	}
	aggregator := common.HexToAddress(feedID)

	decimals, err := s.feedDecimals(ctx, aggregator)
	if err != nil {
		return oracle.Reading{}, fmt.Errorf("feed decimals: %w", err)
	}

	data, _ := aggregatorABI.Pack("latestRoundData")
	out, err := call(ctx, s.caller, aggregator, data)
	if err != nil {
		return oracle.Reading{}, err
	}
	values, err := aggregatorABI.Unpack("latestRoundData", out)
	if err != nil {
		return oracle.Reading{}, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return oracle.Reading{}, fmt.Errorf("latestRoundData answer has unexpected type %T", values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return oracle.Reading{}, fmt.Errorf("latestRoundData updatedAt has unexpected type %T", values[3])
	}

	price, err := utils.RawToDec(answer, decimals)
	if err != nil {
		return oracle.Reading{}, fmt.Errorf("convert answer: %w", err)
	}
	return oracle.Reading{
		Price:     price,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0),
	}, nil
}

func (s *ChainlinkSource) feedDecimals(ctx context.Context, aggregator common.Address) (uint8, error) {
	s.mu.Lock()
	cached, ok := s.decimals[aggregator]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, _ := aggregatorABI.Pack("decimals")
	out, err := call(ctx, s.caller, aggregator, data)
	if err != nil {
		return 0, err
	}
	values, err := aggregatorABI.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals has unexpected type %T", values[0])
	}

	s.mu.Lock()
	s.decimals[aggregator] = decimals
	s.mu.Unlock()
	return decimals, nil
}

var _ oracle.Source = (*ChainlinkSource)(nil)
