package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/bank"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
	"github.com/rtoken-labs/rvm/internal/utils"
)

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI = mustParseERC20ABI()

func mustParseERC20ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("erc20 ABI is malformed: %v", err))
	}
	return parsed
}

// ERC20Ledger is a read-only bank.Ledger backed by on-chain balanceOf reads
// of a single holder. Sync refreshes the snapshot; reads between syncs are
// served from the snapshot so one keeper cycle sees one consistent view.
type ERC20Ledger struct {
	log     zerolog.Logger
	caller  Caller
	holder  common.Address
	tracked []types.ERC20

	balances map[common.Address]sdkmath.LegacyDec
}

func NewERC20Ledger(caller Caller, holder common.Address, tracked []types.ERC20) (*ERC20Ledger, error) {
	if caller == nil {
		return nil, errors.New("erc20 ledger: caller is required")
	}
	if holder == (common.Address{}) {
		return nil, errors.New("erc20 ledger: holder address is required")
	}
	if len(tracked) == 0 {
		return nil, errors.New("erc20 ledger: at least one tracked token is required")
	}
	return &ERC20Ledger{
		log:      logger.GetForComponent("erc20_ledger").With().Str("holder", holder.Hex()).Logger(),
		caller:   caller,
		holder:   holder,
		tracked:  tracked,
		balances: make(map[common.Address]sdkmath.LegacyDec),
	}, nil
}

// Sync refreshes the balance snapshot for every tracked token.
func (l *ERC20Ledger) Sync(ctx context.Context) error {
	fresh := make(map[common.Address]sdkmath.LegacyDec, len(l.tracked))
	for _, erc20 := range l.tracked {
		data, _ := erc20ABI.Pack("balanceOf", l.holder)
		out, err := call(ctx, l.caller, erc20.Address, data)
		if err != nil {
			return fmt.Errorf("balanceOf %s: %w", erc20.Symbol, err)
		}
		values, err := erc20ABI.Unpack("balanceOf", out)
		if err != nil {
			return fmt.Errorf("unpack balanceOf %s: %w", erc20.Symbol, err)
		}
		raw, ok := values[0].(*big.Int)
		if !ok {
			return fmt.Errorf("balanceOf %s has unexpected type %T", erc20.Symbol, values[0])
		}
		balance, err := utils.RawToDec(raw, erc20.Decimals)
		if err != nil {
			return fmt.Errorf("convert balance of %s: %w", erc20.Symbol, err)
		}
		fresh[erc20.Address] = balance
	}
	l.balances = fresh
	l.log.Debug().Int("tokens", len(fresh)).Msg("Balance snapshot refreshed")
	return nil
}

// Balance implements bank.Ledger from the last snapshot.
func (l *ERC20Ledger) Balance(erc20 common.Address) sdkmath.LegacyDec {
	if bal, ok := l.balances[erc20]; ok {
		return bal
	}
	return sdkmath.LegacyZeroDec()
}

// Tokens implements bank.Ledger with the tracked token set.
func (l *ERC20Ledger) Tokens() []common.Address {
	out := make([]common.Address, 0, len(l.tracked))
	for _, erc20 := range l.tracked {
		out = append(out, erc20.Address)
	}
	return out
}

var _ bank.Ledger = (*ERC20Ledger)(nil)
