package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/keeper"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
)

// CallExecutor dry-runs scheduled actions with eth_call against the action's
// target. It never submits transactions; it proves the calldata would not
// revert at the current head.
type CallExecutor struct {
	log    zerolog.Logger
	caller Caller
}

func NewCallExecutor(caller Caller) (*CallExecutor, error) {
	if caller == nil {
		return nil, errors.New("call executor: caller is required")
	}
	return &CallExecutor{
		log:    logger.GetForComponent("call_executor"),
		caller: caller,
	}, nil
}

// Execute implements keeper.Executor.
func (e *CallExecutor) Execute(ctx context.Context, action *types.Action, _ time.Time) error {
	if action == nil {
		return nil
	}
	to := action.Target
	_, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: action.Calldata}, (*big.Int)(nil))
	if err != nil {
		return fmt.Errorf("eth_call %s to %s: %w", action.Name, to.Hex(), err)
	}
	e.log.Info().
		Str("action", action.Name).
		Str("target", to.Hex()).
		Msg("Action dry-run succeeded")
	return nil
}

var _ keeper.Executor = (*CallExecutor)(nil)
