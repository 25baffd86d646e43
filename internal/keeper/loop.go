/*

This file contains the keeper's polling loop. Each cycle gets a uuid for log
tracing, computes at most one action, executes it, and persists an
ActionSnapshot regardless of outcome.

*/

package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/types"
)

// Recorder persists keeper cycles. Implemented by the Postgres state layer.
type Recorder interface {
	NextCycleNumber() (int, error)
	SaveActionSnapshot(snapshot types.ActionSnapshot) (int64, error)
}

// Service ties the scheduler, an executor, and the cycle recorder into the
// long-running keeper process.
type Service struct {
	log      zerolog.Logger
	keeper   *Keeper
	executor Executor
	recorder Recorder
}

func NewService(k *Keeper, exec Executor, rec Recorder) (*Service, error) {
	if k == nil || exec == nil || rec == nil {
		return nil, errors.New("keeper service: missing dependency")
	}
	return &Service{
		log:      logger.GetForComponent("keeper_service"),
		keeper:   k,
		executor: exec,
		recorder: rec,
	}, nil
}

// RunLoop polls on the given interval until the context is cancelled. The
// first cycle runs immediately.
func (s *Service) RunLoop(ctx context.Context, interval time.Duration) {
	s.log.Info().Dur("interval", interval).Msg("Starting keeper loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one poll: compute the next action, execute it, record
// the snapshot. Execution failures are recorded, never fatal to the loop.
func (s *Service) RunCycle(ctx context.Context) {
	start := time.Now()
	cycleID := uuid.New().String()
	cycleLogger := s.log.With().Str("cycle_id", cycleID).Logger()

	cycleNumber, err := s.recorder.NextCycleNumber()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to get cycle number, using fallback")
		cycleNumber = int(start.Unix() % 1000000)
	}
	cycleLogger.Info().Int("cycle", cycleNumber).Msg("--- Starting keeper cycle ---")

	action, err := s.keeper.NextAction(ctx, start)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to compute next action")
		s.save(cycleLogger, s.snapshot(ctx, cycleNumber, cycleID, start, nil, false, fmt.Sprintf("scheduling failed: %v", err)))
		return
	}

	if action == nil {
		cycleLogger.Info().Msg("No action required this cycle")
		s.save(cycleLogger, s.snapshot(ctx, cycleNumber, cycleID, start, nil, false, ""))
		return
	}

	cycleLogger.Info().
		Str("action", action.Name).
		Str("target", action.Target.Hex()).
		Str("calldata", action.CalldataHex()).
		Msg("Executing action")

	result := "ok"
	executed := true
	if err := s.executor.Execute(ctx, action, start); err != nil {
		cycleLogger.Error().Err(err).Str("action", action.Name).Msg("Action execution failed")
		executed = false
		result = err.Error()
	}

	s.save(cycleLogger, s.snapshot(ctx, cycleNumber, cycleID, start, action, executed, result))
	cycleLogger.Info().
		Str("cycleDuration", time.Since(start).String()).
		Msg("--- Keeper cycle completed ---")
}

func (s *Service) snapshot(ctx context.Context, cycleNumber int, cycleID string, start time.Time,
	action *types.Action, executed bool, result string) types.ActionSnapshot {
	status := s.keeper.Status(ctx, start)
	snap := types.ActionSnapshot{
		CycleNumber:         cycleNumber,
		CycleID:             cycleID,
		Timestamp:           start,
		BasketNonce:         status.BasketNonce,
		BasketStatus:        status.BasketStatus,
		FullyCollateralized: status.FullyCollateralized,
		BasketsHeld:         status.BasketsHeld,
		BasketsNeeded:       status.BasketsNeeded,
		Executed:            executed,
		Result:              result,
		DurationMs:          time.Since(start).Milliseconds(),
	}
	if action != nil {
		snap.ActionName = action.Name
		snap.ActionTarget = action.Target.Hex()
		snap.Calldata = action.CalldataHex()
	}
	return snap
}

func (s *Service) save(log zerolog.Logger, snap types.ActionSnapshot) {
	snapshotID, err := s.recorder.SaveActionSnapshot(snap)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save action snapshot")
		return
	}
	log.Info().Int64("snapshot_id", snapshotID).Msg("Action snapshot saved")
}
