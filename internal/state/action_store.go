/*

This file persists keeper action snapshots, one row per cycle, whether or not
an action was scheduled.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rtoken-labs/rvm/internal/types"
)

// SaveActionSnapshot stores one keeper cycle and returns its row ID.
func SaveActionSnapshot(snapshot types.ActionSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	insertQuery := `
		INSERT INTO action_snapshots (
			cycle_number, cycle_id, snapshot_timestamp,
			basket_nonce, basket_status, fully_collateralized,
			baskets_held, baskets_needed,
			action_name, action_target, calldata,
			executed, result, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING snapshot_id;`

	var snapshotID int64
	err := DB.QueryRow(insertQuery,
		snapshot.CycleNumber,
		snapshot.CycleID,
		snapshot.Timestamp,
		int64(snapshot.BasketNonce),
		snapshot.BasketStatus,
		snapshot.FullyCollateralized,
		snapshot.BasketsHeld,
		snapshot.BasketsNeeded,
		snapshot.ActionName,
		snapshot.ActionTarget,
		snapshot.Calldata,
		snapshot.Executed,
		snapshot.Result,
		snapshot.DurationMs,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert action snapshot: %w", err)
	}
	return snapshotID, nil
}

// GetRecentActionSnapshots loads the most recent cycles, newest first.
func GetRecentActionSnapshots(limit int) ([]types.ActionSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp,
		       basket_nonce, basket_status, fully_collateralized,
		       baskets_held, baskets_needed,
		       COALESCE(action_name, ''), COALESCE(action_target, ''), COALESCE(calldata, ''),
		       executed, COALESCE(result, ''), duration_ms
		FROM action_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query action snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.ActionSnapshot
	for rows.Next() {
		var snap types.ActionSnapshot
		var basketNonce int64
		err := rows.Scan(
			&snap.SnapshotID,
			&snap.CycleNumber,
			&snap.CycleID,
			&snap.Timestamp,
			&basketNonce,
			&snap.BasketStatus,
			&snap.FullyCollateralized,
			&snap.BasketsHeld,
			&snap.BasketsNeeded,
			&snap.ActionName,
			&snap.ActionTarget,
			&snap.Calldata,
			&snap.Executed,
			&snap.Result,
			&snap.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action snapshot: %w", err)
		}
		snap.BasketNonce = uint64(basketNonce)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action snapshots: %w", err)
	}
	return snapshots, nil
}

// GetActionSnapshotsByName loads recent cycles for one action name.
func GetActionSnapshotsByName(actionName string, limit int) ([]types.ActionSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp,
		       basket_nonce, basket_status, fully_collateralized,
		       baskets_held, baskets_needed,
		       COALESCE(action_name, ''), COALESCE(action_target, ''), COALESCE(calldata, ''),
		       executed, COALESCE(result, ''), duration_ms
		FROM action_snapshots
		WHERE action_name = $1
		ORDER BY snapshot_timestamp DESC
		LIMIT $2;`

	rows, err := DB.Query(query, actionName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query action snapshots by name: %w", err)
	}
	defer rows.Close()

	var snapshots []types.ActionSnapshot
	for rows.Next() {
		var snap types.ActionSnapshot
		var basketNonce int64
		err := rows.Scan(
			&snap.SnapshotID,
			&snap.CycleNumber,
			&snap.CycleID,
			&snap.Timestamp,
			&basketNonce,
			&snap.BasketStatus,
			&snap.FullyCollateralized,
			&snap.BasketsHeld,
			&snap.BasketsNeeded,
			&snap.ActionName,
			&snap.ActionTarget,
			&snap.Calldata,
			&snap.Executed,
			&snap.Result,
			&snap.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action snapshot: %w", err)
		}
		snap.BasketNonce = uint64(basketNonce)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action snapshots: %w", err)
	}
	return snapshots, nil
}

// LatestCycleID returns the most recent cycle's ID, empty when no cycles
// have been recorded.
func LatestCycleID() (string, error) {
	if DB == nil {
		return "", fmt.Errorf("database not initialized")
	}
	var cycleID string
	err := DB.QueryRow(`SELECT cycle_id FROM action_snapshots ORDER BY snapshot_timestamp DESC LIMIT 1;`).Scan(&cycleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get latest cycle ID: %w", err)
	}
	return cycleID, nil
}

// Recorder adapts the state package to the keeper's Recorder interface.
type Recorder struct{}

func (Recorder) NextCycleNumber() (int, error) {
	return IncrementCycleNumber()
}

func (Recorder) SaveActionSnapshot(snapshot types.ActionSnapshot) (int64, error) {
	id, err := SaveActionSnapshot(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist action snapshot")
	}
	return id, err
}
