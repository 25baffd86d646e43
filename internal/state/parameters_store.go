/*

This file persists protocol parameters. Parameters are versioned per config
name; exactly one version per name is active at a time.

*/

package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/rtoken-labs/rvm/internal/types"
)

// SaveProtocolParameters inserts a new parameter version and activates it,
// deactivating any previously active version for the same config name.
func SaveProtocolParameters(configName string, version int, params types.ProtocolParameters) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to save invalid parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deactivateQuery := `UPDATE protocol_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
	if _, err := tx.Exec(deactivateQuery, configName); err != nil {
		return 0, fmt.Errorf("failed to deactivate previous parameters: %w", err)
	}

	insertQuery := `
		INSERT INTO protocol_parameters (
			version, config_name, is_active, activated_at,
			max_trade_slippage, min_trade_volume, max_trade_volume,
			auction_length_seconds, rtoken_dist, rsr_dist
		) VALUES ($1, $2, TRUE, CURRENT_TIMESTAMP, $3, $4, $5, $6, $7, $8)
		RETURNING params_id;`

	var paramsID int64
	err = tx.QueryRow(insertQuery,
		version, configName,
		params.MaxTradeSlippage.String(),
		params.MinTradeVolume.String(),
		params.MaxTradeVolume.String(),
		int64(params.AuctionLength/time.Second),
		params.RTokenDist,
		params.RSRDist,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert protocol parameters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit parameters transaction: %w", err)
	}

	log.Info().
		Int64("params_id", paramsID).
		Str("configName", configName).
		Int("version", version).
		Msg("Protocol parameters saved and activated")
	return paramsID, nil
}

// GetActiveProtocolParameters loads the active parameter set for a config
// name, or sql.ErrNoRows if none has been saved yet.
func GetActiveProtocolParameters(configName string) (*types.ProtocolParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT max_trade_slippage, min_trade_volume, max_trade_volume,
		       auction_length_seconds, rtoken_dist, rsr_dist
		FROM protocol_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var (
		slippageStr, minVolStr, maxVolStr string
		auctionSeconds                    int64
		rtokenDist, rsrDist               uint64
	)
	err := DB.QueryRow(query, configName).Scan(
		&slippageStr, &minVolStr, &maxVolStr, &auctionSeconds, &rtokenDist, &rsrDist)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load active protocol parameters: %w", err)
	}

	slippage, err := sdkmath.LegacyNewDecFromStr(slippageStr)
	if err != nil {
		return nil, fmt.Errorf("stored max_trade_slippage is malformed: %w", err)
	}
	minVol, err := sdkmath.LegacyNewDecFromStr(minVolStr)
	if err != nil {
		return nil, fmt.Errorf("stored min_trade_volume is malformed: %w", err)
	}
	maxVol, err := sdkmath.LegacyNewDecFromStr(maxVolStr)
	if err != nil {
		return nil, fmt.Errorf("stored max_trade_volume is malformed: %w", err)
	}

	params := &types.ProtocolParameters{
		MaxTradeSlippage: slippage,
		MinTradeVolume:   minVol,
		MaxTradeVolume:   maxVol,
		AuctionLength:    time.Duration(auctionSeconds) * time.Second,
		RTokenDist:       rtokenDist,
		RSRDist:          rsrDist,
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("stored parameters failed validation: %w", err)
	}
	return params, nil
}

// GetActiveProtocolParametersID retrieves the active parameter row ID for a
// config name, nil when none exists.
func GetActiveProtocolParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT params_id FROM protocol_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var paramsID int64
	err := DB.QueryRow(query, configName).Scan(&paramsID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active parameters ID: %w", err)
	}
	return &paramsID, nil
}
