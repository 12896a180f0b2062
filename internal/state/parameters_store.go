// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scobru/baluni-sub001/internal/types"
)

// SaveStrategyParameters saves a new version of strategy parameters.
func SaveStrategyParameters(params types.StrategyParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to save invalid parameters: %w", err)
	}

	targetsJSON, err := json.Marshal(params.Targets)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal targets: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE strategy_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO strategy_parameters (
            version, config_name, is_active, activated_at, created_at,
            deadband_bps, slippage_bps, vault_accounting, technical_gating,
            momentum_overbought, momentum_oversold,
            stochastic_overbought, stochastic_oversold,
            max_rebalance_bps_per_cycle, min_reference_buffer, dust_threshold,
            targets
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9,
            $10, $11,
            $12, $13,
            $14, $15, $16,
            $17
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.DeadbandBps, params.SlippageBps, params.VaultAccounting, params.TechnicalGating,
		params.MomentumOverbought, params.MomentumOversold,
		params.StochasticOverbought, params.StochasticOversold,
		params.MaxRebalanceBpsPerCycle, params.MinReferenceBuffer, params.DustThreshold,
		targetsJSON,
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert strategy parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved strategy parameters")
	return paramsID, nil
}

// LoadActiveStrategyParameters loads the currently active strategy parameters.
func LoadActiveStrategyParameters(configName string) (*types.StrategyParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            deadband_bps, slippage_bps, vault_accounting, technical_gating,
            momentum_overbought, momentum_oversold,
            stochastic_overbought, stochastic_oversold,
            max_rebalance_bps_per_cycle, min_reference_buffer, dust_threshold,
            targets
        FROM strategy_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.StrategyParameters{}
	var targetsJSON []byte
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&p.DeadbandBps, &p.SlippageBps, &p.VaultAccounting, &p.TechnicalGating,
		&p.MomentumOverbought, &p.MomentumOversold,
		&p.StochasticOverbought, &p.StochasticOversold,
		&p.MaxRebalanceBpsPerCycle, &p.MinReferenceBuffer, &p.DustThreshold,
		&targetsJSON,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active strategy parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active strategy parameters for config '%s': %w", configName, err)
	}

	if err := json.Unmarshal(targetsJSON, &p.Targets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal targets for config '%s': %w", configName, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("stored parameters for config '%s' are invalid: %w", configName, err)
	}

	log.Info().Str("config", configName).Msg("Loaded active strategy parameters")
	return p, nil
}

// GetActiveStrategyParametersID returns the params_id of the currently active
// strategy parameters, or nil when none are active.
func GetActiveStrategyParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM strategy_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug().Str("config", configName).Msg("No active strategy parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active strategy parameters ID for config '%s': %w", configName, err)
	}

	return &paramsID, nil
}
