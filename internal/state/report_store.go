// ./internal/state/report_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/scobru/baluni-sub001/internal/types"
)

// SaveCycleReport saves a complete cycle report to the database.
func SaveCycleReport(report types.CycleReport) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	initialHoldingsJSON, err := json.Marshal(report.InitialHoldings)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal initial_holdings: %w", err)
	}

	finalHoldingsJSON, err := json.Marshal(report.FinalHoldings)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal final_holdings: %w", err)
	}

	targetAllocationsJSON, err := json.Marshal(report.TargetAllocations)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal target_allocations: %w", err)
	}

	actionPlanJSON, err := json.Marshal(report.Plan)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal action_plan: %w", err)
	}

	actionReceiptsJSON, err := json.Marshal(report.Receipts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal action_receipts: %w", err)
	}

	query := `
		INSERT INTO cycle_reports (
			cycle_number, cycle_id, report_timestamp, account,
			initial_total_value, initial_holdings,
			target_allocations, action_plan,
			final_total_value, final_holdings,
			transaction_hashes, action_receipts,
			net_change, failure_stage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING report_id;
	`

	var reportID int64
	err = DB.QueryRow(
		query,
		report.CycleNumber, report.CycleID, report.Timestamp, report.Account,
		report.InitialTotalValue, initialHoldingsJSON,
		targetAllocationsJSON, actionPlanJSON,
		report.FinalTotalValue, finalHoldingsJSON,
		pq.Array(report.TransactionHashes), actionReceiptsJSON,
		report.NetChange, report.FailureStage,
	).Scan(&reportID)

	if err != nil {
		return 0, fmt.Errorf("failed to save cycle report: %w", err)
	}

	log.Info().
		Int64("report_id", reportID).
		Int("cycle_number", report.CycleNumber).
		Float64("final_total_value", report.FinalTotalValue).
		Msg("Cycle report saved to database")

	return reportID, nil
}

// LoadCycleReport loads a single cycle report by its report_id.
func LoadCycleReport(reportID int64) (*types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := selectReportColumns + ` WHERE report_id = $1;`
	row := DB.QueryRow(query, reportID)

	report, err := scanReport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("cycle report %d not found", reportID)
		}
		return nil, fmt.Errorf("failed to load cycle report %d: %w", reportID, err)
	}
	return report, nil
}

// LoadLatestCycleReport loads the most recent cycle report.
func LoadLatestCycleReport() (*types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := selectReportColumns + ` ORDER BY report_timestamp DESC LIMIT 1;`
	row := DB.QueryRow(query)

	report, err := scanReport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no cycle reports recorded yet")
		}
		return nil, fmt.Errorf("failed to load latest cycle report: %w", err)
	}
	return report, nil
}

// LoadRecentCycleReports loads up to `limit` reports, newest first.
func LoadRecentCycleReports(limit int) ([]types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := selectReportColumns + ` ORDER BY report_timestamp DESC LIMIT $1;`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle reports: %w", err)
	}
	defer rows.Close()

	var reports []types.CycleReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	log.Debug().Int("count", len(reports)).Msg("Loaded recent cycle reports")
	return reports, nil
}

const selectReportColumns = `
	SELECT report_id, cycle_number, cycle_id, report_timestamp, account,
		initial_total_value, initial_holdings,
		target_allocations, action_plan,
		final_total_value, final_holdings,
		transaction_hashes, action_receipts,
		net_change, failure_stage
	FROM cycle_reports`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*types.CycleReport, error) {
	var (
		report              types.CycleReport
		initialHoldingsJSON []byte
		finalHoldingsJSON   []byte
		targetsJSON         []byte
		planJSON            []byte
		receiptsJSON        []byte
		failureStage        sql.NullString
	)

	err := row.Scan(
		&report.ReportID, &report.CycleNumber, &report.CycleID, &report.Timestamp, &report.Account,
		&report.InitialTotalValue, &initialHoldingsJSON,
		&targetsJSON, &planJSON,
		&report.FinalTotalValue, &finalHoldingsJSON,
		pq.Array(&report.TransactionHashes), &receiptsJSON,
		&report.NetChange, &failureStage,
	)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		raw  []byte
		dest any
	}{
		{initialHoldingsJSON, &report.InitialHoldings},
		{finalHoldingsJSON, &report.FinalHoldings},
		{targetsJSON, &report.TargetAllocations},
		{planJSON, &report.Plan},
		{receiptsJSON, &report.Receipts},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report field: %w", err)
		}
	}

	report.FailureStage = failureStage.String
	return &report, nil
}
