/*

Cycle orchestration. The engine owns one full rebalancing cycle: load the
active strategy parameters, value the portfolio, gather momentum signals when
gating is on, build the plan, execute it, revalue, and persist a cycle report.
Every collaborator arrives through the constructor; the engine holds no
process-global state, so two engines for different accounts can run in the
same process.

A cycle aborts on configuration and valuation failures, before anything is
submitted anywhere. Execution failures never abort the cycle; they are
recorded per action and the next cycle revalues from scratch.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/config"
	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/metrics"
	"github.com/scobru/baluni-sub001/internal/signals"
	"github.com/scobru/baluni-sub001/internal/state"
	"github.com/scobru/baluni-sub001/internal/types"
	"github.com/scobru/baluni-sub001/internal/utils"
)

const (
	DEFAULT_CONFIG_NAME    = "default_strategy"
	DEFAULT_CONFIG_VERSION = 1
)

// SnapshotBuilder values the portfolio.
type SnapshotBuilder interface {
	Snapshot(ctx context.Context, vaultAccounting bool) (types.PortfolioSnapshot, error)
}

// PlanBuilder turns a snapshot into an ordered action plan.
type PlanBuilder interface {
	BuildPlan(snapshot types.PortfolioSnapshot, target types.TargetAllocation,
		params types.StrategyParameters, referenceSymbol, account string,
		signalData map[string]types.SignalPair) ([]types.RebalanceAction, error)
}

// PlanExecutor runs a plan and reports per-action outcomes.
type PlanExecutor interface {
	Execute(ctx context.Context, plan []types.RebalanceAction, params types.StrategyParameters) []types.ActionReceipt
}

// Config wires an Engine. All fields are required except Signals, which may
// be nil when technical gating is never enabled.
type Config struct {
	Valuer    SnapshotBuilder
	Planner   PlanBuilder
	Sequencer PlanExecutor
	Signals   signals.Source

	Account         string
	ReferenceSymbol string

	// ConfigName selects the strategy parameter set in the store.
	ConfigName string
}

// Validate checks that the engine can actually run with this configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Valuer == nil {
		errs = append(errs, errors.New("valuer is required"))
	}
	if c.Planner == nil {
		errs = append(errs, errors.New("planner is required"))
	}
	if c.Sequencer == nil {
		errs = append(errs, errors.New("sequencer is required"))
	}
	if c.Account == "" {
		errs = append(errs, errors.New("account is required"))
	}
	if c.ReferenceSymbol == "" {
		errs = append(errs, errors.New("reference symbol is required"))
	}
	if c.ConfigName == "" {
		errs = append(errs, errors.New("config name is required"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{types.ErrConfiguration}, errs...)...)
	}
	return nil
}

// Engine runs rebalancing cycles.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// New creates an Engine, failing on incomplete wiring.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, log: logger.GetForComponent("engine")}, nil
}

// RunCycle executes one complete rebalancing cycle. The returned error covers
// cycle-level aborts only; per-action failures live in the persisted report.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	cycleID := uuid.New().String()
	log := e.log.With().Str("cycle_id", cycleID).Logger()

	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		metrics.ObserveCycle("failure", time.Since(start).Seconds())
		return fmt.Errorf("cycle counter: %w", err)
	}
	log = log.With().Int("cycle", cycleNumber).Logger()
	log.Info().Msg("Cycle started")

	report := types.CycleReport{
		CycleNumber: cycleNumber,
		CycleID:     cycleID,
		Timestamp:   start.UTC(),
		Account:     e.cfg.Account,
	}

	params := e.loadParameters(log)
	if err := params.Validate(); err != nil {
		return e.abort(log, &report, "configuration", start, err)
	}
	target := params.TargetAllocation()
	report.TargetAllocations = target

	snapshot, err := e.cfg.Valuer.Snapshot(ctx, params.VaultAccounting)
	if err != nil {
		return e.abort(log, &report, "valuation", start, err)
	}
	report.InitialTotalValue = totalValueFloat(snapshot)
	report.InitialHoldings = holdingReports(snapshot)
	metrics.PortfolioValue.Set(report.InitialTotalValue)

	signalData := e.gatherSignals(ctx, log, params, target)

	plan, err := e.cfg.Planner.BuildPlan(snapshot, target, params, e.cfg.ReferenceSymbol, e.cfg.Account, signalData)
	if err != nil {
		return e.abort(log, &report, "planning", start, err)
	}
	report.Plan = plan

	if len(plan) == 0 {
		log.Info().Msg("Nothing to do this cycle")
	} else {
		receipts := e.cfg.Sequencer.Execute(ctx, plan, params)
		report.Receipts = receipts
		for _, r := range receipts {
			metrics.ObserveAction(string(r.Action.Type), r.Success)
			if r.TxHash != "" {
				report.TransactionHashes = append(report.TransactionHashes, r.TxHash)
			}
		}
	}

	// The closing valuation is best effort. Losing it costs report detail,
	// not correctness, since the next cycle revalues anyway.
	if final, err := e.cfg.Valuer.Snapshot(ctx, params.VaultAccounting); err != nil {
		log.Warn().Err(err).Msg("Final valuation failed, report keeps initial values")
		report.FinalTotalValue = report.InitialTotalValue
		report.FinalHoldings = report.InitialHoldings
	} else {
		report.FinalTotalValue = totalValueFloat(final)
		report.FinalHoldings = holdingReports(final)
		metrics.PortfolioValue.Set(report.FinalTotalValue)
	}
	report.NetChange = report.FinalTotalValue - report.InitialTotalValue

	e.persistReport(log, report)

	metrics.ObserveCycle("success", time.Since(start).Seconds())
	log.Info().
		Int("actions", len(report.Receipts)).
		Float64("net_change", report.NetChange).
		Dur("duration", time.Since(start)).
		Msg("Cycle completed")
	return nil
}

// loadParameters fetches the active parameter set, falling back to compiled
// defaults when the store has none.
func (e *Engine) loadParameters(log zerolog.Logger) types.StrategyParameters {
	params, err := state.LoadActiveStrategyParameters(e.cfg.ConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("No active strategy parameters, using defaults")
		return config.DefaultStrategyParameters
	}
	return *params
}

// gatherSignals fetches momentum readings for every non-reference target
// asset. A failed reading is omitted; the planner then holds that asset back
// rather than trading unconfirmed.
func (e *Engine) gatherSignals(ctx context.Context, log zerolog.Logger, params types.StrategyParameters, target types.TargetAllocation) map[string]types.SignalPair {
	if !params.TechnicalGating || e.cfg.Signals == nil {
		return nil
	}

	signalData := make(map[string]types.SignalPair, len(target))
	for symbol := range target {
		if symbol == e.cfg.ReferenceSymbol {
			continue
		}
		pair, err := e.cfg.Signals.GetSignals(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("asset", symbol).Msg("Signal fetch failed, asset will not trade this cycle")
			continue
		}
		signalData[symbol] = pair
	}
	return signalData
}

func (e *Engine) abort(log zerolog.Logger, report *types.CycleReport, stage string, start time.Time, err error) error {
	report.FailureStage = stage
	report.FinalTotalValue = report.InitialTotalValue
	report.FinalHoldings = report.InitialHoldings
	e.persistReport(log, *report)

	metrics.ObserveCycle("failure", time.Since(start).Seconds())
	log.Error().Err(err).Str("stage", stage).Msg("Cycle aborted")
	return fmt.Errorf("%s: %w", stage, err)
}

func (e *Engine) persistReport(log zerolog.Logger, report types.CycleReport) {
	if _, err := state.SaveCycleReport(report); err != nil {
		log.Error().Err(err).Msg("Failed to persist cycle report")
	}
}

func totalValueFloat(snapshot types.PortfolioSnapshot) float64 {
	v, err := utils.ReferenceToFloat64(snapshot.TotalValue)
	if err != nil {
		return 0
	}
	return v
}

func holdingReports(snapshot types.PortfolioSnapshot) []types.HoldingReport {
	reports := make([]types.HoldingReport, 0, len(snapshot.Holdings))
	for _, h := range snapshot.Holdings {
		value, err := utils.ReferenceToFloat64(h.Value)
		if err != nil {
			value = 0
		}
		var allocationBps int64
		if snapshot.TotalValue.IsPositive() {
			allocationBps = h.Value.MulRaw(types.BpsDenominator).Quo(snapshot.TotalValue).Int64()
		}
		reports = append(reports, types.HoldingReport{
			Symbol:          h.Asset.Symbol,
			DirectBalance:   h.DirectBalance.String(),
			VaultBalance:    h.VaultBalance.String(),
			AccruedInterest: h.AccruedInterest.String(),
			Value:           value,
			AllocationBps:   allocationBps,
		})
	}
	return reports
}
