/*

Strategy parameters drive one rebalancing cycle. They are loaded fresh from the
parameter store each cycle, so a reconfiguration takes effect on the next run
without a restart.

*/

package types

import (
	"errors"
	"fmt"
	"math"
)

// TargetWeight is one row of the target allocation table.
type TargetWeight struct {
	Symbol string `json:"symbol"`
	Bps    int64  `json:"bps"`
}

// StrategyParameters are the tunables of the rebalancing engine.
type StrategyParameters struct {
	// DeadbandBps ignores allocation drift at or below this many basis points.
	DeadbandBps int64 `json:"deadband_bps"`

	// SlippageBps is the maximum acceptable swap slippage.
	SlippageBps int64 `json:"slippage_bps"`

	// VaultAccounting includes vault balances and accrued interest in
	// valuation and enables redeem/deposit actions.
	VaultAccounting bool `json:"vault_accounting"`

	// TechnicalGating requires momentum confirmation before a planned trade
	// becomes an action.
	TechnicalGating      bool    `json:"technical_gating"`
	MomentumOverbought   float64 `json:"momentum_overbought"`
	MomentumOversold     float64 `json:"momentum_oversold"`
	StochasticOverbought float64 `json:"stochastic_overbought"`
	StochasticOversold   float64 `json:"stochastic_oversold"`

	// MaxRebalanceBpsPerCycle caps the total value liquidated in one cycle,
	// as basis points of total portfolio value. Sells above the cap are
	// scaled down proportionally; buys are never capped.
	MaxRebalanceBpsPerCycle int64 `json:"max_rebalance_bps_per_cycle"`

	// MinReferenceBuffer is kept liquid in the reference asset, whole units.
	MinReferenceBuffer float64 `json:"min_reference_buffer"`

	// DustThreshold drops planned actions below this value, whole reference units.
	DustThreshold float64 `json:"dust_threshold"`

	// Targets is the desired allocation, basis points per asset, summing to 10000.
	Targets []TargetWeight `json:"targets"`
}

// TargetAllocation converts the target table into the planner's map form.
func (p StrategyParameters) TargetAllocation() TargetAllocation {
	t := make(TargetAllocation, len(p.Targets))
	for _, w := range p.Targets {
		t[w.Symbol] = w.Bps
	}
	return t
}

// Validate checks every field for financial safety before a cycle runs.
func (p StrategyParameters) Validate() error {
	if p.DeadbandBps < 0 || p.DeadbandBps >= BpsDenominator {
		return errors.Join(ErrConfiguration,
			fmt.Errorf("deadband out of range: %d bps", p.DeadbandBps))
	}
	if p.SlippageBps < 0 || p.SlippageBps >= BpsDenominator {
		return errors.Join(ErrConfiguration,
			fmt.Errorf("slippage tolerance out of range: %d bps", p.SlippageBps))
	}
	if p.MaxRebalanceBpsPerCycle <= 0 || p.MaxRebalanceBpsPerCycle > BpsDenominator {
		return errors.Join(ErrConfiguration,
			fmt.Errorf("max rebalance per cycle out of range: %d bps", p.MaxRebalanceBpsPerCycle))
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"momentum_overbought", p.MomentumOverbought},
		{"momentum_oversold", p.MomentumOversold},
		{"stochastic_overbought", p.StochasticOverbought},
		{"stochastic_oversold", p.StochasticOversold},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) || v.value < 0 || v.value > 100 {
			return errors.Join(ErrConfiguration,
				fmt.Errorf("%s must be within [0, 100], got %f", v.name, v.value))
		}
	}
	if p.TechnicalGating {
		if p.MomentumOversold >= p.MomentumOverbought {
			return errors.Join(ErrConfiguration,
				errors.New("momentum oversold threshold must be below overbought"))
		}
		if p.StochasticOversold >= p.StochasticOverbought {
			return errors.Join(ErrConfiguration,
				errors.New("stochastic oversold threshold must be below overbought"))
		}
	}
	if math.IsNaN(p.MinReferenceBuffer) || math.IsInf(p.MinReferenceBuffer, 0) || p.MinReferenceBuffer < 0 {
		return errors.Join(ErrConfiguration,
			fmt.Errorf("min reference buffer invalid: %f", p.MinReferenceBuffer))
	}
	if math.IsNaN(p.DustThreshold) || math.IsInf(p.DustThreshold, 0) || p.DustThreshold < 0 {
		return errors.Join(ErrConfiguration,
			fmt.Errorf("dust threshold invalid: %f", p.DustThreshold))
	}
	seen := make(map[string]struct{}, len(p.Targets))
	for _, w := range p.Targets {
		if w.Symbol == "" {
			return errors.Join(ErrConfiguration, errors.New("target weight with empty symbol"))
		}
		if _, dup := seen[w.Symbol]; dup {
			return errors.Join(ErrConfiguration,
				fmt.Errorf("duplicate target weight for %s", w.Symbol))
		}
		seen[w.Symbol] = struct{}{}
	}
	return p.TargetAllocation().Validate()
}
