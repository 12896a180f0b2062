/*

Default strategy parameters, used when no active parameter set exists in the
database. The first run persists these so later adjustments happen through the
parameter store rather than a redeploy.

*/

package config

import (
	"github.com/scobru/baluni-sub001/internal/types"
)

// DefaultStrategyParameters is the baseline strategy configuration.
var DefaultStrategyParameters = types.StrategyParameters{
	// Ignore drift at or below 0.75%. Transaction costs make tighter
	// tracking uneconomical.
	DeadbandBps: 75,

	// Reject swaps losing more than 1% to slippage.
	SlippageBps: 100,

	// Count vault shares and accrued yield toward each asset's balance and
	// allow redeem/deposit actions.
	VaultAccounting: true,

	// Momentum gating is off by default; when on, a sell needs both signals
	// overbought and a buy needs both oversold.
	TechnicalGating:      false,
	MomentumOverbought:   70,
	MomentumOversold:     30,
	StochasticOverbought: 80,
	StochasticOversold:   20,

	// Liquidate at most 20% of portfolio value per cycle.
	MaxRebalanceBpsPerCycle: 2000,

	// Keep at least 50 reference units liquid for gas-adjacent precision slack.
	MinReferenceBuffer: 50,

	// Drop planned actions worth less than one reference unit.
	DustThreshold: 1,

	Targets: []types.TargetWeight{
		{Symbol: "WETH", Bps: 4000},
		{Symbol: "WBTC", Bps: 3000},
		{Symbol: "USDC", Bps: 3000},
	},
}
