package planner

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scobru/baluni-sub001/internal/types"
)

const (
	testAccount = "0x1111111111111111111111111111111111111111"
	refSymbol   = "USDC"
)

// ref builds an 18-decimal reference value from whole units.
func ref(units int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(units, 18)
}

// raw builds a native amount from whole units at the given decimals.
func raw(units int64, decimals int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(units, decimals)
}

func baseParams() types.StrategyParameters {
	return types.StrategyParameters{
		DeadbandBps:             200,
		SlippageBps:             100,
		VaultAccounting:         true,
		MaxRebalanceBpsPerCycle: 10000,
		MinReferenceBuffer:      0,
		DustThreshold:           0,
	}
}

type holdingSpec struct {
	symbol   string
	decimals int
	vault    string
	direct   int64 // whole units
	vaultBal int64
	accrued  int64
	price    int64 // whole reference units per token
}

func buildSnapshot(specs ...holdingSpec) types.PortfolioSnapshot {
	snapshot := types.PortfolioSnapshot{
		Account:    testAccount,
		Timestamp:  time.Now(),
		Holdings:   make(map[string]types.Holding),
		TotalValue: sdkmath.ZeroInt(),
	}
	for _, s := range specs {
		price := ref(s.price)
		effective := s.direct + s.vaultBal + s.accrued
		value := ref(effective * s.price)
		snapshot.Holdings[s.symbol] = types.Holding{
			Asset: types.Asset{
				Symbol:   s.symbol,
				Address:  "0x2222222222222222222222222222222222222222",
				Decimals: s.decimals,
				Vault:    s.vault,
			},
			DirectBalance:   raw(s.direct, s.decimals),
			VaultBalance:    raw(s.vaultBal, s.decimals),
			AccruedInterest: raw(s.accrued, s.decimals),
			Price:           price,
			Value:           value,
		}
		snapshot.TotalValue = snapshot.TotalValue.Add(value)
	}
	return snapshot
}

func TestBuildPlanUnderweightAssetIsBought(t *testing.T) {
	// TokenX at 4000 bps against a 6000 target; the 2000 bps gap is a $20 buy.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenX", decimals: 18, direct: 40, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 60, price: 1},
	)
	target := types.TargetAllocation{"TokenX": 6000, refSymbol: 4000}

	plan, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, types.ActionBuy, plan[0].Type)
	assert.Equal(t, "TokenX", plan[0].Symbol)
	assert.Equal(t, ref(20).String(), plan[0].AmountReference.String())
}

func TestBuildPlanVaultRedeemCoversSellShortfall(t *testing.T) {
	// TokenX holds 105 units (10 direct, 90 vault, 5 accrued) worth $105 of a
	// $200 portfolio. A 2750 bps target forces a 50 unit sell; only 10 units
	// sit outside the vault, so 40 must be redeemed first.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenX", decimals: 18, vault: "0x3333333333333333333333333333333333333333",
			direct: 10, vaultBal: 90, accrued: 5, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 95, price: 1},
	)
	target := types.TargetAllocation{"TokenX": 2750, refSymbol: 7250}

	plan, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, types.ActionRedeemVault, plan[0].Type)
	assert.Equal(t, "TokenX", plan[0].Symbol)
	assert.Equal(t, raw(40, 18).String(), plan[0].Amount.String())
	assert.Equal(t, testAccount, plan[0].Receiver)
	assert.Equal(t, types.ActionSell, plan[1].Type)
	assert.Equal(t, raw(50, 18).String(), plan[1].AmountIn.String())
}

func TestBuildPlanRejectsBadTargetSums(t *testing.T) {
	snapshot := buildSnapshot(
		holdingSpec{symbol: "A", decimals: 18, direct: 50, price: 1},
		holdingSpec{symbol: "B", decimals: 18, direct: 50, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 0, price: 1},
	)

	for _, sum := range []types.TargetAllocation{
		{"A": 5000, "B": 4999},
		{"A": 5000, "B": 5001},
	} {
		plan, err := New().BuildPlan(snapshot, sum, baseParams(), refSymbol, testAccount, nil)
		require.ErrorIs(t, err, types.ErrConfiguration)
		assert.Empty(t, plan)
	}
}

func TestBuildPlanQuietCycleSweepsIdleBalances(t *testing.T) {
	// Both assets sit exactly on target; idle direct balances go to the vaults.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenX", decimals: 18, vault: "0x3333333333333333333333333333333333333333",
			direct: 10, vaultBal: 40, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, vault: "0x4444444444444444444444444444444444444444",
			direct: 50, price: 1},
	)
	target := types.TargetAllocation{"TokenX": 5000, refSymbol: 5000}

	params := baseParams()
	params.MinReferenceBuffer = 20

	plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, types.ActionDepositVault, plan[0].Type)
	assert.Equal(t, "TokenX", plan[0].Symbol)
	assert.Equal(t, raw(10, 18).String(), plan[0].Amount.String())
	assert.Equal(t, types.ActionDepositVault, plan[1].Type)
	assert.Equal(t, refSymbol, plan[1].Symbol)
	// The reference asset keeps its liquidity buffer out of the vault.
	assert.Equal(t, raw(30, 6).String(), plan[1].Amount.String())
}

func TestBuildPlanQuietCycleWithoutVaultAccountingDoesNothing(t *testing.T) {
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenX", decimals: 18, vault: "0x3333333333333333333333333333333333333333",
			direct: 50, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 50, price: 1},
	)
	target := types.TargetAllocation{"TokenX": 5000, refSymbol: 5000}

	params := baseParams()
	params.VaultAccounting = false

	plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount, nil)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestBuildPlanDeadbandSuppressesSmallDrift(t *testing.T) {
	// 5100 vs 5000 bps is 100 bps of drift, inside the 200 bps deadband.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenX", decimals: 18, direct: 51, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 49, price: 1},
	)
	target := types.TargetAllocation{"TokenX": 5000, refSymbol: 5000}

	plan, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestBuildPlanOrderingAndExclusivity(t *testing.T) {
	// Three drifting assets produce a mixed plan: every funding action must
	// precede every consuming one, and no symbol trades in both directions.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 50, price: 1},  // overweight
		holdingSpec{symbol: "TokenB", decimals: 8, direct: 5, price: 2},    // underweight
		holdingSpec{symbol: "TokenC", decimals: 18, direct: 5, price: 1},   // underweight
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 35, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 2000, "TokenB": 2500, "TokenC": 2000, refSymbol: 3500}

	plan, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.NoError(t, err)
	require.NotEmpty(t, plan)

	seenConsuming := false
	sold := make(map[string]bool)
	bought := make(map[string]bool)
	for _, action := range plan {
		if action.Type.IsFunding() {
			assert.False(t, seenConsuming, "funding action after a consuming action")
		} else {
			seenConsuming = true
		}
		switch action.Type {
		case types.ActionSell:
			sold[action.Symbol] = true
		case types.ActionBuy:
			bought[action.Symbol] = true
		}
		assert.NotEqual(t, refSymbol, action.Symbol, "reference asset must never swap")
	}
	for symbol := range sold {
		assert.False(t, bought[symbol], "%s planned as both sell and buy", symbol)
	}
}

func TestBuildPlanCurrentBpsTruncationBound(t *testing.T) {
	// Integer truncation loses at most (assets - 1) bps of the total.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 33, price: 1},
		holdingSpec{symbol: "TokenB", decimals: 18, direct: 33, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 34, price: 1},
	)

	var sum int64
	for _, h := range snapshot.Holdings {
		sum += h.Value.MulRaw(types.BpsDenominator).Quo(snapshot.TotalValue).Int64()
	}
	assert.LessOrEqual(t, int64(types.BpsDenominator)-sum, int64(len(snapshot.Holdings)-1))
	assert.LessOrEqual(t, sum, int64(types.BpsDenominator))
}

func TestBuildPlanGatingHoldsBackUnconfirmedTrades(t *testing.T) {
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 70, price: 1}, // overweight, wants to sell
		holdingSpec{symbol: "TokenB", decimals: 18, direct: 5, price: 1},  // underweight, wants to buy
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 25, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 4000, "TokenB": 3000, refSymbol: 3000}

	params := baseParams()
	params.TechnicalGating = true
	params.MomentumOverbought = 70
	params.MomentumOversold = 30
	params.StochasticOverbought = 80
	params.StochasticOversold = 20

	tests := []struct {
		name    string
		signals map[string]types.SignalPair
		actions int
	}{
		{
			name: "both confirmed",
			signals: map[string]types.SignalPair{
				"TokenA": {Momentum: 75, Stochastic: 85}, // overbought, sell confirmed
				"TokenB": {Momentum: 25, Stochastic: 15}, // oversold, buy confirmed
			},
			actions: 2,
		},
		{
			name: "neutral signals hold everything",
			signals: map[string]types.SignalPair{
				"TokenA": {Momentum: 50, Stochastic: 50},
				"TokenB": {Momentum: 50, Stochastic: 50},
			},
			actions: 0,
		},
		{
			name: "one signal of two is not enough",
			signals: map[string]types.SignalPair{
				"TokenA": {Momentum: 75, Stochastic: 50},
				"TokenB": {Momentum: 25, Stochastic: 50},
			},
			actions: 0,
		},
		{
			name:    "missing readings drop candidates",
			signals: map[string]types.SignalPair{},
			actions: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount, tt.signals)
			require.NoError(t, err)
			assert.Len(t, plan, tt.actions)
		})
	}
}

func TestBuildPlanGatedCycleIsNotQuiet(t *testing.T) {
	// Candidates existed before gating, so no deposit sweep happens even when
	// gating removes them all.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, vault: "0x3333333333333333333333333333333333333333",
			direct: 70, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, vault: "0x4444444444444444444444444444444444444444",
			direct: 30, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 4000, refSymbol: 6000}

	params := baseParams()
	params.TechnicalGating = true
	params.MomentumOverbought = 70
	params.MomentumOversold = 30
	params.StochasticOverbought = 80
	params.StochasticOversold = 20

	plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount,
		map[string]types.SignalPair{"TokenA": {Momentum: 50, Stochastic: 50}})
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestBuildPlanInsufficientLiquiditySkipsOnlyThatAsset(t *testing.T) {
	// TokenA's sell needs more than direct plus vault holds once values shift;
	// TokenB's sell still goes through.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 40, price: 1},
		holdingSpec{symbol: "TokenB", decimals: 18, direct: 40, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 20, price: 1},
	)
	// Break TokenA's holding so its recorded value exceeds its balances.
	broken := snapshot.Holdings["TokenA"]
	broken.DirectBalance = raw(1, 18)
	snapshot.Holdings["TokenA"] = broken

	target := types.TargetAllocation{"TokenA": 1000, "TokenB": 1000, refSymbol: 8000}

	plan, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, types.ActionSell, plan[0].Type)
	assert.Equal(t, "TokenB", plan[0].Symbol)
}

func TestBuildPlanSellCapScalesProportionally(t *testing.T) {
	// 3000 bps of drift against a 1000 bps cap: the sell shrinks to $10.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 60, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 40, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 3000, refSymbol: 7000}

	params := baseParams()
	params.MaxRebalanceBpsPerCycle = 1000

	plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, types.ActionSell, plan[0].Type)
	assert.Equal(t, raw(10, 18).String(), plan[0].AmountIn.String())
}

func TestBuildPlanBuyShrinksToAvailableLiquidity(t *testing.T) {
	// The buy wants $8 but only $5 of reference is spendable above the buffer
	// and nothing can be sold or redeemed to fund the rest.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 20, price: 1},
		holdingSpec{symbol: "TokenB", decimals: 18, direct: 10, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 10, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 5000, "TokenB": 4500, refSymbol: 500}

	params := baseParams()
	params.MinReferenceBuffer = 5

	plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, types.ActionBuy, plan[0].Type)
	assert.Equal(t, "TokenB", plan[0].Symbol)
	assert.Equal(t, ref(5).String(), plan[0].AmountReference.String())
}

func TestBuildPlanReferenceVaultFundsBuyShortfall(t *testing.T) {
	// No liquid reference at all; the buy is funded by redeeming from the
	// reference asset's own vault.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 40, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, vault: "0x4444444444444444444444444444444444444444",
			direct: 0, vaultBal: 60, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 6000, refSymbol: 4000}

	plan, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, types.ActionRedeemVault, plan[0].Type)
	assert.Equal(t, refSymbol, plan[0].Symbol)
	assert.Equal(t, raw(20, 6).String(), plan[0].Amount.String())
	assert.Equal(t, types.ActionBuy, plan[1].Type)
	assert.Equal(t, "TokenA", plan[1].Symbol)
	assert.Equal(t, ref(20).String(), plan[1].AmountReference.String())
}

func TestBuildPlanDustThresholdDropsTinyActions(t *testing.T) {
	// A $4 buy against a $5 dust threshold produces nothing.
	snapshot := buildSnapshot(
		holdingSpec{symbol: "TokenA", decimals: 18, direct: 38, price: 1},
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 62, price: 1},
	)
	target := types.TargetAllocation{"TokenA": 4200, refSymbol: 5800}

	params := baseParams()
	params.DustThreshold = 5

	plan, err := New().BuildPlan(snapshot, target, params, refSymbol, testAccount, nil)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestBuildPlanRejectsUnknownTargetAsset(t *testing.T) {
	snapshot := buildSnapshot(
		holdingSpec{symbol: refSymbol, decimals: 6, direct: 100, price: 1},
	)
	target := types.TargetAllocation{"Ghost": 5000, refSymbol: 5000}

	_, err := New().BuildPlan(snapshot, target, baseParams(), refSymbol, testAccount, nil)
	require.ErrorIs(t, err, types.ErrConfiguration)
}
