/*

Allocation planning, the decision core of the rebalancer. One call turns a
portfolio snapshot plus a target allocation into an ordered action plan:

 1. Per-asset drift is measured in basis points against the target, with a
    deadband so sub-threshold drift never trades.
 2. Overweight assets become sell candidates sized in native units, underweight
    assets become buy candidates sized in reference value. The reference asset
    itself never trades; it is the settlement leg.
 3. Optional momentum gating drops candidates trading against short-term
    momentum.
 4. Sells are capped per cycle, ordered largest first, and preceded by vault
    redemptions whenever the direct balance cannot cover them.
 5. Buys are funded from simulated post-sell liquidity, topped up from the
    reference vault if needed, and shrunk to what is actually available.

On a quiet cycle (no candidates at all) idle balances are swept into their
yield vaults instead.

All arithmetic is integer fixed-point and truncating. Truncation under-sells
and under-buys, which is the safe direction on both legs.

*/

package planner

import (
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/types"
	"github.com/scobru/baluni-sub001/internal/utils"
)

// candidate is a provisional trade before gating, capping and liquidity
// resolution.
type candidate struct {
	symbol string
	// Absolute drift beyond the deadband, in bps of total value.
	driftBps int64
	// Trade size in 18-decimal reference units.
	value sdkmath.Int
}

// Planner builds rebalancing plans. Stateless; everything a cycle needs
// arrives through BuildPlan's arguments.
type Planner struct {
	log zerolog.Logger
}

// New creates a Planner.
func New() *Planner {
	return &Planner{log: logger.GetForComponent("planner")}
}

// BuildPlan computes the ordered action list for one cycle. signalData may be
// nil when technical gating is disabled; with gating on, candidates lacking a
// signal reading are dropped rather than traded blind.
func (p *Planner) BuildPlan(
	snapshot types.PortfolioSnapshot,
	target types.TargetAllocation,
	params types.StrategyParameters,
	referenceSymbol string,
	account string,
	signalData map[string]types.SignalPair,
) ([]types.RebalanceAction, error) {
	// Fail before any sizing happens. The target may have been reloaded since
	// the last cycle, so this is never skipped.
	if err := target.Validate(); err != nil {
		return nil, err
	}
	for symbol := range target {
		if _, ok := snapshot.Holdings[symbol]; !ok {
			return nil, errors.Join(types.ErrConfiguration,
				fmt.Errorf("target references %s, absent from portfolio", symbol))
		}
	}
	if _, ok := snapshot.Holdings[referenceSymbol]; !ok {
		return nil, errors.Join(types.ErrConfiguration,
			fmt.Errorf("reference asset %s absent from portfolio", referenceSymbol))
	}
	if !snapshot.TotalValue.IsPositive() {
		return nil, errors.Join(types.ErrValuation,
			errors.New("snapshot total value is not positive"))
	}

	dustValue, err := utils.Float64ToReference(params.DustThreshold)
	if err != nil {
		return nil, errors.Join(types.ErrConfiguration, err)
	}
	bufferValue, err := utils.Float64ToReference(params.MinReferenceBuffer)
	if err != nil {
		return nil, errors.Join(types.ErrConfiguration, err)
	}

	sells, buys := p.collectCandidates(snapshot, target, params, referenceSymbol)

	// Quiet cycle: nothing drifted past the deadband, so idle balances go to
	// work instead. Judged before gating so that a gated-out candidate still
	// counts as pending drift and blocks the sweep.
	if len(sells) == 0 && len(buys) == 0 {
		return p.sweepIdleBalances(snapshot, params, referenceSymbol, account, bufferValue, dustValue)
	}

	if params.TechnicalGating {
		sells = p.gate(sells, signalData, params, true)
		buys = p.gate(buys, signalData, params, false)
	}

	sells = p.applySellCap(sells, snapshot.TotalValue, params.MaxRebalanceBpsPerCycle)

	sortByValueDesc(sells)
	sortByValueDesc(buys)

	var plan []types.RebalanceAction

	// Liquidity simulation starts from the reference asset's direct balance;
	// each planned sell adds its proceeds.
	refHolding := snapshot.Holdings[referenceSymbol]
	liquid, err := utils.RawToReference(refHolding.DirectBalance, refHolding.Asset.Decimals)
	if err != nil {
		return nil, err
	}

	for _, c := range sells {
		actions, proceeds, err := p.resolveSell(snapshot, c, params, account, dustValue)
		if err != nil {
			// Liquidity problems skip one asset, never the cycle.
			p.log.Warn().Err(err).Str("asset", c.symbol).Msg("Sell skipped")
			continue
		}
		plan = append(plan, actions...)
		liquid = liquid.Add(proceeds)
	}

	buyActions, refRedeem := p.resolveBuys(snapshot, buys, params, referenceSymbol, account, liquid, bufferValue, dustValue)
	if refRedeem != nil {
		// The reference vault top-up is a funding action, so it joins the
		// redeem/sell phase even though buy sizing produced it.
		plan = append(plan, *refRedeem)
	}
	plan = append(plan, buyActions...)

	p.log.Info().
		Int("sells", len(sells)).
		Int("buys", len(buyActions)).
		Int("actions", len(plan)).
		Msg("Plan built")

	return plan, nil
}

// collectCandidates measures drift per targeted asset and splits breaches into
// sell and buy candidates. The reference asset is skipped, never a trade leg.
func (p *Planner) collectCandidates(
	snapshot types.PortfolioSnapshot,
	target types.TargetAllocation,
	params types.StrategyParameters,
	referenceSymbol string,
) (sells, buys []candidate) {
	totalBps := sdkmath.NewInt(types.BpsDenominator)

	symbols := make([]string, 0, len(target))
	for symbol := range target {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		targetBps := target[symbol]
		if targetBps == 0 {
			continue
		}
		if symbol == referenceSymbol {
			continue
		}
		holding := snapshot.Holdings[symbol]

		currentBps := holding.Value.Mul(totalBps).Quo(snapshot.TotalValue).Int64()
		diffBps := targetBps - currentBps
		if diffBps >= -params.DeadbandBps && diffBps <= params.DeadbandBps {
			p.log.Debug().
				Str("asset", symbol).
				Int64("current_bps", currentBps).
				Int64("target_bps", targetBps).
				Msg("Within deadband")
			continue
		}

		driftBps := diffBps
		if driftBps < 0 {
			driftBps = -driftBps
		}
		value := snapshot.TotalValue.MulRaw(driftBps).Quo(totalBps)

		c := candidate{symbol: symbol, driftBps: driftBps, value: value}
		if diffBps < 0 {
			sells = append(sells, c)
		} else {
			buys = append(buys, c)
		}
	}
	return sells, buys
}

// gate filters candidates through the momentum signals. A sell needs both
// readings at or above their overbought thresholds, a buy needs both at or
// below oversold.
func (p *Planner) gate(candidates []candidate, signalData map[string]types.SignalPair, params types.StrategyParameters, selling bool) []candidate {
	kept := candidates[:0]
	for _, c := range candidates {
		pair, ok := signalData[c.symbol]
		if !ok {
			p.log.Warn().Str("asset", c.symbol).Msg("No signal reading, candidate dropped")
			continue
		}

		var confirmed bool
		if selling {
			confirmed = pair.Momentum >= params.MomentumOverbought &&
				pair.Stochastic >= params.StochasticOverbought
		} else {
			confirmed = pair.Momentum <= params.MomentumOversold &&
				pair.Stochastic <= params.StochasticOversold
		}
		if !confirmed {
			p.log.Info().
				Str("asset", c.symbol).
				Bool("selling", selling).
				Float64("momentum", pair.Momentum).
				Float64("stochastic", pair.Stochastic).
				Msg("Momentum gate held candidate back")
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// applySellCap scales sell candidates down proportionally when their combined
// value exceeds the per-cycle liquidation cap.
func (p *Planner) applySellCap(sells []candidate, totalValue sdkmath.Int, maxBps int64) []candidate {
	if len(sells) == 0 {
		return sells
	}

	combined := sdkmath.ZeroInt()
	for _, c := range sells {
		combined = combined.Add(c.value)
	}
	maxValue := totalValue.MulRaw(maxBps).QuoRaw(types.BpsDenominator)
	if combined.LTE(maxValue) {
		return sells
	}

	p.log.Info().
		Str("combined", combined.String()).
		Str("cap", maxValue.String()).
		Msg("Sell volume exceeds per-cycle cap, scaling down")

	scaled := make([]candidate, 0, len(sells))
	for _, c := range sells {
		c.value = c.value.Mul(maxValue).Quo(combined)
		scaled = append(scaled, c)
	}
	return scaled
}

// resolveSell turns a sell candidate into concrete actions, redeeming from the
// asset's vault first when the direct balance cannot cover the trade. Returns
// the actions plus the expected proceeds in reference units.
func (p *Planner) resolveSell(
	snapshot types.PortfolioSnapshot,
	c candidate,
	params types.StrategyParameters,
	account string,
	dustValue sdkmath.Int,
) ([]types.RebalanceAction, sdkmath.Int, error) {
	if c.value.LT(dustValue) {
		return nil, sdkmath.ZeroInt(), fmt.Errorf("sell value %s below dust threshold", c.value.String())
	}

	holding := snapshot.Holdings[c.symbol]
	amount, err := utils.AmountForValue(c.value, holding.Price, holding.Asset.Decimals)
	if err != nil {
		return nil, sdkmath.ZeroInt(), err
	}
	if amount.IsZero() {
		return nil, sdkmath.ZeroInt(), errors.New("sell amount truncated to zero")
	}

	var actions []types.RebalanceAction

	if amount.GT(holding.DirectBalance) {
		shortfall := amount.Sub(holding.DirectBalance)

		redeemable := sdkmath.ZeroInt()
		if params.VaultAccounting && holding.Asset.HasVault() {
			redeemable = holding.VaultBalance.Add(holding.AccruedInterest)
		}
		if shortfall.GT(redeemable) {
			return nil, sdkmath.ZeroInt(), errors.Join(types.ErrInsufficientLiquidity,
				fmt.Errorf("need %s, direct %s plus redeemable %s",
					amount.String(), holding.DirectBalance.String(), redeemable.String()))
		}

		actions = append(actions, types.RebalanceAction{
			Type:     types.ActionRedeemVault,
			Symbol:   c.symbol,
			Vault:    holding.Asset.Vault,
			Amount:   shortfall,
			Receiver: account,
		})
	}

	actions = append(actions, types.RebalanceAction{
		Type:     types.ActionSell,
		Symbol:   c.symbol,
		AmountIn: amount,
	})
	return actions, c.value, nil
}

// resolveBuys sizes buy actions against simulated liquidity. When post-sell
// liquidity minus the reference buffer cannot fund all buys and the reference
// asset has a vault position, a single redeem covering the shortfall is
// returned for the funding phase. Buys that still cannot be funded shrink to
// what remains, largest first, and dust-sized remainders are dropped.
func (p *Planner) resolveBuys(
	snapshot types.PortfolioSnapshot,
	buys []candidate,
	params types.StrategyParameters,
	referenceSymbol string,
	account string,
	liquid sdkmath.Int,
	bufferValue sdkmath.Int,
	dustValue sdkmath.Int,
) ([]types.RebalanceAction, *types.RebalanceAction) {
	if len(buys) == 0 {
		return nil, nil
	}

	wanted := sdkmath.ZeroInt()
	for _, c := range buys {
		wanted = wanted.Add(c.value)
	}

	available := liquid.Sub(bufferValue)
	if available.IsNegative() {
		available = sdkmath.ZeroInt()
	}

	var refRedeem *types.RebalanceAction
	refHolding := snapshot.Holdings[referenceSymbol]
	if wanted.GT(available) && params.VaultAccounting && refHolding.Asset.HasVault() {
		shortfallValue := wanted.Sub(available)

		redeemableValue, err := utils.RawToReference(
			refHolding.VaultBalance.Add(refHolding.AccruedInterest), refHolding.Asset.Decimals)
		if err == nil && redeemableValue.IsPositive() {
			if shortfallValue.GT(redeemableValue) {
				shortfallValue = redeemableValue
			}
			amount, err := utils.ReferenceToRaw(shortfallValue, refHolding.Asset.Decimals)
			if err == nil && amount.IsPositive() {
				refRedeem = &types.RebalanceAction{
					Type:     types.ActionRedeemVault,
					Symbol:   referenceSymbol,
					Vault:    refHolding.Asset.Vault,
					Amount:   amount,
					Receiver: account,
				}
				available = available.Add(shortfallValue)
			}
		}
	}

	var actions []types.RebalanceAction
	for _, c := range buys {
		if !available.IsPositive() {
			p.log.Warn().Str("asset", c.symbol).Msg("No liquidity left for buy, dropped")
			continue
		}
		spend := c.value
		if spend.GT(available) {
			p.log.Info().
				Str("asset", c.symbol).
				Str("wanted", spend.String()).
				Str("available", available.String()).
				Msg("Buy shrunk to available liquidity")
			spend = available
		}
		if spend.LT(dustValue) {
			p.log.Debug().Str("asset", c.symbol).Msg("Buy below dust threshold, dropped")
			continue
		}

		actions = append(actions, types.RebalanceAction{
			Type:            types.ActionBuy,
			Symbol:          c.symbol,
			AmountReference: spend,
		})
		available = available.Sub(spend)
	}
	return actions, refRedeem
}

// sweepIdleBalances emits deposit actions for idle direct balances on a quiet
// cycle. The reference asset keeps its liquidity buffer outside the vault.
func (p *Planner) sweepIdleBalances(
	snapshot types.PortfolioSnapshot,
	params types.StrategyParameters,
	referenceSymbol string,
	account string,
	bufferValue sdkmath.Int,
	dustValue sdkmath.Int,
) ([]types.RebalanceAction, error) {
	if !params.VaultAccounting {
		return nil, nil
	}

	symbols := make([]string, 0, len(snapshot.Holdings))
	for symbol := range snapshot.Holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var plan []types.RebalanceAction
	for _, symbol := range symbols {
		holding := snapshot.Holdings[symbol]
		if !holding.Asset.HasVault() || !holding.DirectBalance.IsPositive() {
			continue
		}

		amount := holding.DirectBalance
		if symbol == referenceSymbol {
			bufferRaw, err := utils.ReferenceToRaw(bufferValue, holding.Asset.Decimals)
			if err != nil {
				return nil, err
			}
			amount = amount.Sub(bufferRaw)
			if !amount.IsPositive() {
				continue
			}
		}

		value, err := utils.ValueOf(amount, holding.Price, holding.Asset.Decimals)
		if err != nil {
			return nil, err
		}
		if value.LT(dustValue) {
			continue
		}

		plan = append(plan, types.RebalanceAction{
			Type:     types.ActionDepositVault,
			Symbol:   symbol,
			Vault:    holding.Asset.Vault,
			Amount:   amount,
			Receiver: account,
		})
	}

	if len(plan) > 0 {
		p.log.Info().Int("deposits", len(plan)).Msg("Quiet cycle, sweeping idle balances into vaults")
	}
	return plan, nil
}

func sortByValueDesc(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].value.GT(cs[j].value)
	})
}
