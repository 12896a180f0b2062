/*

Core portfolio types: assets, holdings and the per-cycle snapshot consumed by
the allocation planner.

*/

package types

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// ReferenceDecimals is the precision of the common valuation unit. Every
// Holding.Value and PortfolioSnapshot.TotalValue is expressed in it regardless
// of the asset's native precision.
const ReferenceDecimals = 18

// BpsDenominator is the basis-point scale (10000 bps = 100%).
const BpsDenominator = 10_000

var (
	ErrDuplicateAsset = errors.New("duplicate asset symbol")
	ErrUnknownAsset   = errors.New("asset not present in portfolio")
)

// Asset identifies a rebalanceable token.
type Asset struct {
	Symbol   string `json:"symbol"`   // e.g. "WETH"
	Address  string `json:"address"`  // ERC-20 contract address
	Decimals int    `json:"decimals"` // native precision, e.g. 6 for USDC
	Vault    string `json:"vault,omitempty"` // ERC-4626 vault holding the yield position, empty if unbound
}

// HasVault reports whether the asset has a yield-vault binding.
func (a Asset) HasVault() bool {
	return a.Vault != ""
}

// Holding is the per-asset valuation state captured once per cycle.
type Holding struct {
	Asset           Asset       `json:"asset"`
	DirectBalance   sdkmath.Int `json:"direct_balance"`   // raw native units held by the account
	VaultBalance    sdkmath.Int `json:"vault_balance"`    // raw native units redeemable from the vault at share price
	AccruedInterest sdkmath.Int `json:"accrued_interest"` // raw native units of yield not yet in the share price, never negative
	Price           sdkmath.Int `json:"price"`            // reference units (18-dec) per whole token
	Value           sdkmath.Int `json:"value"`            // effective balance valued in 18-dec reference units
}

// EffectiveBalance is the full raw balance backing the holding's value.
func (h Holding) EffectiveBalance() sdkmath.Int {
	return h.DirectBalance.Add(h.VaultBalance).Add(h.AccruedInterest)
}

// PortfolioSnapshot is the full valuation of an account's portfolio.
// It is rebuilt from scratch every cycle and read-only once built.
type PortfolioSnapshot struct {
	Account    string             `json:"account"`
	Timestamp  time.Time          `json:"timestamp"`
	Holdings   map[string]Holding `json:"holdings"`    // keyed by asset symbol
	TotalValue sdkmath.Int        `json:"total_value"` // 18-dec reference units
}

// Holding returns the holding for a symbol, failing on unknown symbols so
// callers never operate on a zero-value Holding by accident.
func (s PortfolioSnapshot) Holding(symbol string) (Holding, error) {
	h, ok := s.Holdings[symbol]
	if !ok {
		return Holding{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return h, nil
}

// TargetAllocation maps asset symbol to target weight in basis points.
type TargetAllocation map[string]int64

// Validate enforces the configuration invariant: weights in [0, 10000] and
// summing to exactly 10000. Violations are configuration errors, never
// silently normalized.
func (t TargetAllocation) Validate() error {
	if len(t) == 0 {
		return errors.Join(ErrConfiguration, errors.New("target allocation is empty"))
	}
	var sum int64
	for symbol, bps := range t {
		if bps < 0 || bps > BpsDenominator {
			return errors.Join(ErrConfiguration,
				fmt.Errorf("target weight for %s out of range: %d bps", symbol, bps))
		}
		sum += bps
	}
	if sum != BpsDenominator {
		return errors.Join(ErrConfiguration,
			fmt.Errorf("target weights sum to %d bps, expected %d", sum, BpsDenominator))
	}
	return nil
}

// SignalPair is the momentum reading used for optional trade gating.
type SignalPair struct {
	Momentum   float64 `json:"momentum"`   // RSI, 0-100
	Stochastic float64 `json:"stochastic"` // StochRSI fast %K, 0-100
}
