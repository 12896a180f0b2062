/*

Portfolio valuation. Once per cycle every configured asset is priced and its
direct plus vault balances are valued in the common 18-decimal reference unit.
The resulting snapshot is the single input to allocation planning; a snapshot
with any failed or suspect component is rejected outright rather than patched,
because a plan built on a partial valuation would trade against phantom drift.

*/

package valuer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/market"
	"github.com/scobru/baluni-sub001/internal/types"
	"github.com/scobru/baluni-sub001/internal/utils"
	"github.com/scobru/baluni-sub001/internal/vault"
)

var (
	ErrDecimalsMismatch = errors.New("on-chain decimals disagree with configuration")
	ErrEmptyPortfolio   = errors.New("portfolio has zero total value")
)

// Valuer builds portfolio snapshots.
type Valuer struct {
	oracle    market.PriceOracle
	balances  market.BalanceReader
	vaults    vault.Adapter
	account   string
	reference types.Asset
	assets    []types.Asset

	// Concurrent per-asset fan-out limit.
	concurrency int

	log zerolog.Logger
}

// New creates a Valuer for a fixed account and asset universe.
func New(oracle market.PriceOracle, balances market.BalanceReader, vaults vault.Adapter,
	account string, reference types.Asset, assets []types.Asset, concurrency int) *Valuer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Valuer{
		oracle:      oracle,
		balances:    balances,
		vaults:      vaults,
		account:     account,
		reference:   reference,
		assets:      assets,
		concurrency: concurrency,
		log:         logger.GetForComponent("valuer"),
	}
}

// Snapshot values every configured asset and returns the aggregate portfolio
// state. vaultAccounting controls whether vault positions count toward
// holdings; with it off only direct balances are valued.
func (v *Valuer) Snapshot(ctx context.Context, vaultAccounting bool) (types.PortfolioSnapshot, error) {
	snapshot := types.PortfolioSnapshot{
		Account:    v.account,
		Timestamp:  time.Now().UTC(),
		Holdings:   make(map[string]types.Holding, len(v.assets)),
		TotalValue: sdkmath.ZeroInt(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	for _, asset := range v.assets {
		asset := asset
		g.Go(func() error {
			holding, err := v.valueAsset(gctx, asset, vaultAccounting)
			if err != nil {
				return fmt.Errorf("%s: %w", asset.Symbol, err)
			}
			mu.Lock()
			snapshot.Holdings[asset.Symbol] = holding
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return types.PortfolioSnapshot{}, errors.Join(types.ErrValuation, err)
	}

	for _, holding := range snapshot.Holdings {
		snapshot.TotalValue = snapshot.TotalValue.Add(holding.Value)
	}
	if snapshot.TotalValue.IsZero() {
		return types.PortfolioSnapshot{}, errors.Join(types.ErrValuation, ErrEmptyPortfolio)
	}

	v.log.Info().
		Str("account", v.account).
		Int("assets", len(snapshot.Holdings)).
		Str("total_value", snapshot.TotalValue.String()).
		Msg("Portfolio snapshot built")

	return snapshot, nil
}

func (v *Valuer) valueAsset(ctx context.Context, asset types.Asset, vaultAccounting bool) (types.Holding, error) {
	direct, decimals, err := v.balances.GetBalance(ctx, v.account, asset.Address)
	if err != nil {
		return types.Holding{}, err
	}
	if decimals != asset.Decimals {
		return types.Holding{}, fmt.Errorf("%w: %s configured %d, chain reports %d",
			ErrDecimalsMismatch, asset.Symbol, asset.Decimals, decimals)
	}

	vaultBalance := sdkmath.ZeroInt()
	accrued := sdkmath.ZeroInt()
	if vaultAccounting && asset.HasVault() {
		position, err := v.vaults.GetPosition(ctx, v.account, asset.Vault)
		if err != nil {
			return types.Holding{}, err
		}
		vaultBalance = position.Underlying

		accrued = position.Withdrawable.Sub(position.Underlying)
		if accrued.IsNegative() {
			// A lockup or withdrawal fee can push withdrawable below the share
			// value. Treat the yield as zero and keep the share value.
			v.log.Warn().
				Str("asset", asset.Symbol).
				Str("withdrawable", position.Withdrawable.String()).
				Str("underlying", position.Underlying.String()).
				Msg("Vault withdrawable below share value, clamping accrued yield to zero")
			accrued = sdkmath.ZeroInt()
		}
	}

	price, err := v.referencePrice(ctx, asset)
	if err != nil {
		return types.Holding{}, err
	}

	effective := direct.Add(vaultBalance).Add(accrued)
	value, err := utils.ValueOf(effective, price, asset.Decimals)
	if err != nil {
		return types.Holding{}, err
	}

	v.log.Debug().
		Str("asset", asset.Symbol).
		Str("direct", direct.String()).
		Str("vault", vaultBalance.String()).
		Str("accrued", accrued.String()).
		Str("value", value.String()).
		Msg("Asset valued")

	return types.Holding{
		Asset:           asset,
		DirectBalance:   direct,
		VaultBalance:    vaultBalance,
		AccruedInterest: accrued,
		Price:           price,
		Value:           value,
	}, nil
}

// referencePrice normalizes the oracle quote to 18-decimal reference units per
// whole token. The reference asset itself is 1:1 by definition.
func (v *Valuer) referencePrice(ctx context.Context, asset types.Asset) (sdkmath.Int, error) {
	if asset.Symbol == v.reference.Symbol {
		return sdkmath.NewIntWithDecimal(1, types.ReferenceDecimals), nil
	}

	quote, err := v.oracle.GetPrice(ctx, asset, v.reference)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if quote.Decimals == types.ReferenceDecimals {
		return quote.Price, nil
	}
	factor, err := utils.Pow10(types.ReferenceDecimals - quote.Decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return quote.Price.Mul(factor), nil
}
