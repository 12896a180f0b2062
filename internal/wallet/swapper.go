package wallet

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/market"
	"github.com/scobru/baluni-sub001/internal/types"
	"github.com/scobru/baluni-sub001/internal/utils"
)

// Swapper executes token swaps with slippage protection. Returns the
// transaction hash of the submitted swap.
type Swapper interface {
	Swap(ctx context.Context, account string, tokenIn, tokenOut types.Asset, amountIn sdkmath.Int, slippageBps int64) (string, error)
}

// SwapAdapter prices swaps against the oracle, quotes them against the
// relayer and refuses to submit anything that would exceed the slippage
// tolerance.
type SwapAdapter struct {
	relayer   *Relayer
	oracle    market.PriceOracle
	reference types.Asset
	log       zerolog.Logger
}

// NewSwapAdapter creates a swapper. The reference asset anchors all expected
// output computations.
func NewSwapAdapter(relayer *Relayer, oracle market.PriceOracle, reference types.Asset) *SwapAdapter {
	return &SwapAdapter{
		relayer:   relayer,
		oracle:    oracle,
		reference: reference,
		log:       logger.GetForComponent("swapper"),
	}
}

// Swap submits amountIn of tokenIn for tokenOut. The relayer's quote must not
// fall short of the oracle-implied output by more than slippageBps, and the
// same floor is enforced on-chain through min_amount_out.
func (s *SwapAdapter) Swap(ctx context.Context, account string, tokenIn, tokenOut types.Asset, amountIn sdkmath.Int, slippageBps int64) (string, error) {
	if !amountIn.IsPositive() {
		return "", fmt.Errorf("swap amount must be positive, got %s", amountIn.String())
	}

	priceIn, err := s.referencePrice(ctx, tokenIn)
	if err != nil {
		return "", err
	}
	priceOut, err := s.referencePrice(ctx, tokenOut)
	if err != nil {
		return "", err
	}

	value, err := utils.ValueOf(amountIn, priceIn, tokenIn.Decimals)
	if err != nil {
		return "", err
	}
	expectedOut, err := utils.AmountForValue(value, priceOut, tokenOut.Decimals)
	if err != nil {
		return "", err
	}

	minOut := expectedOut.
		MulRaw(types.BpsDenominator - slippageBps).
		QuoRaw(types.BpsDenominator)

	quoted, err := s.relayer.QuoteSwap(ctx, tokenIn.Address, tokenOut.Address, amountIn)
	if err != nil {
		return "", err
	}
	if quoted.LT(minOut) {
		return "", errors.Join(types.ErrSlippageExceeded,
			fmt.Errorf("%s->%s: quoted %s below floor %s (expected %s)",
				tokenIn.Symbol, tokenOut.Symbol, quoted.String(), minOut.String(), expectedOut.String()))
	}

	s.log.Info().
		Str("token_in", tokenIn.Symbol).
		Str("token_out", tokenOut.Symbol).
		Str("amount_in", amountIn.String()).
		Str("min_out", minOut.String()).
		Str("quoted", quoted.String()).
		Msg("Submitting swap")

	return s.relayer.SubmitSwap(ctx, account, tokenIn.Address, tokenOut.Address, amountIn, minOut)
}

// referencePrice returns the asset's price normalized to reference base units
// per whole token. The reference asset itself is 1:1 without an oracle call.
func (s *SwapAdapter) referencePrice(ctx context.Context, asset types.Asset) (sdkmath.Int, error) {
	if asset.Symbol == s.reference.Symbol {
		return sdkmath.NewIntWithDecimal(1, types.ReferenceDecimals), nil
	}

	quote, err := s.oracle.GetPrice(ctx, asset, s.reference)
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
