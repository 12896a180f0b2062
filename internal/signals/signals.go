/*

Technical indicators used to gate rebalancing trades. When gating is enabled a
sell only fires while an asset looks overbought and a buy only while it looks
oversold; the indicators themselves are computed from hourly closing prices.

*/

package signals

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/market"
	"github.com/scobru/baluni-sub001/internal/types"
)

const (
	// Indicator window in hourly periods.
	indicatorPeriod = 14

	// Hours of history to request. Both indicators need warm-up room beyond
	// their period before the output stabilises.
	historyHours = 96
)

var (
	ErrInsufficientHistory = errors.New("insufficient price history for signals")
	ErrSignalComputation   = errors.New("signal computation failed")
)

// Source produces the indicator pair used for trade gating.
type Source interface {
	GetSignals(ctx context.Context, symbol string) (types.SignalPair, error)
}

// TA computes momentum (RSI) and stochastic RSI from hourly closes.
type TA struct {
	history market.HistoryProvider
	log     zerolog.Logger
}

// NewTA creates a signal source backed by the given history provider.
func NewTA(history market.HistoryProvider) *TA {
	return &TA{
		history: history,
		log:     logger.GetForComponent("signals"),
	}
}

// GetSignals returns the latest momentum and stochastic readings for a symbol.
func (t *TA) GetSignals(ctx context.Context, symbol string) (types.SignalPair, error) {
	closes, err := t.history.HourlyCloses(ctx, symbol, historyHours)
	if err != nil {
		return types.SignalPair{}, fmt.Errorf("history for %s: %w", symbol, err)
	}
	if len(closes) < 3*indicatorPeriod {
		return types.SignalPair{}, fmt.Errorf("%w: %s has %d closes", ErrInsufficientHistory, symbol, len(closes))
	}

	rsi := talib.Rsi(closes, indicatorPeriod)
	momentum := rsi[len(rsi)-1]

	fastK, _ := talib.StochRsi(closes, indicatorPeriod, indicatorPeriod, 3, talib.SMA)
	stochastic := fastK[len(fastK)-1]

	if math.IsNaN(momentum) || math.IsNaN(stochastic) {
		return types.SignalPair{}, fmt.Errorf("%w: %s produced NaN", ErrSignalComputation, symbol)
	}

	t.log.Debug().
		Str("symbol", symbol).
		Float64("momentum", momentum).
		Float64("stochastic", stochastic).
		Msg("Signals computed")

	return types.SignalPair{Momentum: momentum, Stochastic: stochastic}, nil
}
