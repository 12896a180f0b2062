package signals

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHistory struct {
	closes []float64
	err    error
}

func (s *staticHistory) HourlyCloses(_ context.Context, _ string, hours int) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.closes) < hours {
		return s.closes, nil
	}
	return s.closes[len(s.closes)-hours:], nil
}

// uptrend produces a rising series with small pullbacks, enough variance for
// both indicators to stay defined.
func uptrend(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		if i%3 == 2 {
			price -= 1
		} else {
			price += 2
		}
		closes[i] = price
	}
	return closes
}

func TestGetSignalsUptrendReadsStrong(t *testing.T) {
	ta := NewTA(&staticHistory{closes: uptrend(historyHours)})

	pair, err := ta.GetSignals(context.Background(), "WETH")
	require.NoError(t, err)

	assert.Greater(t, pair.Momentum, 50.0, "steady uptrend should read above neutral")
	assert.LessOrEqual(t, pair.Momentum, 100.0)
	assert.GreaterOrEqual(t, pair.Stochastic, 0.0)
	assert.LessOrEqual(t, pair.Stochastic, 100.0)
}

func TestGetSignalsDowntrendReadsWeak(t *testing.T) {
	closes := uptrend(historyHours)
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	ta := NewTA(&staticHistory{closes: closes})

	pair, err := ta.GetSignals(context.Background(), "WETH")
	require.NoError(t, err)
	assert.Less(t, pair.Momentum, 50.0, "steady downtrend should read below neutral")
}

func TestGetSignalsRejectsShortHistory(t *testing.T) {
	ta := NewTA(&staticHistory{closes: uptrend(2 * indicatorPeriod)})

	_, err := ta.GetSignals(context.Background(), "WETH")
	require.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestGetSignalsPropagatesProviderFailure(t *testing.T) {
	providerErr := errors.New("history backend down")
	ta := NewTA(&staticHistory{err: providerErr})

	_, err := ta.GetSignals(context.Background(), "WETH")
	require.ErrorIs(t, err, providerErr)
}
