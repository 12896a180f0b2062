/*

HTTP client for the external price API. Spot prices feed the valuer; hourly
closing history feeds the signal source. Responses are validated strictly: a
zero, negative or non-finite price is an error, never a value to compute with.

*/

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/types"
)

const (
	priceMaxRetries = 3
	priceTimeout    = 30 * time.Second
)

var ErrInvalidPriceData = errors.New("invalid price data received")

// HTTPOracle implements PriceOracle and HistoryProvider against the price API.
type HTTPOracle struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewHTTPOracle creates an oracle client for the given API base URL.
func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		http:    &http.Client{Timeout: priceTimeout},
		log:     logger.GetForComponent("price_oracle"),
	}
}

type priceResponse struct {
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	Price    string `json:"price"`    // fixed-point integer string
	Decimals int    `json:"decimals"` // decimal count of Price
}

// GetPrice returns the asset's price in the reference asset as a fixed-point
// quote. Retries transient failures a few times before giving up.
func (o *HTTPOracle) GetPrice(ctx context.Context, asset, reference types.Asset) (PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/v1/price?base=%s&quote=%s",
		o.baseURL, url.QueryEscape(asset.Symbol), url.QueryEscape(reference.Symbol))

	var lastErr error
	for attempt := 1; attempt <= priceMaxRetries; attempt++ {
		var parsed priceResponse
		if err := o.getJSON(ctx, endpoint, &parsed); err != nil {
			lastErr = err
			o.log.Warn().Err(err).Str("asset", asset.Symbol).Int("attempt", attempt).
				Msg("Price fetch failed, retrying")
			continue
		}

		quote, err := validatePrice(parsed, asset.Symbol)
		if err != nil {
			// A structurally bad price will not fix itself on retry.
			return PriceQuote{}, errors.Join(types.ErrPriceUnavailable, err)
		}
		return quote, nil
	}

	return PriceQuote{}, errors.Join(types.ErrPriceUnavailable,
		fmt.Errorf("price for %s after %d attempts: %w", asset.Symbol, priceMaxRetries, lastErr))
}

func validatePrice(parsed priceResponse, symbol string) (PriceQuote, error) {
	if parsed.Decimals < 0 || parsed.Decimals > 18 {
		return PriceQuote{}, fmt.Errorf("%w: %s decimals %d", ErrInvalidPriceData, symbol, parsed.Decimals)
	}
	price, ok := sdkmath.NewIntFromString(parsed.Price)
	if !ok {
		return PriceQuote{}, fmt.Errorf("%w: %s price %q", ErrInvalidPriceData, symbol, parsed.Price)
	}
	if !price.IsPositive() {
		return PriceQuote{}, fmt.Errorf("%w: %s price is not positive", ErrInvalidPriceData, symbol)
	}
	return PriceQuote{Price: price, Decimals: parsed.Decimals}, nil
}

type historyResponse struct {
	Symbol string `json:"symbol"`
	Data   []struct {
		Time  int64   `json:"time"`
		Close float64 `json:"close"`
	} `json:"data"`
}

// HourlyCloses returns the last `hours` hourly closing prices, oldest first.
// Fails when the API cannot supply the full window; a short series would skew
// every indicator computed from it.
func (o *HTTPOracle) HourlyCloses(ctx context.Context, symbol string, hours int) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/v1/histohour?symbol=%s&hours=%d",
		o.baseURL, url.QueryEscape(symbol), hours)

	var parsed historyResponse
	if err := o.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Data) < hours {
		return nil, fmt.Errorf("%w: %s returned %d of %d hours",
			ErrInvalidPriceData, symbol, len(parsed.Data), hours)
	}

	points := parsed.Data[len(parsed.Data)-hours:]
	closes := make([]float64, 0, hours)
	for _, p := range points {
		if p.Time <= 0 {
			return nil, fmt.Errorf("%w: %s has invalid timestamp %d", ErrInvalidPriceData, symbol, p.Time)
		}
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return nil, fmt.Errorf("%w: %s has invalid close %f", ErrInvalidPriceData, symbol, p.Close)
		}
		closes = append(closes, p.Close)
	}
	return closes, nil
}

func (o *HTTPOracle) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price API status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
