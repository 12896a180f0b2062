package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scobru/baluni-sub001/internal/market"
	"github.com/scobru/baluni-sub001/internal/types"
)

const testAccount = "0x1111111111111111111111111111111111111111"

var (
	usdcAsset = types.Asset{Symbol: "USDC", Address: "0xaaa0000000000000000000000000000000000001", Decimals: 6}
	wethAsset = types.Asset{Symbol: "WETH", Address: "0xaaa0000000000000000000000000000000000002", Decimals: 18}
)

type staticOracle struct {
	prices map[string]sdkmath.Int // 18-dec reference units per whole token
}

func (o *staticOracle) GetPrice(_ context.Context, asset, _ types.Asset) (market.PriceQuote, error) {
	price, ok := o.prices[asset.Symbol]
	if !ok {
		return market.PriceQuote{}, types.ErrPriceUnavailable
	}
	return market.PriceQuote{Price: price, Decimals: 18}, nil
}

// fakeRelayerServer serves the quote and swap endpoints. quoteOut is the
// amount the quote endpoint reports; swapCalls counts actual submissions.
func fakeRelayerServer(t *testing.T, quoteOut sdkmath.Int, swapCalls *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"amount_out": quoteOut.String()})
	})
	mux.HandleFunc("/v1/swap", func(w http.ResponseWriter, r *http.Request) {
		*swapCalls++
		var req swapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testAccount, req.Account)
		assert.NotEmpty(t, req.MinAmountOut)
		json.NewEncoder(w).Encode(map[string]string{"tx_hash": "0xdeadbeef"})
	})
	return httptest.NewServer(mux)
}

func testOracle() *staticOracle {
	return &staticOracle{prices: map[string]sdkmath.Int{
		"WETH": sdkmath.NewIntWithDecimal(2000, 18),
	}}
}

func TestSwapSubmitsWhenQuoteMeetsFloor(t *testing.T) {
	// Selling 1 WETH at $2000 with 1% tolerance: floor is 1980 USDC, the
	// relayer quotes 1990, so the swap goes out.
	var swapCalls int
	server := fakeRelayerServer(t, sdkmath.NewInt(1_990_000_000), &swapCalls)
	defer server.Close()

	swapper := NewSwapAdapter(NewRelayer(server.URL), testOracle(), usdcAsset)
	txHash, err := swapper.Swap(context.Background(), testAccount,
		wethAsset, usdcAsset, sdkmath.NewIntWithDecimal(1, 18), 100)

	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", txHash)
	assert.Equal(t, 1, swapCalls)
}

func TestSwapRefusesWhenQuoteBelowFloor(t *testing.T) {
	// Quote of 1900 USDC sits under the 1980 floor: nothing is submitted.
	var swapCalls int
	server := fakeRelayerServer(t, sdkmath.NewInt(1_900_000_000), &swapCalls)
	defer server.Close()

	swapper := NewSwapAdapter(NewRelayer(server.URL), testOracle(), usdcAsset)
	_, err := swapper.Swap(context.Background(), testAccount,
		wethAsset, usdcAsset, sdkmath.NewIntWithDecimal(1, 18), 100)

	require.ErrorIs(t, err, types.ErrSlippageExceeded)
	assert.Zero(t, swapCalls, "swap must not reach the relayer")
}

func TestSwapFailsWithoutPrice(t *testing.T) {
	var swapCalls int
	server := fakeRelayerServer(t, sdkmath.NewInt(1), &swapCalls)
	defer server.Close()

	ghost := types.Asset{Symbol: "GHOST", Address: "0xaaa0000000000000000000000000000000000003", Decimals: 18}
	swapper := NewSwapAdapter(NewRelayer(server.URL), testOracle(), usdcAsset)
	_, err := swapper.Swap(context.Background(), testAccount,
		ghost, usdcAsset, sdkmath.NewIntWithDecimal(1, 18), 100)

	require.ErrorIs(t, err, types.ErrPriceUnavailable)
	assert.Zero(t, swapCalls)
}

func TestSwapRejectsNonPositiveAmount(t *testing.T) {
	swapper := NewSwapAdapter(NewRelayer("http://localhost:0"), testOracle(), usdcAsset)
	_, err := swapper.Swap(context.Background(), testAccount,
		wethAsset, usdcAsset, sdkmath.ZeroInt(), 100)
	require.Error(t, err)
}
