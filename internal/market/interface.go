/*

Market data boundary: price lookups, balance reads and price history. The
engine only sees these interfaces; the HTTP/JSON-RPC clients in this package
are one implementation of them.

*/

package market

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/scobru/baluni-sub001/internal/types"
)

// PriceQuote is a fixed-point price with an explicit decimal count: Price
// quote-asset base units per whole unit of the priced asset.
type PriceQuote struct {
	Price    sdkmath.Int
	Decimals int
}

// PriceOracle answers spot price queries. Implementations must fail
// explicitly when a price is unavailable, never return zero.
type PriceOracle interface {
	GetPrice(ctx context.Context, asset, reference types.Asset) (PriceQuote, error)
}

// BalanceReader reads an account's raw token balance and the token's on-chain
// decimal precision.
type BalanceReader interface {
	GetBalance(ctx context.Context, account, tokenAddress string) (sdkmath.Int, int, error)
}

// HistoryProvider supplies hourly closing prices, newest last, for signal
// computation.
type HistoryProvider interface {
	HourlyCloses(ctx context.Context, symbol string, hours int) ([]float64, error)
}
