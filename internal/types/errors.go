package types

import "errors"

// Error taxonomy for a rebalancing cycle. Configuration and valuation errors
// abort the whole cycle before anything is executed; the remaining errors are
// reported per action and isolated to that action.
var (
	ErrConfiguration         = errors.New("invalid configuration")
	ErrValuation             = errors.New("portfolio valuation failed")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for planned action")
	ErrSlippageExceeded      = errors.New("swap output below minimum acceptable")
	ErrExecutionTimeout      = errors.New("transaction confirmation timed out")
	ErrPriceUnavailable      = errors.New("price unavailable")
)
