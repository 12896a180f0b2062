package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
)

// ERC-20 function selectors.
const (
	selectorBalanceOf = "0x70a08231"
	selectorDecimals  = "0x313ce567"
)

var ErrBadDecimals = errors.New("token reported unusable decimals")

// RPCBalanceReader reads ERC-20 balances over JSON-RPC. Token decimals are
// immutable on-chain, so they are fetched once and cached for the process
// lifetime.
type RPCBalanceReader struct {
	rpc *RPCClient

	mu       sync.Mutex
	decimals map[string]int

	log zerolog.Logger
}

// NewRPCBalanceReader wraps an RPC client as a BalanceReader.
func NewRPCBalanceReader(rpc *RPCClient) *RPCBalanceReader {
	return &RPCBalanceReader{
		rpc:      rpc,
		decimals: make(map[string]int),
		log:      logger.GetForComponent("balance_reader"),
	}
}

// GetBalance returns the raw balance and decimal precision of a token for an
// account.
func (r *RPCBalanceReader) GetBalance(ctx context.Context, account, tokenAddress string) (sdkmath.Int, int, error) {
	accountWord, err := AddressWord(account)
	if err != nil {
		return sdkmath.ZeroInt(), 0, err
	}

	result, err := r.rpc.Call(ctx, tokenAddress, selectorBalanceOf+accountWord)
	if err != nil {
		return sdkmath.ZeroInt(), 0, fmt.Errorf("balanceOf %s: %w", tokenAddress, err)
	}
	balance, err := HexToInt(result)
	if err != nil {
		return sdkmath.ZeroInt(), 0, fmt.Errorf("balanceOf %s: %w", tokenAddress, err)
	}

	decimals, err := r.tokenDecimals(ctx, tokenAddress)
	if err != nil {
		return sdkmath.ZeroInt(), 0, err
	}

	r.log.Debug().
		Str("token", tokenAddress).
		Str("balance", balance.String()).
		Int("decimals", decimals).
		Msg("Balance read")

	return balance, decimals, nil
}

func (r *RPCBalanceReader) tokenDecimals(ctx context.Context, tokenAddress string) (int, error) {
	r.mu.Lock()
	cached, ok := r.decimals[tokenAddress]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	result, err := r.rpc.Call(ctx, tokenAddress, selectorDecimals)
	if err != nil {
		return 0, fmt.Errorf("decimals %s: %w", tokenAddress, err)
	}
	v, err := HexToInt(result)
	if err != nil {
		return 0, fmt.Errorf("decimals %s: %w", tokenAddress, err)
	}
	if !v.IsInt64() || v.Int64() < 0 || v.Int64() > 18 {
		return 0, fmt.Errorf("%w: %s returned %s", ErrBadDecimals, tokenAddress, v.String())
	}
	decimals := int(v.Int64())

	r.mu.Lock()
	r.decimals[tokenAddress] = decimals
	r.mu.Unlock()

	return decimals, nil
}
