package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrRPCFailure     = errors.New("json-rpc call failed")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidResult  = errors.New("invalid call result")
)

const rpcTimeout = 30 * time.Second

// RPCClient is a minimal JSON-RPC client for read-only contract calls. All
// state-changing traffic goes through the relayer, never through here.
type RPCClient struct {
	endpoint string
	http     *http.Client
}

// NewRPCClient creates a client for the given JSON-RPC endpoint.
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: rpcTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Call performs an eth_call against a contract and returns the raw hex result.
func (c *RPCClient) Call(ctx context.Context, to, data string) (string, error) {
	return c.do(ctx, "eth_call", []any{
		map[string]string{"to": to, "data": data},
		"latest",
	})
}

// NativeBalance returns the account's native coin balance.
func (c *RPCClient) NativeBalance(ctx context.Context, account string) (sdkmath.Int, error) {
	result, err := c.do(ctx, "eth_getBalance", []any{account, "latest"})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return HexToInt(result)
}

func (c *RPCClient) do(ctx context.Context, method string, params []any) (string, error) {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Join(ErrRPCFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Join(ErrRPCFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Join(ErrRPCFailure,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed rpcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Join(ErrRPCFailure, err)
	}
	if parsed.Error != nil {
		return "", errors.Join(ErrRPCFailure,
			fmt.Errorf("%s (code %d)", parsed.Error.Message, parsed.Error.Code))
	}
	if parsed.Result == "" {
		return "", errors.Join(ErrRPCFailure, errors.New("empty result"))
	}
	return parsed.Result, nil
}

// AddressWord left-pads a 20-byte hex address to a 32-byte ABI word.
func AddressWord(addr string) (string, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(trimmed) != 40 {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	for _, r := range trimmed {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
		}
	}
	return strings.Repeat("0", 24) + trimmed, nil
}

// UintWord encodes a non-negative integer as a 32-byte ABI word.
func UintWord(v sdkmath.Int) (string, error) {
	if v.IsNil() || v.IsNegative() {
		return "", fmt.Errorf("%w: %s", ErrInvalidResult, v.String())
	}
	hexStr := v.BigInt().Text(16)
	if len(hexStr) > 64 {
		return "", fmt.Errorf("%w: value too large", ErrInvalidResult)
	}
	return strings.Repeat("0", 64-len(hexStr)) + hexStr, nil
}

// HexToInt decodes a 0x-prefixed hex quantity or ABI word into an Int.
func HexToInt(s string) (sdkmath.Int, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	if trimmed == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty hex", ErrInvalidResult)
	}
	v, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrInvalidResult, s)
	}
	return sdkmath.NewIntFromBigInt(v), nil
}
