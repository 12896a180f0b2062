/*

Client for the transaction relayer. The relayer owns key custody, transaction
construction and broadcasting; this process only describes the operation it
wants performed and polls for the outcome by hash.

*/

package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
)

// Transaction states reported by the relayer.
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
	TxStatusDropped   = "dropped"
)

var (
	ErrRelayer       = errors.New("relayer request failed")
	ErrRelayerReject = errors.New("relayer rejected submission")
)

const relayerTimeout = 30 * time.Second

// Relayer is the HTTP client for the transaction relayer service.
type Relayer struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewRelayer creates a relayer client for the given base URL.
func NewRelayer(baseURL string) *Relayer {
	return &Relayer{
		baseURL: baseURL,
		http:    &http.Client{Timeout: relayerTimeout},
		log:     logger.GetForComponent("relayer"),
	}
}

type swapRequest struct {
	Account      string `json:"account"`
	TokenIn      string `json:"token_in"`
	TokenOut     string `json:"token_out"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
}

type vaultRequest struct {
	Account string `json:"account"`
	Vault   string `json:"vault"`
	Amount  string `json:"amount"`
}

type submitResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

// SubmitSwap asks the relayer to swap tokenIn for tokenOut, reverting unless
// at least minAmountOut comes back. Returns the transaction hash.
func (r *Relayer) SubmitSwap(ctx context.Context, account, tokenIn, tokenOut string, amountIn, minAmountOut sdkmath.Int) (string, error) {
	return r.submit(ctx, "/v1/swap", swapRequest{
		Account:      account,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn.String(),
		MinAmountOut: minAmountOut.String(),
	})
}

// SubmitVaultDeposit asks the relayer to deposit underlying into a vault.
func (r *Relayer) SubmitVaultDeposit(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error) {
	return r.submit(ctx, "/v1/vault/deposit", vaultRequest{
		Account: account,
		Vault:   vaultAddress,
		Amount:  amount.String(),
	})
}

// SubmitVaultRedeem asks the relayer to withdraw underlying from a vault.
func (r *Relayer) SubmitVaultRedeem(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error) {
	return r.submit(ctx, "/v1/vault/redeem", vaultRequest{
		Account: account,
		Vault:   vaultAddress,
		Amount:  amount.String(),
	})
}

func (r *Relayer) submit(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", errors.Join(ErrRelayer, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Join(ErrRelayer, err)
	}

	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Join(ErrRelayer, fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", errors.Join(ErrRelayerReject, fmt.Errorf("status %d: %s", resp.StatusCode, parsed.Error))
	}
	if parsed.TxHash == "" {
		return "", errors.Join(ErrRelayer, errors.New("submission returned no transaction hash"))
	}

	r.log.Info().Str("path", path).Str("tx_hash", parsed.TxHash).Msg("Transaction submitted")
	return parsed.TxHash, nil
}

type statusResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// TxStatus returns the relayer's view of a submitted transaction.
func (r *Relayer) TxStatus(ctx context.Context, txHash string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/tx/%s", r.baseURL, url.PathEscape(txHash))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", errors.Join(ErrRelayer, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Join(ErrRelayer, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Join(ErrRelayer, fmt.Errorf("tx status %d", resp.StatusCode))
	}

	var parsed statusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Join(ErrRelayer, err)
	}

	switch parsed.Status {
	case TxStatusPending, TxStatusConfirmed, TxStatusFailed, TxStatusDropped:
		return parsed.Status, nil
	default:
		return "", errors.Join(ErrRelayer, fmt.Errorf("unknown status %q", parsed.Status))
	}
}

type quoteResponse struct {
	AmountOut string `json:"amount_out"`
}

// QuoteSwap returns the relayer's expected output for a swap without
// executing it.
func (r *Relayer) QuoteSwap(ctx context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	endpoint := fmt.Sprintf("%s/v1/quote?token_in=%s&token_out=%s&amount_in=%s",
		r.baseURL, url.QueryEscape(tokenIn), url.QueryEscape(tokenOut), amountIn.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrRelayer, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrRelayer, err)
	}
	if resp.StatusCode != http.StatusOK {
		return sdkmath.ZeroInt(), errors.Join(ErrRelayer, fmt.Errorf("quote status %d", resp.StatusCode))
	}

	var parsed quoteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrRelayer, err)
	}
	out, ok := sdkmath.NewIntFromString(parsed.AmountOut)
	if !ok || out.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(ErrRelayer, fmt.Errorf("bad quote amount %q", parsed.AmountOut))
	}
	return out, nil
}
