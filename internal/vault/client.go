package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/market"
)

// ERC-4626 and ERC-20 function selectors.
const (
	selectorAsset           = "0x38d52e0f"
	selectorBalanceOf       = "0x70a08231"
	selectorConvertToAssets = "0x07a2d13a"
	selectorMaxWithdraw     = "0xce96cb77"
)

var ErrVaultRead = errors.New("vault read failed")

// Client implements Adapter against ERC-4626 vaults. Reads use eth_call;
// deposits and redemptions are delegated to the submitter.
type Client struct {
	rpc       *market.RPCClient
	submitter TxSubmitter
	log       zerolog.Logger
}

// NewClient creates a vault adapter over the given RPC client and submitter.
func NewClient(rpc *market.RPCClient, submitter TxSubmitter) *Client {
	return &Client{
		rpc:       rpc,
		submitter: submitter,
		log:       logger.GetForComponent("vault_client"),
	}
}

// UnderlyingAsset returns the vault's underlying token address.
func (c *Client) UnderlyingAsset(ctx context.Context, vaultAddress string) (string, error) {
	result, err := c.rpc.Call(ctx, vaultAddress, selectorAsset)
	if err != nil {
		return "", errors.Join(ErrVaultRead, fmt.Errorf("asset %s: %w", vaultAddress, err))
	}
	word := strings.TrimPrefix(result, "0x")
	if len(word) != 64 {
		return "", errors.Join(ErrVaultRead, fmt.Errorf("asset %s: malformed word %q", vaultAddress, result))
	}
	return "0x" + word[24:], nil
}

// GetPosition reads the account's shares, their underlying value and the
// currently withdrawable amount in one pass.
func (c *Client) GetPosition(ctx context.Context, account, vaultAddress string) (Position, error) {
	accountWord, err := market.AddressWord(account)
	if err != nil {
		return Position{}, errors.Join(ErrVaultRead, err)
	}

	shares, err := c.callInt(ctx, vaultAddress, selectorBalanceOf+accountWord)
	if err != nil {
		return Position{}, err
	}

	if shares.IsZero() {
		return Position{
			Shares:       sdkmath.ZeroInt(),
			Underlying:   sdkmath.ZeroInt(),
			Withdrawable: sdkmath.ZeroInt(),
		}, nil
	}

	sharesWord, err := market.UintWord(shares)
	if err != nil {
		return Position{}, errors.Join(ErrVaultRead, err)
	}
	underlying, err := c.callInt(ctx, vaultAddress, selectorConvertToAssets+sharesWord)
	if err != nil {
		return Position{}, err
	}

	withdrawable, err := c.callInt(ctx, vaultAddress, selectorMaxWithdraw+accountWord)
	if err != nil {
		return Position{}, err
	}

	c.log.Debug().
		Str("vault", vaultAddress).
		Str("shares", shares.String()).
		Str("underlying", underlying.String()).
		Str("withdrawable", withdrawable.String()).
		Msg("Vault position read")

	return Position{Shares: shares, Underlying: underlying, Withdrawable: withdrawable}, nil
}

// Deposit moves underlying into the vault via the submitter.
func (c *Client) Deposit(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error) {
	return c.submitter.SubmitVaultDeposit(ctx, account, vaultAddress, amount)
}

// Redeem withdraws underlying from the vault via the submitter.
func (c *Client) Redeem(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error) {
	return c.submitter.SubmitVaultRedeem(ctx, account, vaultAddress, amount)
}

func (c *Client) callInt(ctx context.Context, to, data string) (sdkmath.Int, error) {
	result, err := c.rpc.Call(ctx, to, data)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrVaultRead, fmt.Errorf("call %s: %w", to, err))
	}
	v, err := market.HexToInt(result)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrVaultRead, fmt.Errorf("call %s: %w", to, err))
	}
	return v, nil
}
