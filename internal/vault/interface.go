/*

Yield vault boundary. Portfolio assets may sit inside tokenized yield vaults;
this package answers how much underlying a position is worth and moves funds in
and out. Reads go straight to the chain, mutations go through a transaction
submitter so this package never holds key material.

*/

package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Position is an account's holding in one vault, denominated in the vault's
// underlying token base units.
type Position struct {
	// Shares held by the account.
	Shares sdkmath.Int

	// Underlying value of those shares right now.
	Underlying sdkmath.Int

	// Maximum underlying the vault will release on redemption. Yield shows up
	// as the excess of this over the share value.
	Withdrawable sdkmath.Int
}

// Adapter exposes the vault operations the valuer and executor need.
type Adapter interface {
	// UnderlyingAsset returns the address of the vault's underlying token.
	UnderlyingAsset(ctx context.Context, vaultAddress string) (string, error)

	// GetPosition reads the account's current position in a vault.
	GetPosition(ctx context.Context, account, vaultAddress string) (Position, error)

	// Deposit moves `amount` underlying base units from the account into the
	// vault and returns the transaction hash.
	Deposit(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error)

	// Redeem withdraws `amount` underlying base units from the vault to the
	// account and returns the transaction hash.
	Redeem(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error)
}

// TxSubmitter hands state-changing vault operations to whatever signs and
// broadcasts them.
type TxSubmitter interface {
	SubmitVaultDeposit(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error)
	SubmitVaultRedeem(ctx context.Context, account, vaultAddress string, amount sdkmath.Int) (string, error)
}
