/*

Rebalance actions are the plan steps emitted by the planner for one cycle.
They are consumed exactly once by the execution sequencer and then discarded;
nothing carries over between cycles.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// ActionType defines the executable rebalancing operations.
type ActionType string

const (
	ActionSell         ActionType = "SELL"          // swap asset into the reference asset
	ActionBuy          ActionType = "BUY"           // swap reference asset into the asset
	ActionRedeemVault  ActionType = "REDEEM_VAULT"  // pull underlying out of a yield vault
	ActionDepositVault ActionType = "DEPOSIT_VAULT" // sweep idle balance into a yield vault
)

// IsFunding reports whether the action frees liquidity (redeem/sell) as
// opposed to consuming it (buy/deposit). Every funding action in a plan
// precedes every consuming one.
func (t ActionType) IsFunding() bool {
	return t == ActionSell || t == ActionRedeemVault
}

// RebalanceAction is a single executable step in a cycle's plan.
type RebalanceAction struct {
	Type   ActionType `json:"type"`
	Symbol string     `json:"symbol"` // asset being traded or vaulted

	// SELL: amount of the asset to swap, native units.
	AmountIn sdkmath.Int `json:"amount_in,omitempty"`

	// BUY: value to spend, 18-dec reference units.
	AmountReference sdkmath.Int `json:"amount_reference,omitempty"`

	// REDEEM_VAULT / DEPOSIT_VAULT
	Vault    string      `json:"vault,omitempty"`
	Amount   sdkmath.Int `json:"amount,omitempty"` // underlying asset amount, native units
	Receiver string      `json:"receiver,omitempty"`
}

// ActionReceipt records the outcome of executing one action.
type ActionReceipt struct {
	Action    RebalanceAction `json:"action"`
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
