package types

import "time"

// HoldingReport is the human-readable projection of a Holding persisted with
// each cycle report. Values are whole reference units; raw amounts keep their
// exact string form.
type HoldingReport struct {
	Symbol          string  `json:"symbol"`
	DirectBalance   string  `json:"direct_balance"`
	VaultBalance    string  `json:"vault_balance"`
	AccruedInterest string  `json:"accrued_interest"`
	Value           float64 `json:"value"`
	AllocationBps   int64   `json:"allocation_bps"`
}

// CycleReport is the persistent record of one rebalancing cycle: the state the
// engine saw, the plan it made, and what actually happened.
type CycleReport struct {
	ReportID    int64     `json:"report_id,omitempty"` // assigned by the store
	CycleNumber int       `json:"cycle_number"`
	CycleID     string    `json:"cycle_id"`
	Timestamp   time.Time `json:"timestamp"`
	Account     string    `json:"account"`

	InitialTotalValue float64         `json:"initial_total_value"`
	InitialHoldings   []HoldingReport `json:"initial_holdings"`

	TargetAllocations TargetAllocation  `json:"target_allocations"`
	Plan              []RebalanceAction `json:"plan"`

	FinalTotalValue float64         `json:"final_total_value"`
	FinalHoldings   []HoldingReport `json:"final_holdings"`

	Receipts          []ActionReceipt `json:"receipts"`
	TransactionHashes []string        `json:"transaction_hashes"`

	NetChange float64 `json:"net_change"`
	// FailureStage names the step that aborted the cycle, empty on success.
	FailureStage string `json:"failure_stage,omitempty"`
}
