/*

Execution sequencing. The plan arrives ordered with every funding action
(redeem, sell) ahead of every consuming action (buy, deposit); this package
walks it strictly in order, waits for each transaction to confirm before
moving on, and isolates failures to the smallest dependent set:

  - a failed redeem aborts the sell it was funding, other sells continue
  - any failed or timed-out funding action aborts all buys and deposits,
    because their liquidity can no longer be assumed
  - a failed buy or deposit affects nothing else

Confirmation is polled with exponential backoff up to a bounded window.
Exceeding the window leaves the transaction in an unknown state; it is
reported and never retried, the next cycle revalues from scratch.

*/

package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/types"
	"github.com/scobru/baluni-sub001/internal/utils"
	"github.com/scobru/baluni-sub001/internal/vault"
	"github.com/scobru/baluni-sub001/internal/wallet"
)

var (
	ErrUnknownAction  = errors.New("unknown action type")
	ErrTxFailed       = errors.New("transaction failed on chain")
	ErrFundingAborted = errors.New("funding dependency failed")
)

// TxWatcher reports the state of a submitted transaction by hash.
type TxWatcher interface {
	TxStatus(ctx context.Context, txHash string) (string, error)
}

// Sequencer executes rebalancing plans.
type Sequencer struct {
	swapper wallet.Swapper
	vaults  vault.Adapter
	watcher TxWatcher

	account   string
	reference types.Asset
	assets    map[string]types.Asset

	confirmTimeout time.Duration

	log zerolog.Logger
}

// New creates a Sequencer for a fixed account and asset universe.
func New(swapper wallet.Swapper, vaults vault.Adapter, watcher TxWatcher,
	account string, reference types.Asset, assets map[string]types.Asset,
	confirmTimeout time.Duration) *Sequencer {
	return &Sequencer{
		swapper:        swapper,
		vaults:         vaults,
		watcher:        watcher,
		account:        account,
		reference:      reference,
		assets:         assets,
		confirmTimeout: confirmTimeout,
		log:            logger.GetForComponent("executor"),
	}
}

// Execute runs the plan in order and returns one receipt per action. The
// slice always has the same length and order as the plan.
func (s *Sequencer) Execute(ctx context.Context, plan []types.RebalanceAction, params types.StrategyParameters) []types.ActionReceipt {
	receipts := make([]types.ActionReceipt, 0, len(plan))

	fundingBroken := false
	redeemFailedFor := make(map[string]bool)

	for _, action := range plan {
		receipt := types.ActionReceipt{Action: action, Timestamp: time.Now().UTC()}

		switch {
		case action.Type == types.ActionSell && redeemFailedFor[action.Symbol]:
			receipt.Success = false
			receipt.Message = ErrFundingAborted.Error()
		case !action.Type.IsFunding() && fundingBroken:
			receipt.Success = false
			receipt.Message = ErrFundingAborted.Error()
		default:
			txHash, err := s.submit(ctx, action, params)
			if err == nil {
				err = s.waitConfirmed(ctx, txHash)
			}
			receipt.TxHash = txHash
			if err != nil {
				receipt.Success = false
				receipt.Message = err.Error()
			} else {
				receipt.Success = true
			}
		}

		if !receipt.Success {
			s.log.Warn().
				Str("type", string(action.Type)).
				Str("asset", action.Symbol).
				Str("reason", receipt.Message).
				Msg("Action failed")
			if action.Type.IsFunding() {
				fundingBroken = true
				if action.Type == types.ActionRedeemVault {
					redeemFailedFor[action.Symbol] = true
				}
			}
		} else {
			s.log.Info().
				Str("type", string(action.Type)).
				Str("asset", action.Symbol).
				Str("tx_hash", receipt.TxHash).
				Msg("Action confirmed")
		}

		receipts = append(receipts, receipt)
	}

	return receipts
}

func (s *Sequencer) submit(ctx context.Context, action types.RebalanceAction, params types.StrategyParameters) (string, error) {
	asset, ok := s.assets[action.Symbol]
	if !ok {
		return "", fmt.Errorf("%w: no asset for symbol %s", ErrUnknownAction, action.Symbol)
	}

	switch action.Type {
	case types.ActionSell:
		return s.swapper.Swap(ctx, s.account, asset, s.reference, action.AmountIn, params.SlippageBps)

	case types.ActionBuy:
		amountIn, err := utils.ReferenceToRaw(action.AmountReference, s.reference.Decimals)
		if err != nil {
			return "", err
		}
		return s.swapper.Swap(ctx, s.account, s.reference, asset, amountIn, params.SlippageBps)

	case types.ActionRedeemVault:
		return s.vaults.Redeem(ctx, action.Receiver, action.Vault, action.Amount)

	case types.ActionDepositVault:
		return s.vaults.Deposit(ctx, action.Receiver, action.Vault, action.Amount)

	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action.Type)
	}
}

// waitConfirmed polls the transaction state with exponential backoff until it
// confirms, fails, or the confirmation window closes.
func (s *Sequencer) waitConfirmed(ctx context.Context, txHash string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = s.confirmTimeout

	operation := func() error {
		status, err := s.watcher.TxStatus(ctx, txHash)
		if err != nil {
			// Transient watcher errors are retried inside the window.
			return err
		}
		switch status {
		case wallet.TxStatusConfirmed:
			return nil
		case wallet.TxStatusFailed, wallet.TxStatusDropped:
			return backoff.Permanent(fmt.Errorf("%w: %s is %s", ErrTxFailed, txHash, status))
		default:
			return fmt.Errorf("transaction %s still %s", txHash, status)
		}
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTxFailed) {
		return err
	}
	return errors.Join(types.ErrExecutionTimeout,
		fmt.Errorf("transaction %s unconfirmed after %s: %w", txHash, s.confirmTimeout, err))
}
