// Package executor implements the State Executor (SE): a pure function
// over (state, block) producing per-transaction receipts plus optional
// epoch-change signal. It is the dominant component by rule count — every
// transaction kind's protocol semantics lives here, run synchronously
// inside one ASS write transaction per block.
package executor

import (
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "executor")

// Executor applies blocks against an ASS backend.
type Executor struct {
	backend state.Backend
}

// New returns an Executor bound to backend.
func New(backend state.Backend) *Executor {
	return &Executor{backend: backend}
}

// Execute applies envelopes in order under one atomic ASS transaction and
// returns one receipt per envelope. changedEpoch reports whether any
// transaction in the block advanced the epoch, so callers (the consensus
// adapter, GP's try-execute bridge) know to refresh their committee
// snapshot. A non-nil error is always fatal per spec.md section 7.3 —
// every transaction-level failure is represented as a Revert receipt, not
// a returned error.
func (e *Executor) Execute(envelopes []types.TransactionEnvelope, blockNumber, chainID, blockTimestamp uint64) ([]types.Receipt, bool, error) {
	receipts := make([]types.Receipt, 0, len(envelopes))
	changedEpoch := false

	err := e.backend.Updater().Run(func(w *kv.Writer) (runErr error) {
		defer func() {
			// A handler panics only on storage I/O failure or an
			// unreachable invariant break (delivery.go's service lookup,
			// beacon.go's committee-selection hash), both fatal per
			// spec.md section 7.3. Recovering here turns that into a
			// normal error return so the caller can log and trigger
			// shutdown rather than crashing the process mid-transaction.
			if r := recover(); r != nil {
				if asErr, ok := r.(error); ok {
					runErr = asErr
				} else {
					runErr = errors.Errorf("executor: %v", r)
				}
			}
		}()
		p := params.Get()
		for i := range envelopes {
			r, err := e.applyOne(w, &envelopes[i], blockNumber, chainID, blockTimestamp, p)
			if err != nil {
				return err
			}
			if r.ChangeEpoch {
				changedEpoch = true
			}
			receipts = append(receipts, r)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	log.WithField("count", len(receipts)).WithField("block", blockNumber).Debug("executed block")
	return receipts, changedEpoch, nil
}

// errSimulated is the sentinel Simulate returns from inside its Updater
// closure to force bbolt to roll back every write the dry run made.
var errSimulated = errors.New("executor: simulated transaction, rolled back")

// Simulate dry-runs env against the current chain head and returns the
// receipt it would produce without persisting anything: it shares
// applyOne's dispatch logic with Execute, but always returns errSimulated
// from its Updater closure so the underlying bolt transaction rolls back
// regardless of outcome. This backs query.Runner's simulate_txn (spec.md
// section 4.4's query interface).
func (e *Executor) Simulate(env types.TransactionEnvelope, blockNumber, chainID, blockTimestamp uint64) (types.Receipt, error) {
	var receipt types.Receipt
	err := e.backend.Updater().Run(func(w *kv.Writer) (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				if asErr, ok := r.(error); ok {
					runErr = asErr
				} else {
					runErr = errors.Errorf("executor: %v", r)
				}
			}
		}()
		r, err := e.applyOne(w, &env, blockNumber, chainID, blockTimestamp, params.Get())
		if err != nil {
			return err
		}
		receipt = r
		return errSimulated
	})
	if err != nil && !errors.Is(err, errSimulated) {
		return types.Receipt{}, err
	}
	return receipt, nil
}

// applyOne runs the replay guard, signature check, and per-kind nonce
// check common to every transaction, then dispatches to the kind-specific
// handler. It never returns an error for protocol-level rejections —
// those become Revert receipts — only for ASS write failures, which are
// fatal.
func (e *Executor) applyOne(w *kv.Writer, env *types.TransactionEnvelope, blockNumber, chainID, blockTimestamp uint64, p *params.ProtocolParams) (types.Receipt, error) {
	digest := env.Hash()

	if w.HasExecutedDigest(digest) {
		return revert(blockNumber, types.ErrInvalidNonce), nil
	}

	if env.Payload.ChainID != chainID {
		return revert(blockNumber, types.ErrInvalidProof), nil
	}

	if !verifyEnvelope(env) {
		return revert(blockNumber, types.ErrInvalidSignature), nil
	}

	resp, changeEpoch, err := dispatch(w, env, p, blockTimestamp)
	if err != nil {
		return types.Receipt{}, err
	}

	if err := w.MarkExecutedDigest(digest); err != nil {
		return types.Receipt{}, err
	}

	return types.Receipt{Response: resp, BlockNumber: blockNumber, ChangeEpoch: changeEpoch}, nil
}

func revert(blockNumber uint64, kind types.ExecutionError) types.Receipt {
	return types.Receipt{
		Response:    types.Response{Reverted: true, Error: kind},
		BlockNumber: blockNumber,
	}
}

func success(data []byte) types.Response {
	return types.Response{Data: data}
}

// dispatch routes a payload to its handler by method kind. Nonce checks
// happen inside each handler family (nodeNonce/accountNonce below) since
// the signer-table lookup the check needs is also the first thing every
// handler does.
func dispatch(w *kv.Writer, env *types.TransactionEnvelope, p *params.ProtocolParams, blockTimestamp uint64) (types.Response, bool, error) {
	m := env.Payload.Method
	switch v := m.(type) {
	case types.Transfer:
		return applyAccountMethod(w, env, func(w *kv.Writer, addr [20]byte, acc types.AccountInfo) (types.Response, types.AccountInfo, error) {
			return applyTransfer(w, addr, acc, v)
		})
	case types.Deposit:
		return applyAccountMethod(w, env, func(w *kv.Writer, addr [20]byte, acc types.AccountInfo) (types.Response, types.AccountInfo, error) {
			resp, updated := applyDeposit(acc, v)
			return resp, updated, nil
		})
	case types.Withdraw:
		return applyAccountMethod(w, env, func(w *kv.Writer, addr [20]byte, acc types.AccountInfo) (types.Response, types.AccountInfo, error) {
			resp, updated := applyWithdraw(acc, v)
			return resp, updated, nil
		})
	case types.StakeMethod:
		return applyAccountMethod(w, env, func(w *kv.Writer, addr [20]byte, acc types.AccountInfo) (types.Response, types.AccountInfo, error) {
			return applyStake(w, addr, acc, v)
		})
	case types.Unstake:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyUnstake(node, v)
		})
	case types.StakeLock:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyStakeLock(node, v, p)
		})
	case types.OptIn:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyOptIn(node)
		})
	case types.OptOut:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyOptOut(node)
		})
	case types.SubmitDeliveryAcknowledgmentAggregation:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyDeliveryAcks(w, node, v)
		})
	case types.SubmitReputationMeasurements:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyReputationMeasurements(node, v)
		})
	case types.UpdateContentRegistry:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyContentRegistry(node, v)
		})
	case types.ChangeEpoch:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyChangeEpoch(w, pub, node, v, p, blockTimestamp)
		})
	case types.CommitteeSelectionBeaconCommit:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyBeaconCommit(w, pub, node, v, p)
		})
	case types.CommitteeSelectionBeaconReveal:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyBeaconReveal(w, pub, node, v, p, blockTimestamp)
		})
	case types.CommitPhaseTimeout:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyCommitPhaseTimeout(w, pub, node, p, blockTimestamp)
		})
	case types.RevealPhaseTimeout:
		return applyNodeMethod(w, env, func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
			return applyRevealPhaseTimeout(w, pub, node, p, blockTimestamp)
		})
	default:
		return types.Response{Reverted: true, Error: types.ErrUnimplemented}, false, nil
	}
}
