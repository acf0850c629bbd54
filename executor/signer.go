package executor

import (
	"github.com/lumennetwork/node/shared/cryptoutil"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

func verifyEnvelope(env *types.TransactionEnvelope) bool {
	return cryptoutil.VerifyEnvelope(env)
}

func accountAddr(env *types.TransactionEnvelope) [20]byte {
	var addr [20]byte
	copy(addr[:], env.Payload.Sender[:20])
	return addr
}

// applyAccountMethod enforces spec.md section 3's nonce-monotonicity
// invariant for account-signed transactions and persists the account row
// only when the handler succeeds, leaving it byte-for-byte unchanged on
// revert.
func applyAccountMethod(w *kv.Writer, env *types.TransactionEnvelope, handle func(w *kv.Writer, addr [20]byte, acc types.AccountInfo) (types.Response, types.AccountInfo, error)) (types.Response, bool, error) {
	if env.Payload.SignerKind != types.SignerAccount {
		return types.Response{Reverted: true, Error: types.ErrOnlyAccountOwner}, false, nil
	}

	addr := accountAddr(env)
	acc, _, err := w.GetAccount(addr)
	if err != nil {
		return types.Response{}, false, err
	}

	if env.Payload.Nonce != acc.Nonce+1 {
		return types.Response{Reverted: true, Error: types.ErrInvalidNonce}, false, nil
	}

	resp, updated, err := handle(w, addr, acc)
	if err != nil {
		return types.Response{}, false, err
	}
	if resp.Reverted {
		return resp, false, nil
	}

	updated.Nonce = env.Payload.Nonce
	if err := w.PutAccount(addr, updated); err != nil {
		return types.Response{}, false, err
	}
	return resp, false, nil
}

// applyNodeMethod is applyAccountMethod's counterpart for node-signed
// transactions. Node transactions additionally carry a secondary nonce
// (spec.md section 3's collision-breaker), which must strictly exceed the
// stored value regardless of outcome ordering ties on the primary nonce.
func applyNodeMethod(w *kv.Writer, env *types.TransactionEnvelope, handle func(pub [32]byte, node types.NodeInfo) (types.Response, types.NodeInfo, bool)) (types.Response, bool, error) {
	if env.Payload.SignerKind != types.SignerNode {
		return types.Response{Reverted: true, Error: types.ErrOnlyNode}, false, nil
	}

	pub := env.Payload.Sender
	node, found, err := w.GetNode(pub)
	if err != nil {
		return types.Response{}, false, err
	}
	if !found {
		return types.Response{Reverted: true, Error: types.ErrNodeDoesNotExist}, false, nil
	}

	if env.Payload.Nonce != node.Nonce+1 {
		return types.Response{Reverted: true, Error: types.ErrInvalidNonce}, false, nil
	}
	if env.Payload.SecondaryNonce <= node.SecondaryNonce {
		return types.Response{Reverted: true, Error: types.ErrInvalidNonce}, false, nil
	}

	resp, updated, changeEpoch := handle(pub, node)
	if resp.Reverted {
		return resp, false, nil
	}

	updated.Nonce = env.Payload.Nonce
	updated.SecondaryNonce = env.Payload.SecondaryNonce
	if err := w.PutNode(pub, updated); err != nil {
		return types.Response{}, false, err
	}
	return resp, changeEpoch, nil
}
