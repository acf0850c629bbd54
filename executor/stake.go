package executor

import (
	"github.com/lumennetwork/node/shared/fixedpoint"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

// applyStake debits the paying account and credits the target node's
// staked balance, registering the node (assigning it a dense index) on
// first stake. Signed by the account funding the stake, not the node
// itself — a node cannot sign its own registration before it has one.
func applyStake(w *kv.Writer, payer [20]byte, acc types.AccountInfo, m types.StakeMethod) (types.Response, types.AccountInfo, error) {
	bal := fixedpoint.RawFLK(acc.FlkBalance)
	amt := fixedpoint.RawFLK(m.Amount)
	if fixedpoint.Cmp(bal, amt) < 0 {
		return types.Response{Reverted: true, Error: types.ErrInsufficientStake}, acc, nil
	}
	acc.FlkBalance = fixedpoint.Sub(bal, amt).Raw()

	node, found, err := w.GetNode(m.NodePublicKey)
	if err != nil {
		return types.Response{}, acc, err
	}
	if !found {
		node = types.NodeInfo{
			Owner:        payer,
			ConsensusKey: m.ConsensusKey,
			Domain:       m.Domain,
			Ports:        m.Ports,
		}
	}
	node.Stake.Staked = fixedpoint.Add(fixedpoint.RawFLK(node.Stake.Staked), amt).Raw()

	if err := w.PutNode(m.NodePublicKey, node); err != nil {
		return types.Response{}, acc, err
	}
	if !found {
		if err := w.PutNodeIndex(m.NodePublicKey, w.NextNodeIndex()); err != nil {
			return types.Response{}, acc, err
		}
	}

	return success(nil), acc, nil
}

// applyUnstake moves staked FLK into the locked bucket. It sets no
// LockedUntil, and no transaction moves locked stake back out of the
// node row: Withdraw debits account balances only.
func applyUnstake(node types.NodeInfo, m types.Unstake) (types.Response, types.NodeInfo, bool) {
	staked := fixedpoint.RawFLK(node.Stake.Staked)
	amt := fixedpoint.RawFLK(m.Amount)
	if fixedpoint.Cmp(staked, amt) < 0 {
		return types.Response{Reverted: true, Error: types.ErrInsufficientStake}, node, false
	}
	node.Stake.Staked = fixedpoint.Sub(staked, amt).Raw()
	node.Stake.Locked = fixedpoint.Add(fixedpoint.RawFLK(node.Stake.Locked), amt).Raw()
	return success(nil), node, false
}

// applyStakeLock extends the node's stake-lock horizon
// (StakeLockedUntil). The reward math's stakeBoost (rewards.go) does not
// read this horizon; the boost comes from the locked fraction of stake.
func applyStakeLock(node types.NodeInfo, m types.StakeLock, p *params.ProtocolParams) (types.Response, types.NodeInfo, bool) {
	until := types.Epoch(m.LockedFor)
	if until > node.Stake.StakeLockedUntil {
		node.Stake.StakeLockedUntil = until
	}
	return success(nil), node, false
}

// applyOptIn marks a node's participation True, effective at the next
// epoch boundary (spec.md section 3): the epoch controller's Advance step
// promotes OptedIn to True, so this method only records the intent.
func applyOptIn(node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
	node.Participation = types.ParticipationOptedIn
	return success(nil), node, false
}

// applyOptOut records the intent to stop participating; the transition to
// False happens on the next epoch boundary.
func applyOptOut(node types.NodeInfo) (types.Response, types.NodeInfo, bool) {
	node.Participation = types.ParticipationOptedOut
	return success(nil), node, false
}
