package executor

import (
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

func currentEpoch(w *kv.Writer) types.Epoch {
	v, _ := w.GetMetadata(types.MetaEpoch)
	return types.Epoch(v)
}

// applyChangeEpoch implements spec.md section 4.2's nine-step ChangeEpoch
// sequence. Steps 5–7 (epoch mismatch, non-membership, double-signal) are
// reverts, per section 8 scenarios 2 and 5. Steps 3–4 (insufficient stake,
// not participating) are deliberately NOT reverts — section 8 scenario 3
// states the transaction still returns Success, it simply does not reach
// ready_to_change; this is an explicit resolution of the tension between
// section 4.2's literal "else InsufficientStake/NodeNotParticipating" text
// and section 8's worked scenarios, recorded in DESIGN.md.
func applyChangeEpoch(w *kv.Writer, pub [32]byte, node types.NodeInfo, m types.ChangeEpoch, p *params.ProtocolParams, blockTimestamp uint64) (types.Response, types.NodeInfo, bool) {
	epoch := currentEpoch(w)
	if m.Epoch < epoch {
		return types.Response{Reverted: true, Error: types.ErrEpochAlreadyChanged}, node, false
	}
	if m.Epoch > epoch {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}

	committee, found, err := w.GetCommittee(epoch)
	if err != nil {
		panic(err)
	}
	if !found {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}

	idx := w.GetNodeIndex(pub)
	if idx == types.UnassignedNodeIndex || !committee.Contains(idx) {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}
	if committee.HasSignaled(idx) {
		return types.Response{Reverted: true, Error: types.ErrAlreadySignaled}, node, false
	}

	eligible := node.Stake.Staked >= p.MinStake && node.Participation == types.ParticipationTrue
	if eligible {
		committee.InsertSignal(idx)
		if committee.Beacon.Phase == types.BeaconPhaseNone &&
			len(committee.ReadyToChange) >= types.QuorumThreshold(len(committee.Members)) {
			committee.Beacon.Phase = types.BeaconPhaseCommit
			committee.Beacon.Round = 0
			committee.Beacon.PhaseStartedAt = blockTimestamp
			committee.Beacon.Commits = nil
			committee.Beacon.Reveals = nil
			committee.Beacon.CommitTimeouts = nil
			committee.Beacon.RevealTimeouts = nil
		}
		if err := w.PutCommittee(epoch, committee); err != nil {
			panic(err)
		}
	}

	// The epoch increment itself only happens when the beacon's reveal
	// phase completes (beacon.go's applyBeaconReveal); this receipt's
	// change_epoch is always false, per spec.md section 4.2 step 9.
	return success(nil), node, false
}
