package executor

import (
	"sort"

	"github.com/lumennetwork/node/shared/bytesutil"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

// applyBeaconCommit records a committee member's commitment during the
// beacon's Commit phase. A member may only commit once per round; a
// repeat is a revert (reuses ErrAlreadySignaled, the same "you already
// did this" shape as a duplicate ChangeEpoch signal).
func applyBeaconCommit(w *kv.Writer, pub [32]byte, node types.NodeInfo, m types.CommitteeSelectionBeaconCommit, p *params.ProtocolParams) (types.Response, types.NodeInfo, bool) {
	epoch := currentEpoch(w)
	committee, found, err := w.GetCommittee(epoch)
	if err != nil {
		panic(err)
	}
	idx := w.GetNodeIndex(pub)
	if !found || idx == types.UnassignedNodeIndex || !committee.Contains(idx) {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}
	if committee.Beacon.Phase != types.BeaconPhaseCommit {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}
	for _, c := range committee.Beacon.Commits {
		if c.NodeIndex == idx {
			return types.Response{Reverted: true, Error: types.ErrAlreadySignaled}, node, false
		}
	}

	committee.Beacon.Commits = append(committee.Beacon.Commits, types.BeaconCommit{NodeIndex: idx, Hash: m.RevealHash})

	if len(committee.Beacon.Commits) >= types.QuorumThreshold(len(committee.Members)) {
		committee.Beacon.Phase = types.BeaconPhaseReveal
	}
	if err := w.PutCommittee(epoch, committee); err != nil {
		panic(err)
	}
	return success(nil), node, false
}

// applyBeaconReveal records a committee member's reveal, verifying it
// against the hash the same member committed earlier. When every
// committed member has revealed, the epoch advances. While reveals are
// missing the phase stays open; the round is never restarted: only a
// RevealPhaseTimeout quorum cuts the stragglers off, and it advances the
// epoch with the reveals received so far.
func applyBeaconReveal(w *kv.Writer, pub [32]byte, node types.NodeInfo, m types.CommitteeSelectionBeaconReveal, p *params.ProtocolParams, blockTimestamp uint64) (types.Response, types.NodeInfo, bool) {
	epoch := currentEpoch(w)
	committee, found, err := w.GetCommittee(epoch)
	if err != nil {
		panic(err)
	}
	idx := w.GetNodeIndex(pub)
	if !found || idx == types.UnassignedNodeIndex || !committee.Contains(idx) {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}
	if committee.Beacon.Phase != types.BeaconPhaseReveal {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}

	var committed *types.BeaconCommit
	for i := range committee.Beacon.Commits {
		if committee.Beacon.Commits[i].NodeIndex == idx {
			committed = &committee.Beacon.Commits[i]
			break
		}
	}
	if committed == nil {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}
	if types.Hash256(m.Reveal[:]) != committed.Hash {
		return types.Response{Reverted: true, Error: types.ErrInvalidProof}, node, false
	}
	for _, r := range committee.Beacon.Reveals {
		if r.NodeIndex == idx {
			return types.Response{Reverted: true, Error: types.ErrAlreadySignaled}, node, false
		}
	}
	committee.Beacon.Reveals = append(committee.Beacon.Reveals, types.BeaconReveal{NodeIndex: idx, Reveal: m.Reveal})

	if len(committee.Beacon.Reveals) < len(committee.Beacon.Commits) {
		if err := w.PutCommittee(epoch, committee); err != nil {
			panic(err)
		}
		return success(nil), node, false
	}

	// Every member who committed has now revealed: advance the epoch.
	// emitRewards (called from within advanceEpoch) writes every node's
	// row, including this caller's, so the caller's NodeInfo is re-read
	// afterward — applyNodeMethod persists whatever this handler returns,
	// and returning the pre-reward copy would clobber the credited
	// balance with a stale one.
	changed, err := advanceEpoch(w, epoch, committee, p, blockTimestamp)
	if err != nil {
		panic(err)
	}
	refreshed, _, err := w.GetNode(pub)
	if err != nil {
		panic(err)
	}
	return success(nil), refreshed, changed
}

// applyCommitPhaseTimeout and applyRevealPhaseTimeout record an
// out-of-band observation (block production continued past
// PhaseStartedAt plus the configured phase duration) from a committee
// member. Once 2f+1 members report the same timeout the phase advances
// without waiting for the stragglers, mirroring spec.md section 4.2's
// timeout fallback; the epoch controller (epoch package) is what
// actually decides when to submit these, SE only counts them.
func applyCommitPhaseTimeout(w *kv.Writer, pub [32]byte, node types.NodeInfo, p *params.ProtocolParams, blockTimestamp uint64) (types.Response, types.NodeInfo, bool) {
	epoch := currentEpoch(w)
	committee, found, err := w.GetCommittee(epoch)
	if err != nil {
		panic(err)
	}
	idx := w.GetNodeIndex(pub)
	if !found || idx == types.UnassignedNodeIndex || !committee.Contains(idx) {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}
	if committee.Beacon.Phase != types.BeaconPhaseCommit {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}
	if blockTimestamp < committee.Beacon.PhaseStartedAt+p.CommitteeSelectionBeaconCommitPhaseDuration {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}
	for _, t := range committee.Beacon.CommitTimeouts {
		if t == idx {
			return types.Response{Reverted: true, Error: types.ErrAlreadySignaled}, node, false
		}
	}
	committee.Beacon.CommitTimeouts = append(committee.Beacon.CommitTimeouts, idx)

	if len(committee.Beacon.CommitTimeouts) >= types.QuorumThreshold(len(committee.Members)) {
		committee.Beacon.Phase = types.BeaconPhaseReveal
		committee.Beacon.PhaseStartedAt = blockTimestamp
	}
	if err := w.PutCommittee(epoch, committee); err != nil {
		panic(err)
	}
	return success(nil), node, false
}

func applyRevealPhaseTimeout(w *kv.Writer, pub [32]byte, node types.NodeInfo, p *params.ProtocolParams, blockTimestamp uint64) (types.Response, types.NodeInfo, bool) {
	epoch := currentEpoch(w)
	committee, found, err := w.GetCommittee(epoch)
	if err != nil {
		panic(err)
	}
	idx := w.GetNodeIndex(pub)
	if !found || idx == types.UnassignedNodeIndex || !committee.Contains(idx) {
		return types.Response{Reverted: true, Error: types.ErrNotCommitteeMember}, node, false
	}
	if committee.Beacon.Phase != types.BeaconPhaseReveal {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}
	if blockTimestamp < committee.Beacon.PhaseStartedAt+p.CommitteeSelectionBeaconRevealPhaseDuration {
		return types.Response{Reverted: true, Error: types.ErrEpochHasNotStarted}, node, false
	}
	for _, t := range committee.Beacon.RevealTimeouts {
		if t == idx {
			return types.Response{Reverted: true, Error: types.ErrAlreadySignaled}, node, false
		}
	}
	committee.Beacon.RevealTimeouts = append(committee.Beacon.RevealTimeouts, idx)

	if len(committee.Beacon.RevealTimeouts) < types.QuorumThreshold(len(committee.Members)) {
		if err := w.PutCommittee(epoch, committee); err != nil {
			panic(err)
		}
		return success(nil), node, false
	}

	changed, err := advanceEpoch(w, epoch, committee, p, blockTimestamp)
	if err != nil {
		panic(err)
	}
	refreshed, _, err := w.GetNode(pub)
	if err != nil {
		panic(err)
	}
	return success(nil), refreshed, changed
}

// advanceEpoch selects the next committee from the completed beacon's
// reveals, rotates MetaLastEpochHash, increments MetaEpoch, triggers
// reward emission for the epoch just ending, and writes the fresh
// CommitteeInfo row for the new epoch. It is only reached once a beacon
// round has reached quorum one way or another (full reveal or timeout).
func advanceEpoch(w *kv.Writer, epoch types.Epoch, committee types.CommitteeInfo, p *params.ProtocolParams, blockTimestamp uint64) (bool, error) {
	beaconValue := combineReveals(committee.Beacon.Reveals)
	if err := w.PutMetadata(types.MetaLastEpochHash, bytesutil.BytesToUint64(beaconValue[:8])); err != nil {
		return false, err
	}

	members, err := selectNextCommittee(w, beaconValue, int(p.CommitteeSize), p)
	if err != nil {
		return false, err
	}

	if err := emitRewards(w, epoch, p); err != nil {
		return false, err
	}

	next := epoch + 1
	if err := w.PutMetadata(types.MetaEpoch, uint64(next)); err != nil {
		return false, err
	}
	nextCommittee := types.CommitteeInfo{
		Members:           members,
		EpochEndTimestamp: blockTimestamp + p.CommitteeSelectionBeaconCommitPhaseDuration + p.CommitteeSelectionBeaconRevealPhaseDuration,
	}
	if err := w.PutCommittee(next, nextCommittee); err != nil {
		return false, err
	}
	return true, nil
}

// combineReveals folds every revealed beacon value into one, order
// independent so that the final value does not depend on the sequence
// transactions happened to arrive in within the block.
func combineReveals(reveals []types.BeaconReveal) types.Digest {
	var combined [32]byte
	for _, r := range reveals {
		for i := range combined {
			combined[i] ^= r.Reveal[i]
		}
	}
	return types.Hash256(combined[:])
}

// selectNextCommittee orders every eligible node (sufficient stake,
// participating) by types.Hash256(beaconValue, node_index) ascending and
// takes the first size of them, breaking ties — which Hash256 makes
// vanishingly unlikely but not impossible — by lower node index.
func selectNextCommittee(w *kv.Writer, beaconValue types.Digest, size int, p *params.ProtocolParams) ([]types.NodeIndex, error) {
	type candidate struct {
		idx  types.NodeIndex
		rank types.Digest
	}
	var candidates []candidate
	err := w.ForEachNode(func(pub [32]byte, info types.NodeInfo) error {
		if info.Stake.Staked < p.MinStake || info.Participation != types.ParticipationTrue {
			return nil
		}
		idx := w.GetNodeIndex(pub)
		if idx == types.UnassignedNodeIndex {
			return nil
		}
		rank := types.Hash256(beaconValue[:], bytesutil.Uint32ToBytes(uint32(idx)))
		candidates = append(candidates, candidate{idx: idx, rank: rank})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].rank, candidates[j].rank
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return candidates[i].idx < candidates[j].idx
	})
	if size > len(candidates) {
		size = len(candidates)
	}
	out := make([]types.NodeIndex, size)
	for i := 0; i < size; i++ {
		out[i] = candidates[i].idx
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
