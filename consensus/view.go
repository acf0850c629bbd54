package consensus

import (
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

// CommitteeView adapts an ASS query handle to the read-only committee
// surfaces gossip.Receiver's CommitteeQuery and epoch.Controller's Query
// each need, so both are wired against the same backend without either
// package importing state/kv directly.
type CommitteeView struct {
	backend state.Backend
}

// NewCommitteeView returns a CommitteeView reading through backend.
func NewCommitteeView(backend state.Backend) *CommitteeView {
	return &CommitteeView{backend: backend}
}

// CurrentEpoch returns the ASS's current epoch counter.
func (v *CommitteeView) CurrentEpoch() types.Epoch {
	var epoch types.Epoch
	_ = v.backend.Querier().View(func(r *kv.Reader) error {
		e, _ := r.GetMetadata(types.MetaEpoch)
		epoch = types.Epoch(e)
		return nil
	})
	return epoch
}

// Committee returns the CommitteeInfo row for epoch, satisfying
// epoch.Query.
func (v *CommitteeView) Committee(epoch types.Epoch) (types.CommitteeInfo, bool) {
	var out types.CommitteeInfo
	var found bool
	_ = v.backend.Querier().View(func(r *kv.Reader) error {
		info, ok, err := r.GetCommittee(epoch)
		if err != nil {
			return err
		}
		out, found = info, ok
		return nil
	})
	return out, found
}

// CommitteeMembers returns epoch's committee member list, satisfying
// gossip.CommitteeQuery.
func (v *CommitteeView) CommitteeMembers(epoch types.Epoch) []types.NodeIndex {
	info, ok := v.Committee(epoch)
	if !ok {
		return nil
	}
	return info.Members
}

// PubKeyToIndex resolves a node's consensus public key to its dense
// index, satisfying gossip.CommitteeQuery.
func (v *CommitteeView) PubKeyToIndex(pub [32]byte) types.NodeIndex {
	var idx types.NodeIndex
	_ = v.backend.Querier().View(func(r *kv.Reader) error {
		idx = r.GetNodeIndex(pub)
		return nil
	})
	return idx
}

// LastExecutedDigest returns the parcel digest of the most recently
// executed block, satisfying gossip.CommitteeQuery.
func (v *CommitteeView) LastExecutedDigest() types.Digest {
	var digest types.Digest
	_ = v.backend.Querier().View(func(r *kv.Reader) error {
		d, _ := r.GetLastBlockDigest()
		digest = d
		return nil
	})
	return digest
}
