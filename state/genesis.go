package state

import (
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

// ApplyGenesis seeds an empty store from cfg: every genesis node and
// service row, the initial committee (the first CommitteeSize nodes, in
// genesis order), the protocol parameter table, and the starting supply
// metadata. It is idempotent — a store that already has
// MetaGenesisApplied set is left untouched — so a node can call it
// unconditionally on every startup, the way the teacher's
// blockchain.Service calls SaveGenesisData defensively on every boot.
func ApplyGenesis(b Backend, cfg *params.GenesisConfig) error {
	var alreadyApplied bool
	if err := b.Querier().View(func(r *kv.Reader) error {
		_, alreadyApplied = r.GetMetadata(types.MetaGenesisApplied)
		return nil
	}); err != nil {
		return err
	}
	if alreadyApplied {
		return nil
	}

	return b.Updater().Run(func(w *kv.Writer) error {
		for idx, n := range cfg.NodeInfo {
			if err := w.PutNode(n.ConsensusKey, n); err != nil {
				return err
			}
			if err := w.PutNodeIndex(n.ConsensusKey, types.NodeIndex(idx)); err != nil {
				return err
			}
		}

		for _, svc := range cfg.Service {
			if err := w.PutService(svc.ID, svc); err != nil {
				return err
			}
		}

		for tag, value := range cfg.ProtocolParams {
			if err := w.PutParameter(tag, value); err != nil {
				return err
			}
		}

		committeeSize := int(params.DefaultProtocolParams().CommitteeSize)
		if v, ok := cfg.ProtocolParams[types.ParamCommitteeSize]; ok {
			committeeSize = int(v)
		}
		if committeeSize > len(cfg.NodeInfo) {
			committeeSize = len(cfg.NodeInfo)
		}
		members := make([]types.NodeIndex, committeeSize)
		for i := range members {
			members[i] = types.NodeIndex(i)
		}
		committee := types.CommitteeInfo{
			Members:           members,
			EpochEndTimestamp: cfg.EpochTime,
		}
		if err := w.PutCommittee(cfg.Epoch, committee); err != nil {
			return err
		}

		if err := w.PutMetadata(types.MetaEpoch, uint64(cfg.Epoch)); err != nil {
			return err
		}
		if err := w.PutMetadata(types.MetaSupplyAtYearStart, cfg.SupplyAtGenesis); err != nil {
			return err
		}
		if err := w.PutMetadata(types.MetaTotalSupply, cfg.SupplyAtGenesis); err != nil {
			return err
		}
		return w.PutMetadata(types.MetaGenesisApplied, 1)
	})
}
