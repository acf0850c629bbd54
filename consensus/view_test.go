package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/state/statetest"
	"github.com/lumennetwork/node/types"
)

func TestCommitteeViewReadsGenesisState(t *testing.T) {
	store := statetest.NewStore(t)
	var pub [32]byte
	pub[0] = 0xAB
	cfg := &params.GenesisConfig{
		Epoch: 0,
		ProtocolParams: map[types.ParamTag]uint64{
			types.ParamCommitteeSize: 1,
			types.ParamMinStake:      1000,
		},
		NodeInfo: []types.NodeInfo{{
			ConsensusKey:  pub,
			Stake:         types.Stake{Staked: 1000},
			Participation: types.ParticipationTrue,
		}},
	}
	require.NoError(t, state.ApplyGenesis(store, cfg))

	view := NewCommitteeView(store)
	require.Equal(t, types.Epoch(0), view.CurrentEpoch())

	idx := view.PubKeyToIndex(pub)
	require.NotEqual(t, types.UnassignedNodeIndex, idx)

	committee, ok := view.Committee(0)
	require.True(t, ok)
	require.Contains(t, view.CommitteeMembers(0), idx)
	require.True(t, committee.Contains(idx))

	require.Equal(t, types.Digest{}, view.LastExecutedDigest())

	require.NoError(t, store.Updater().Run(func(w *kv.Writer) error {
		return w.PutLastBlockDigest(types.Digest{9, 9, 9})
	}))
	require.Equal(t, types.Digest{9, 9, 9}, view.LastExecutedDigest())
}
