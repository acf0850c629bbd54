package state

import (
	"testing"

	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testGenesis() *params.GenesisConfig {
	nodes := make([]types.NodeInfo, 4)
	for i := range nodes {
		nodes[i].ConsensusKey[0] = byte(i + 1)
		nodes[i].Stake.Staked = 1000
	}
	return &params.GenesisConfig{
		Epoch:           0,
		EpochTime:       1000,
		SupplyAtGenesis: 1_000_000,
		NodeInfo:        nodes,
		ProtocolParams: map[types.ParamTag]uint64{
			types.ParamCommitteeSize: 4,
			types.ParamMinStake:      1000,
		},
	}
}

func TestApplyGenesisSeedsCommitteeAndNodes(t *testing.T) {
	s := newTestStore(t)
	cfg := testGenesis()

	require.NoError(t, ApplyGenesis(s, cfg))

	require.NoError(t, s.Querier().View(func(r *kv.Reader) error {
		committee, ok, err := r.GetCommittee(0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, committee.Members, 4)

		_, found, err := r.GetNode(cfg.NodeInfo[0].ConsensusKey)
		require.NoError(t, err)
		require.True(t, found)

		supply, ok := r.GetMetadata(types.MetaTotalSupply)
		require.True(t, ok)
		require.Equal(t, uint64(1_000_000), supply)
		return nil
	}))
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	cfg := testGenesis()

	require.NoError(t, ApplyGenesis(s, cfg))
	require.NoError(t, ApplyGenesis(s, cfg))

	require.NoError(t, s.Querier().View(func(r *kv.Reader) error {
		committee, ok, err := r.GetCommittee(0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, committee.Members, 4, "re-applying genesis must not duplicate committee members")
		return nil
	}))
}
