package query

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumennetwork/node/executor"
	"github.com/lumennetwork/node/shared/cryptoutil"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/statetest"
	"github.com/lumennetwork/node/txstore"
	"github.com/lumennetwork/node/types"
)

func setupRunner(t *testing.T) (*Runner, ed25519.PrivateKey, [32]byte, [20]byte) {
	t.Helper()
	store := statetest.NewStore(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], pub)
	var owner [20]byte
	owner[0] = 0x42

	cfg := &params.GenesisConfig{
		Epoch:            0,
		SupplyAtGenesis:  1_000_000,
		MinStake:         1000,
		ProtocolParams: map[types.ParamTag]uint64{
			types.ParamCommitteeSize: 1,
			types.ParamMinStake:      1000,
		},
		NodeInfo: []types.NodeInfo{{
			Owner:         owner,
			ConsensusKey:  key,
			Stake:         types.Stake{Staked: 1000, Locked: 250},
			Participation: types.ParticipationTrue,
			FlkBalance:    500,
		}},
	}
	require.NoError(t, state.ApplyGenesis(store, cfg))
	params.Override(cfg.ToProtocolParams())

	return New(store, executor.New(store), txstore.New()), priv, key, owner
}

func TestRunnerReadsGenesisState(t *testing.T) {
	q, _, key, _ := setupRunner(t)

	require.Equal(t, types.Epoch(0), q.CurrentEpoch())
	require.Equal(t, q.StakingAmount(), uint64(1000))

	idx := q.PubKeyToIndex(key)
	require.NotEqual(t, types.UnassignedNodeIndex, idx)
	require.Contains(t, q.CommitteeMembers(), idx)

	info, ok := q.CommitteeInfo(0, ProjectionFull)
	require.True(t, ok)
	require.True(t, info.Contains(idx))

	summary, ok := q.CommitteeInfo(0, ProjectionSummary)
	require.True(t, ok)
	require.Zero(t, summary.Beacon.Round)

	node, ok, err := q.NodeInfo(key, ProjectionFull)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1000), node.Stake.Staked)
	require.Equal(t, uint64(500), node.FlkBalance)

	staked, err := q.Staked(key)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), staked)

	locked, err := q.Locked(key)
	require.NoError(t, err)
	require.Equal(t, uint64(250), locked)

	epochInfo, err := q.EpochInfo()
	require.NoError(t, err)
	require.Equal(t, types.Epoch(0), epochInfo.Epoch)
	require.Len(t, epochInfo.Committee, 1)
	require.Equal(t, key, epochInfo.Committee[0].ConsensusKey)
}

func TestRunnerAccountBalances(t *testing.T) {
	q, _, _, owner := setupRunner(t)

	flk, err := q.FlkBalance(owner)
	require.NoError(t, err)
	require.Zero(t, flk)

	stables, err := q.StablesBalance(owner)
	require.NoError(t, err)
	require.Zero(t, stables)

	_, found, err := q.AccountInfo(owner, ProjectionFull)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRunnerHasExecutedDigestAndSimulate(t *testing.T) {
	q, priv, _, _ := setupRunner(t)

	require.False(t, q.HasExecutedDigest(types.Digest{1, 2, 3}))

	signer := cryptoutil.NewNodeSigner(priv)
	env := signer.SignEnvelope(types.TransactionPayload{
		Nonce:          1,
		SecondaryNonce: 1,
		ChainID:        1,
		Method:         types.OptOut{},
	})

	receipt, err := q.SimulateTxn(env, 1, 1, 0)
	require.NoError(t, err)
	require.False(t, receipt.Response.Reverted)

	// Simulation must not have consumed the transaction: re-simulating the
	// identical envelope still succeeds rather than reverting as a replay.
	receipt2, err := q.SimulateTxn(env, 1, 1, 0)
	require.NoError(t, err)
	require.False(t, receipt2.Response.Reverted)
	require.False(t, q.HasExecutedDigest(env.Hash()))
}

func TestRunnerNotImplementedStubs(t *testing.T) {
	q, _, key, _ := setupRunner(t)

	_, err := q.Reputation(key)
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = q.RelativeScore(key, key)
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = q.NodeRegistry()
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = q.IsValidNode(key)
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = q.EpochRandomnessSeed()
	require.ErrorIs(t, err, ErrNotImplemented)
}
