package main

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumennetwork/node/consensus"
	"github.com/lumennetwork/node/executor"
	"github.com/lumennetwork/node/gossip"
	"github.com/lumennetwork/node/notifier"
	"github.com/lumennetwork/node/shared/cryptoutil"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/statetest"
	"github.com/lumennetwork/node/txstore"
	"github.com/lumennetwork/node/types"
)

type fakeSubstrate struct{}

func (s *fakeSubstrate) Recv() (gossip.Event, bool) { return nil, false }
func (s *fakeSubstrate) Send(msg gossip.Message) error { return nil }

func setupSubmitterAdapter(t *testing.T) *consensus.Adapter {
	t.Helper()
	store := statetest.NewStore(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer := cryptoutil.NewNodeSigner(priv)

	var key [32]byte
	copy(key[:], pub)
	cfg := &params.GenesisConfig{
		Epoch:           0,
		SupplyAtGenesis: 1_000_000,
		ProtocolParams: map[types.ParamTag]uint64{
			types.ParamCommitteeSize: 1,
			types.ParamMinStake:      1000,
		},
		NodeInfo: []types.NodeInfo{{
			ConsensusKey:  key,
			Stake:         types.Stake{Staked: 1000},
			Participation: types.ParticipationTrue,
		}},
	}
	require.NoError(t, state.ApplyGenesis(store, cfg))
	params.Override(params.DefaultProtocolParams())

	return consensus.New(store, executor.New(store), txstore.New(), &fakeSubstrate{}, notifier.New(), signer, 0, 1)
}

func TestLocalSubmitterRunsEachEnvelopeAsItsOwnBatch(t *testing.T) {
	adapter := setupSubmitterAdapter(t)
	sub := newLocalSubmitter(adapter)

	env := types.TransactionEnvelope{
		Payload: types.TransactionPayload{
			Method:  types.OptOut{},
			ChainID: 1,
		},
	}

	require.NoError(t, sub.Submit(env))
	require.EqualValues(t, 1, sub.subDagIndex)

	require.NoError(t, sub.Submit(env))
	require.EqualValues(t, 2, sub.subDagIndex)
}
