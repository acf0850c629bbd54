package consensus

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

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

type fakeSubstrate struct {
	sent []gossip.Message
}

func (s *fakeSubstrate) Recv() (gossip.Event, bool) { return nil, false }
func (s *fakeSubstrate) Send(msg gossip.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

func setupAdapter(t *testing.T, chainID uint64) (*Adapter, *fakeSubstrate, ed25519.PublicKey) {
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

	exec := executor.New(store)
	ts := txstore.New()
	substrate := &fakeSubstrate{}
	n := notifier.New()
	a := New(store, exec, ts, substrate, n, signer, 0, chainID)
	return a, substrate, pub
}

func envelopeFor(signer *cryptoutil.NodeSigner, method types.UpdateMethod, nonce uint64, chainID uint64) types.TransactionEnvelope {
	return signer.SignEnvelope(types.TransactionPayload{
		Nonce:          nonce,
		SecondaryNonce: nonce,
		ChainID:        chainID,
		Method:         method,
	})
}

func TestHandleConsensusOutputExecutesAndBroadcasts(t *testing.T) {
	a, substrate, _ := setupAdapter(t, 1)

	env := envelopeFor(a.signer, types.OptOut{}, 1, 1)
	err := a.HandleConsensusOutput(Output{
		SubDagIndex: 1,
		Batches:     []Batch{{Epoch: 0, Transactions: []types.TransactionEnvelope{env}}},
	})
	require.NoError(t, err)

	require.Len(t, substrate.sent, 2)
	require.Equal(t, gossip.KindTransactions, substrate.sent[0].Kind)
	require.Equal(t, gossip.KindAttestation, substrate.sent[1].Kind)
	require.Equal(t, substrate.sent[0].Parcel.ToDigest(), substrate.sent[1].Attestation.Digest)

	digest := substrate.sent[0].Parcel.ToDigest()
	require.True(t, a.store.HasExecuted(digest))
	_, head := a.epochAndHead()
	require.Equal(t, digest, head)
}

func TestHandleConsensusOutputDropsStaleEpochBatches(t *testing.T) {
	a, substrate, _ := setupAdapter(t, 1)

	env := envelopeFor(a.signer, types.OptOut{}, 1, 1)
	err := a.HandleConsensusOutput(Output{
		SubDagIndex: 1,
		Batches:     []Batch{{Epoch: 7, Transactions: []types.TransactionEnvelope{env}}},
	})
	require.NoError(t, err)
	require.Empty(t, substrate.sent)
}

func TestHandleConsensusOutputDedupesAlreadyExecuted(t *testing.T) {
	a, substrate, _ := setupAdapter(t, 1)

	env := envelopeFor(a.signer, types.OptOut{}, 1, 1)
	require.NoError(t, a.HandleConsensusOutput(Output{
		SubDagIndex: 1,
		Batches:     []Batch{{Epoch: 0, Transactions: []types.TransactionEnvelope{env}}},
	}))
	require.Len(t, substrate.sent, 2)

	// Re-delivering the same already-executed transaction should produce
	// an empty, dropped batch: nothing new gets broadcast.
	require.NoError(t, a.HandleConsensusOutput(Output{
		SubDagIndex: 2,
		Batches:     []Batch{{Epoch: 0, Transactions: []types.TransactionEnvelope{env}}},
	}))
	require.Len(t, substrate.sent, 2)
}

func TestExecuteBatchAdvancesHeadWithoutBroadcasting(t *testing.T) {
	a, substrate, _ := setupAdapter(t, 1)

	env := envelopeFor(a.signer, types.OptOut{}, 1, 1)
	parcel := types.Parcel{Transactions: []types.TransactionEnvelope{env}, Epoch: 0, SubDagIndex: 5}
	digest := parcel.ToDigest()

	changed, err := a.ExecuteBatch(parcel.Transactions, digest, parcel.SubDagIndex)
	require.NoError(t, err)
	require.False(t, changed)
	require.Empty(t, substrate.sent)
	_, head := a.epochAndHead()
	require.Equal(t, digest, head)
}
