package epoch

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumennetwork/node/notifier"
	"github.com/lumennetwork/node/shared/cryptoutil"
	"github.com/lumennetwork/node/types"
)

type fakeQuery struct {
	epoch     types.Epoch
	committee types.CommitteeInfo
}

func (f *fakeQuery) CurrentEpoch() types.Epoch { return f.epoch }
func (f *fakeQuery) Committee(epoch types.Epoch) (types.CommitteeInfo, bool) {
	if epoch != f.epoch {
		return types.CommitteeInfo{}, false
	}
	return f.committee, true
}

type fakeSubmitter struct {
	submitted []types.TransactionEnvelope
}

func (s *fakeSubmitter) Submit(env types.TransactionEnvelope) error {
	s.submitted = append(s.submitted, env)
	return nil
}

func newController(t *testing.T, q *fakeQuery, s *fakeSubmitter) *Controller {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer := cryptoutil.NewNodeSigner(priv)
	return New(q, s, signer, 0, 1, notifier.New())
}

func TestTickSignalsChangeEpochOncePastDeadline(t *testing.T) {
	q := &fakeQuery{epoch: 0, committee: types.CommitteeInfo{
		Members:           []types.NodeIndex{0, 1, 2, 3},
		EpochEndTimestamp: 0,
	}}
	s := &fakeSubmitter{}
	c := newController(t, q, s)

	c.tick()
	require.Len(t, s.submitted, 1)
	require.Equal(t, types.MethodChangeEpoch, s.submitted[0].Payload.Method.Kind())

	// A second tick must not resubmit: local dedupe already recorded it.
	c.tick()
	require.Len(t, s.submitted, 1)
}

func TestTickDoesNothingForNonMember(t *testing.T) {
	q := &fakeQuery{epoch: 0, committee: types.CommitteeInfo{
		Members:           []types.NodeIndex{1, 2, 3},
		EpochEndTimestamp: 0,
	}}
	s := &fakeSubmitter{}
	c := newController(t, q, s)

	c.tick()
	require.Empty(t, s.submitted)
}

func TestTickCommitsThenReveals(t *testing.T) {
	committee := types.CommitteeInfo{
		Members: []types.NodeIndex{0, 1, 2, 3},
		Beacon:  types.BeaconPhaseState{Phase: types.BeaconPhaseCommit, PhaseStartedAt: uint64(time.Now().Unix())},
	}
	q := &fakeQuery{epoch: 0, committee: committee}
	s := &fakeSubmitter{}
	c := newController(t, q, s)

	c.tick()
	require.Len(t, s.submitted, 1)
	require.Equal(t, types.MethodCommitteeSelectionBeaconCommit, s.submitted[0].Payload.Method.Kind())
	st := c.state[0]
	require.True(t, st.haveSecret)

	// Move the fake committee into the reveal phase; the controller must
	// send the exact secret it generated during the commit step.
	q.committee.Beacon.Phase = types.BeaconPhaseReveal
	c.tick()
	require.Len(t, s.submitted, 2)
	reveal, ok := s.submitted[1].Payload.Method.(types.CommitteeSelectionBeaconReveal)
	require.True(t, ok)
	require.Equal(t, st.secret, reveal.Reveal)
}

func TestTickSendsCommitTimeoutAfterPhaseDuration(t *testing.T) {
	committee := types.CommitteeInfo{
		Members: []types.NodeIndex{0, 1, 2, 3},
		Beacon:  types.BeaconPhaseState{Phase: types.BeaconPhaseCommit, PhaseStartedAt: 0},
	}
	q := &fakeQuery{epoch: 0, committee: committee}
	s := &fakeSubmitter{}
	c := newController(t, q, s)

	// First tick: the phase started at 0, so its duration has long passed;
	// the node both commits and sends CommitPhaseTimeout, in that order.
	c.tick()
	require.Len(t, s.submitted, 2)

	// Simulate this node's commit having landed on-chain; the next tick
	// sends nothing new, since both transactions were already sent.
	q.committee.Beacon.Commits = []types.BeaconCommit{{NodeIndex: 0}}
	c.tick()
	require.Len(t, s.submitted, 2)
	require.Equal(t, types.MethodCommitPhaseTimeout, s.submitted[1].Payload.Method.Kind())
}
