package gossip

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumennetwork/node/notifier"
	"github.com/lumennetwork/node/shared/shutdown"
	"github.com/lumennetwork/node/txstore"
	"github.com/lumennetwork/node/types"
)

func TestIsValidMessage(t *testing.T) {
	require.True(t, IsValidMessage(true, 2, 2))
	require.True(t, IsValidMessage(true, 4, 3))
	require.False(t, IsValidMessage(true, 7, 5))
	require.False(t, IsValidMessage(true, 4, 5))
	require.True(t, IsValidMessage(false, 2, 1))
	require.False(t, IsValidMessage(false, 3, 1))
	require.False(t, IsValidMessage(false, 1, 2))
}

type fakeQuery struct {
	epoch     types.Epoch
	committee []types.NodeIndex
	ourIndex  types.NodeIndex
	head      types.Digest
}

func (f *fakeQuery) CurrentEpoch() types.Epoch                     { return f.epoch }
func (f *fakeQuery) CommitteeMembers(types.Epoch) []types.NodeIndex { return f.committee }
func (f *fakeQuery) PubKeyToIndex([32]byte) types.NodeIndex         { return f.ourIndex }
func (f *fakeQuery) LastExecutedDigest() types.Digest               { return f.head }

type fakeEvent struct {
	originator  types.NodeIndex
	msg         Message
	digest      types.Digest
	propagated  bool
	marked      bool
	repropaged  types.Digest
	repropExcpt types.NodeIndex
}

func (e *fakeEvent) Originator() types.NodeIndex { return e.originator }
func (e *fakeEvent) Message() Message            { return e.msg }
func (e *fakeEvent) Digest() types.Digest        { return e.digest }
func (e *fakeEvent) Propagate()                  { e.propagated = true }
func (e *fakeEvent) MarkInvalidSender()          { e.marked = true }
func (e *fakeEvent) Repropagate(msgDigest types.Digest, except types.NodeIndex) {
	e.repropaged = msgDigest
	e.repropExcpt = except
}

type fakeSubstrate struct {
	mu   sync.Mutex
	in   chan Event
	sent []Message
}

func newFakeSubstrate() *fakeSubstrate {
	return &fakeSubstrate{in: make(chan Event, 16)}
}

func (s *fakeSubstrate) Recv() (Event, bool) {
	evt, ok := <-s.in
	return evt, ok
}

func (s *fakeSubstrate) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSubstrate) sentMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestEdgeNodeHandleParcelFromCommitteeExecutesOnQuorum(t *testing.T) {
	committee := []types.NodeIndex{1, 2, 3}
	query := &fakeQuery{epoch: 0, committee: committee, ourIndex: types.UnassignedNodeIndex}

	store := txstore.New()
	store.ChangeEpoch(committee)

	substrate := newFakeSubstrate()
	var executed []uint64
	execute := func(txns []types.TransactionEnvelope, digest types.Digest, subDagIndex uint64) (bool, error) {
		executed = append(executed, subDagIndex)
		return false, nil
	}

	r := NewReceiver(substrate, store, query, [32]byte{}, execute, notifier.New())

	parcel := types.Parcel{LastExecuted: query.head, Epoch: 0, SubDagIndex: 1}
	digest := parcel.ToDigest()
	evt := &fakeEvent{originator: 1, digest: types.Digest{0xAA}, msg: Message{Kind: KindTransactions, Parcel: parcel}}

	r.handleParcel(evt, parcel)
	require.True(t, evt.propagated)

	for _, n := range committee {
		r.store.StoreAttestation(digest, n)
	}
	r.tryExecute(digest)
	require.Equal(t, []uint64{1}, executed)
	require.True(t, r.store.HasExecuted(digest))
}

// A parcel/attestation stamped for the next epoch is held in TS's
// pending partition rather than executed or propagated immediately
// (spec.md section 9's optimistic next-epoch acceptance), and only
// becomes visible to GetParcel/AttestationCount once ChangeEpoch
// promotes it.
func TestHandleParcelAndAttestationFromNextEpochAreHeldPending(t *testing.T) {
	committee := []types.NodeIndex{1, 2, 3}
	query := &fakeQuery{epoch: 0, committee: committee, ourIndex: types.UnassignedNodeIndex}
	store := txstore.New()
	store.ChangeEpoch(committee)
	r := NewReceiver(newFakeSubstrate(), store, query, [32]byte{}, nil, notifier.New())

	parcel := types.Parcel{Epoch: 1, SubDagIndex: 1}
	digest := parcel.ToDigest()
	evt := &fakeEvent{originator: 1, digest: types.Digest{0xBB}, msg: Message{Kind: KindTransactions, Parcel: parcel}}
	r.handleParcel(evt, parcel)

	require.False(t, evt.propagated, "a next-epoch parcel should not be re-propagated as current")
	_, ok := store.GetParcel(digest)
	require.False(t, ok, "next-epoch parcel should be pending, not live")

	attEvt := &fakeEvent{originator: 2, msg: Message{Kind: KindAttestation}}
	r.handleAttestation(attEvt, types.Attestation{NodeIndex: 2, Epoch: 1, Digest: digest})
	require.Equal(t, 0, store.AttestationCount(digest), "next-epoch attestation should be pending, not live")

	store.ChangeEpoch(committee)
	_, ok = store.GetParcel(digest)
	require.True(t, ok, "next-epoch parcel from a surviving committee member should be promoted")
	require.Equal(t, 1, store.AttestationCount(digest))
}

func TestHandleParcelRejectsInvalidSender(t *testing.T) {
	query := &fakeQuery{epoch: 5, committee: []types.NodeIndex{1, 2, 3}, ourIndex: types.UnassignedNodeIndex}
	store := txstore.New()
	store.ChangeEpoch(query.committee)
	r := NewReceiver(newFakeSubstrate(), store, query, [32]byte{}, nil, notifier.New())

	parcel := types.Parcel{Epoch: 9}
	evt := &fakeEvent{originator: 1, msg: Message{Kind: KindTransactions, Parcel: parcel}}
	r.handleParcel(evt, parcel)
	require.True(t, evt.marked)
	require.False(t, evt.propagated)
}

func TestHandleRequestRepropagatesStoredMessageDigest(t *testing.T) {
	query := &fakeQuery{epoch: 0, committee: []types.NodeIndex{1}}
	store := txstore.New()
	r := NewReceiver(newFakeSubstrate(), store, query, [32]byte{}, nil, notifier.New())

	msgDigest := types.Digest{7}
	digest := types.Digest{9}
	store.StoreParcel(digest, txstore.StoredParcel{MessageDigest: &msgDigest})

	evt := &fakeEvent{originator: 4, msg: Message{Kind: KindRequestTransactions, Request: digest}}
	r.handleRequest(evt, digest)
	require.Equal(t, msgDigest, evt.repropaged)
	require.Equal(t, types.NodeIndex(4), evt.repropExcpt)
}

func TestHandleTimeoutSendsRequestWhenStillMissing(t *testing.T) {
	query := &fakeQuery{epoch: 0, committee: []types.NodeIndex{1}}
	store := txstore.New()
	substrate := newFakeSubstrate()
	r := NewReceiver(substrate, store, query, [32]byte{}, nil, notifier.New())

	digest := types.Digest{3}
	r.handleTimeout(digest)

	sent := substrate.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, KindRequestTransactions, sent[0].Kind)
	require.Equal(t, digest, sent[0].Request)
}

func TestRunStopsOnShutdown(t *testing.T) {
	query := &fakeQuery{epoch: 0, committee: []types.NodeIndex{1}}
	store := txstore.New()
	r := NewReceiver(newFakeSubstrate(), store, query, [32]byte{}, nil, notifier.New())

	sc := shutdown.NewController(false)
	done := make(chan struct{})
	go func() {
		r.Run(sc)
		close(done)
	}()

	sc.TriggerShutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown was triggered")
	}
}
