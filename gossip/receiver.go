package gossip

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/lumennetwork/node/notifier"
	"github.com/lumennetwork/node/shared/metrics"
	"github.com/lumennetwork/node/shared/shutdown"
	"github.com/lumennetwork/node/txstore"
	"github.com/lumennetwork/node/types"
)

var log = logrus.WithField("component", "gossip")

// maxPendingTimeouts bounds the number of in-flight parcel timers, per
// spec.md section 4.4.
const maxPendingTimeouts = 100

// pendingRequestCapacity bounds the recently-requested-digest LRU used to
// suppress duplicate RequestTransactions broadcasts.
const pendingRequestCapacity = 100

// CommitteeQuery is the read-only view into current committee state the
// receiver worker needs to validate messages and decide whether this
// node itself is a committee member; consensus.CommitteeView, built over
// an ASS query handle, satisfies it in the wired node.
type CommitteeQuery interface {
	CurrentEpoch() types.Epoch
	CommitteeMembers(epoch types.Epoch) []types.NodeIndex
	PubKeyToIndex(pub [32]byte) types.NodeIndex
	// LastExecutedDigest returns the digest of the most recently executed
	// block, the chain walk's target when reconnecting a parcel.
	LastExecutedDigest() types.Digest
}

// Receiver is the single message-receiver task described in spec.md
// section 5: it owns the committee membership cache, our_index, the
// pending-timer set, the pending-requests LRU, and the parcel-timeout
// dispatcher. Exactly one Receiver runs per node.
type Receiver struct {
	substrate Substrate
	store     *txstore.Store
	query     CommitteeQuery
	execute   txstore.ExecuteBatchFunc
	notifier  *notifier.Notifier
	nodePub   [32]byte

	committee       []types.NodeIndex
	quorumThreshold int
	ourIndex        types.NodeIndex
	onCommittee     bool

	pendingRequests *lru.Cache
	pendingTimeouts map[types.Digest]struct{}
	timeoutCh       chan types.Digest
}

// NewReceiver builds a Receiver seeded with the current committee state.
func NewReceiver(substrate Substrate, store *txstore.Store, query CommitteeQuery, nodePub [32]byte, execute txstore.ExecuteBatchFunc, n *notifier.Notifier) *Receiver {
	pendingRequests, err := lru.New(pendingRequestCapacity)
	if err != nil {
		panic(err)
	}
	r := &Receiver{
		substrate:       substrate,
		store:           store,
		query:           query,
		execute:         execute,
		notifier:        n,
		nodePub:         nodePub,
		pendingRequests: pendingRequests,
		pendingTimeouts: make(map[types.Digest]struct{}),
		timeoutCh:       make(chan types.Digest, 128),
	}
	r.refreshCommittee()
	return r
}

func (r *Receiver) refreshCommittee() {
	epoch := r.query.CurrentEpoch()
	r.committee = r.query.CommitteeMembers(epoch)
	r.quorumThreshold = types.QuorumThreshold(len(r.committee))
	r.ourIndex = r.query.PubKeyToIndex(r.nodePub)
	r.onCommittee = contains(r.committee, r.ourIndex)
	r.store.ChangeEpoch(r.committee)
}

func contains(committee []types.NodeIndex, idx types.NodeIndex) bool {
	for _, c := range committee {
		if c == idx {
			return true
		}
	}
	return false
}

// Run drives the message receiver loop until the shutdown controller
// fires. It uses a non-blocking pre-check of the shutdown waiter before
// the main select so that, across iterations, shutdown is serviced ahead
// of other ready work — Go's select has no priority ordering, so this is
// the idiomatic stand-in for the original's `tokio::select! { biased; }`.
func (r *Receiver) Run(sc *shutdown.Controller) {
	waiter := sc.NewWaiter("gossip: message receiver")
	defer waiter.Release()

	epochCh := make(chan notifier.EpochChangedEvent, 8)
	sub := r.notifier.SubscribeEpochChanged(epochCh)
	defer sub.Unsubscribe()

	events := r.pumpEvents(waiter.Done)

	log.Info("message receiver worker is running")
	for {
		select {
		case <-waiter.Done:
			return
		default:
		}

		select {
		case <-waiter.Done:
			return
		case <-epochCh:
			// Edge nodes learn about the epoch change implicitly, via
			// tryExecute's changedEpoch return; only a node that was
			// already on the committee needs to eagerly refresh here.
			if r.onCommittee {
				r.refreshCommittee()
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(evt)
		case digest := <-r.timeoutCh:
			r.handleTimeout(digest)
		}
	}
}

// pumpEvents runs a single goroutine that repeatedly calls the
// (blocking) Substrate.Recv and forwards events onto the returned
// channel, so Run's select can multiplex it against shutdown, the
// epoch-changed subscription and the timeout channel without more than
// one goroutine ever reading the substrate at a time.
func (r *Receiver) pumpEvents(done <-chan struct{}) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for {
			evt, ok := r.substrate.Recv()
			if !ok {
				return
			}
			select {
			case ch <- evt:
			case <-done:
				return
			}
		}
	}()
	return ch
}

func (r *Receiver) handleEvent(evt Event) {
	msg := evt.Message()
	switch msg.Kind {
	case KindTransactions:
		r.handleParcel(evt, msg.Parcel)
	case KindAttestation:
		r.handleAttestation(evt, msg.Attestation)
	case KindRequestTransactions:
		r.handleRequest(evt, msg.Request)
	}
}

func (r *Receiver) handleParcel(evt Event, parcel types.Parcel) {
	originator := evt.Originator()
	epoch := r.query.CurrentEpoch()
	isCommittee := contains(r.committee, originator)
	if !IsValidMessage(isCommittee, parcel.Epoch, epoch) {
		evt.MarkInvalidSender()
		metrics.InvalidSenderDrops.Inc()
		return
	}

	msgDigest := evt.Digest()
	parcelDigest := parcel.ToDigest()
	fromNextEpoch := parcel.Epoch == epoch+1
	requested := r.takeRequested(parcelDigest)

	if !requested && !fromNextEpoch {
		evt.Propagate()
	}

	stored := txstore.StoredParcel{Parcel: parcel, Originator: originator, MessageDigest: &msgDigest}
	if fromNextEpoch {
		// Held in TS's next-epoch pending partition until ChangeEpoch
		// promotes or rejects it by committee membership; it cannot be
		// chain-walked against this epoch's head yet.
		r.store.StorePendingParcel(parcelDigest, stored)
		return
	}
	r.store.StoreParcel(parcelDigest, stored)

	if requested {
		r.setParcelTimer(parcel.LastExecuted, r.store.ParcelTimeout())
		log.WithField("digest", parcelDigest).Info("received requested parcel")
		metrics.MissingParcelReceived.Inc()
	}

	if !r.onCommittee {
		log.Debug("received transaction parcel from gossip as an edge node")
		r.tryExecute(parcelDigest)
	}
}

func (r *Receiver) handleAttestation(evt Event, att types.Attestation) {
	originator := evt.Originator()
	epoch := r.query.CurrentEpoch()
	isCommittee := contains(r.committee, originator)
	if originator != att.NodeIndex || !IsValidMessage(isCommittee, att.Epoch, epoch) {
		evt.MarkInvalidSender()
		metrics.InvalidSenderDrops.Inc()
		return
	}

	fromNextEpoch := att.Epoch == epoch+1
	if !fromNextEpoch {
		evt.Propagate()
	}

	if fromNextEpoch {
		r.store.StorePendingAttestation(att.Digest, att.NodeIndex)
		return
	}

	if !r.onCommittee {
		log.Debug("received parcel attestation from gossip as an edge node")
		r.store.StoreAttestation(att.Digest, att.NodeIndex)
		r.tryExecute(att.Digest)
	}
}

func (r *Receiver) handleRequest(evt Event, digest types.Digest) {
	stored, ok := r.store.GetParcel(digest)
	if !ok || stored.MessageDigest == nil {
		metrics.MissingParcelIgnored.Inc()
		return
	}
	evt.Repropagate(*stored.MessageDigest, evt.Originator())
	log.WithField("digest", digest).Info("responded to request for missing parcel")
	metrics.MissingParcelServed.Inc()
}

// tryExecute asks TS to connect digest's chain back to the executed
// head and, if it does, runs every parcel in the chain through execute.
// A successful epoch change refreshes the receiver's committee cache; a
// missing parcel registers (or re-registers) its timeout timer.
func (r *Receiver) tryExecute(digest types.Digest) {
	head := r.query.LastExecutedDigest()
	changed, err := r.store.TryExecuteChain(digest, head, r.quorumThreshold, r.execute)
	if err == nil {
		r.store.BuildQuorumCertificate(digest, r.query.CurrentEpoch(), r.quorumThreshold)
		if changed {
			r.refreshCommittee()
		}
		return
	}
	var notExecuted *txstore.NotExecutedError
	if errors.As(err, &notExecuted) && notExecuted.Reason == txstore.ReasonMissingParcel {
		r.setParcelTimer(notExecuted.Missing, notExecuted.Timeout)
	}
}

func (r *Receiver) handleTimeout(digest types.Digest) {
	delete(r.pendingTimeouts, digest)
	if _, ok := r.store.GetParcel(digest); ok {
		return
	}
	if err := r.substrate.Send(Message{Kind: KindRequestTransactions, Request: digest}); err != nil {
		log.WithError(err).Warn("failed to broadcast parcel request")
		return
	}
	r.pendingRequests.Add(digest, struct{}{})
	log.WithField("digest", digest).Info("sent request for missing parcel")
	metrics.MissingParcelRequested.Inc()
}

// setParcelTimer arms a one-shot timer that posts digest to timeoutCh
// after timeout, unless MAX_PENDING_TIMEOUTS are already outstanding or
// one is already armed for this digest.
func (r *Receiver) setParcelTimer(digest types.Digest, timeout time.Duration) {
	if _, ok := r.pendingTimeouts[digest]; ok {
		return
	}
	if len(r.pendingTimeouts) >= maxPendingTimeouts {
		return
	}
	r.pendingTimeouts[digest] = struct{}{}
	go func() {
		time.Sleep(timeout)
		r.timeoutCh <- digest
	}()
}

func (r *Receiver) takeRequested(digest types.Digest) bool {
	if !r.pendingRequests.Contains(digest) {
		return false
	}
	r.pendingRequests.Remove(digest)
	return true
}
