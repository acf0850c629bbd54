// Package epoch implements EC: the per-node task that sequences the
// committee-selection beacon's phases (spec.md section 4.5) by emitting
// ChangeEpoch, CommitteeSelectionBeaconCommit/Reveal and the two
// phase-timeout transactions whenever the local node is a committee
// member and the beacon's current phase calls for one. EC never mutates
// state directly — every transition it drives is submitted the same way
// any other transaction is and only takes effect once SE applies it.
package epoch

import (
	"crypto/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumennetwork/node/notifier"
	"github.com/lumennetwork/node/shared/cryptoutil"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/shared/shutdown"
	"github.com/lumennetwork/node/types"
)

var log = logrus.WithField("component", "epoch")

// defaultPollInterval is how often Controller re-evaluates the current
// beacon phase between epoch-changed notifications; it only needs to be
// finer than the shortest configured phase duration.
const defaultPollInterval = 2 * time.Second

// Query is the read-only committee state EC needs each tick.
type Query interface {
	CurrentEpoch() types.Epoch
	Committee(epoch types.Epoch) (types.CommitteeInfo, bool)
}

// Submitter hands a signed envelope to the ordering layer; cmd/node's
// localSubmitter implements it in the wired node.
type Submitter interface {
	Submit(env types.TransactionEnvelope) error
}

// perEpochState is what EC must remember locally across ticks for one
// epoch's beacon round: the commit secret (state only ever stores its
// hash) and which transactions this node has already sent, so a
// best-effort local dedupe avoids resubmitting a transaction every tick
// while state catches up (SE's own per-phase dedupe makes resubmission
// safe, just wasteful).
type perEpochState struct {
	secret           [32]byte
	haveSecret       bool
	sentChangeEpoch  bool
	sentCommit       bool
	sentReveal       bool
	sentCommitTO     bool
	sentRevealTO     bool
}

// Controller drives one node's participation in the beacon.
type Controller struct {
	query    Query
	submit   Submitter
	signer   *cryptoutil.NodeSigner
	nodeIdx  types.NodeIndex
	chainID  uint64
	notifier *notifier.Notifier

	nonce       uint64
	secondNonce uint64

	state map[types.Epoch]*perEpochState

	pollInterval time.Duration
}

// New builds a Controller for the node identified by signer/nodeIdx.
func New(query Query, submit Submitter, signer *cryptoutil.NodeSigner, nodeIdx types.NodeIndex, chainID uint64, n *notifier.Notifier) *Controller {
	return &Controller{
		query:        query,
		submit:       submit,
		signer:       signer,
		nodeIdx:      nodeIdx,
		chainID:      chainID,
		notifier:     n,
		state:        make(map[types.Epoch]*perEpochState),
		pollInterval: defaultPollInterval,
	}
}

// Run evaluates the current beacon phase on a timer and whenever the
// epoch-changed notification fires, until shutdown is triggered.
func (c *Controller) Run(sc *shutdown.Controller) {
	waiter := sc.NewWaiter("epoch: controller")
	defer waiter.Release()

	epochCh := make(chan notifier.EpochChangedEvent, 8)
	sub := c.notifier.SubscribeEpochChanged(epochCh)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	log.Info("epoch controller is running")
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
			c.tick()
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	epoch := c.query.CurrentEpoch()
	c.gc(epoch)

	committee, ok := c.query.Committee(epoch)
	if !ok || !committee.Contains(c.nodeIdx) {
		return
	}
	st := c.stateFor(epoch)
	now := uint64(time.Now().Unix())

	switch committee.Beacon.Phase {
	case types.BeaconPhaseNone:
		if !st.sentChangeEpoch && now >= committee.EpochEndTimestamp {
			c.send(st, &st.sentChangeEpoch, types.ChangeEpoch{Epoch: epoch})
		}
	case types.BeaconPhaseCommit:
		// Committing and timing out are independent: a node that has
		// already committed still helps restart the round with a
		// CommitPhaseTimeout if the phase has stalled waiting on others.
		if !alreadyCommitted(committee, c.nodeIdx) && !st.sentCommit {
			c.commit(st)
		}
		if now >= committee.Beacon.PhaseStartedAt+params.Get().CommitteeSelectionBeaconCommitPhaseDuration && !st.sentCommitTO {
			c.send(st, &st.sentCommitTO, types.CommitPhaseTimeout{})
		}
	case types.BeaconPhaseReveal:
		if !alreadyRevealed(committee, c.nodeIdx) && st.haveSecret && !st.sentReveal {
			c.send(st, &st.sentReveal, types.CommitteeSelectionBeaconReveal{Reveal: st.secret})
		}
		if now >= committee.Beacon.PhaseStartedAt+params.Get().CommitteeSelectionBeaconRevealPhaseDuration && !st.sentRevealTO {
			c.send(st, &st.sentRevealTO, types.RevealPhaseTimeout{})
		}
	}
}

func (c *Controller) commit(st *perEpochState) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		log.WithError(err).Error("failed to generate commit secret")
		return
	}
	st.secret = secret
	st.haveSecret = true
	hash := types.Hash256(secret[:])
	c.send(st, &st.sentCommit, types.CommitteeSelectionBeaconCommit{RevealHash: hash})
}

func (c *Controller) send(st *perEpochState, flag *bool, method types.UpdateMethod) {
	c.nonce++
	c.secondNonce++
	env := c.signer.SignEnvelope(types.TransactionPayload{
		Nonce:          c.nonce,
		SecondaryNonce: c.secondNonce,
		ChainID:        c.chainID,
		Method:         method,
	})
	if err := c.submit.Submit(env); err != nil {
		log.WithError(err).WithField("kind", method.Kind()).Warn("failed to submit epoch transaction")
		return
	}
	*flag = true
}

func (c *Controller) stateFor(epoch types.Epoch) *perEpochState {
	st, ok := c.state[epoch]
	if !ok {
		st = &perEpochState{}
		c.state[epoch] = st
	}
	return st
}

// gc drops state for epochs that are definitely over (anything more
// than one epoch behind current), mirroring TS's own epoch-aging policy
// (spec.md section 3's "two behind" rule for stale parcels).
func (c *Controller) gc(current types.Epoch) {
	for e := range c.state {
		if e+1 < current {
			delete(c.state, e)
		}
	}
}

func alreadyCommitted(committee types.CommitteeInfo, idx types.NodeIndex) bool {
	for _, cm := range committee.Beacon.Commits {
		if cm.NodeIndex == idx {
			return true
		}
	}
	return false
}

func alreadyRevealed(committee types.CommitteeInfo, idx types.NodeIndex) bool {
	for _, r := range committee.Beacon.Reveals {
		if r.NodeIndex == idx {
			return true
		}
	}
	return false
}
