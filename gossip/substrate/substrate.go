// Package substrate adapts go-libp2p-pubsub's gossipsub implementation to
// the gossip.Substrate contract, the one place in the core aware that
// the "opaque pub/sub substrate" spec.md section 4.4 describes is
// actually libp2p.
package substrate

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/sirupsen/logrus"

	"github.com/lumennetwork/node/gossip"
	"github.com/lumennetwork/node/types"
)

var log = logrus.WithField("component", "gossip-substrate")

// seenCacheSize bounds the recent-raw-message cache Repropagate serves
// RequestTransactions replies from.
const seenCacheSize = 512

// PeerIndexResolver maps a libp2p peer to the dense NodeIndex the core
// uses internally; the caller wires this to the same registry SE reads
// node identities from.
type PeerIndexResolver func(peer.ID) types.NodeIndex

// Adapter implements gossip.Substrate over a single gossipsub topic.
type Adapter struct {
	ctx   context.Context
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	resolveIndex PeerIndexResolver
	onInvalid    func(peer.ID)

	seen *lru.Cache // digest -> raw message bytes, for Repropagate
}

// New joins topicName on ps and subscribes to it. onInvalid, if non-nil,
// is called with the offending peer whenever a received message fails
// GP's validity check — the hook a peer-scoring/banning policy attaches
// to.
func New(ctx context.Context, ps *pubsub.PubSub, topicName string, resolveIndex PeerIndexResolver, onInvalid func(peer.ID)) (*Adapter, error) {
	topic, err := ps.Join(topicName)
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, err
	}
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Adapter{ctx: ctx, topic: topic, sub: sub, resolveIndex: resolveIndex, onInvalid: onInvalid, seen: seen}, nil
}

// Recv blocks for the next message that decodes cleanly, silently
// dropping anything that doesn't parse as a gossip.Message (gossipsub's
// own signature check already authenticated the sender before this
// message reached us). It returns ok=false only once the subscription's
// context is done.
func (a *Adapter) Recv() (gossip.Event, bool) {
	for {
		raw, err := a.sub.Next(a.ctx)
		if err != nil {
			return nil, false
		}
		decoded, err := gossip.DecodeMessage(raw.Data)
		if err != nil {
			log.WithError(err).Warn("dropping malformed gossip message")
			continue
		}
		digest := types.Hash256(raw.Data)
		a.seen.Add(digest, raw.Data)
		return &event{raw: raw, decoded: decoded, digest: digest, adapter: a}, true
	}
}

// Send gob-encodes msg and publishes it to the topic.
func (a *Adapter) Send(msg gossip.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return a.topic.Publish(a.ctx, data)
}

type event struct {
	raw     *pubsub.Message
	decoded gossip.Message
	digest  types.Digest
	adapter *Adapter
}

func (e *event) Originator() types.NodeIndex {
	return e.adapter.resolveIndex(e.raw.ReceivedFrom)
}

func (e *event) Message() gossip.Message { return e.decoded }

func (e *event) Digest() types.Digest { return e.digest }

// Propagate is a no-op: gossipsub already relayed this message to the
// rest of the mesh once it passed the topic's validators, before it ever
// reached Recv.
func (e *event) Propagate() {}

func (e *event) MarkInvalidSender() {
	if e.adapter.onInvalid != nil {
		e.adapter.onInvalid(e.raw.ReceivedFrom)
	}
}

// Repropagate re-publishes the raw bytes of a previously seen message,
// looked up by its digest in the adapter's recent-message cache. The
// except peer is not excluded at the gossipsub layer — this version's
// Topic API has no per-peer send — so except may receive a harmless
// duplicate it will deduplicate against its own message-seen cache.
func (e *event) Repropagate(msgDigest types.Digest, except types.NodeIndex) {
	data, ok := e.adapter.seen.Get(msgDigest)
	if !ok {
		return
	}
	if err := e.adapter.topic.Publish(e.adapter.ctx, data.([]byte)); err != nil {
		log.WithError(err).Warn("failed to repropagate requested message")
	}
}
