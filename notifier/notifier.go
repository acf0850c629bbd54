// Package notifier implements the node-wide fan-out of "new block
// executed" and "epoch changed" events (spec.md section 5's notifier
// component) over go-ethereum's event.Feed. A send blocks until every
// subscribed channel has taken the event, so a subscriber that falls
// behind holds up the publisher; events are not dropped for slow
// subscribers. With no subscribers, an event is simply discarded.
package notifier

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/lumennetwork/node/types"
)

// NewBlockEvent is published once per executed block.
type NewBlockEvent struct {
	Height uint64
	Digest types.Digest
}

// EpochChangedEvent is published whenever the committee-selection beacon
// completes and the epoch counter advances.
type EpochChangedEvent struct {
	Epoch types.Epoch
}

// Notifier is the process-wide publisher the consensus adapter posts to
// (new blocks, and epoch changes once a block has advanced the epoch);
// gossip's message receiver worker, the epoch controller and any other
// interested package subscribe to the channel(s) they care about.
type Notifier struct {
	newBlockFeed     event.Feed
	epochChangedFeed event.Feed
}

// New returns an empty Notifier.
func New() *Notifier {
	return &Notifier{}
}

// NotifyNewBlock publishes a NewBlockEvent to every current subscriber.
func (n *Notifier) NotifyNewBlock(evt NewBlockEvent) {
	n.newBlockFeed.Send(evt)
}

// NotifyEpochChanged publishes an EpochChangedEvent to every current
// subscriber.
func (n *Notifier) NotifyEpochChanged(evt EpochChangedEvent) {
	n.epochChangedFeed.Send(evt)
}

// SubscribeNewBlock registers ch to receive NewBlockEvents until the
// returned Subscription is unsubscribed or errors out.
func (n *Notifier) SubscribeNewBlock(ch chan<- NewBlockEvent) event.Subscription {
	return n.newBlockFeed.Subscribe(ch)
}

// SubscribeEpochChanged registers ch to receive EpochChangedEvents until
// the returned Subscription is unsubscribed or errors out.
func (n *Notifier) SubscribeEpochChanged(ch chan<- EpochChangedEvent) event.Subscription {
	return n.epochChangedFeed.Subscribe(ch)
}
