package gossip

import "github.com/lumennetwork/node/types"

// Substrate is the opaque pub/sub transport GP runs over (spec.md section
// 4.4: "the core treats the substrate as opaque"). gossip/substrate
// provides the real libp2p-pubsub-backed implementation; tests substitute
// an in-memory fake.
type Substrate interface {
	// Recv blocks until the next inbound message event is available or
	// the substrate is closed, in which case ok is false.
	Recv() (Event, bool)
	// Send broadcasts msg to the topic.
	Send(msg Message) error
}

// Event wraps one inbound substrate message with the operations the
// receiver worker needs without knowing the transport's concrete type:
// who sent it, what it carries, its own content digest (distinct from
// the parcel/attestation digest it carries), and the three things the
// worker can decide to do with it.
type Event interface {
	Originator() types.NodeIndex
	Message() Message
	Digest() types.Digest
	// Propagate forwards the message to the rest of the mesh unchanged.
	Propagate()
	// MarkInvalidSender records that this peer sent an invalid message,
	// feeding the substrate's peer-scoring layer.
	MarkInvalidSender()
	// Repropagate re-broadcasts a previously seen message (identified by
	// its own digest) to everyone except the given peer, used to answer
	// RequestTransactions without re-encoding the original payload.
	Repropagate(msgDigest types.Digest, except types.NodeIndex)
}
