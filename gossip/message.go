// Package gossip implements GP: the publish/subscribe fan-out that
// carries parcels, attestations, and on-demand parcel requests between
// nodes, and the message receiver task that validates and dispatches
// them into the transaction store's try-execute path.
package gossip

import (
	"bytes"
	"encoding/gob"

	"github.com/lumennetwork/node/types"
)

// MessageKind tags the three pub/sub message variants GP carries.
type MessageKind uint8

const (
	KindTransactions MessageKind = iota
	KindAttestation
	KindRequestTransactions
)

// Message is the tagged union carried over the substrate: exactly one of
// Parcel, Attestation, Request is meaningful, selected by Kind.
type Message struct {
	Kind        MessageKind
	Parcel      types.Parcel
	Attestation types.Attestation
	Request     types.Digest
}

// Encode gob-encodes m for transmission, the same codec ASS table values
// use (see state/kv/codec.go) so the core has one marshaling convention.
func (m *Message) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage reverses Encode.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// IsValidMessage reports whether a message stamped with msgEpoch from a
// sender that is (or is not) a current committee member should be
// accepted. A message is valid if it is from the current epoch and its
// originator is on the current committee, or if it is from the next
// epoch — accepted optimistically regardless of membership, since the
// sender may be a newly staked node whose certificate hasn't landed yet.
func IsValidMessage(inCommittee bool, msgEpoch, currentEpoch types.Epoch) bool {
	return (inCommittee && msgEpoch == currentEpoch) || msgEpoch == currentEpoch+1
}
