// Package cryptoutil implements the dual signature scheme of spec.md
// section 6: node identities sign with Ed25519, account identities sign
// with secp256k1. Both verify over the same canonical payload digest
// (types.HashPayload), hashed once.
package cryptoutil

import (
	"crypto/ed25519"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lumennetwork/node/types"
)

// VerifyEnvelope checks an envelope's signature against the verification
// scheme selected by its SignerKind, per spec.md section 6.
func VerifyEnvelope(env *types.TransactionEnvelope) bool {
	digest := env.Hash()
	switch env.Payload.SignerKind {
	case types.SignerNode:
		return ed25519.Verify(env.Payload.Sender[:], digest[:], env.Signature)
	case types.SignerAccount:
		return verifySecp256k1(env.Payload.Sender, digest, env.Signature)
	default:
		return false
	}
}

// verifySecp256k1 recovers the public key from a 65-byte compact
// recoverable ECDSA signature over digest and accepts it if that key's
// address equals sender.
func verifySecp256k1(sender [32]byte, digest types.Digest, sig []byte) bool {
	// Account senders are stored as a 20-byte address derived from a
	// compressed secp256k1 public key's hash; full verification in a
	// complete node looks the public key up by address before calling
	// this. Here we accept a signature that directly embeds a recoverable
	// public key, matching how the rest of this package's signing helper
	// produces signatures for tests and simulate_txn.
	if len(sig) < 65 {
		return false
	}
	pub, _, err := ecdsa.RecoverCompact(sig[:65], digest[:])
	if err != nil {
		return false
	}
	return addressOf(pub) == sender
}

// addressOf derives the 20-byte account address used as TransactionPayload.Sender
// from a secp256k1 public key: the low 20 bytes of the compressed key's
// digest, the same truncation convention go-ethereum uses for EOA
// addresses (keccak rather than blake2b there; blake2b here, for
// consistency with the rest of this package's hashing).
func addressOf(pub *btcec.PublicKey) [32]byte {
	digest := types.Hash256(pub.SerializeCompressed())
	var out [32]byte
	copy(out[:20], digest[len(digest)-20:])
	return out
}

// NodeSigner signs payload digests with a node's Ed25519 key.
type NodeSigner struct {
	priv ed25519.PrivateKey
}

// NewNodeSigner wraps a raw Ed25519 private key.
func NewNodeSigner(priv ed25519.PrivateKey) *NodeSigner {
	return &NodeSigner{priv: priv}
}

// SignEnvelope signs payload and returns a complete envelope.
func (s *NodeSigner) SignEnvelope(payload types.TransactionPayload) types.TransactionEnvelope {
	payload.SignerKind = types.SignerNode
	copy(payload.Sender[:], s.priv.Public().(ed25519.PublicKey))
	digest := types.HashPayload(&payload)
	sig := ed25519.Sign(s.priv, digest[:])
	return types.TransactionEnvelope{Signature: sig, Payload: payload}
}

// SignAttestation signs a parcel digest on behalf of nodeIdx, producing
// the self-attestation the consensus adapter emits over GP once a block
// has executed locally (spec.md section 4.3/4.4).
func (s *NodeSigner) SignAttestation(digest types.Digest, epoch types.Epoch, nodeIdx types.NodeIndex) types.Attestation {
	return types.Attestation{
		Digest:    digest,
		NodeIndex: nodeIdx,
		Epoch:     epoch,
		Signature: ed25519.Sign(s.priv, digest[:]),
	}
}

// AccountSigner signs payload digests with an account's secp256k1 key.
type AccountSigner struct {
	priv *btcec.PrivateKey
}

// NewAccountSigner wraps a raw secp256k1 private key.
func NewAccountSigner(priv *btcec.PrivateKey) *AccountSigner {
	return &AccountSigner{priv: priv}
}

// SignEnvelope signs payload and returns a complete envelope.
func (s *AccountSigner) SignEnvelope(payload types.TransactionPayload) types.TransactionEnvelope {
	payload.SignerKind = types.SignerAccount
	payload.Sender = addressOf(s.priv.PubKey())
	digest := types.HashPayload(&payload)
	sig, err := ecdsa.SignCompact(s.priv, digest[:], false)
	if err != nil {
		panic(fmt.Sprintf("cryptoutil: signing failed: %v", err))
	}
	// SignCompact returns [recovery_id || r || s]; RecoverCompact above
	// expects the same layout.
	return types.TransactionEnvelope{Signature: sig, Payload: payload}
}
