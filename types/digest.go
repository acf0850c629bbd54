package types

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// hash256 is the collision-resistant digest function used throughout the
// core. The original implementation this was distilled from hashes with
// blake3; no Go blake3 binding was present in the retrieved example pack,
// so blake2b-256 (already part of the dependency stack) is used instead —
// see DESIGN.md.
func hash256(parts ...[]byte) Digest {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Parcel is an ordered batch of transactions plus the back-pointer that
// chains it to the previously executed parcel (spec.md section 3, the
// glossary's "Parcel").
type Parcel struct {
	Transactions []TransactionEnvelope
	LastExecuted Digest
	Epoch        Epoch
	SubDagIndex  uint64
}

// batchDigest hashes the ordered transaction list (each envelope's
// payload digest, in order); ToDigest is its only caller.
func batchDigest(txns []TransactionEnvelope) Digest {
	h, _ := blake2b.New256(nil)
	for _, t := range txns {
		d := HashPayload(&t.Payload)
		h.Write(d[:])
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ToDigest computes the parcel digest:
// blake2b(len32(transactions) || batch_digest(transactions) || last_executed),
// per spec.md section 4.3.
func (p *Parcel) ToDigest() Digest {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p.Transactions)))
	bd := batchDigest(p.Transactions)
	return hash256(lenBuf[:], bd[:], p.LastExecuted[:])
}

// Hash256 is the exported form of hash256, for packages outside types
// that need the same collision-resistant digest (the committee-selection
// beacon's reveal-ordering hash, the epoch controller's LastEpochHash).
func Hash256(parts ...[]byte) Digest {
	return hash256(parts...)
}

// Attestation is a committee member's signed claim that a parcel digest is
// correct (spec.md section 3, glossary's "Attestation").
type Attestation struct {
	Digest    Digest
	NodeIndex NodeIndex
	Epoch     Epoch
	Signature []byte
}

// HashPayload returns the canonical digest of a transaction payload; this
// is the value an envelope's signature covers (spec.md section 6).
func HashPayload(p *TransactionPayload) Digest {
	var buf []byte
	buf = append(buf, p.Sender[:]...)
	buf = append(buf, byte(p.SignerKind))
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], p.Nonce)
	buf = append(buf, nonceBuf[:]...)
	binary.LittleEndian.PutUint64(nonceBuf[:], p.SecondaryNonce)
	buf = append(buf, nonceBuf[:]...)
	binary.LittleEndian.PutUint64(nonceBuf[:], p.ChainID)
	buf = append(buf, nonceBuf[:]...)
	buf = append(buf, byte(p.Method.Kind()))
	buf = append(buf, EncodeMethod(p.Method)...)
	return hash256(buf)
}

// Hash returns the replay-protection key of an executed transaction: the
// payload digest (spec.md section 3's `executed_digest` table key).
func (p *TransactionPayload) Hash() Digest {
	return HashPayload(p)
}
