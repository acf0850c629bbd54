// Package bytesutil holds small byte-slice helpers shared across the core
// packages, mirroring the teacher's shared/bytesutil usage for digest
// truncation and fixed-width conversions.
package bytesutil

import (
	"encoding/binary"
	"fmt"

	"github.com/lumennetwork/node/types"
)

// Trunc returns the first 4 bytes of b for compact logging, the same
// truncation the teacher uses when formatting roots in log fields.
func Trunc(b []byte) []byte {
	if len(b) <= 4 {
		return b
	}
	return b[:4]
}

// Hex formats a digest as a short, loggable hex string.
func Hex(d types.Digest) string {
	return fmt.Sprintf("%#x", Trunc(d[:]))
}

// Uint64ToBytes encodes v as 8 little-endian bytes.
func Uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// BytesToUint64 decodes 8 little-endian bytes into a uint64; shorter
// inputs are zero-padded on the right.
func BytesToUint64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// Uint32ToBytes encodes v as 4 little-endian bytes.
func Uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// BytesToUint32 decodes 4 little-endian bytes into a uint32.
func BytesToUint32(b []byte) uint32 {
	var buf [4]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint32(buf[:])
}
