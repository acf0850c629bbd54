package types

import (
	"encoding/binary"
	"fmt"
)

// EncodeMethod returns the canonical byte encoding of an UpdateMethod's
// fields (not including the kind tag, which HashPayload writes
// separately). go-ssz operates on concrete struct shapes by reflection and
// has no notion of a Rust-style enum; rather than smuggle the tagged
// union through an ssz union hack, each kind is encoded by hand here in a
// fixed, declared layout.
func EncodeMethod(m UpdateMethod) []byte {
	switch v := m.(type) {
	case Transfer:
		buf := make([]byte, 0, 28)
		buf = append(buf, v.To[:]...)
		return appendU64(buf, v.Amount)
	case Deposit:
		buf := appendU64(nil, v.Amount)
		return append(buf, boolByte(v.IsStable))
	case StakeMethod:
		buf := appendU64(nil, v.Amount)
		buf = append(buf, v.NodePublicKey[:]...)
		buf = append(buf, v.ConsensusKey[:]...)
		buf = appendString(buf, v.Domain)
		buf = appendU16(buf, v.Ports.Primary)
		buf = appendU16(buf, v.Ports.Worker)
		buf = appendU16(buf, v.Ports.Mempool)
		return buf
	case Unstake:
		return appendU64(nil, v.Amount)
	case StakeLock:
		return appendU64(nil, v.LockedFor)
	case Withdraw:
		buf := appendU64(nil, v.Amount)
		return append(buf, boolByte(v.IsStable))
	case OptIn:
		return nil
	case OptOut:
		return nil
	case SubmitDeliveryAcknowledgmentAggregation:
		var buf []byte
		buf = appendU32(buf, uint32(len(v.Acks)))
		for _, a := range v.Acks {
			buf = appendU32(buf, uint32(a.Service))
			buf = appendU64(buf, a.Commodity)
		}
		return buf
	case SubmitReputationMeasurements:
		var buf []byte
		buf = appendU32(buf, uint32(len(v.Measurements)))
		for _, m := range v.Measurements {
			buf = appendU32(buf, uint32(m.Reported))
			buf = append(buf, m.Score)
		}
		return buf
	case ChangeEpoch:
		return appendU64(nil, uint64(v.Epoch))
	case CommitteeSelectionBeaconCommit:
		return append([]byte{}, v.RevealHash[:]...)
	case CommitteeSelectionBeaconReveal:
		return append([]byte{}, v.Reveal[:]...)
	case CommitPhaseTimeout:
		return nil
	case RevealPhaseTimeout:
		return nil
	case UpdateContentRegistry:
		var buf []byte
		buf = appendU32(buf, uint32(len(v.Add)))
		for _, c := range v.Add {
			buf = append(buf, c[:]...)
		}
		buf = appendU32(buf, uint32(len(v.Remove)))
		for _, c := range v.Remove {
			buf = append(buf, c[:]...)
		}
		return buf
	default:
		panic(fmt.Sprintf("types: unencodable method %T", m))
	}
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
