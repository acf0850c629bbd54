// Package types defines the wire and domain types shared by every core
// package: the application state's table value types, the transaction
// envelope and its per-kind payloads, and the parcel/attestation pair
// that the gossip pipeline replicates.
package types

import "fmt"

// Digest is a blake2b-256 content hash, used for transaction hashes,
// parcel digests and gossip message digests alike.
type Digest [32]byte

func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])
}

// Epoch is the monotonically increasing epoch counter.
type Epoch uint64

// NodeIndex is the dense index assigned to a registered node; u32(Max) is
// used as the not-yet-assigned sentinel (mirrors the original's
// `unwrap_or(u32::MAX)` pattern for unregistered signers).
type NodeIndex uint32

// UnassignedNodeIndex is the sentinel NodeIndex for a signer that has not
// (yet) been assigned a dense index.
const UnassignedNodeIndex NodeIndex = 1<<32 - 1

// ParamTag enumerates the rows of the `parameter` table.
type ParamTag uint8

const (
	ParamMinStake ParamTag = iota
	ParamMaxInflation
	ParamNodeShare
	ParamProtocolShare
	ParamServiceBuilderShare
	ParamMaxBoost
	ParamEpochsPerYear
	ParamCommitteeSize
	ParamCommitPhaseDuration
	ParamRevealPhaseDuration
)

// MetadataTag enumerates the rows of the `metadata` table.
type MetadataTag uint8

const (
	MetaEpoch MetadataTag = iota
	MetaSubDagIndex
	MetaLastBlockDigest
	MetaLastEpochHash
	MetaSupplyAtYearStart
	MetaTotalSupply
	MetaGenesisApplied
)

// Participation is the node's eligibility-to-signal state machine.
type Participation uint8

const (
	ParticipationFalse Participation = iota
	ParticipationTrue
	ParticipationOptedIn
	ParticipationOptedOut
)

// Stake holds a node's staked FLK, broken into liquid and locked portions.
type Stake struct {
	Staked          uint64
	Locked          uint64
	LockedUntil     Epoch
	StakeLockedUntil Epoch
}

// NodeInfo is the value type of the `node` table.
type NodeInfo struct {
	Owner            [20]byte
	ConsensusKey      [32]byte // node Ed25519 public key
	Stake             Stake
	Participation     Participation
	Nonce             uint64
	SecondaryNonce    uint64
	Domain            string
	Ports             NodePorts
	ContentRegistry   [][32]byte // supplemental: UpdateContentRegistry entries
	StablesBalance    uint64     // 6-decimal fixed point
	FlkBalance        uint64     // 18-decimal fixed point, reward payouts
	PendingRevenue    uint64     // 6-decimal fixed point, accumulated this epoch by SubmitDeliveryAcknowledgmentAggregation, reset on reward emission
}

// NodePorts is the set of service ports a node advertises; out of core
// scope beyond being a pass-through field (spec.md section 3).
type NodePorts struct {
	Primary   uint16
	Worker    uint16
	Mempool   uint16
}

// AccountInfo is the value type of the `account` table.
type AccountInfo struct {
	FlkBalance       uint64 // 18-decimal fixed point
	StablesBalance   uint64 // 6-decimal fixed point
	BandwidthBalance uint64
	Nonce            uint64
}

// CommitteeInfo is the value type of the `committee` table, one row per
// epoch.
type CommitteeInfo struct {
	Members             []NodeIndex
	ReadyToChange        []NodeIndex // sorted, strictly growing within the epoch
	EpochEndTimestamp    uint64
	Beacon               BeaconPhaseState
}

// Contains reports whether idx is a member of the committee.
func (c *CommitteeInfo) Contains(idx NodeIndex) bool {
	for _, m := range c.Members {
		if m == idx {
			return true
		}
	}
	return false
}

// HasSignaled reports whether idx has already been recorded in
// ReadyToChange.
func (c *CommitteeInfo) HasSignaled(idx NodeIndex) bool {
	for _, m := range c.ReadyToChange {
		if m == idx {
			return true
		}
	}
	return false
}

// InsertSignal inserts idx into ReadyToChange, preserving sort order and
// rejecting duplicates.
func (c *CommitteeInfo) InsertSignal(idx NodeIndex) {
	i := 0
	for i < len(c.ReadyToChange) && c.ReadyToChange[i] < idx {
		i++
	}
	c.ReadyToChange = append(c.ReadyToChange, 0)
	copy(c.ReadyToChange[i+1:], c.ReadyToChange[i:])
	c.ReadyToChange[i] = idx
}

// QuorumThreshold returns floor(2n/3)+1 for a committee of size n, the 2f+1
// quorum used throughout spec.md.
func QuorumThreshold(n int) int {
	return (2*n)/3 + 1
}

// BeaconPhase is the committee-selection beacon's current step.
type BeaconPhase uint8

const (
	BeaconPhaseNone BeaconPhase = iota
	BeaconPhaseCommit
	BeaconPhaseReveal
)

// BeaconCommit is a committee member's recorded commitment.
type BeaconCommit struct {
	NodeIndex  NodeIndex
	Hash       Digest
}

// BeaconReveal is a committee member's recorded, hash-verified reveal.
type BeaconReveal struct {
	NodeIndex NodeIndex
	Reveal    [32]byte
}

// BeaconPhaseState is the embedded beacon state machine inside a
// CommitteeInfo row.
type BeaconPhaseState struct {
	Phase          BeaconPhase
	Round          uint64
	Commits        []BeaconCommit
	Reveals        []BeaconReveal
	CommitTimeouts  []NodeIndex
	RevealTimeouts  []NodeIndex
	PhaseStartedAt uint64 // unix seconds, for wall-clock timeout checks
}

// Service is the value type of the `service` table.
type Service struct {
	ID             ServiceID
	Owner           [20]byte
	CommodityPrice  uint64 // 6-decimal fixed point
	PendingRevenue  uint64 // 6-decimal fixed point, accumulated this epoch by SubmitDeliveryAcknowledgmentAggregation, reset on reward emission; split among service owners' accounts in proportion at reward time
}

// ServiceID identifies a registered service.
type ServiceID uint32

// Receipt is the per-transaction execution outcome of spec.md section 4.2.
type Receipt struct {
	Response     Response
	BlockNumber  uint64
	ChangeEpoch  bool
}

// Response is the Success(data)|Revert(kind) sum type, modeled as a
// struct with a discriminant rather than an interface so Receipt stays
// trivially comparable and ssz-encodable.
type Response struct {
	Reverted bool
	Error    ExecutionError // valid only if Reverted
	Data     []byte          // opaque success payload, if any
}

// ExecutionError enumerates the revert kinds of spec.md section 4.2.
type ExecutionError uint8

const (
	ErrNone ExecutionError = iota
	ErrOnlyNode
	ErrOnlyAccountOwner
	ErrNodeDoesNotExist
	ErrInsufficientStake
	ErrNotCommitteeMember
	ErrNodeNotParticipating
	ErrEpochAlreadyChanged
	ErrEpochHasNotStarted
	ErrAlreadySignaled
	ErrInvalidNonce
	ErrInvalidSignature
	ErrInvalidProof
	ErrUnimplemented
)

func (e ExecutionError) String() string {
	switch e {
	case ErrNone:
		return "none"
	case ErrOnlyNode:
		return "OnlyNode"
	case ErrOnlyAccountOwner:
		return "OnlyAccountOwner"
	case ErrNodeDoesNotExist:
		return "NodeDoesNotExist"
	case ErrInsufficientStake:
		return "InsufficientStake"
	case ErrNotCommitteeMember:
		return "NotCommitteeMember"
	case ErrNodeNotParticipating:
		return "NodeNotParticipating"
	case ErrEpochAlreadyChanged:
		return "EpochAlreadyChanged"
	case ErrEpochHasNotStarted:
		return "EpochHasNotStarted"
	case ErrAlreadySignaled:
		return "AlreadySignaled"
	case ErrInvalidNonce:
		return "InvalidNonce"
	case ErrInvalidSignature:
		return "InvalidSignature"
	case ErrInvalidProof:
		return "InvalidProof"
	case ErrUnimplemented:
		return "Unimplemented"
	default:
		return "unknown"
	}
}
