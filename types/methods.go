package types

// MethodKind discriminates the transaction payload union. Modeled as a
// closed interface with one concrete type per kind, the way go-ethereum's
// core/types.TxData distinguishes legacy/access-list/dynamic-fee
// transactions.
type MethodKind uint8

const (
	MethodTransfer MethodKind = iota
	MethodDeposit
	MethodStake
	MethodUnstake
	MethodStakeLock
	MethodWithdraw
	MethodOptIn
	MethodOptOut
	MethodSubmitDeliveryAcknowledgmentAggregation
	MethodSubmitReputationMeasurements
	MethodChangeEpoch
	MethodCommitteeSelectionBeaconCommit
	MethodCommitteeSelectionBeaconReveal
	MethodCommitPhaseTimeout
	MethodRevealPhaseTimeout
	MethodUpdateContentRegistry
)

// UpdateMethod is implemented by every transaction payload kind.
type UpdateMethod interface {
	Kind() MethodKind
}

type Transfer struct {
	To     [20]byte
	Amount uint64 // 18-decimal fixed point
}

func (Transfer) Kind() MethodKind { return MethodTransfer }

type Deposit struct {
	Amount   uint64
	IsStable bool // true => stables_balance, false => flk_balance
}

func (Deposit) Kind() MethodKind { return MethodDeposit }

// StakeMethod is the Stake transaction's payload. Named distinctly from
// the node table's Stake value type (types.go) since Go has no notion of
// scoping a transaction method to its own namespace the way the kind
// constant's MethodStake does.
type StakeMethod struct {
	Amount      uint64
	NodePublicKey [32]byte
	ConsensusKey  [32]byte
	Domain        string
	Ports         NodePorts
}

func (StakeMethod) Kind() MethodKind { return MethodStake }

type Unstake struct {
	Amount uint64
}

func (Unstake) Kind() MethodKind { return MethodUnstake }

type StakeLock struct {
	LockedFor uint64 // epochs
}

func (StakeLock) Kind() MethodKind { return MethodStakeLock }

type Withdraw struct {
	Amount   uint64
	IsStable bool
}

func (Withdraw) Kind() MethodKind { return MethodWithdraw }

type OptIn struct{}

func (OptIn) Kind() MethodKind { return MethodOptIn }

type OptOut struct{}

func (OptOut) Kind() MethodKind { return MethodOptOut }

// DeliveryAck is a single delivery-acknowledgment entry aggregated by a
// node for a billing cycle.
type DeliveryAck struct {
	Service   ServiceID
	Commodity uint64
}

type SubmitDeliveryAcknowledgmentAggregation struct {
	Acks []DeliveryAck
}

func (SubmitDeliveryAcknowledgmentAggregation) Kind() MethodKind {
	return MethodSubmitDeliveryAcknowledgmentAggregation
}

// ReputationMeasurement is a single peer score sample; collection
// mechanics are out of core scope (spec.md non-goals), only the
// transaction shape is implemented.
type ReputationMeasurement struct {
	Reported NodeIndex
	Score    uint8
}

type SubmitReputationMeasurements struct {
	Measurements []ReputationMeasurement
}

func (SubmitReputationMeasurements) Kind() MethodKind {
	return MethodSubmitReputationMeasurements
}

type ChangeEpoch struct {
	Epoch Epoch
}

func (ChangeEpoch) Kind() MethodKind { return MethodChangeEpoch }

type CommitteeSelectionBeaconCommit struct {
	RevealHash Digest
}

func (CommitteeSelectionBeaconCommit) Kind() MethodKind {
	return MethodCommitteeSelectionBeaconCommit
}

type CommitteeSelectionBeaconReveal struct {
	Reveal [32]byte
}

func (CommitteeSelectionBeaconReveal) Kind() MethodKind {
	return MethodCommitteeSelectionBeaconReveal
}

type CommitPhaseTimeout struct{}

func (CommitPhaseTimeout) Kind() MethodKind { return MethodCommitPhaseTimeout }

type RevealPhaseTimeout struct{}

func (RevealPhaseTimeout) Kind() MethodKind { return MethodRevealPhaseTimeout }

type UpdateContentRegistry struct {
	Add    [][32]byte
	Remove [][32]byte
}

func (UpdateContentRegistry) Kind() MethodKind { return MethodUpdateContentRegistry }

// SignerKind selects the verification scheme for a transaction envelope's
// signature, per spec.md section 6.
type SignerKind uint8

const (
	SignerNode SignerKind = iota
	SignerAccount
)

// TransactionPayload is the canonical, signed portion of a transaction
// envelope.
type TransactionPayload struct {
	Sender         [32]byte // Ed25519 pubkey (node) or secp256k1 address (account), per SignerKind
	SignerKind     SignerKind
	Method         UpdateMethod
	Nonce          uint64
	SecondaryNonce uint64
	ChainID        uint64
}

// TransactionEnvelope is a signed TransactionPayload as received from the
// ordering layer.
type TransactionEnvelope struct {
	Signature []byte
	Payload   TransactionPayload
}

// Hash returns the digest that the envelope's signature covers: the
// blake2b-256 hash of the payload's canonical encoding, hashed once (spec.md
// section 6).
func (e *TransactionEnvelope) Hash() Digest {
	return HashPayload(&e.Payload)
}
