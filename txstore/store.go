// Package txstore implements TS: the in-memory holding area for parcels
// broadcast by the committee and the attestations edge nodes collect
// against them, the chain walk that reconnects a newly-quorate parcel
// back to the last executed block, and the time-between-executions
// estimator the gossip layer's parcel timers use.
package txstore

import (
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/lumennetwork/node/types"
)

// emaAlpha, minTimeout and maxTimeout mirror TBE_EMA/MIN_TBE/MAX_TBE:
// the exponential moving average weight and clamp bounds used to turn
// observed execution gaps into the next parcel wait timeout.
const (
	emaAlpha   = 0.125
	minTimeout = 30 * time.Second
	maxTimeout = 40 * time.Second

	// seenDigestTTL bounds how long a fully executed digest is kept in
	// the recent-seen cache purely for duplicate-broadcast suppression;
	// the durable replay guard is the ASS's executed_digest table
	// (state/kv), not this cache.
	seenDigestTTL = 10 * time.Minute
)

// StoredParcel is a parcel plus the bookkeeping TS needs once it
// arrives: which peer sent it and, if it came in over gossip, that
// message's own digest (used to answer follow-up requests for the same
// parcel without re-encoding it).
type StoredParcel struct {
	Parcel        types.Parcel
	Originator    types.NodeIndex
	MessageDigest *types.Digest
}

// Store holds every live (edge-node pending of execution) parcel and
// its attestations for the current epoch, plus the chain-walk inputs
// (pending/executed digest sets) and parcel-timeout EMA. It is owned by
// exactly one goroutine's worth of consensus-output handling per spec.md
// section 5, but the lock lets GP's read-side message classification
// run concurrently with it.
type Store struct {
	mu sync.RWMutex

	parcels      map[types.Digest]StoredParcel
	attestations map[types.Digest]map[types.NodeIndex]struct{}

	// pendingParcels/pendingAttestations hold entries stamped epoch ==
	// current+1 (spec.md section 9's "optimistic next-epoch acceptance"):
	// kept separate from the live partition above so a parcel that
	// legitimately arrives just ahead of an epoch boundary need not be
	// re-requested from scratch. ChangeEpoch promotes or drops each entry
	// by whether its originator belongs to the incoming committee.
	pendingParcels      map[types.Digest]StoredParcel
	pendingAttestations map[types.Digest]map[types.NodeIndex]struct{}

	pendingDigests  map[types.Digest]struct{}
	executedDigests *cache.Cache

	committee      map[types.NodeIndex]struct{}
	committeeOrder []types.NodeIndex
	committeePos   map[types.NodeIndex]int
	certificates   map[types.Digest]QuorumCertificate

	timeoutMu    sync.Mutex
	lastExecuted time.Time
	estimatedTBE time.Duration
	deviationTBE time.Duration
}

// New returns an empty Store seeded with an initial TBE estimate; the
// real estimate only becomes meaningful after the first parcel executes
// (updateEstimatedTBE below).
func New() *Store {
	return &Store{
		parcels:             make(map[types.Digest]StoredParcel),
		attestations:        make(map[types.Digest]map[types.NodeIndex]struct{}),
		pendingParcels:      make(map[types.Digest]StoredParcel),
		pendingAttestations: make(map[types.Digest]map[types.NodeIndex]struct{}),
		pendingDigests:      make(map[types.Digest]struct{}),
		executedDigests:     cache.New(seenDigestTTL, 2*seenDigestTTL),
		certificates:        make(map[types.Digest]QuorumCertificate),
		estimatedTBE:        30 * time.Second,
		deviationTBE:        5 * time.Second,
	}
}

// StoreParcel records a newly received parcel, keyed by its own digest.
func (s *Store) StoreParcel(digest types.Digest, parcel StoredParcel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parcels[digest] = parcel
}

// GetParcel returns the parcel stored under digest, if any.
func (s *Store) GetParcel(digest types.Digest) (StoredParcel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parcels[digest]
	return p, ok
}

// StoreAttestation records that node attests digest is correct.
func (s *Store) StoreAttestation(digest types.Digest, node types.NodeIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.attestations[digest]
	if !ok {
		set = make(map[types.NodeIndex]struct{})
		s.attestations[digest] = set
	}
	set[node] = struct{}{}
}

// AttestationCount returns how many distinct committee members have
// attested to digest.
func (s *Store) AttestationCount(digest types.Digest) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attestations[digest])
}

// StorePendingParcel holds a parcel stamped for the next epoch in TS's
// pending partition until ChangeEpoch promotes or rejects it, per
// spec.md section 9's optimistic next-epoch acceptance.
func (s *Store) StorePendingParcel(digest types.Digest, parcel StoredParcel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingParcels[digest] = parcel
}

// StorePendingAttestation holds a next-epoch-stamped attestation in TS's
// pending partition alongside StorePendingParcel.
func (s *Store) StorePendingAttestation(digest types.Digest, node types.NodeIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.pendingAttestations[digest]
	if !ok {
		set = make(map[types.NodeIndex]struct{})
		s.pendingAttestations[digest] = set
	}
	set[node] = struct{}{}
}

// ChangeEpoch resets TS for the incoming committee: every live parcel
// and attestation from the ending epoch is dropped, since the new
// committee only ever attests parcels built on the new epoch's chain
// head, mirroring the original's TransactionStore::change_epoch. The
// next-epoch pending partition is handled differently per spec.md
// section 9: a pending parcel is promoted into the live partition only
// if its originator belongs to the incoming committee, and a pending
// attestation keeps only the attesters who do; anything left with no
// surviving attester is dropped entirely. This makes a parcel that
// arrived just ahead of the boundary available immediately instead of
// forcing a fresh request for it.
func (s *Store) ChangeEpoch(committee []types.NodeIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := append([]types.NodeIndex(nil), committee...)
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	members := make(map[types.NodeIndex]struct{}, len(order))
	pos := make(map[types.NodeIndex]int, len(order))
	for i, idx := range order {
		members[idx] = struct{}{}
		pos[idx] = i
	}

	promotedParcels := make(map[types.Digest]StoredParcel, len(s.pendingParcels))
	for digest, parcel := range s.pendingParcels {
		if _, ok := members[parcel.Originator]; ok {
			promotedParcels[digest] = parcel
		}
	}
	promotedAttestations := make(map[types.Digest]map[types.NodeIndex]struct{}, len(s.pendingAttestations))
	for digest, attesters := range s.pendingAttestations {
		kept := make(map[types.NodeIndex]struct{}, len(attesters))
		for node := range attesters {
			if _, ok := members[node]; ok {
				kept[node] = struct{}{}
			}
		}
		if len(kept) > 0 {
			promotedAttestations[digest] = kept
		}
	}

	s.parcels = promotedParcels
	s.attestations = promotedAttestations
	s.pendingParcels = make(map[types.Digest]StoredParcel)
	s.pendingAttestations = make(map[types.Digest]map[types.NodeIndex]struct{})
	s.pendingDigests = make(map[types.Digest]struct{})
	s.certificates = make(map[types.Digest]QuorumCertificate)
	s.committee = members
	s.committeeOrder = order
	s.committeePos = pos
}

// QuorumCertificate compacts the set of committee members who have
// attested a digest into a single bitfield, keyed by each member's
// position in the current committee order, mirroring Prysm's aggregated
// attestation bitlists (shared/aggregation/attestations) — an additive
// compaction of the attestation set already required for quorum
// counting; a later-joining edge node can check membership against this
// single value instead of replaying every individual attestation. Unlike
// Prysm's bitlist, which accompanies a single BLS-aggregated signature,
// the per-node signatures backing this bitlist stay Ed25519 and are not
// folded into one (see DESIGN.md): Attesters only answers "who", not "is
// this one signature valid for all of them".
type QuorumCertificate struct {
	Digest    types.Digest
	Epoch     types.Epoch
	Attesters bitfield.Bitlist
}

// BuildQuorumCertificate returns the certificate for digest once at
// least threshold committee members have attested it, or ok=false if
// quorum hasn't been reached yet. A node with no committee assignment
// (committeeOrder empty) never produces one.
func (s *Store) BuildQuorumCertificate(digest types.Digest, epoch types.Epoch, threshold int) (QuorumCertificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qc, ok := s.certificates[digest]; ok {
		return qc, true
	}

	attesters := s.attestations[digest]
	if len(attesters) < threshold || len(s.committeeOrder) == 0 {
		return QuorumCertificate{}, false
	}

	bits := bitfield.NewBitlist(uint64(len(s.committeeOrder)))
	for node := range attesters {
		if pos, ok := s.committeePos[node]; ok {
			bits.SetBitAt(uint64(pos), true)
		}
	}
	qc := QuorumCertificate{Digest: digest, Epoch: epoch, Attesters: bits}
	s.certificates[digest] = qc
	return qc, true
}

// QuorumCertificateFor returns a previously built certificate for
// digest, if BuildQuorumCertificate has already produced one.
func (s *Store) QuorumCertificateFor(digest types.Digest) (QuorumCertificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qc, ok := s.certificates[digest]
	return qc, ok
}

// IsCommitteeMember reports whether idx belongs to the committee TS was
// last told about via ChangeEpoch.
func (s *Store) IsCommitteeMember(idx types.NodeIndex) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.committee[idx]
	return ok
}

// HasExecuted reports whether digest has already been executed in this
// process's lifetime (a cheap, local, best-effort check — the ASS's
// executed_digest table is authoritative and must still be consulted
// before committing state).
func (s *Store) HasExecuted(digest types.Digest) bool {
	_, found := s.executedDigests.Get(string(digest[:]))
	return found
}

// MarkExecuted records that digest was executed directly by this node's
// own consensus-output handling rather than reconnected through
// TryExecuteChain, applying the same bookkeeping TryExecuteChain applies
// to each digest in a successfully walked chain.
func (s *Store) MarkExecuted(digest types.Digest) {
	s.mu.Lock()
	delete(s.pendingDigests, digest)
	s.executedDigests.SetDefault(string(digest[:]), struct{}{})
	s.mu.Unlock()
	s.updateEstimatedTBE()
}

// NotExecutedReason distinguishes why TryExecuteChain could not commit
// digest yet, so the caller (the gossip message-receiver worker) knows
// whether to keep waiting for attestations or go fetch a missing
// parcel.
type NotExecutedReason int

const (
	// ReasonMissingAttestations means digest itself has not reached
	// threshold attestations yet.
	ReasonMissingAttestations NotExecutedReason = iota
	// ReasonMissingParcel means the chain walk hit a last_executed
	// pointer TS has no parcel for; Missing carries that digest.
	ReasonMissingParcel
)

// NotExecutedError reports why TryExecuteChain did not execute digest.
type NotExecutedError struct {
	Reason  NotExecutedReason
	Missing types.Digest // valid when Reason == ReasonMissingParcel
	Timeout time.Duration
}

func (e *NotExecutedError) Error() string {
	switch e.Reason {
	case ReasonMissingParcel:
		return "txstore: missing parcel " + e.Missing.String() + " in chain"
	default:
		return "txstore: missing attestations"
	}
}

// ExecuteBatchFunc applies one parcel's transactions against the ASS;
// it is the consensus package's bridge into the executor, kept here as
// a parameter rather than an import so TS never depends on executor.
type ExecuteBatchFunc func(txns []types.TransactionEnvelope, digest types.Digest, subDagIndex uint64) (changedEpoch bool, err error)

// TryExecuteChain walks backward from digest through each parcel's
// LastExecuted pointer until it reconnects to head (the currently
// executed chain tip), then executes every parcel in the chain in
// forward order. If any parcel in the chain is unknown to TS, every
// digest walked so far is marked pending (so a later arrival of the
// missing parcel can retry the same walk) and a MissingParcel error is
// returned carrying the current recommended retry timeout.
func (s *Store) TryExecuteChain(digest, head types.Digest, threshold int, execute ExecuteBatchFunc) (bool, error) {
	if s.HasExecuted(digest) {
		return false, nil
	}
	if s.AttestationCount(digest) < threshold {
		return false, &NotExecutedError{Reason: ReasonMissingAttestations}
	}

	type chainEntry struct {
		txns        []types.TransactionEnvelope
		subDagIndex uint64
		digest      types.Digest
	}
	var chain []chainEntry
	var walked []types.Digest
	cur := digest

	for {
		parcel, ok := s.GetParcel(cur)
		if !ok {
			s.mu.Lock()
			for _, d := range walked {
				s.pendingDigests[d] = struct{}{}
			}
			s.mu.Unlock()
			return false, &NotExecutedError{Reason: ReasonMissingParcel, Missing: cur, Timeout: s.ParcelTimeout()}
		}
		walked = append(walked, cur)
		chain = append([]chainEntry{{
			txns:        parcel.Parcel.Transactions,
			subDagIndex: parcel.Parcel.SubDagIndex,
			digest:      cur,
		}}, chain...)

		if parcel.Parcel.LastExecuted == head {
			changed := false
			for _, entry := range chain {
				c, err := execute(entry.txns, entry.digest, entry.subDagIndex)
				if err != nil {
					return changed, err
				}
				if c {
					changed = true
				}
			}

			s.mu.Lock()
			for _, d := range walked {
				delete(s.pendingDigests, d)
				s.executedDigests.SetDefault(string(d[:]), struct{}{})
			}
			s.mu.Unlock()
			s.updateEstimatedTBE()
			return changed, nil
		}
		cur = parcel.Parcel.LastExecuted
	}
}

// ParcelTimeout returns how long the caller should wait for a missing
// parcel before re-requesting it: 4 standard deviations past the
// current TBE estimate, clamped to [minTimeout, maxTimeout].
func (s *Store) ParcelTimeout() time.Duration {
	s.timeoutMu.Lock()
	defer s.timeoutMu.Unlock()
	timeout := s.estimatedTBE + 4*s.deviationTBE
	if timeout < minTimeout {
		return minTimeout
	}
	if timeout > maxTimeout {
		return maxTimeout
	}
	return timeout
}

// updateEstimatedTBE folds the gap since the last successful chain
// execution into the exponential moving average used by ParcelTimeout.
func (s *Store) updateEstimatedTBE() {
	s.timeoutMu.Lock()
	defer s.timeoutMu.Unlock()
	now := time.Now()
	if !s.lastExecuted.IsZero() {
		sample := now.Sub(s.lastExecuted)
		newEstimate := time.Duration((1-emaAlpha)*float64(s.estimatedTBE) + emaAlpha*float64(sample))
		diff := newEstimate - sample
		if diff < 0 {
			diff = -diff
		}
		newDeviation := time.Duration((1-emaAlpha)*float64(s.deviationTBE) + emaAlpha*float64(diff))
		s.estimatedTBE = newEstimate
		s.deviationTBE = newDeviation
	}
	s.lastExecuted = now
}
