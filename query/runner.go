// Package query implements the outbound, synchronous query surface of
// spec.md section 4.4's "Query interface": every exported method here is
// one snapshot read under an ASS query handle, widening query_runner.rs's
// QueryRunner to the dual-signer balance surface and the table shapes of
// this tree's state package.
package query

import (
	"github.com/pkg/errors"

	"github.com/lumennetwork/node/executor"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/txstore"
	"github.com/lumennetwork/node/types"
)

// ErrNotImplemented is returned by the query methods query_runner.rs
// itself leaves as todo!() (get_reputation, get_relative_score,
// get_node_registry, is_valid_node, get_epoch_randomness_seed): the
// semantics these would need were never specified, so Runner reports the
// gap through a sentinel rather than guessing or panicking.
var ErrNotImplemented = errors.New("query: not implemented")

// Projection trims how much of a row a caller gets back. ProjectionFull
// returns every field the table row carries; ProjectionSummary returns
// only the fields identity/staking callers typically need, so a caller
// that only wants to check committee eligibility doesn't pay to marshal a
// node's content registry or delivery-revenue counters.
type Projection uint8

const (
	ProjectionFull Projection = iota
	ProjectionSummary
)

// Runner is the read-only query surface bound to one ASS backend. It
// never writes, with the single deliberate exception of SimulateTxn,
// whose writes are always rolled back before returning.
type Runner struct {
	backend  state.Backend
	executor *executor.Executor
	txstore  *txstore.Store
}

// New returns a Runner reading through backend and dry-running
// simulated transactions through exec. ts may be nil, in which case
// QuorumCertificate always reports not-found — the status CLI subcommand
// opens a Runner without a live TS, since it only reads the ASS.
func New(backend state.Backend, exec *executor.Executor, ts *txstore.Store) *Runner {
	return &Runner{backend: backend, executor: exec, txstore: ts}
}

// QuorumCertificate returns the compacted attester-membership bitlist TS
// built for digest once quorum was reached, if any. A later-joining edge
// node uses this instead of replaying every individual attestation.
func (q *Runner) QuorumCertificate(digest types.Digest) (txstore.QuorumCertificate, bool) {
	if q.txstore == nil {
		return txstore.QuorumCertificate{}, false
	}
	return q.txstore.QuorumCertificateFor(digest)
}

// CurrentEpoch returns the ASS's current epoch counter.
func (q *Runner) CurrentEpoch() types.Epoch {
	var epoch types.Epoch
	_ = q.backend.Querier().View(func(r *kv.Reader) error {
		e, _ := r.GetMetadata(types.MetaEpoch)
		epoch = types.Epoch(e)
		return nil
	})
	return epoch
}

// CommitteeMembers returns the current epoch's committee member indices.
func (q *Runner) CommitteeMembers() []types.NodeIndex {
	info, ok := q.CommitteeInfo(q.CurrentEpoch(), ProjectionFull)
	if !ok {
		return nil
	}
	return info.Members
}

// CommitteeInfo returns the committee row for epoch, trimmed per
// projection.
func (q *Runner) CommitteeInfo(epoch types.Epoch, projection Projection) (types.CommitteeInfo, bool) {
	var out types.CommitteeInfo
	var found bool
	_ = q.backend.Querier().View(func(r *kv.Reader) error {
		info, ok, err := r.GetCommittee(epoch)
		if err != nil {
			return err
		}
		out, found = info, ok
		return nil
	})
	if found && projection == ProjectionSummary {
		out = types.CommitteeInfo{Members: out.Members, EpochEndTimestamp: out.EpochEndTimestamp}
	}
	return out, found
}

// NodeInfo returns the node row for pub, trimmed per projection.
func (q *Runner) NodeInfo(pub [32]byte, projection Projection) (types.NodeInfo, bool, error) {
	var out types.NodeInfo
	var found bool
	err := q.backend.Querier().View(func(r *kv.Reader) error {
		info, ok, err := r.GetNode(pub)
		if err != nil {
			return err
		}
		out, found = info, ok
		return nil
	})
	if err != nil {
		return types.NodeInfo{}, false, err
	}
	if found && projection == ProjectionSummary {
		out = types.NodeInfo{ConsensusKey: out.ConsensusKey, Stake: out.Stake, Participation: out.Participation}
	}
	return out, found, nil
}

// AccountInfo returns the account row for addr, trimmed per projection.
func (q *Runner) AccountInfo(addr [20]byte, projection Projection) (types.AccountInfo, bool, error) {
	var out types.AccountInfo
	var found bool
	err := q.backend.Querier().View(func(r *kv.Reader) error {
		info, ok, err := r.GetAccount(addr)
		if err != nil {
			return err
		}
		out, found = info, ok
		return nil
	})
	if err != nil {
		return types.AccountInfo{}, false, err
	}
	if found && projection == ProjectionSummary {
		out = types.AccountInfo{FlkBalance: out.FlkBalance, StablesBalance: out.StablesBalance}
	}
	return out, found, nil
}

// StakingAmount returns the minimum stake a node must post, the process-
// local mirror of the parameter table's MinStake row.
func (q *Runner) StakingAmount() uint64 {
	return params.Get().MinStake
}

// TotalSupply returns the ASS's running total FLK supply.
func (q *Runner) TotalSupply() uint64 {
	return q.metadataScalar(types.MetaTotalSupply)
}

// YearStartSupply returns the total supply recorded at the start of the
// current inflation year, the baseline emitRewards measures against.
func (q *Runner) YearStartSupply() uint64 {
	return q.metadataScalar(types.MetaSupplyAtYearStart)
}

func (q *Runner) metadataScalar(tag types.MetadataTag) uint64 {
	var v uint64
	_ = q.backend.Querier().View(func(r *kv.Reader) error {
		v, _ = r.GetMetadata(tag)
		return nil
	})
	return v
}

// EpochInfo is the value query_runner.rs's get_epoch_info returns: the
// current committee's full node rows alongside the epoch number and its
// scheduled end.
type EpochInfo struct {
	Committee         []types.NodeInfo
	Epoch             types.Epoch
	EpochEndTimestamp uint64
}

// EpochInfo resolves the current epoch's committee member indices into
// their full node rows.
func (q *Runner) EpochInfo() (EpochInfo, error) {
	epoch := q.CurrentEpoch()
	committee, ok := q.CommitteeInfo(epoch, ProjectionFull)
	if !ok {
		return EpochInfo{}, errors.Errorf("query: no committee row for epoch %d", epoch)
	}

	members := make([]types.NodeInfo, 0, len(committee.Members))
	err := q.backend.Querier().View(func(r *kv.Reader) error {
		for _, idx := range committee.Members {
			_, node, ok, err := r.GetNodeByIndex(idx)
			if err != nil {
				return err
			}
			if ok {
				members = append(members, node)
			}
		}
		return nil
	})
	if err != nil {
		return EpochInfo{}, err
	}
	return EpochInfo{Committee: members, Epoch: epoch, EpochEndTimestamp: committee.EpochEndTimestamp}, nil
}

// PubKeyToIndex resolves a node's consensus public key to its dense index.
func (q *Runner) PubKeyToIndex(pub [32]byte) types.NodeIndex {
	var idx types.NodeIndex
	_ = q.backend.Querier().View(func(r *kv.Reader) error {
		idx = r.GetNodeIndex(pub)
		return nil
	})
	return idx
}

// HasExecutedDigest reports whether a transaction digest has already
// been applied.
func (q *Runner) HasExecutedDigest(d types.Digest) bool {
	var has bool
	_ = q.backend.Querier().View(func(r *kv.Reader) error {
		has = r.HasExecutedDigest(d)
		return nil
	})
	return has
}

// SimulateTxn dry-runs env against the current state and returns the
// receipt it would produce; every write the dry run makes is rolled back
// before this returns, so repeated simulation never changes ASS state or
// consumes the envelope's nonce.
func (q *Runner) SimulateTxn(env types.TransactionEnvelope, blockNumber, chainID, blockTimestamp uint64) (types.Receipt, error) {
	return q.executor.Simulate(env, blockNumber, chainID, blockTimestamp)
}

// FlkBalance returns addr's liquid FLK account balance.
func (q *Runner) FlkBalance(addr [20]byte) (uint64, error) {
	acc, _, err := q.AccountInfo(addr, ProjectionFull)
	return acc.FlkBalance, err
}

// StablesBalance returns addr's liquid stablecoin account balance.
func (q *Runner) StablesBalance(addr [20]byte) (uint64, error) {
	acc, _, err := q.AccountInfo(addr, ProjectionFull)
	return acc.StablesBalance, err
}

// Staked returns a node's total staked FLK.
func (q *Runner) Staked(pub [32]byte) (uint64, error) {
	node, _, err := q.NodeInfo(pub, ProjectionFull)
	return node.Stake.Staked, err
}

// Locked returns the portion of a node's stake currently locked.
func (q *Runner) Locked(pub [32]byte) (uint64, error) {
	node, _, err := q.NodeInfo(pub, ProjectionFull)
	return node.Stake.Locked, err
}

// Reputation is one of query_runner.rs's todo!() methods: reputation
// scoring collection is out of core scope (spec.md non-goals).
func (q *Runner) Reputation(pub [32]byte) (uint64, error) {
	return 0, ErrNotImplemented
}

// RelativeScore is one of query_runner.rs's todo!() methods.
func (q *Runner) RelativeScore(a, b [32]byte) (uint64, error) {
	return 0, ErrNotImplemented
}

// NodeRegistry is one of query_runner.rs's todo!() methods: a full
// registry scan has no paging story in this tree yet.
func (q *Runner) NodeRegistry() ([]types.NodeInfo, error) {
	return nil, ErrNotImplemented
}

// IsValidNode is one of query_runner.rs's todo!() methods.
func (q *Runner) IsValidNode(pub [32]byte) (bool, error) {
	return false, ErrNotImplemented
}

// EpochRandomnessSeed is one of query_runner.rs's todo!() methods: the
// committee-selection beacon's revealed randomness is consumed internally
// by executor/beacon.go and never exposed on the query surface today.
func (q *Runner) EpochRandomnessSeed() ([32]byte, error) {
	return [32]byte{}, ErrNotImplemented
}
