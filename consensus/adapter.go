// Package consensus implements the inbound and outbound halves of the
// ordering-layer boundary (spec.md section 4.4's "Ordering-layer
// interface"): HandleConsensusOutput turns a delivered sub-DAG into an
// executed block, the resulting parcel, and this node's self-attestation
// over GP; ExecuteBatch is the same executor bridge GP's try-execute walk
// uses to apply a parcel someone else produced. Exactly one Adapter holds
// the ASS update handle per node, satisfying spec.md section 5's
// single-writer discipline.
package consensus

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/lumennetwork/node/executor"
	"github.com/lumennetwork/node/gossip"
	"github.com/lumennetwork/node/notifier"
	"github.com/lumennetwork/node/shared/cryptoutil"
	"github.com/lumennetwork/node/shared/metrics"
	"github.com/lumennetwork/node/state"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/txstore"
	"github.com/lumennetwork/node/types"
)

var log = logrus.WithField("component", "consensus")

// Batch is one ordering-layer-certified set of transactions within a
// sub-DAG, tagged with the epoch its submitter believed was current when
// it built the batch.
type Batch struct {
	Epoch        types.Epoch
	Transactions []types.TransactionEnvelope
}

// Output is what the ordering layer delivers to HandleConsensusOutput:
// one sub-DAG's worth of certified batches plus its monotonic index.
type Output struct {
	SubDagIndex uint64
	Batches     []Batch
}

// Adapter is the single task that consumes ordered batches and holds the
// ASS update handle.
type Adapter struct {
	backend   state.Backend
	executor  *executor.Executor
	store     *txstore.Store
	substrate gossip.Substrate
	notifier  *notifier.Notifier
	signer    *cryptoutil.NodeSigner
	nodeIdx   types.NodeIndex
	chainID   uint64
	now       func() uint64
}

// New builds an Adapter wired to backend, exec and store, publishing
// through substrate and notifying through n under the identity of
// nodeIdx/signer.
func New(backend state.Backend, exec *executor.Executor, store *txstore.Store, substrate gossip.Substrate, n *notifier.Notifier, signer *cryptoutil.NodeSigner, nodeIdx types.NodeIndex, chainID uint64) *Adapter {
	return &Adapter{
		backend:   backend,
		executor:  exec,
		store:     store,
		substrate: substrate,
		notifier:  n,
		signer:    signer,
		nodeIdx:   nodeIdx,
		chainID:   chainID,
		now:       func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// HandleConsensusOutput filters output's batches to the current epoch,
// flattens and dedupes their transactions, executes them as one block,
// and — on success — publishes the resulting parcel and this node's
// self-attestation over GP.
func (a *Adapter) HandleConsensusOutput(output Output) error {
	_, span := trace.StartSpan(context.Background(), "consensus.HandleConsensusOutput")
	defer span.End()

	currentEpoch, head := a.epochAndHead()

	var flattened []types.TransactionEnvelope
	for _, b := range output.Batches {
		if b.Epoch != currentEpoch {
			log.WithFields(logrus.Fields{"batch_epoch": b.Epoch, "current_epoch": currentEpoch}).
				Warn("dropping consensus batch from a stale or future epoch")
			continue
		}
		flattened = append(flattened, b.Transactions...)
	}
	flattened = a.dedupe(flattened)
	if len(flattened) == 0 {
		return nil
	}

	receipts, _, err := a.executor.Execute(flattened, output.SubDagIndex, a.chainID, a.now())
	if err != nil {
		// Fatal per spec.md section 7.3: this is an ASS write failure,
		// not a transaction-level revert (those come back as receipts).
		log.WithError(err).Fatal("state executor failed to apply consensus output")
		return err
	}

	parcel := types.Parcel{Transactions: flattened, LastExecuted: head, Epoch: currentEpoch, SubDagIndex: output.SubDagIndex}
	digest := parcel.ToDigest()

	if err := a.recordHead(digest); err != nil {
		return errors.Wrap(err, "consensus: recording new chain head")
	}

	a.store.StoreParcel(digest, txstore.StoredParcel{Parcel: parcel, Originator: a.nodeIdx})
	a.store.StoreAttestation(digest, a.nodeIdx)
	a.store.MarkExecuted(digest)

	att := a.signer.SignAttestation(digest, currentEpoch, a.nodeIdx)
	if err := a.substrate.Send(gossip.Message{Kind: gossip.KindTransactions, Parcel: parcel}); err != nil {
		log.WithError(err).Warn("failed to broadcast executed parcel")
	}
	if err := a.substrate.Send(gossip.Message{Kind: gossip.KindAttestation, Attestation: att}); err != nil {
		log.WithError(err).Warn("failed to broadcast self-attestation")
	}

	a.notifier.NotifyNewBlock(notifier.NewBlockEvent{Height: output.SubDagIndex, Digest: digest})
	a.notifyIfEpochChanged(currentEpoch)

	log.WithFields(logrus.Fields{"sub_dag_index": output.SubDagIndex, "txns": len(flattened), "digest": digest}).
		Info("executed consensus output")
	_ = receipts
	return nil
}

// ExecuteBatch adapts the executor to txstore.ExecuteBatchFunc, the
// bridge GP's try-execute chain walk uses to apply a parcel some other
// committee member produced, once its LastExecuted chain reconnects to
// the local head.
func (a *Adapter) ExecuteBatch(txns []types.TransactionEnvelope, digest types.Digest, subDagIndex uint64) (bool, error) {
	epochBefore := a.CurrentEpoch()
	_, changedEpoch, err := a.executor.Execute(txns, subDagIndex, a.chainID, a.now())
	if err != nil {
		log.WithError(err).Fatal("state executor failed to apply replicated parcel")
		return false, err
	}
	if err := a.recordHead(digest); err != nil {
		return changedEpoch, errors.Wrap(err, "consensus: recording new chain head")
	}
	a.notifier.NotifyNewBlock(notifier.NewBlockEvent{Height: subDagIndex, Digest: digest})
	a.notifyIfEpochChanged(epochBefore)
	return changedEpoch, nil
}

// CurrentEpoch returns the ASS's current epoch counter.
func (a *Adapter) CurrentEpoch() types.Epoch {
	epoch, _ := a.epochAndHead()
	return epoch
}

func (a *Adapter) epochAndHead() (types.Epoch, types.Digest) {
	var epoch types.Epoch
	var head types.Digest
	_ = a.backend.Querier().View(func(r *kv.Reader) error {
		e, _ := r.GetMetadata(types.MetaEpoch)
		epoch = types.Epoch(e)
		head, _ = r.GetLastBlockDigest()
		return nil
	})
	return epoch, head
}

func (a *Adapter) recordHead(digest types.Digest) error {
	return a.backend.Updater().Run(func(w *kv.Writer) error {
		return w.PutLastBlockDigest(digest)
	})
}

// notifyIfEpochChanged re-reads the epoch counter and notifies EC only
// if it moved past before, letting the caller stay agnostic of exactly
// which transaction in the block (if any) advanced it.
func (a *Adapter) notifyIfEpochChanged(before types.Epoch) {
	after := a.CurrentEpoch()
	if after != before {
		metrics.EpochChangedTotal.Inc()
		a.notifier.NotifyEpochChanged(notifier.EpochChangedEvent{Epoch: after})
	}
}

// dedupe drops any envelope whose payload digest the ASS has already
// marked executed, a pre-filter ahead of the executor's own
// per-transaction replay guard so a batch made entirely of already-applied
// transactions — a duplicate sub-DAG delivery, or overlapping certificates
// across batches — never reaches the executor at all.
func (a *Adapter) dedupe(envelopes []types.TransactionEnvelope) []types.TransactionEnvelope {
	if len(envelopes) == 0 {
		return envelopes
	}
	out := make([]types.TransactionEnvelope, 0, len(envelopes))
	_ = a.backend.Querier().View(func(r *kv.Reader) error {
		for _, env := range envelopes {
			if r.HasExecutedDigest(env.Payload.Hash()) {
				continue
			}
			out = append(out, env)
		}
		return nil
	})
	return out
}
