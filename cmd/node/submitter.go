package main

import (
	"sync/atomic"

	"github.com/lumennetwork/node/consensus"
	"github.com/lumennetwork/node/types"
)

// localSubmitter stands in for the ordering layer spec.md section 4.4
// treats as an external, untrusted collaborator: in a single-binary
// deployment there is no separate sequencer process to hand transactions
// to, so Submit wraps each envelope as its own one-batch consensus
// output and runs it straight through the adapter, the way a committee
// of one would trivially reach quorum on every batch it produces.
// Wiring a real multi-node ordering layer is out of this package's
// scope (spec.md's non-goals) — cmd/node only needs something that
// satisfies epoch.Submitter end to end.
type localSubmitter struct {
	adapter     *consensus.Adapter
	subDagIndex uint64
}

func newLocalSubmitter(adapter *consensus.Adapter) *localSubmitter {
	return &localSubmitter{adapter: adapter}
}

// Submit satisfies epoch.Submitter.
func (s *localSubmitter) Submit(env types.TransactionEnvelope) error {
	idx := atomic.AddUint64(&s.subDagIndex, 1)
	return s.adapter.HandleConsensusOutput(consensus.Output{
		SubDagIndex: idx,
		Batches: []consensus.Batch{{
			Epoch:        s.adapter.CurrentEpoch(),
			Transactions: []types.TransactionEnvelope{env},
		}},
	})
}
