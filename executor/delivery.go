package executor

import (
	"github.com/lumennetwork/node/shared/fixedpoint"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

// applyDeliveryAcks accumulates a node's reported delivery-acknowledgment
// revenue against both the node's own pending-reward bucket and each
// referenced service's pending-reward bucket, consumed at the next
// successful epoch advance (rewards.go).
func applyDeliveryAcks(w *kv.Writer, node types.NodeInfo, m types.SubmitDeliveryAcknowledgmentAggregation) (types.Response, types.NodeInfo, bool) {
	var total fixedpoint.Value = fixedpoint.RawStable(node.PendingRevenue)
	for _, ack := range m.Acks {
		svc, found, err := w.GetService(ack.Service)
		if err != nil {
			// A storage failure here is fatal; applyNodeMethod has no
			// error channel for node-handler closures, so surface it the
			// same way an unreachable invariant would: panic and let the
			// owning task's recover-and-shutdown path (shared/shutdown)
			// handle it. SE treats storage I/O failure as fatal (spec.md
			// section 7.3), never as a transaction revert.
			panic(err)
		}
		if !found {
			continue
		}
		revenue := fixedpoint.Mul(fixedpoint.Stable(ack.Commodity), fixedpoint.RawStable(svc.CommodityPrice))
		total = fixedpoint.Add(total, revenue)
		svc.PendingRevenue = fixedpoint.Add(fixedpoint.RawStable(svc.PendingRevenue), revenue).Raw()
		if err := w.PutService(ack.Service, svc); err != nil {
			panic(err)
		}
	}
	node.PendingRevenue = total.Raw()
	return success(nil), node, false
}

// applyReputationMeasurements stores nothing durable: measurement
// collection and scoring are out of scope (spec.md non-goals). The
// transaction is accepted (so nonces still advance) but has no state
// effect, matching query.Runner's explicit not-implemented stance on
// reputation reads.
func applyReputationMeasurements(node types.NodeInfo, m types.SubmitReputationMeasurements) (types.Response, types.NodeInfo, bool) {
	return success(nil), node, false
}

// applyContentRegistry adds m.Add to and removes m.Remove from the
// node's advertised content-id set, skipping ids already present (a
// supplemental feature beyond spec.md's core scope; see SPEC_FULL.md
// section 4).
func applyContentRegistry(node types.NodeInfo, m types.UpdateContentRegistry) (types.Response, types.NodeInfo, bool) {
	for _, id := range m.Add {
		if !containsDigest32(node.ContentRegistry, id) {
			node.ContentRegistry = append(node.ContentRegistry, id)
		}
	}
	if len(m.Remove) > 0 {
		kept := node.ContentRegistry[:0]
		for _, existing := range node.ContentRegistry {
			if !containsDigest32(m.Remove, existing) {
				kept = append(kept, existing)
			}
		}
		node.ContentRegistry = kept
	}
	return success(nil), node, false
}

func containsDigest32(set [][32]byte, v [32]byte) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
