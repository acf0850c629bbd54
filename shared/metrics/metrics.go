// Package metrics centralizes the prometheus collectors shared by the
// core packages, mirroring the teacher's per-package counter/histogram
// variables (e.g. beacon-chain/sync's arrivalBlockPropagationHistogram).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// MissingParcelRequested counts RequestTransactions broadcasts sent
	// because a parcel did not arrive before its estimated timeout.
	MissingParcelRequested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_missing_parcel_request",
		Help: "Number of times the node sent a request for a missing consensus parcel.",
	})

	// MissingParcelServed counts RequestTransactions responses this node
	// answered by repropagating a stored parcel.
	MissingParcelServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_missing_parcel_sent",
		Help: "Number of missing parcels served to other nodes.",
	})

	// MissingParcelIgnored counts RequestTransactions this node could not
	// answer because it did not have the requested parcel either.
	MissingParcelIgnored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_missing_parcel_ignored",
		Help: "Number of parcel requests ignored because the parcel was not in the transaction store.",
	})

	// MissingParcelReceived counts parcels that arrived in response to a
	// request this node made.
	MissingParcelReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_missing_parcel_received",
		Help: "Number of missing parcels successfully received from other nodes.",
	})

	// InvalidSenderDrops counts gossip messages dropped for failing the
	// epoch/committee validity check of spec.md section 4.4.
	InvalidSenderDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gossip_invalid_sender_total",
		Help: "Number of gossip messages dropped for an invalid sender/epoch combination.",
	})

	// EpochChangedTotal counts successful epoch advances.
	EpochChangedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "epoch_changed_total",
		Help: "Number of times the committee-selection beacon completed and the epoch advanced.",
	})
)

func init() {
	prometheus.MustRegister(
		MissingParcelRequested,
		MissingParcelServed,
		MissingParcelIgnored,
		MissingParcelReceived,
		InvalidSenderDrops,
		EpochChangedTotal,
	)
}
