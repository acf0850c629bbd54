package txstore

import (
	"testing"

	"github.com/lumennetwork/node/types"
	"github.com/stretchr/testify/require"
)

func TestTryExecuteChainWaitsForAttestations(t *testing.T) {
	s := New()
	digest := types.Digest{1}
	s.StoreParcel(digest, StoredParcel{Parcel: types.Parcel{LastExecuted: types.Digest{}}})

	_, err := s.TryExecuteChain(digest, types.Digest{}, 3, func(_ []types.TransactionEnvelope, _ types.Digest, _ uint64) (bool, error) {
		t.Fatal("should not execute before threshold attestations")
		return false, nil
	})
	var notExecuted *NotExecutedError
	require.ErrorAs(t, err, &notExecuted)
	require.Equal(t, ReasonMissingAttestations, notExecuted.Reason)
}

func TestTryExecuteChainWalksBackToHead(t *testing.T) {
	s := New()
	head := types.Digest{9}
	mid := types.Digest{2}
	tip := types.Digest{3}

	s.StoreParcel(mid, StoredParcel{Parcel: types.Parcel{LastExecuted: head, SubDagIndex: 1}})
	s.StoreParcel(tip, StoredParcel{Parcel: types.Parcel{LastExecuted: mid, SubDagIndex: 2}})

	for _, n := range []types.NodeIndex{0, 1, 2} {
		s.StoreAttestation(tip, n)
	}

	var executedOrder []uint64
	changed, err := s.TryExecuteChain(tip, head, 3, func(_ []types.TransactionEnvelope, _ types.Digest, subDagIndex uint64) (bool, error) {
		executedOrder = append(executedOrder, subDagIndex)
		return subDagIndex == 2, nil
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []uint64{1, 2}, executedOrder, "chain must execute oldest-first")
	require.True(t, s.HasExecuted(tip))
	require.True(t, s.HasExecuted(mid))
}

func TestTryExecuteChainReportsMissingParcel(t *testing.T) {
	s := New()
	tip := types.Digest{5}
	s.StoreParcel(tip, StoredParcel{Parcel: types.Parcel{LastExecuted: types.Digest{6}}})
	for _, n := range []types.NodeIndex{0, 1, 2} {
		s.StoreAttestation(tip, n)
	}

	_, err := s.TryExecuteChain(tip, types.Digest{}, 3, func(_ []types.TransactionEnvelope, _ types.Digest, _ uint64) (bool, error) {
		t.Fatal("should not execute with a broken chain")
		return false, nil
	})
	var notExecuted *NotExecutedError
	require.ErrorAs(t, err, &notExecuted)
	require.Equal(t, ReasonMissingParcel, notExecuted.Reason)
	require.Equal(t, types.Digest{6}, notExecuted.Missing)
}

func TestParcelTimeoutStaysWithinBounds(t *testing.T) {
	s := New()
	timeout := s.ParcelTimeout()
	require.GreaterOrEqual(t, timeout, minTimeout)
	require.LessOrEqual(t, timeout, maxTimeout)
}

func TestBuildQuorumCertificateRequiresThresholdAndCommittee(t *testing.T) {
	s := New()
	digest := types.Digest{7}

	_, ok := s.BuildQuorumCertificate(digest, 0, 2)
	require.False(t, ok, "no committee order yet")

	s.ChangeEpoch([]types.NodeIndex{0, 1, 2, 3})
	s.StoreAttestation(digest, 1)
	_, ok = s.BuildQuorumCertificate(digest, 0, 2)
	require.False(t, ok, "below threshold")

	s.StoreAttestation(digest, 3)
	qc, ok := s.BuildQuorumCertificate(digest, 0, 2)
	require.True(t, ok)
	require.Equal(t, digest, qc.Digest)
	require.True(t, qc.Attesters.BitAt(1))
	require.True(t, qc.Attesters.BitAt(3))
	require.False(t, qc.Attesters.BitAt(0))
	require.False(t, qc.Attesters.BitAt(2))

	cached, ok := s.QuorumCertificateFor(digest)
	require.True(t, ok)
	require.Equal(t, qc.Attesters, cached.Attesters)
}

// ChangeEpoch must promote a next-epoch-pending parcel/attestation whose
// originator survives into the incoming committee, and drop one whose
// originator does not, per spec.md section 9's optimistic next-epoch
// acceptance design note.
func TestChangeEpochPromotesOrRejectsPendingByCommitteeMembership(t *testing.T) {
	s := New()
	survivingDigest := types.Digest{1}
	droppedDigest := types.Digest{2}

	s.StorePendingParcel(survivingDigest, StoredParcel{
		Parcel:     types.Parcel{SubDagIndex: 1},
		Originator: 5,
	})
	s.StorePendingParcel(droppedDigest, StoredParcel{
		Parcel:     types.Parcel{SubDagIndex: 2},
		Originator: 99,
	})
	s.StorePendingAttestation(survivingDigest, 5)
	s.StorePendingAttestation(survivingDigest, 99)

	s.ChangeEpoch([]types.NodeIndex{1, 5, 9})

	promoted, ok := s.GetParcel(survivingDigest)
	require.True(t, ok, "pending parcel from a node in the new committee should be promoted")
	require.Equal(t, uint64(1), promoted.Parcel.SubDagIndex)

	_, ok = s.GetParcel(droppedDigest)
	require.False(t, ok, "pending parcel from a node outside the new committee should be dropped")

	require.Equal(t, 1, s.AttestationCount(survivingDigest), "only the surviving attester should be promoted")

	// The pending partition itself is drained by ChangeEpoch, whether
	// promoted or dropped.
	s.ChangeEpoch([]types.NodeIndex{1, 5, 9})
	_, ok = s.GetParcel(survivingDigest)
	require.False(t, ok, "a second rollover with nothing newly pending should not resurrect prior entries")
}
