package kv

import "time"

// Bucket names for each table of spec.md section 3. One bucket per table,
// the same layout convention as the teacher's beacon-chain/db/kv buckets
// (e.g. blocksBucket, stateBucket).
var (
	accountBucket        = []byte("account")
	nodeBucket           = []byte("node")
	nodeIndexBucket      = []byte("node-index") // pubkey -> NodeIndex
	committeeBucket      = []byte("committee")  // epoch -> CommitteeInfo
	parameterBucket      = []byte("parameter")
	serviceBucket        = []byte("service")
	metadataBucket       = []byte("metadata")
	executedDigestBucket = []byte("executed-digest")
)

var allBuckets = [][]byte{
	accountBucket,
	nodeBucket,
	nodeIndexBucket,
	committeeBucket,
	parameterBucket,
	serviceBucket,
	metadataBucket,
	executedDigestBucket,
}

// cacheLookupTimeout bounds how long a ristretto Get may block; ristretto
// itself is non-blocking, this only documents the intent that cache
// misses always fall through to bolt rather than wait.
const cacheLookupTimeout = 10 * time.Millisecond
