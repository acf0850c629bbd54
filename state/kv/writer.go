package kv

import (
	"github.com/dgraph-io/ristretto"
	"github.com/lumennetwork/node/shared/bytesutil"
	"github.com/lumennetwork/node/types"
	bolt "go.etcd.io/bbolt"
)

// UpdateHandle is the single write-capable handle onto the ASS. Run wraps
// one bolt.Update transaction: on a non-nil error nothing it wrote is
// persisted, mirroring the teacher's db.Update(func(tx *bolt.Tx) error)
// all-or-nothing semantics.
type UpdateHandle struct {
	db    *bolt.DB
	cache *ristretto.Cache
}

// Run executes fn inside one atomic write transaction.
func (u UpdateHandle) Run(fn func(w *Writer) error) error {
	return u.db.Update(func(tx *bolt.Tx) error {
		return fn(&Writer{Reader: Reader{tx: tx, cache: u.cache}})
	})
}

// Writer extends Reader with the mutation methods executor and state use
// to apply a transaction's effects. Embedding Reader lets a transaction
// handler read-modify-write a row without juggling two handle types,
// following the same combined-interface shape as the teacher's
// db.Database (which itself satisfies both a read-only and
// write-capable role).
type Writer struct {
	Reader
}

// PutAccount writes the AccountInfo row for addr.
func (w *Writer) PutAccount(addr [20]byte, info types.AccountInfo) error {
	raw, err := encode(info)
	if err != nil {
		return err
	}
	return w.tx.Bucket(accountBucket).Put(addr[:], raw)
}

// PutNode writes the NodeInfo row for pub and invalidates any cached
// read.
func (w *Writer) PutNode(pub [32]byte, info types.NodeInfo) error {
	raw, err := encode(info)
	if err != nil {
		return err
	}
	if err := w.tx.Bucket(nodeBucket).Put(pub[:], raw); err != nil {
		return err
	}
	if w.cache != nil {
		w.cache.Del(nodeCacheKey(pub))
	}
	return nil
}

// PutNodeIndex assigns idx as the dense index for pub.
func (w *Writer) PutNodeIndex(pub [32]byte, idx types.NodeIndex) error {
	return w.tx.Bucket(nodeIndexBucket).Put(pub[:], bytesutil.Uint32ToBytes(uint32(idx)))
}

// NextNodeIndex returns the dense index the next registered node should
// receive: the current bucket key count.
func (w *Writer) NextNodeIndex() types.NodeIndex {
	return types.NodeIndex(w.tx.Bucket(nodeIndexBucket).Stats().KeyN)
}

// PutCommittee writes the CommitteeInfo row for epoch.
func (w *Writer) PutCommittee(epoch types.Epoch, info types.CommitteeInfo) error {
	raw, err := encode(info)
	if err != nil {
		return err
	}
	return w.tx.Bucket(committeeBucket).Put(bytesutil.Uint64ToBytes(uint64(epoch)), raw)
}

// PutParameter overrides a protocol parameter row.
func (w *Writer) PutParameter(tag types.ParamTag, value uint64) error {
	return w.tx.Bucket(parameterBucket).Put([]byte{byte(tag)}, bytesutil.Uint64ToBytes(value))
}

// PutMetadata writes a scalar metadata row.
func (w *Writer) PutMetadata(tag types.MetadataTag, value uint64) error {
	return w.tx.Bucket(metadataBucket).Put([]byte{byte(tag)}, bytesutil.Uint64ToBytes(value))
}

// PutLastBlockDigest records d as the new chain head after a block
// executes successfully.
func (w *Writer) PutLastBlockDigest(d types.Digest) error {
	return w.tx.Bucket(metadataBucket).Put([]byte{byte(types.MetaLastBlockDigest)}, d[:])
}

// PutService writes the Service row for id.
func (w *Writer) PutService(id types.ServiceID, svc types.Service) error {
	raw, err := encode(svc)
	if err != nil {
		return err
	}
	return w.tx.Bucket(serviceBucket).Put(bytesutil.Uint32ToBytes(uint32(id)), raw)
}

// MarkExecutedDigest records d as applied, the replay guard every
// transaction handler must consult before mutating state (spec.md
// section 4.2).
func (w *Writer) MarkExecutedDigest(d types.Digest) error {
	return w.tx.Bucket(executedDigestBucket).Put(d[:], []byte{1})
}
