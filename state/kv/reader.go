package kv

import (
	"github.com/dgraph-io/ristretto"
	"github.com/lumennetwork/node/shared/bytesutil"
	"github.com/lumennetwork/node/types"
	bolt "go.etcd.io/bbolt"
)

// QueryHandle is a cheap, clonable, read-only handle onto the ASS. Every
// View call observes one consistent bolt snapshot for its duration,
// mirroring the teacher's db.View(func(tx *bolt.Tx) error) pattern.
type QueryHandle struct {
	db    *bolt.DB
	cache *ristretto.Cache
}

// View runs fn against a read-only snapshot.
func (q QueryHandle) View(fn func(r *Reader) error) error {
	return q.db.View(func(tx *bolt.Tx) error {
		return fn(&Reader{tx: tx, cache: q.cache})
	})
}

// Reader is the typed, read-only accessor surface bound to one bolt
// transaction.
type Reader struct {
	tx    *bolt.Tx
	cache *ristretto.Cache
}

func nodeCacheKey(pub [32]byte) string {
	return "node/" + string(pub[:])
}

// GetAccount returns the AccountInfo row for addr, if present.
func (r *Reader) GetAccount(addr [20]byte) (types.AccountInfo, bool, error) {
	var out types.AccountInfo
	raw := r.tx.Bucket(accountBucket).Get(addr[:])
	if raw == nil {
		return out, false, nil
	}
	if err := decode(raw, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// GetNode returns the NodeInfo row for a node's consensus public key.
func (r *Reader) GetNode(pub [32]byte) (types.NodeInfo, bool, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(nodeCacheKey(pub)); ok {
			return v.(types.NodeInfo), true, nil
		}
	}
	var out types.NodeInfo
	raw := r.tx.Bucket(nodeBucket).Get(pub[:])
	if raw == nil {
		return out, false, nil
	}
	if err := decode(raw, &out); err != nil {
		return out, false, err
	}
	if r.cache != nil {
		r.cache.Set(nodeCacheKey(pub), out, 1)
	}
	return out, true, nil
}

// GetNodeByIndex resolves a dense NodeIndex back to a node's public key
// then loads its NodeInfo. Used by committee iteration, where only
// indices are stored.
func (r *Reader) GetNodeByIndex(idx types.NodeIndex) ([32]byte, types.NodeInfo, bool, error) {
	var pub [32]byte
	c := r.tx.Bucket(nodeIndexBucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if bytesutil.BytesToUint32(v) == uint32(idx) {
			copy(pub[:], k)
			info, ok, err := r.GetNode(pub)
			return pub, info, ok, err
		}
	}
	return pub, types.NodeInfo{}, false, nil
}

// GetNodeIndex returns the dense index assigned to a node's public key,
// or UnassignedNodeIndex if it has none.
func (r *Reader) GetNodeIndex(pub [32]byte) types.NodeIndex {
	raw := r.tx.Bucket(nodeIndexBucket).Get(pub[:])
	if raw == nil {
		return types.UnassignedNodeIndex
	}
	return types.NodeIndex(bytesutil.BytesToUint32(raw))
}

// GetCommittee returns the CommitteeInfo row for epoch.
func (r *Reader) GetCommittee(epoch types.Epoch) (types.CommitteeInfo, bool, error) {
	var out types.CommitteeInfo
	raw := r.tx.Bucket(committeeBucket).Get(bytesutil.Uint64ToBytes(uint64(epoch)))
	if raw == nil {
		return out, false, nil
	}
	if err := decode(raw, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// GetParameter returns the stored fixed-point-or-raw uint64 value of a
// protocol parameter row, if it has been overridden from genesis defaults.
func (r *Reader) GetParameter(tag types.ParamTag) (uint64, bool) {
	raw := r.tx.Bucket(parameterBucket).Get([]byte{byte(tag)})
	if raw == nil {
		return 0, false
	}
	return bytesutil.BytesToUint64(raw), true
}

// GetMetadata returns a scalar metadata row.
func (r *Reader) GetMetadata(tag types.MetadataTag) (uint64, bool) {
	raw := r.tx.Bucket(metadataBucket).Get([]byte{byte(tag)})
	if raw == nil {
		return 0, false
	}
	return bytesutil.BytesToUint64(raw), true
}

// GetLastBlockDigest returns the parcel digest of the most recently
// executed block, the ASS's view of the local chain head that GP's
// try-execute bridge and the consensus adapter both read.
func (r *Reader) GetLastBlockDigest() (types.Digest, bool) {
	var out types.Digest
	raw := r.tx.Bucket(metadataBucket).Get([]byte{byte(types.MetaLastBlockDigest)})
	if raw == nil {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}

// GetService returns the Service row for id.
func (r *Reader) GetService(id types.ServiceID) (types.Service, bool, error) {
	var out types.Service
	raw := r.tx.Bucket(serviceBucket).Get(bytesutil.Uint32ToBytes(uint32(id)))
	if raw == nil {
		return out, false, nil
	}
	if err := decode(raw, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// HasExecutedDigest reports whether a transaction digest has already been
// applied, the replay guard of spec.md section 4.2.
func (r *Reader) HasExecutedDigest(d types.Digest) bool {
	return r.tx.Bucket(executedDigestBucket).Get(d[:]) != nil
}

// ForEachNode iterates every row of the node table in key order.
func (r *Reader) ForEachNode(fn func(pub [32]byte, info types.NodeInfo) error) error {
	return r.tx.Bucket(nodeBucket).ForEach(func(k, v []byte) error {
		var info types.NodeInfo
		if err := decode(v, &info); err != nil {
			return err
		}
		var pub [32]byte
		copy(pub[:], k)
		return fn(pub, info)
	})
}

// ForEachService iterates every row of the service table in key order.
func (r *Reader) ForEachService(fn func(id types.ServiceID, svc types.Service) error) error {
	return r.tx.Bucket(serviceBucket).ForEach(func(k, v []byte) error {
		var svc types.Service
		if err := decode(v, &svc); err != nil {
			return err
		}
		return fn(types.ServiceID(bytesutil.BytesToUint32(k)), svc)
	})
}
