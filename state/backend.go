// Package state implements the Application State Store of spec.md
// section 4.1: the transactional key-value layer every executed
// transaction reads from and writes to. The concrete bolt-backed
// implementation lives in state/kv; this package defines the backend
// contract, genesis application and any backend-agnostic helpers so
// executor and query depend on a narrow seam rather than bolt directly.
package state

import "github.com/lumennetwork/node/state/kv"

// Backend is satisfied by any store offering the ASS's query/update
// handles. *kv.Store implements it directly; tests may substitute an
// in-memory bolt database opened in a temp directory (see
// state/statetest) without the rest of the tree noticing the
// difference, the same seam the teacher's db.Database interface gives
// beacon-chain callers over *kv.Store.
type Backend interface {
	Querier() kv.QueryHandle
	Updater() kv.UpdateHandle
}
