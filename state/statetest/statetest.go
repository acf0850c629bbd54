// Package statetest provides throwaway, temp-directory-backed stores for
// use in other packages' tests, mirroring the teacher's
// db/kv/kv_test.go's setupDB helper.
package statetest

import (
	"testing"

	"github.com/lumennetwork/node/state/kv"
)

// NewStore opens a fresh bolt store in a t.TempDir, closing it
// automatically on test cleanup.
func NewStore(t testing.TB) *kv.Store {
	t.Helper()
	s, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("statetest: could not open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("statetest: could not close store: %v", err)
		}
	})
	return s
}
