package kv

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
)

// encode/decode use encoding/gob for the ASS table values. go-ssz's
// reflection marshaler (not used anywhere in this module) expects
// code-generated ssz-max
// tags on every dynamic-length field; NodeInfo, CommitteeInfo and Service
// all carry evolving variable-length fields (Domain, ContentRegistry,
// Members, ReadyToChange) that would need exactly that kind of
// generation step to encode safely with go-ssz. Lacking a generator in
// this tree, table storage uses gob, which handles the same shapes
// directly from their Go struct definitions.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "state/kv: encode")
	}
	return buf.Bytes(), nil
}

func decode(b []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return errors.Wrap(err, "state/kv: decode")
	}
	return nil
}
