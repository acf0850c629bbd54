package main

import (
	"crypto/ed25519"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const nodeKeyFileName = "node.key"

// loadOrCreateNodeKey reads the raw 64-byte Ed25519 private key at
// datadir/node.key, generating and persisting a fresh one on first run —
// the same defensive "create if absent" idiom state.ApplyGenesis uses
// for the ASS itself.
func loadOrCreateNodeKey(datadir string) (ed25519.PrivateKey, error) {
	path := filepath.Join(datadir, nodeKeyFileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != ed25519.PrivateKeySize {
			return nil, errors.Errorf("node key file %s has %d bytes, want %d", path, len(raw), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(raw), nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "reading node key file")
	}

	if err := os.MkdirAll(datadir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "generating node key")
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return nil, errors.Wrap(err, "persisting node key")
	}
	log.WithField("path", path).Info("generated a new node key")
	return priv, nil
}
