package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleGenesisYAML = `
epoch: 0
epoch_time: 1700000000
epochs_per_year: 365
commit_phase_duration_seconds: 60
reveal_phase_duration_seconds: 60
min_stake: 1000
max_inflation: 10
node_share: 80
protocol_share: 10
service_builder_share: 10
max_boost: 4
supply_at_genesis: 1000000
committee_size: 1
protocol_account: "4242424242424242424242424242424242424242"
nodes:
  - owner: "4242424242424242424242424242424242424242"
    consensus_key: "4141414141414141414141414141414141414141414141414141414141414141"
    staked: 1000
`

func TestLoadGenesisFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesisYAML), 0o600))

	cfg, err := LoadGenesisFile(path)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), cfg.MinStake)
	require.Equal(t, uint64(1000000), cfg.SupplyAtGenesis)
	require.Len(t, cfg.NodeInfo, 1)
	require.Equal(t, uint64(1000), cfg.NodeInfo[0].Stake.Staked)
}

func TestLoadGenesisFileRejectsBadKeyLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodes:
  - owner: "42"
    consensus_key: "42"
    staked: 1
`), 0o600))

	_, err := LoadGenesisFile(path)
	require.Error(t, err)
}
