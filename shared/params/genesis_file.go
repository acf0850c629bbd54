package params

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/lumennetwork/node/types"
)

// GenesisFile is the on-disk YAML shape of the genesis document: hex
// strings in place of GenesisConfig's fixed-size byte arrays, the same
// split a YAML chain-config document draws from its decoded in-memory
// form.
type GenesisFile struct {
	Epoch                       uint64            `yaml:"epoch"`
	EpochTime                   uint64            `yaml:"epoch_time"`
	EpochsPerYear               uint64            `yaml:"epochs_per_year"`
	CommitPhaseDurationSeconds  uint64            `yaml:"commit_phase_duration_seconds"`
	RevealPhaseDurationSeconds  uint64            `yaml:"reveal_phase_duration_seconds"`
	MinStake                    uint64            `yaml:"min_stake"`
	MaxInflation                uint64            `yaml:"max_inflation"`
	NodeShare                   uint64            `yaml:"node_share"`
	ProtocolShare                uint64            `yaml:"protocol_share"`
	ServiceBuilderShare          uint64            `yaml:"service_builder_share"`
	MaxBoost                    uint64            `yaml:"max_boost"`
	SupplyAtGenesis              uint64            `yaml:"supply_at_genesis"`
	CommitteeSize                 uint64            `yaml:"committee_size"`
	ProtocolAccount               string            `yaml:"protocol_account"`
	Nodes                        []GenesisNodeFile `yaml:"nodes"`
}

// GenesisNodeFile is one entry of a GenesisFile's node list.
type GenesisNodeFile struct {
	Owner        string `yaml:"owner"`
	ConsensusKey string `yaml:"consensus_key"`
	Staked       uint64 `yaml:"staked"`
}

// LoadGenesisFile reads and decodes a YAML genesis document at path.
func LoadGenesisFile(path string) (*GenesisConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading genesis file")
	}
	var gf GenesisFile
	if err := yaml.Unmarshal(raw, &gf); err != nil {
		return nil, errors.Wrap(err, "parsing genesis file")
	}
	return gf.toConfig()
}

func (gf *GenesisFile) toConfig() (*GenesisConfig, error) {
	cfg := &GenesisConfig{
		Epoch:                                        types.Epoch(gf.Epoch),
		EpochTime:                                     gf.EpochTime,
		EpochsPerYear:                                 gf.EpochsPerYear,
		CommitteeSelectionBeaconCommitPhaseDuration:   gf.CommitPhaseDurationSeconds,
		CommitteeSelectionBeaconRevealPhaseDuration:   gf.RevealPhaseDurationSeconds,
		MinStake:             gf.MinStake,
		MaxInflation:         gf.MaxInflation,
		NodeShare:            gf.NodeShare,
		ProtocolShare:        gf.ProtocolShare,
		ServiceBuilderShare:  gf.ServiceBuilderShare,
		MaxBoost:             gf.MaxBoost,
		SupplyAtGenesis:      gf.SupplyAtGenesis,
		ProtocolParams:       map[types.ParamTag]uint64{types.ParamCommitteeSize: gf.CommitteeSize},
	}

	if gf.ProtocolAccount != "" {
		addr, err := decodeAddr(gf.ProtocolAccount)
		if err != nil {
			return nil, errors.Wrap(err, "decoding protocol_account")
		}
		cfg.ProtocolAccount = addr
	}

	for _, n := range gf.Nodes {
		key, err := decodeKey(n.ConsensusKey)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding node consensus_key %q", n.ConsensusKey)
		}
		owner, err := decodeAddr(n.Owner)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding node owner %q", n.Owner)
		}
		cfg.NodeInfo = append(cfg.NodeInfo, types.NodeInfo{
			Owner:         owner,
			ConsensusKey:  key,
			Stake:         types.Stake{Staked: n.Staked},
			Participation: types.ParticipationTrue,
		})
	}

	return cfg, nil
}

func decodeKey(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, errors.Errorf("expected %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeAddr(s string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, errors.Errorf("expected %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
