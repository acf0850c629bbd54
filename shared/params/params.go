// Package params holds the tunable protocol parameters and the genesis
// document, both of which are loaded once at node start and read
// concurrently for the remainder of the process lifetime.
package params

import (
	"sync/atomic"

	"github.com/lumennetwork/node/types"
)

// ProtocolParams mirrors the `parameter` table of the application state
// store. Values are also persisted on-chain (state.kv writes them into the
// parameter table at genesis); this struct is the process-local, strongly
// typed read path used by the executor and epoch controller so they are
// not forced to round-trip through u128 table lookups on every call.
type ProtocolParams struct {
	MinStake                                    uint64
	MaxInflation                                 uint64
	NodeShare                                    uint64
	ProtocolShare                                uint64
	ServiceBuilderShare                          uint64
	MaxBoost                                     uint64
	EpochsPerYear                                uint64
	CommitteeSize                                uint32
	CommitteeSelectionBeaconCommitPhaseDuration  uint64 // seconds
	CommitteeSelectionBeaconRevealPhaseDuration  uint64 // seconds
	ProtocolAccount                              [20]byte // receives the protocol_share of every epoch's reward emission
}

// Copy returns a deep copy safe to mutate without affecting the shared
// value returned by Get.
func (p *ProtocolParams) Copy() *ProtocolParams {
	cpy := *p
	return &cpy
}

// DefaultProtocolParams returns parameters suitable for local development
// and tests; production values are supplied by the genesis document.
func DefaultProtocolParams() *ProtocolParams {
	return &ProtocolParams{
		MinStake:                                    1000,
		MaxInflation:                                10,
		NodeShare:                                    80,
		ProtocolShare:                                10,
		ServiceBuilderShare:                          10,
		MaxBoost:                                     4,
		EpochsPerYear:                                365,
		CommitteeSize:                                4,
		CommitteeSelectionBeaconCommitPhaseDuration:  60,
		CommitteeSelectionBeaconRevealPhaseDuration:  60,
	}
}

var protocolParams atomic.Value

func init() {
	protocolParams.Store(DefaultProtocolParams())
}

// Get returns the process-wide protocol parameters.
func Get() *ProtocolParams {
	return protocolParams.Load().(*ProtocolParams)
}

// Override replaces the process-wide protocol parameters. It exists so
// tests and genesis application can install deterministic values without
// threading a config object through every package; production code calls
// it exactly once, at startup, before any other goroutine reads Get.
func Override(p *ProtocolParams) {
	protocolParams.Store(p)
}

// GenesisConfig is the structured genesis document of spec.md section 6.
type GenesisConfig struct {
	Epoch                                        types.Epoch
	EpochTime                                    uint64 // seconds
	EpochsPerYear                                 uint64
	CommitteeSelectionBeaconCommitPhaseDuration   uint64
	CommitteeSelectionBeaconRevealPhaseDuration   uint64
	MinStake                                      uint64
	MaxInflation                                  uint64
	NodeShare                                     uint64
	ProtocolShare                                 uint64
	ServiceBuilderShare                           uint64
	MaxBoost                                       uint64
	SupplyAtGenesis                               uint64
	NodeInfo                                      []types.NodeInfo
	Service                                       []types.Service
	ProtocolParams                                map[types.ParamTag]uint64
	ProtocolAccount                                [20]byte
}

// ToProtocolParams projects the genesis document's economic knobs into a
// ProtocolParams suitable for Override.
func (g *GenesisConfig) ToProtocolParams() *ProtocolParams {
	p := DefaultProtocolParams()
	p.MinStake = g.MinStake
	p.MaxInflation = g.MaxInflation
	p.NodeShare = g.NodeShare
	p.ProtocolShare = g.ProtocolShare
	p.ServiceBuilderShare = g.ServiceBuilderShare
	p.MaxBoost = g.MaxBoost
	p.EpochsPerYear = g.EpochsPerYear
	p.CommitteeSelectionBeaconCommitPhaseDuration = g.CommitteeSelectionBeaconCommitPhaseDuration
	p.CommitteeSelectionBeaconRevealPhaseDuration = g.CommitteeSelectionBeaconRevealPhaseDuration
	p.ProtocolAccount = g.ProtocolAccount
	return p
}
