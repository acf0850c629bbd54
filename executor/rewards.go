package executor

import (
	"github.com/lumennetwork/node/shared/fixedpoint"
	"github.com/lumennetwork/node/shared/params"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

type rewardNode struct {
	pub  [32]byte
	info types.NodeInfo
}

type rewardService struct {
	id  types.ServiceID
	svc types.Service
}

// emitRewards runs at every epoch advance: it mints the epoch's FLK
// inflation emission, splits it between the node pool, the protocol
// account and the service-builder pool, splits the stablecoin revenue
// collected this epoch via SubmitDeliveryAcknowledgmentAggregation by the
// same share percentages between node operators, the protocol account
// and service owners, and resets every
// PendingRevenue accumulator. bbolt forbids mutating a bucket while
// iterating its cursor, so nodes and services are collected into slices
// first and written back in a second pass.
func emitRewards(w *kv.Writer, endingEpoch types.Epoch, p *params.ProtocolParams) error {
	var nodes []rewardNode
	if err := w.ForEachNode(func(pub [32]byte, info types.NodeInfo) error {
		nodes = append(nodes, rewardNode{pub: pub, info: info})
		return nil
	}); err != nil {
		return err
	}
	var services []rewardService
	if err := w.ForEachService(func(id types.ServiceID, svc types.Service) error {
		services = append(services, rewardService{id: id, svc: svc})
		return nil
	}); err != nil {
		return err
	}

	supplyAtYearStart, _ := w.GetMetadata(types.MetaSupplyAtYearStart)
	emission := fixedpoint.Div(
		fixedpoint.Mul(fixedpoint.RawFLK(supplyAtYearStart), fixedpoint.Percent(p.MaxInflation)),
		fixedpoint.FLK(p.EpochsPerYear),
	)
	nodePool := fixedpoint.Mul(emission, fixedpoint.Percent(p.NodeShare))
	protocolPool := fixedpoint.Mul(emission, fixedpoint.Percent(p.ProtocolShare))
	servicePool := fixedpoint.Mul(emission, fixedpoint.Percent(p.ServiceBuilderShare))

	// Total stablecoin revenue collected this epoch via delivery-ack
	// aggregation, read off the node side before distributeNodePool zeroes
	// PendingRevenue; spec.md section 8 scenario 6 splits this same total
	// three ways (node/protocol/service) by ProtocolParams share, exactly
	// as the FLK emission is split above.
	totalRevenue := fixedpoint.RawStable(0)
	for _, n := range nodes {
		totalRevenue = fixedpoint.Add(totalRevenue, fixedpoint.RawStable(n.info.PendingRevenue))
	}
	protocolStable := fixedpoint.Mul(totalRevenue, fixedpoint.Percent(p.ProtocolShare))

	if err := creditAccount(w, p.ProtocolAccount, protocolPool, protocolStable); err != nil {
		return err
	}

	if err := distributeNodePool(w, nodes, nodePool, p); err != nil {
		return err
	}
	if err := distributeServicePool(w, services, servicePool, p); err != nil {
		return err
	}

	minted := fixedpoint.Add(fixedpoint.Add(nodePool, protocolPool), servicePool)
	totalSupply, _ := w.GetMetadata(types.MetaTotalSupply)
	newSupply := fixedpoint.Add(fixedpoint.RawFLK(totalSupply), minted)
	if err := w.PutMetadata(types.MetaTotalSupply, newSupply.Raw()); err != nil {
		return err
	}
	nextEpoch := endingEpoch + 1
	if p.EpochsPerYear > 0 && uint64(nextEpoch)%p.EpochsPerYear == 0 {
		if err := w.PutMetadata(types.MetaSupplyAtYearStart, newSupply.Raw()); err != nil {
			return err
		}
	}
	return nil
}

// distributeNodePool pays each node NodeShare percent of its own
// stablecoin revenue, then splits nodePool FLK across nodes weighted by
// revenue_share * stake_boost, where revenue_share is a node's fraction
// of total revenue earned this epoch and stake_boost rewards locked
// stake up to MaxBoost. The weights are normalized by their own sum (an
// Open Question spec.md left implicit — see DESIGN.md) so the pool is
// exactly and only distributed among nodes that earned revenue this
// epoch; a quiet epoch with no delivery acknowledgments leaves nodePool
// unminted rather than splitting it arbitrarily.
func distributeNodePool(w *kv.Writer, nodes []rewardNode, nodePool fixedpoint.Value, p *params.ProtocolParams) error {
	weights := make([]fixedpoint.Value, len(nodes))
	for i := range weights {
		weights[i] = fixedpoint.FLK(0)
	}
	totalWeight := fixedpoint.RawFLK(0)
	for i, n := range nodes {
		revenue := fixedpoint.RawStable(n.info.PendingRevenue)
		if fixedpoint.Cmp(revenue, fixedpoint.Stable(0)) == 0 {
			continue
		}
		boost := stakeBoost(n.info.Stake, p.MaxBoost)
		weight := fixedpoint.Mul(revenue, boost)
		weights[i] = weight
		totalWeight = fixedpoint.Add(totalWeight, weight)
	}

	for i, n := range nodes {
		stableShare := fixedpoint.Mul(fixedpoint.RawStable(n.info.PendingRevenue), fixedpoint.Percent(p.NodeShare))
		n.info.StablesBalance = fixedpoint.Add(fixedpoint.RawStable(n.info.StablesBalance), stableShare).Raw()
		n.info.PendingRevenue = 0
		if fixedpoint.Cmp(totalWeight, fixedpoint.FLK(0)) > 0 && weights[i].Raw() > 0 {
			share := fixedpoint.Mul(nodePool, fixedpoint.Div(weights[i], totalWeight))
			n.info.FlkBalance = fixedpoint.Add(fixedpoint.RawFLK(n.info.FlkBalance), share).Raw()
		}
		if err := w.PutNode(n.pub, n.info); err != nil {
			return err
		}
	}
	return nil
}

// stakeBoost maps a node's locked fraction of stake to a multiplier in
// [1, maxBoost]: fully liquid stake gets no boost, fully locked stake
// gets the maximum.
func stakeBoost(stake types.Stake, maxBoost uint64) fixedpoint.Value {
	if stake.Staked == 0 {
		return fixedpoint.FLK(1)
	}
	lockedFraction := fixedpoint.Div(fixedpoint.RawFLK(stake.Locked), fixedpoint.RawFLK(stake.Staked))
	extra := fixedpoint.Mul(lockedFraction, fixedpoint.FLK(maxBoost-1))
	return fixedpoint.Add(fixedpoint.FLK(1), extra)
}

// distributeServicePool splits servicePool FLK and the
// ServiceBuilderShare slice of this epoch's total stablecoin revenue
// across services, both weighted by each service's share of the
// revenue it earned this epoch (spec.md section 8 scenario 6's
// 1280:1720 ratio), normalized the same way as the node pool.
func distributeServicePool(w *kv.Writer, services []rewardService, servicePool fixedpoint.Value, p *params.ProtocolParams) error {
	totalRevenue := fixedpoint.RawStable(0)
	for _, s := range services {
		totalRevenue = fixedpoint.Add(totalRevenue, fixedpoint.RawStable(s.svc.PendingRevenue))
	}
	stablePool := fixedpoint.Mul(totalRevenue, fixedpoint.Percent(p.ServiceBuilderShare))

	for _, s := range services {
		revenue := fixedpoint.RawStable(s.svc.PendingRevenue)
		flkShare := fixedpoint.FLK(0)
		stableShare := fixedpoint.Stable(0)
		if fixedpoint.Cmp(totalRevenue, fixedpoint.Stable(0)) > 0 {
			ratio := fixedpoint.Div(revenue, totalRevenue)
			flkShare = fixedpoint.Mul(servicePool, ratio)
			stableShare = fixedpoint.Mul(stablePool, ratio)
		}
		if err := creditAccount(w, s.svc.Owner, flkShare, stableShare); err != nil {
			return err
		}
		s.svc.PendingRevenue = 0
		if err := w.PutService(s.id, s.svc); err != nil {
			return err
		}
	}
	return nil
}

// creditAccount adds flk and stable (either may be a zero-valued
// fixedpoint.FLK(0)/Stable(0)) to addr's AccountInfo balances, creating
// the row if it does not exist yet (the protocol account need not have
// been pre-funded at genesis).
func creditAccount(w *kv.Writer, addr [20]byte, flk, stable fixedpoint.Value) error {
	acc, _, err := w.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.FlkBalance = fixedpoint.Add(fixedpoint.RawFLK(acc.FlkBalance), flk).Raw()
	acc.StablesBalance = fixedpoint.Add(fixedpoint.RawStable(acc.StablesBalance), stable).Raw()
	return w.PutAccount(addr, acc)
}
