package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lumennetwork/node/executor"
	"github.com/lumennetwork/node/query"
	"github.com/lumennetwork/node/state/kv"
)

// statusCommand prints a read-only snapshot of an existing datadir's
// chain state. It never starts gossip, the epoch controller, or a
// libp2p host — spec.md's query interface is a set of synchronous
// local reads, not an RPC service, so this is the whole surface this
// package exposes over the command line.
var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "print the current epoch, committee and total supply from an existing datadir",
	Flags: []cli.Flag{dataDirFlag},
	Action: func(cliCtx *cli.Context) error {
		store, err := kv.Open(cliCtx.String(dataDirFlag.Name))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		runner := query.New(store, executor.New(store), nil)

		info, err := runner.EpochInfo()
		if err != nil {
			return err
		}

		fmt.Printf("epoch:        %d\n", info.Epoch)
		fmt.Printf("epoch ends:   %d\n", info.EpochEndTimestamp)
		fmt.Printf("committee:    %d members\n", len(info.Committee))
		for _, node := range info.Committee {
			fmt.Printf("  - pubkey=%x stake=%d\n", node.ConsensusKey, node.Stake.Staked)
		}
		fmt.Printf("total supply: %d\n", runner.TotalSupply())
		fmt.Printf("year start:   %d\n", runner.YearStartSupply())
		fmt.Printf("min stake:    %d\n", runner.StakingAmount())
		return nil
	},
}
