package main

import "github.com/urfave/cli/v2"

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory the ASS bolt database and node key are stored in",
		Value: "./lumen-data",
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "chain id every accepted transaction envelope must carry",
		Value: 1,
	}
	genesisFileFlag = &cli.StringFlag{
		Name:  "genesis-file",
		Usage: "path to the YAML genesis document applied on first start",
	}
	p2pPortFlag = &cli.UintFlag{
		Name:  "p2p-port",
		Usage: "TCP port the libp2p host listens on",
		Value: 4001,
	}
	p2pTopicFlag = &cli.StringFlag{
		Name:  "p2p-topic",
		Usage: "gossipsub topic the node's consensus messages are published on",
		Value: "lumen/consensus/1",
	}
	bootstrapPeersFlag = &cli.StringSliceFlag{
		Name:  "bootstrap-peer",
		Usage: "multiaddr of a peer to dial at startup; may be repeated",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "address the prometheus /metrics endpoint listens on; empty disables it",
		Value: "127.0.0.1:9090",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "logrus level: trace, debug, info, warn, error",
		Value: "info",
	}
)

var appFlags = []cli.Flag{
	dataDirFlag,
	chainIDFlag,
	genesisFileFlag,
	p2pPortFlag,
	p2pTopicFlag,
	bootstrapPeersFlag,
	metricsAddrFlag,
	verbosityFlag,
}
