package main

import (
	"fmt"
	"os"
	runtimeDebug "runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func startNode(cliCtx *cli.Context) error {
	n, err := NewNode(cliCtx)
	if err != nil {
		return err
	}
	n.Start()
	return nil
}

func main() {
	app := cli.App{}
	app.Name = "lumen-node"
	app.Usage = "runs a single lumen-node validator: accumulator state, executor, gossip and the epoch controller"
	app.Action = startNode
	app.Flags = appFlags
	app.Commands = []*cli.Command{
		statusCommand,
	}

	app.Before = func(cliCtx *cli.Context) error {
		level, err := logrus.ParseLevel(cliCtx.String(verbosityFlag.Name))
		if err != nil {
			return fmt.Errorf("unknown verbosity %q: %w", cliCtx.String(verbosityFlag.Name), err)
		}
		logrus.SetLevel(level)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
