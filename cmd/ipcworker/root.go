// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	appSpace   string
	workerID   string
	clientID   string
	socketRoot string
	transport  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "ipcworker",
		Short:         "Serve and call local worker operations over IPC",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "TOML connection config file")
	pf.StringVar(&g.appSpace, "app-space", "", "application namespace (default: from nearest go.mod)")
	pf.StringVar(&g.workerID, "worker-id", "", "worker endpoint id")
	pf.StringVar(&g.clientID, "client-id", "", "client id")
	pf.StringVar(&g.socketRoot, "socket-root", "", "directory holding endpoint sockets")
	pf.StringVar(&g.transport, "transport", "", "transport: socket, grpc or json")

	root.AddCommand(
		newServeCmd(g),
		newCallCmd(g),
		newListCmd(),
		newEventsCmd(),
	)
	return root
}

// config loads the config file, if any, then applies flag overrides.
func (g *globalFlags) config() (ipc.Config, error) {
	cfg := ipc.DefaultConfig()
	if g.configPath != "" {
		var err error
		if cfg, err = ipc.LoadConfig(g.configPath); err != nil {
			return ipc.Config{}, err
		}
	}
	if g.appSpace != "" {
		cfg.AppSpace = g.appSpace
	}
	if g.workerID != "" {
		cfg.WorkerID = g.workerID
	}
	if g.clientID != "" {
		cfg.ClientID = g.clientID
	}
	if g.socketRoot != "" {
		cfg.SocketRoot = g.socketRoot
	}
	if g.transport != "" {
		cfg.Transport = g.transport
	}
	return cfg, nil
}

func newLogger() zerolog.Logger {
	return logging.New("ipcworker")
}
