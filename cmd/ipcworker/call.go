// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
)

func newCallCmd(g *globalFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "call <path> [json-arg...]",
		Short: "Call an operation on a running worker",
		Long:  "Call invokes the dotted operation path with each remaining argument parsed as JSON; arguments that are not valid JSON are sent as strings.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if timeout > 0 {
				cfg.CallTimeout = timeout
			}

			ctx := cmd.Context()
			client, err := ipc.Dial(ctx, ipc.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer client.Disconnect(ctx)

			res, err := client.Proxy().Get(args[0]).Call(ctx, parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			out := res.Raw()
			if len(out) == 0 {
				out = json.RawMessage("null")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum time to wait for the response (0 waits forever)")
	return cmd
}

func parseArgs(raw []string) []any {
	out := make([]any, 0, len(raw))
	for _, arg := range raw {
		if json.Valid([]byte(arg)) {
			out = append(out, json.RawMessage(arg))
			continue
		}
		out = append(out, arg)
	}
	return out
}

func newListCmd() *cobra.Command {
	var defsDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the operations a worker would serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(defsDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(reg.Paths(), "\n"))
			return nil
		},
	}
	cmd.Flags().StringVar(&defsDir, "defs", "", "directory of TOML operation definitions (default: built-in operations)")
	return cmd
}
