// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/audit"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		defsDir  string
		auditDSN string
		noAudit  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a worker until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			reg, err := loadRegistry(defsDir)
			if err != nil {
				return fmt.Errorf("load operations: %w", err)
			}

			logger := newLogger()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := []ipc.Option{ipc.WithConfig(cfg), ipc.WithLogger(logger)}
			if !noAudit {
				store, closeStore, err := openStore(auditDSN)
				if err != nil {
					return err
				}
				defer closeStore()

				auditLog, err := audit.New(ctx, store, audit.WithFallback(logger))
				if err != nil {
					return err
				}
				defer func() {
					closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					auditLog.Close(closeCtx)
				}()
				opts = append(opts, ipc.WithAudit(auditLog))
			}

			w, err := ipc.NewWorker(reg, opts...)
			if err != nil {
				return err
			}
			return w.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&defsDir, "defs", "", "directory of TOML operation definitions (default: built-in operations)")
	cmd.Flags().StringVar(&auditDSN, "audit-dsn", "", "postgres DSN for audit events (default: in-memory)")
	cmd.Flags().BoolVar(&noAudit, "no-audit", false, "disable audit logging")
	return cmd
}

func openStore(dsn string) (audit.Store, func(), error) {
	if dsn == "" {
		return audit.NewMemoryStore(), func() {}, nil
	}
	store, err := audit.OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}
