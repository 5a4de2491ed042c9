// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipc/audit"
)

func newEventsCmd() *cobra.Command {
	var (
		dsn       string
		requestID string
		flow      string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query persisted audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return errors.New("--audit-dsn is required")
			}
			q := audit.Query{RequestID: requestID, Flow: audit.Flow(flow), Space: audit.SpaceExecute, Limit: limit}
			if flow != "" && !q.Flow.Valid() {
				return audit.ErrInvalidFlow
			}

			store, err := audit.OpenPostgres(dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Find(cmd.Context(), q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "audit-dsn", "", "postgres DSN of the audit store")
	cmd.Flags().StringVar(&requestID, "request-id", "", "only events for this request id")
	cmd.Flags().StringVar(&flow, "flow", "", "only request or response events")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")
	return cmd
}
