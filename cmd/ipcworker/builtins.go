// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/luxfi/ipc"
)

// builtinHandlers are the implementations definition files may name.
func builtinHandlers() map[string]ipc.Operation {
	return map[string]ipc.Operation{
		"echo": ipc.OperationFunc(func(_ context.Context, args []json.RawMessage) (any, error) {
			if len(args) == 0 {
				return nil, nil
			}
			return args[0], nil
		}),
		"sum": ipc.OperationFunc(func(_ context.Context, args []json.RawMessage) (any, error) {
			var total float64
			for i, raw := range args {
				var n float64
				if err := json.Unmarshal(raw, &n); err != nil {
					return nil, ipc.InvalidArgument(fmt.Errorf("argument %d is not a number", i))
				}
				total += n
			}
			return total, nil
		}),
		"upper": ipc.Func(func(_ context.Context, s string) (string, error) {
			return strings.ToUpper(s), nil
		}),
		"fail": ipc.Func(func(_ context.Context, msg string) (any, error) {
			if msg == "" {
				msg = "failed"
			}
			return nil, errors.New(msg)
		}),
		"now": ipc.Func(func(context.Context, struct{}) (string, error) {
			return time.Now().UTC().Format(time.RFC3339Nano), nil
		}),
		"hostname": ipc.Func(func(context.Context, struct{}) (string, error) {
			return os.Hostname()
		}),
	}
}

// builtinRegistry serves every handler under its own name, with the clock
// and host helpers grouped under "sys".
func builtinRegistry() (*ipc.Registry, error) {
	h := builtinHandlers()
	return ipc.NewBuilder().
		Handle("echo", h["echo"]).
		Handle("sum", h["sum"]).
		Handle("upper", h["upper"]).
		Handle("fail", h["fail"]).
		Handle("sys.now", h["now"]).
		Handle("sys.hostname", h["hostname"]).
		Build()
}

func loadRegistry(defsDir string) (*ipc.Registry, error) {
	if defsDir == "" {
		return builtinRegistry()
	}
	return ipc.LoadDir(defsDir, builtinHandlers(), nil)
}
