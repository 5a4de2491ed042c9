// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

const testAppSpace = "ipc_test."

var allTransports = []string{TransportSocket, TransportGRPC, TransportJSON}

// socketRoot returns a short temp dir; unix socket paths are length limited.
func socketRoot(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

type person struct {
	Name string `json:"name"`
}

type delayArg struct {
	N      int `json:"n"`
	WaitMS int `json:"waitMs"`
}

func scenarioRegistry(t testing.TB) *Registry {
	t.Helper()
	reg, err := NewBuilder().
		Handle("taskA", Func(func(_ context.Context, x string) (any, error) {
			return nil, errors.New("got: " + x)
		})).
		Handle("taskB", Func(func(_ context.Context, o person) (map[string]string, error) {
			return map[string]string{"output": "name is: " + o.Name}, nil
		})).
		Handle("nameSpace.taskC", Func(func(_ context.Context, q string) (map[string]any, error) {
			return map[string]any{"errorsThrown": []map[string]any{{"payload": q}}}, nil
		})).
		Handle("delay", Func(func(ctx context.Context, d delayArg) (int, error) {
			select {
			case <-time.After(time.Duration(d.WaitMS) * time.Millisecond):
			case <-ctx.Done():
			}
			return d.N, nil
		})).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

// startWorker serves reg on transport until the test ends and returns the
// socket root it listens under.
func startWorker(t testing.TB, transport string, reg *Registry, opts ...Option) string {
	t.Helper()
	root := socketRoot(t)
	base := []Option{WithAppSpace(testAppSpace), WithSocketRoot(root), WithTransport(transport)}
	w, err := NewWorker(reg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	srv, err := w.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return root
}

func dialWorker(t testing.TB, transport, root string, opts ...Option) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	base := []Option{WithAppSpace(testAppSpace), WithSocketRoot(root), WithTransport(transport)}
	client, err := Dial(ctx, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Dial(%s): %v", transport, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
