// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestClientScenarios(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			root := startWorker(t, transport, scenarioRegistry(t))
			client := dialWorker(t, transport, root)
			ctx := context.Background()
			p := client.Proxy()

			t.Run("handler error", func(t *testing.T) {
				_, err := p.Get("taskA").Call(ctx, "hello")
				var re *RemoteError
				if !errors.As(err, &re) {
					t.Fatalf("err = %v, want RemoteError", err)
				}
				if re.Error() != "got: hello" || re.Code != CodeHandler {
					t.Fatalf("err = %q (%s)", re.Error(), re.Code)
				}
			})

			t.Run("object argument", func(t *testing.T) {
				got, err := CallAs[map[string]string](ctx, p.Get("taskB"), person{Name: "bob"})
				if err != nil {
					t.Fatalf("taskB: %v", err)
				}
				if diff := cmp.Diff(map[string]string{"output": "name is: bob"}, got); diff != "" {
					t.Fatalf("taskB (-want +got):\n%s", diff)
				}
			})

			t.Run("namespaced", func(t *testing.T) {
				res, err := p.Get("nameSpace").Get("taskC").Call(ctx, "what is love?")
				if err != nil {
					t.Fatalf("taskC: %v", err)
				}
				got, err := res.Value()
				if err != nil {
					t.Fatalf("Value: %v", err)
				}
				want := map[string]any{
					"errorsThrown": []any{map[string]any{"payload": "what is love?"}},
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("taskC (-want +got):\n%s", diff)
				}
			})

			t.Run("not found", func(t *testing.T) {
				_, err := p.Get("nope.missing").Call(ctx)
				if !IsCode(err, CodeNotFound) || err.Error() != `worker "nope.missing" not found` {
					t.Fatalf("err = %v", err)
				}
			})

			t.Run("empty path", func(t *testing.T) {
				_, err := client.Call(ctx, nil)
				if !IsCode(err, CodeProtocol) || err.Error() != "worker name is required" {
					t.Fatalf("err = %v", err)
				}
			})

			t.Run("concurrent out of order", func(t *testing.T) {
				const n = 16
				var wg sync.WaitGroup
				errs := make(chan error, n)
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						// Earlier calls sleep longer so responses arrive reversed.
						got, err := CallAs[int](ctx, p.Get("delay"), delayArg{N: i, WaitMS: (n - i) * 10})
						if err != nil {
							errs <- err
							return
						}
						if got != i {
							errs <- errors.New("response delivered to the wrong caller")
						}
					}(i)
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					t.Error(err)
				}
				if client.Pending() != 0 {
					t.Fatalf("pending = %d after all calls returned", client.Pending())
				}
			})

			t.Run("call timeout", func(t *testing.T) {
				slow := dialWorker(t, transport, root, WithCallTimeout(50*time.Millisecond))
				_, err := slow.Proxy().Get("delay").Call(ctx, delayArg{WaitMS: 500})
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Fatalf("err = %v, want deadline exceeded", err)
				}
				if slow.Pending() != 0 {
					t.Fatalf("pending = %d after timeout", slow.Pending())
				}
			})

			t.Run("disconnect", func(t *testing.T) {
				c := dialWorker(t, transport, root)
				if _, err := c.Proxy().Get("disconnect").Call(ctx); err != nil {
					t.Fatalf("disconnect: %v", err)
				}
				if _, err := c.Proxy().Get("taskB").Call(ctx, person{}); !errors.Is(err, ErrClosed) {
					t.Fatalf("call after disconnect err = %v, want ErrClosed", err)
				}
			})
		})
	}
}

func TestDialConnectTimeout(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AppSpace = testAppSpace
			cfg.SocketRoot = socketRoot(t)
			cfg.Transport = transport
			cfg.ConnectTimeout = 200 * time.Millisecond

			start := time.Now()
			_, err := Dial(context.Background(), WithConfig(cfg))
			if !errors.Is(err, ErrConnectTimeout) {
				t.Fatalf("err = %v, want ErrConnectTimeout", err)
			}
			if elapsed := time.Since(start); elapsed > 3*time.Second {
				t.Fatalf("dial took %s", elapsed)
			}
		})
	}
}

func TestDialUnknownTransport(t *testing.T) {
	_, err := Dial(context.Background(), WithAppSpace(testAppSpace), WithSocketRoot(socketRoot(t)), WithTransport("carrier-pigeon"))
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestSocketDisconnectTimeout(t *testing.T) {
	root := socketRoot(t)
	// A peer that accepts but never answers the disconnect frame.
	lis, err := net.Listen("unix", filepath.Join(root, testAppSpace+DefaultWorkerID))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer lis.Close()
	var held []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			c.Close()
		}
	}()

	cfg := DefaultConfig()
	cfg.AppSpace = testAppSpace
	cfg.SocketRoot = root
	cfg.DisconnectTimeout = 100 * time.Millisecond
	client, err := Dial(context.Background(), WithConfig(cfg))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Disconnect(context.Background()); !errors.Is(err, ErrDisconnectTimeout) {
		t.Fatalf("err = %v, want ErrDisconnectTimeout", err)
	}
}

func TestClientConnectionLossFailsWaiters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	reg, err := NewBuilder().Handle("block", OperationFunc(func(ctx context.Context, _ []json.RawMessage) (any, error) {
		close(started)
		<-release
		return nil, nil
	})).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	root := socketRoot(t)
	w, err := NewWorker(reg, WithAppSpace(testAppSpace), WithSocketRoot(root))
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	srv, err := w.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve(context.Background())

	client := dialWorker(t, TransportSocket, root)
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Proxy().Get("block").Call(context.Background())
		errCh <- err
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("call never reached the worker")
	}
	srv.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("err = %v, want ErrClosed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("waiter not released after connection loss")
	}
	if client.Pending() != 0 {
		t.Fatalf("pending = %d", client.Pending())
	}
}

func TestResultDecodeEmpty(t *testing.T) {
	var r Result
	v := 5
	if err := r.Decode(&v); err != nil || v != 5 {
		t.Fatalf("Decode on empty result = %d, %v", v, err)
	}
}

func BenchmarkSocketCall(b *testing.B) {
	root := startWorker(b, TransportSocket, scenarioRegistry(b))
	client := dialWorker(b, TransportSocket, root)
	p := client.Proxy().Get("taskB")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Call(ctx, person{Name: "bench"}); err != nil {
			b.Fatal(err)
		}
	}
}
