// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ipc lets a worker process expose a tree of operations to local
// client processes over a named inter-process channel.
//
// # Transport Selection
//
// Every transport listens on a unix socket named after the application
// namespace and worker id (for example /tmp/ipc_myapp.worker):
//
//	socket  # framed message bus, default
//	grpc    # unary gRPC with a JSON codec
//	json    # JSON-RPC 2.0 over HTTP
//
// # Usage
//
// Worker usage:
//
//	reg, err := ipc.NewBuilder().
//	    Handle("taskB", ipc.Func(func(ctx context.Context, in Person) (Greeting, error) {
//	        return Greeting{Output: "name is: " + in.Name}, nil
//	    })).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w, err := ipc.NewWorker(reg, ipc.WithAudit(auditLogger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w.Serve(ctx)
//
// Client usage:
//
//	client, err := ipc.Dial(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(ctx)
//
//	res, err := client.Proxy().Get("nameSpace").Get("taskC").Call(ctx, "what is love?")
//
// # Errors
//
// A failing operation reaches the caller as a *RemoteError whose message is
// the worker's error text. Its Code tells protocol errors (empty or unknown
// path) from handler failures. Calls have no timeout unless
// Config.CallTimeout or the caller's context sets one; only connect and
// disconnect are bounded by default.
//
// # Architecture
//
// The package separates concerns:
//
//   - registry.go: immutable operation tree and path resolution
//   - method.go, loader.go: method wrapping and definition loading
//   - worker.go: request dispatch and audit hooks
//   - client.go, pending.go, proxy.go: correlation and call building
//   - transport.go, dial.go: transport registry and unix socket helpers
//   - socket.go, grpc.go, json.go: transport implementations
//
// Application code should only depend on Worker, Client and Proxy,
// making transport selection a deployment decision rather than a code change.
package ipc
