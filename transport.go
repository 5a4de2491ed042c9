// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportSocket = "socket" // Framed unix socket bus, default
	TransportGRPC   = "grpc"   // gRPC over a unix socket
	TransportJSON   = "json"   // JSON-RPC 2.0 over HTTP on a unix socket
)

// DefaultTransport is the default transport type (socket)
const DefaultTransport = TransportSocket

// Handler serves execute requests read by a Server. It must call reply
// exactly once per request.
type Handler interface {
	ServeExecute(ctx context.Context, req *ExecuteRequest, reply ResponseWriter)
}

// ResponseWriter sends the response of one request back to its caller.
type ResponseWriter func(resp *ExecuteResponse) error

// Deliver receives every response a Conn reads, in arrival order.
type Deliver func(resp *ExecuteResponse)

// Conn is the client side of one transport channel to a worker.
type Conn interface {
	// Send writes one request; its response arrives through Deliver.
	Send(ctx context.Context, req *ExecuteRequest) error

	// Done is closed once the channel can no longer deliver responses.
	Done() <-chan struct{}

	// Disconnect tears the channel down and waits for the worker to
	// acknowledge, until ctx ends.
	Disconnect(ctx context.Context) error

	// Close drops the channel without waiting.
	Close() error
}

// Server is the worker side of a transport.
type Server interface {
	// Serve blocks until ctx is cancelled or the server is closed.
	Serve(ctx context.Context) error

	Close() error

	// Addr returns the server's listen address
	Addr() string
}

type dialFunc func(ctx context.Context, o *options, deliver Deliver) (Conn, error)
type listenFunc func(o *options, h Handler) (Server, error)

type transportEntry struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportEntry{}
)

// registerTransport registers a transport under name
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transportEntry{dial, listen}
}

func lookupTransport(name string) (transportEntry, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	return t, ok
}

// AvailableTransports returns the registered transport types, sorted
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
