// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"strings"
)

// Reserved proxy names. They never become path segments.
const (
	NameDisconnect = "disconnect"
	NameThen       = "then"
)

type proxyKind uint8

const (
	proxyUndefined proxyKind = iota
	proxyPath
	proxyDisconnect
)

// Proxy is an immutable node of the client's path builder. Each Get
// returns a new node one segment deeper; Call invokes the accumulated
// path on the worker.
//
//	r, err := client.Proxy().Get("nameSpace").Get("taskC").Call(ctx, "what is love?")
type Proxy struct {
	client *Client
	path   []string
	kind   proxyKind
}

// Get extends the path by name. Dotted names add one segment per part.
// "disconnect" yields a node whose Call disconnects the client; "then" yields
// an undefined node.
func (p Proxy) Get(name string) Proxy {
	if p.kind != proxyPath {
		return Proxy{}
	}
	switch name {
	case NameThen:
		return Proxy{}
	case NameDisconnect:
		return Proxy{client: p.client, kind: proxyDisconnect}
	}
	return p.Path(strings.Split(name, ".")...)
}

// Path extends the path by the given segments unchanged.
func (p Proxy) Path(names ...string) Proxy {
	if p.kind != proxyPath {
		return Proxy{}
	}
	path := make([]string, 0, len(p.path)+len(names))
	path = append(path, p.path...)
	path = append(path, names...)
	return Proxy{client: p.client, path: path, kind: proxyPath}
}

// Defined reports whether the node can be called.
func (p Proxy) Defined() bool {
	return p.kind != proxyUndefined && p.client != nil
}

// Segments returns a copy of the accumulated path.
func (p Proxy) Segments() []string {
	return append([]string(nil), p.path...)
}

func (p Proxy) String() string {
	switch p.kind {
	case proxyDisconnect:
		return NameDisconnect
	case proxyUndefined:
		return "<undefined>"
	}
	return strings.Join(p.path, ".")
}

// Call invokes the node.
func (p Proxy) Call(ctx context.Context, args ...any) (Result, error) {
	if !p.Defined() {
		return Result{}, ErrUndefined
	}
	if p.kind == proxyDisconnect {
		return Result{}, p.client.Disconnect(ctx)
	}
	return p.client.Call(ctx, p.path, args...)
}

// CallAs invokes p and decodes the result into T.
func CallAs[T any](ctx context.Context, p Proxy, args ...any) (T, error) {
	var out T
	res, err := p.Call(ctx, args...)
	if err != nil {
		return out, err
	}
	err = res.Decode(&out)
	return out, err
}
