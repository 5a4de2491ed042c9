// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptySegment = errors.New("ipc: empty path segment")
	ErrPathConflict = errors.New("ipc: path conflicts with existing entry")
)

// Operation is a registered callable. Args are the raw JSON call arguments
// in order; the returned value is encoded as the call result.
type Operation interface {
	Invoke(ctx context.Context, args []json.RawMessage) (any, error)
}

// OperationFunc is a function adapter for Operation
type OperationFunc func(ctx context.Context, args []json.RawMessage) (any, error)

func (f OperationFunc) Invoke(ctx context.Context, args []json.RawMessage) (any, error) {
	return f(ctx, args)
}

const rootNode = 0

// node is one arena slot. A node with op set is a leaf, otherwise a
// namespace.
type node struct {
	children map[string]int
	op       Operation
}

// Registry is an immutable tree of operations addressed by path.
type Registry struct {
	nodes []node
}

// Resolve walks path through the registry. It reports false when a segment
// is missing or the final node is a namespace rather than an operation.
func (r *Registry) Resolve(path []string) (Operation, bool) {
	if r == nil || len(r.nodes) == 0 || len(path) == 0 {
		return nil, false
	}
	idx := rootNode
	for _, seg := range path {
		n := r.nodes[idx]
		if n.op != nil {
			return nil, false
		}
		next, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		idx = next
	}
	op := r.nodes[idx].op
	return op, op != nil
}

// Paths returns the dot-joined path of every operation, sorted.
func (r *Registry) Paths() []string {
	if r == nil || len(r.nodes) == 0 {
		return nil
	}
	var out []string
	var walk func(idx int, prefix []string)
	walk = func(idx int, prefix []string) {
		n := r.nodes[idx]
		if n.op != nil {
			out = append(out, strings.Join(prefix, "."))
			return
		}
		for name, child := range n.children {
			walk(child, append(append([]string(nil), prefix...), name))
		}
	}
	walk(rootNode, nil)
	sort.Strings(out)
	return out
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, n := range r.nodes {
		if n.op != nil {
			count++
		}
	}
	return count
}

// Builder assembles a Registry. It is not safe for concurrent use.
type Builder struct {
	nodes []node
	err   error
}

func NewBuilder() *Builder {
	return &Builder{nodes: []node{{children: map[string]int{}}}}
}

// Handle registers op at a dotted path such as "nameSpace.taskC".
func (b *Builder) Handle(path string, op Operation) *Builder {
	return b.HandlePath(strings.Split(path, "."), op)
}

// HandleFunc registers a function at a dotted path.
func (b *Builder) HandleFunc(path string, fn func(ctx context.Context, args []json.RawMessage) (any, error)) *Builder {
	return b.Handle(path, OperationFunc(fn))
}

// HandlePath registers op at the given segments. The first error is kept
// and returned by Build.
func (b *Builder) HandlePath(path []string, op Operation) *Builder {
	if b.err != nil {
		return b
	}
	if op == nil {
		b.err = fmt.Errorf("ipc: nil operation at %q", strings.Join(path, "."))
		return b
	}
	if len(path) == 0 {
		b.err = ErrNoPath
		return b
	}
	idx := rootNode
	for i, seg := range path {
		if seg == "" {
			b.err = fmt.Errorf("%w in %q", ErrEmptySegment, strings.Join(path, "."))
			return b
		}
		if b.nodes[idx].op != nil {
			b.err = fmt.Errorf("%w: %q is an operation", ErrPathConflict, strings.Join(path[:i], "."))
			return b
		}
		next, ok := b.nodes[idx].children[seg]
		if !ok {
			b.nodes = append(b.nodes, node{children: map[string]int{}})
			next = len(b.nodes) - 1
			b.nodes[idx].children[seg] = next
		}
		idx = next
	}
	if b.nodes[idx].op != nil || len(b.nodes[idx].children) > 0 {
		b.err = fmt.Errorf("%w: %q", ErrPathConflict, strings.Join(path, "."))
		return b
	}
	b.nodes[idx].op = op
	b.nodes[idx].children = nil
	return b
}

// Build freezes the tree. The builder must not be used afterwards.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	nodes := b.nodes
	b.nodes = nil
	return &Registry{nodes: nodes}, nil
}
