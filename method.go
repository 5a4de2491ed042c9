// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Func adapts a typed single-argument function into an Operation. The first
// call argument is decoded into A; a missing argument leaves A zero.
func Func[A, R any](fn func(ctx context.Context, arg A) (R, error)) Operation {
	return OperationFunc(func(ctx context.Context, args []json.RawMessage) (any, error) {
		var arg A
		if len(args) > 0 && len(args[0]) > 0 {
			if err := json.Unmarshal(args[0], &arg); err != nil {
				return nil, InvalidArgument(fmt.Errorf("decode argument: %w", err))
			}
		}
		res, err := fn(ctx, arg)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// Definition describes one entry of an operation tree. A definition with a
// Handler is a method; one without is a namespace holding Children.
type Definition struct {
	Description string
	Handler     Operation
	// Input validates the full argument list, as a JSON array.
	Input  *jsonschema.Schema
	Output *jsonschema.Schema

	Children map[string]Definition
}

// IsMethod reports whether d carries a handler.
func (d Definition) IsMethod() bool {
	return d.Handler != nil
}

// MethodWrapper turns a method definition into a callable operation.
type MethodWrapper interface {
	Wrap(def Definition) (Operation, error)
}

// SchemaWrapper validates arguments and results against the definition's
// JSON Schemas.
type SchemaWrapper struct{}

func (SchemaWrapper) Wrap(def Definition) (Operation, error) {
	if def.Handler == nil {
		return nil, fmt.Errorf("ipc: definition has no handler")
	}
	m := &method{handler: def.Handler}
	var err error
	if def.Input != nil {
		if m.input, err = def.Input.Resolve(nil); err != nil {
			return nil, fmt.Errorf("resolve input schema: %w", err)
		}
	}
	if def.Output != nil {
		if m.output, err = def.Output.Resolve(nil); err != nil {
			return nil, fmt.Errorf("resolve output schema: %w", err)
		}
	}
	if m.input == nil && m.output == nil {
		return def.Handler, nil
	}
	return m, nil
}

type method struct {
	handler Operation
	input   *jsonschema.Resolved
	output  *jsonschema.Resolved
}

func (m *method) Invoke(ctx context.Context, args []json.RawMessage) (any, error) {
	if m.input != nil {
		instance := make([]any, len(args))
		for i, raw := range args {
			if err := json.Unmarshal(raw, &instance[i]); err != nil {
				return nil, InvalidArgument(fmt.Errorf("decode argument %d: %w", i, err))
			}
		}
		if err := m.input.Validate(instance); err != nil {
			return nil, InvalidArgument(fmt.Errorf("invalid arguments: %w", err))
		}
	}

	res, err := m.handler.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}

	if m.output != nil {
		b, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		var instance any
		if err := json.Unmarshal(b, &instance); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		if err := m.output.Validate(instance); err != nil {
			return nil, fmt.Errorf("invalid result: %w", err)
		}
	}
	return res, nil
}
