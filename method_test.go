// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestFuncDecodesFirstArgument(t *testing.T) {
	op := Func(func(_ context.Context, p person) (string, error) { return "hi " + p.Name, nil })

	got, err := op.Invoke(context.Background(), []json.RawMessage{json.RawMessage(`{"name":"ann"}`)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "hi ann" {
		t.Fatalf("got %v", got)
	}

	got, err = op.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("Invoke without args: %v", err)
	}
	if got != "hi " {
		t.Fatalf("got %v", got)
	}
}

func TestFuncInvalidArgument(t *testing.T) {
	op := Func(func(_ context.Context, n int) (int, error) { return n, nil })
	_, err := op.Invoke(context.Background(), []json.RawMessage{json.RawMessage(`"x"`)})
	if codeOf(err) != CodeInvalidArgument {
		t.Fatalf("code = %s, want %s (err %v)", codeOf(err), CodeInvalidArgument, err)
	}
}

func TestFuncPropagatesHandlerError(t *testing.T) {
	want := errors.New("nope")
	op := Func(func(context.Context, int) (int, error) { return 0, want })
	_, err := op.Invoke(context.Background(), nil)
	if !errors.Is(err, want) || codeOf(err) != CodeHandler {
		t.Fatalf("err = %v", err)
	}
}

func stringListSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}
}

func TestSchemaWrapperValidatesArguments(t *testing.T) {
	op, err := SchemaWrapper{}.Wrap(Definition{
		Handler: Func(func(_ context.Context, s string) (string, error) { return strings.ToUpper(s), nil }),
		Input:   stringListSchema(),
		Output:  &jsonschema.Schema{Type: "string"},
	})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	got, err := op.Invoke(context.Background(), []json.RawMessage{json.RawMessage(`"abc"`)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "ABC" {
		t.Fatalf("got %v", got)
	}

	_, err = op.Invoke(context.Background(), []json.RawMessage{json.RawMessage(`12`)})
	if err == nil || codeOf(err) != CodeInvalidArgument {
		t.Fatalf("err = %v, want invalid argument", err)
	}
	if !strings.HasPrefix(err.Error(), "invalid arguments") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestSchemaWrapperValidatesResult(t *testing.T) {
	op, err := SchemaWrapper{}.Wrap(Definition{
		Handler: constOp(7),
		Output:  &jsonschema.Schema{Type: "string"},
	})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	_, err = op.Invoke(context.Background(), nil)
	if err == nil || codeOf(err) != CodeHandler {
		t.Fatalf("err = %v, want handler error", err)
	}
	if !strings.HasPrefix(err.Error(), "invalid result") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestSchemaWrapperPassThrough(t *testing.T) {
	h := constOp(1)
	op, err := SchemaWrapper{}.Wrap(Definition{Handler: h})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, ok := op.(*method); ok {
		t.Fatal("definition without schemas was wrapped")
	}
	if _, err := (SchemaWrapper{}).Wrap(Definition{}); err == nil {
		t.Fatal("expected error for definition without handler")
	}
}
