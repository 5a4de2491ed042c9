// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventExecute is the channel name a worker listens on for calls.
const EventExecute = "execute"

// ExecuteRequest asks the worker to invoke the operation at Path.
type ExecuteRequest struct {
	ID   string            `json:"id"`
	Path []string          `json:"path"`
	Args []json.RawMessage `json:"args"`
}

// Name returns the dot-joined operation path.
func (r *ExecuteRequest) Name() string {
	return strings.Join(r.Path, ".")
}

// ExecuteResponse is the single answer to an ExecuteRequest. Error and
// Result are mutually exclusive.
type ExecuteResponse struct {
	ID     string          `json:"id"`
	Error  string          `json:"error,omitempty"`
	Code   ErrorCode       `json:"code,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Failed reports whether the response carries an error.
func (r *ExecuteResponse) Failed() bool {
	return r.Error != ""
}

// Err converts a failed response into a *RemoteError, or nil.
func (r *ExecuteResponse) Err() error {
	if !r.Failed() {
		return nil
	}
	return &RemoteError{Code: r.Code, Message: r.Error}
}

func errorResponse(id string, code ErrorCode, msg string) *ExecuteResponse {
	return &ExecuteResponse{ID: id, Error: msg, Code: code}
}

// encodeArgs marshals call arguments into their wire form. Arguments are
// always JSON, whatever codec frames the envelope.
func encodeArgs(args []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(args))
	for i, arg := range args {
		if raw, ok := arg.(json.RawMessage); ok {
			out[i] = raw
			continue
		}
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}
