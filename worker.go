// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/luxfi/ipc/audit"
)

// Worker dispatches execute requests to the operations of a Registry.
// It holds no per-request state and serves requests concurrently.
type Worker struct {
	registry *Registry
	opts     *options
	logger   zerolog.Logger
	audit    *audit.Logger
}

// NewWorker creates a worker serving reg.
func NewWorker(reg *Registry, opts ...Option) (*Worker, error) {
	if reg == nil {
		return nil, errors.New("ipc: nil registry")
	}
	o := newOptions(opts)
	cfg, err := o.cfg.resolve()
	if err != nil {
		return nil, err
	}
	o.cfg = cfg

	return &Worker{
		registry: reg,
		opts:     o,
		logger:   o.logger.With().Str("worker", cfg.WorkerID).Logger(),
		audit:    o.audit,
	}, nil
}

// Config returns the resolved connection configuration.
func (w *Worker) Config() Config {
	return w.opts.cfg
}

// Registry returns the served registry.
func (w *Worker) Registry() *Registry {
	return w.registry
}

// Listen binds the worker endpoint on the configured transport.
func (w *Worker) Listen() (Server, error) {
	srv, err := listen(w.opts, w)
	if err != nil {
		return nil, err
	}
	w.logger.Info().
		Str("transport", w.opts.cfg.Transport).
		Str("addr", srv.Addr()).
		Int("operations", w.registry.Len()).
		Msg("worker listening")
	return srv, nil
}

// Serve listens and serves until ctx is cancelled.
func (w *Worker) Serve(ctx context.Context) error {
	srv, err := w.Listen()
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Serve(ctx)
}

// ServeExecute handles one request: it audits the request, executes it,
// replies, then audits the response.
func (w *Worker) ServeExecute(ctx context.Context, req *ExecuteRequest, reply ResponseWriter) {
	w.record(audit.FlowRequest, req.ID, req)

	resp := w.Execute(ctx, req)
	if err := reply(resp); err != nil {
		w.logger.Warn().Err(err).Str("id", req.ID).Msg("failed to send response")
	}

	w.record(audit.FlowResponse, req.ID, resp)
}

func (w *Worker) record(flow audit.Flow, id string, data any) {
	if w.audit == nil {
		return
	}
	w.audit.Record(audit.SpaceExecute, flow, id, data)
}

// Execute resolves and invokes the requested operation. It always returns
// a response; handler errors and panics become error responses.
func (w *Worker) Execute(ctx context.Context, req *ExecuteRequest) (resp *ExecuteResponse) {
	name := req.Name()
	if name == "" {
		return errorResponse(req.ID, CodeProtocol, msgNameRequired)
	}

	op, ok := w.registry.Resolve(req.Path)
	if !ok {
		return errorResponse(req.ID, CodeNotFound, notFoundMessage(name))
	}

	w.logger.Debug().Str("id", req.ID).Str("path", name).Int("args", len(req.Args)).Msg("execute")

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("id", req.ID).Str("path", name).Interface("panic", r).Msg("operation panicked")
			resp = errorResponse(req.ID, CodeHandler, fmt.Sprint(r))
		}
	}()

	result, err := op.Invoke(ctx, req.Args)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "operation failed"
		}
		return errorResponse(req.ID, codeOf(err), msg)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, CodeHandler, fmt.Sprintf("encode result: %v", err))
	}
	return &ExecuteResponse{ID: req.ID, Result: raw}
}
