// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/luxfi/ipc/audit"
)

// Option configures workers and clients
type Option func(*options)

type options struct {
	cfg    Config
	codec  Codec
	logger zerolog.Logger
	audit  *audit.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		cfg:    DefaultConfig(),
		codec:  defaultCodec,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithConfig replaces the whole connection configuration. Options applied
// after it still override single fields.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithAppSpace sets the application namespace
func WithAppSpace(space string) Option {
	return func(o *options) { o.cfg.AppSpace = space }
}

// WithWorkerID sets the worker endpoint id
func WithWorkerID(id string) Option {
	return func(o *options) { o.cfg.WorkerID = id }
}

// WithClientID sets the client id
func WithClientID(id string) Option {
	return func(o *options) { o.cfg.ClientID = id }
}

// WithSocketRoot sets the directory holding endpoint sockets
func WithSocketRoot(dir string) Option {
	return func(o *options) { o.cfg.SocketRoot = dir }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) Option {
	return func(o *options) { o.cfg.Transport = t }
}

// WithCallTimeout bounds the wait for each call's response
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.CallTimeout = d }
}

// WithCodec sets a custom codec for socket frame bodies
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAudit records every request and response through l. Workers only.
func WithAudit(l *audit.Logger) Option {
	return func(o *options) { o.audit = l }
}
