// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"
)

const (
	retryInitialDelay = 25 * time.Millisecond
	retryMaxDelay     = 500 * time.Millisecond
)

// connect dials the configured transport, bounded by ConnectTimeout.
func connect(ctx context.Context, o *options, deliver Deliver) (Conn, error) {
	t, ok := lookupTransport(o.cfg.Transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.cfg.Transport)
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
	defer cancel()

	conn, err := t.dial(dialCtx, o, deliver)
	if err != nil {
		if dialCtx.Err() != nil && ctx.Err() == nil && !errors.Is(err, ErrConnectTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrConnectTimeout, err)
		}
		return nil, err
	}
	return conn, nil
}

// listen creates the configured transport server.
func listen(o *options, h Handler) (Server, error) {
	t, ok := lookupTransport(o.cfg.Transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.cfg.Transport)
	}
	return t.listen(o, h)
}

// listenUnix binds the worker socket, replacing a stale socket file left by
// an earlier process.
func listenUnix(cfg Config) (net.Listener, error) {
	if err := os.MkdirAll(cfg.SocketRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create socket root: %w", err)
	}
	path := cfg.SocketPath()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return lis, nil
}

// dialUnix retries until the worker socket accepts or ctx ends. The worker
// may still be starting when the client dials.
func dialUnix(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectTimeout, path, err)
		case <-time.After(retryDelay(attempt)):
		}
	}
}

// retryDelay returns the wait before attempt N+1 (1-based).
func retryDelay(attempt int) time.Duration {
	delay := retryInitialDelay
	for i := 1; i < attempt && delay < retryMaxDelay; i++ {
		delay *= 2
	}
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
