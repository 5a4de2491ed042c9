// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// Client multiplexes calls to one worker over a single transport channel.
// It is safe for concurrent use.
type Client struct {
	opts    *options
	conn    Conn
	pending *pendingTable
	logger  zerolog.Logger
}

// Dial connects to the configured worker endpoint. It fails with
// ErrConnectTimeout when the endpoint is not reachable within
// Config.ConnectTimeout.
func Dial(ctx context.Context, opts ...Option) (*Client, error) {
	o := newOptions(opts)
	cfg, err := o.cfg.resolve()
	if err != nil {
		return nil, err
	}
	o.cfg = cfg

	c := &Client{
		opts:    o,
		pending: newPendingTable(),
		logger:  o.logger.With().Str("client", cfg.ClientID).Logger(),
	}
	conn, err := connect(ctx, o, c.deliver)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	c.logger.Debug().
		Str("transport", cfg.Transport).
		Str("endpoint", cfg.SocketPath()).
		Msg("connected to worker")
	return c, nil
}

// Config returns the resolved connection configuration.
func (c *Client) Config() Config {
	return c.opts.cfg
}

func (c *Client) deliver(resp *ExecuteResponse) {
	if !c.pending.settle(resp) {
		c.logger.Debug().Str("id", resp.ID).Msg("dropping response without waiter")
	}
}

// Call invokes the operation at path with args and waits for its response.
// A failure reported by the worker is returned as a *RemoteError.
func (c *Client) Call(ctx context.Context, path []string, args ...any) (Result, error) {
	raw, err := encodeArgs(args)
	if err != nil {
		return Result{}, err
	}

	id := newID()
	ch := c.pending.register(id)
	req := &ExecuteRequest{
		ID:   id,
		Path: append([]string{}, path...),
		Args: raw,
	}
	if err := c.conn.Send(ctx, req); err != nil {
		c.pending.forget(id)
		return Result{}, fmt.Errorf("send %q: %w", req.Name(), err)
	}
	return c.wait(ctx, id, ch)
}

// wait blocks for the response of id. Giving up only stops waiting; the
// worker still runs the call and its late response is dropped.
func (c *Client) wait(ctx context.Context, id string, ch <-chan *ExecuteResponse) (Result, error) {
	if d := c.opts.cfg.CallTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	select {
	case resp := <-ch:
		return resultOf(resp)
	case <-ctx.Done():
		c.pending.forget(id)
		return Result{}, ctx.Err()
	case <-c.conn.Done():
		select {
		case resp := <-ch:
			return resultOf(resp)
		default:
		}
		c.pending.forget(id)
		return Result{}, ErrClosed
	}
}

// Proxy returns the root of the client's path builder.
func (c *Client) Proxy() Proxy {
	return Proxy{client: c, kind: proxyPath}
}

// Pending returns the number of calls waiting for a response.
func (c *Client) Pending() int {
	return c.pending.len()
}

// Disconnect closes the channel and waits for the worker to acknowledge,
// failing with ErrDisconnectTimeout after Config.DisconnectTimeout.
func (c *Client) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.cfg.DisconnectTimeout)
	defer cancel()
	if err := c.conn.Disconnect(ctx); err != nil {
		return err
	}
	c.logger.Debug().Msg("disconnected from worker")
	return nil
}

// Close drops the channel without waiting for acknowledgement.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Result is the raw JSON value returned by an operation.
type Result struct {
	raw json.RawMessage
}

func resultOf(resp *ExecuteResponse) (Result, error) {
	if err := resp.Err(); err != nil {
		return Result{}, err
	}
	return Result{raw: resp.Result}, nil
}

// Raw returns the encoded result.
func (r Result) Raw() json.RawMessage {
	return r.raw
}

// Decode unmarshals the result into v. An absent result leaves v untouched.
func (r Result) Decode(v any) error {
	if len(r.raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// Value decodes the result into generic JSON values.
func (r Result) Value() (any, error) {
	var v any
	err := r.Decode(&v)
	return v, err
}
