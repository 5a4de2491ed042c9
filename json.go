// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	gorillarpc "github.com/gorilla/rpc/v2"
	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"
)

const (
	jsonRPCPath   = "/rpc"
	jsonRPCMethod = "Worker.Execute"
	jsonRPCURL    = "http://ipc" + jsonRPCPath
)

func init() {
	registerTransport(TransportJSON, dialJSON, listenJSON)
}

// jsonService exposes a Handler as the JSON-RPC method Worker.Execute.
type jsonService struct {
	handler Handler
}

func (s *jsonService) Execute(r *http.Request, args *ExecuteRequest, reply *ExecuteResponse) error {
	*reply = *serveUnary(r.Context(), s.handler, args)
	return nil
}

type jsonServer struct {
	http *http.Server
	lis  net.Listener
}

func listenJSON(o *options, h Handler) (Server, error) {
	rpcServer := gorillarpc.NewServer()
	rpcServer.RegisterCodec(rpc.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(&jsonService{handler: h}, "Worker"); err != nil {
		return nil, fmt.Errorf("register json-rpc service: %w", err)
	}

	lis, err := listenUnix(o.cfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(jsonRPCPath, rpcServer)
	return &jsonServer{
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		lis: lis,
	}, nil
}

func (s *jsonServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.http.Shutdown(context.Background()) })
	defer stop()

	if err := s.http.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *jsonServer) Close() error {
	return s.http.Close()
}

func (s *jsonServer) Addr() string {
	return s.lis.Addr().String()
}

// newHTTPClient creates an HTTP client whose connections all go to the
// worker socket.
func newHTTPClient(socketPath string) *http.Client {
	var d net.Dialer
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// sendJSONRequest performs one JSON-RPC call. It never retries.
func sendJSONRequest(ctx context.Context, client *http.Client, method string, params, reply interface{}) error {
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, jsonRPCURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	// Return an error for any non successful status code
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received status code: %d", resp.StatusCode)
	}
	if err := rpc.DecodeClientResponse(resp.Body, reply); err != nil {
		return fmt.Errorf("failed to decode client response: %w", err)
	}
	return nil
}

// jsonConn issues one HTTP request per call over the worker socket.
type jsonConn struct {
	client  *http.Client
	deliver Deliver
	logger  zerolog.Logger
	done    chan struct{}
	once    sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
}

func dialJSON(ctx context.Context, o *options, deliver Deliver) (Conn, error) {
	// Probe reachability; HTTP dials lazily per request.
	probe, err := dialUnix(ctx, o.cfg.SocketPath())
	if err != nil {
		return nil, err
	}
	probe.Close()

	callCtx, cancel := context.WithCancel(context.Background())
	return &jsonConn{
		client:  newHTTPClient(o.cfg.SocketPath()),
		deliver: deliver,
		logger:  o.logger,
		done:    make(chan struct{}),
		ctx:     callCtx,
		cancel:  cancel,
	}, nil
}

func (c *jsonConn) Send(_ context.Context, req *ExecuteRequest) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	go func() {
		resp := new(ExecuteResponse)
		if err := sendJSONRequest(c.ctx, c.client, jsonRPCMethod, req, resp); err != nil {
			c.logger.Debug().Err(err).Str("id", req.ID).Msg("json-rpc call failed")
			resp = errorResponse(req.ID, CodeTransport, err.Error())
		}
		if resp.ID == "" {
			resp.ID = req.ID
		}
		c.deliver(resp)
	}()
	return nil
}

func (c *jsonConn) Done() <-chan struct{} {
	return c.done
}

func (c *jsonConn) Disconnect(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Close() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ErrDisconnectTimeout
	}
}

func (c *jsonConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.client.CloseIdleConnections()
	})
	return nil
}
