// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

const grpcExecuteMethod = "/ipc.Worker/Execute"

func init() {
	encoding.RegisterCodec(grpcCodec{})
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// grpcCodec carries ExecuteRequest/ExecuteResponse as JSON instead of
// protobuf.
type grpcCodec struct{}

func (grpcCodec) Marshal(v any) ([]byte, error)      { return defaultCodec.Encode(v) }
func (grpcCodec) Unmarshal(data []byte, v any) error { return defaultCodec.Decode(data, v) }
func (grpcCodec) Name() string                       { return JSONCodec{}.Name() }

// executeServer is the service implementation type checked by
// grpc.RegisterService.
type executeServer interface {
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error)
}

var workerServiceDesc = grpc.ServiceDesc{
	ServiceName: "ipc.Worker",
	HandlerType: (*executeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ipc/worker",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExecuteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(executeServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcExecuteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(executeServer).Execute(ctx, req.(*ExecuteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcService adapts a Handler to the unary Execute method.
type grpcService struct {
	handler Handler
}

func (s *grpcService) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	return serveUnary(ctx, s.handler, req), nil
}

// serveUnary runs a Handler for transports that answer each request on
// the call that carried it.
func serveUnary(ctx context.Context, h Handler, req *ExecuteRequest) *ExecuteResponse {
	var resp *ExecuteResponse
	h.ServeExecute(ctx, req, func(r *ExecuteResponse) error {
		resp = r
		return nil
	})
	if resp == nil {
		resp = errorResponse(req.ID, CodeProtocol, "no response")
	}
	return resp
}

type grpcServer struct {
	server *grpc.Server
	lis    net.Listener
}

func listenGRPC(o *options, h Handler) (Server, error) {
	lis, err := listenUnix(o.cfg)
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer(grpc.MaxRecvMsgSize(int(o.cfg.MaxMessageBytes)))
	srv.RegisterService(&workerServiceDesc, &grpcService{handler: h})
	return &grpcServer{server: srv, lis: lis}, nil
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.server.GracefulStop)
	defer stop()

	if err := s.server.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *grpcServer) Close() error {
	s.server.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.lis.Addr().String()
}

// grpcConn sends each request as one unary call and delivers its answer.
type grpcConn struct {
	conn    *grpc.ClientConn
	deliver Deliver
	logger  zerolog.Logger
	done    chan struct{}
	once    sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
}

func dialGRPC(ctx context.Context, o *options, deliver Deliver) (Conn, error) {
	conn, err := grpc.NewClient("unix://"+o.cfg.SocketPath(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(JSONCodec{}.Name()),
			grpc.MaxCallRecvMsgSize(int(o.cfg.MaxMessageBytes)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	if err := waitReady(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: grpc: %w", ErrConnectTimeout, err)
	}

	callCtx, cancel := context.WithCancel(context.Background())
	return &grpcConn{
		conn:    conn,
		deliver: deliver,
		logger:  o.logger,
		done:    make(chan struct{}),
		ctx:     callCtx,
		cancel:  cancel,
	}, nil
}

// waitReady blocks until conn is ready or ctx ends.
func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if state == connectivity.TransientFailure || state == connectivity.Idle {
			conn.Connect()
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

func (c *grpcConn) Send(_ context.Context, req *ExecuteRequest) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	go func() {
		resp := new(ExecuteResponse)
		if err := c.conn.Invoke(c.ctx, grpcExecuteMethod, req, resp); err != nil {
			c.logger.Debug().Err(err).Str("id", req.ID).Msg("grpc call failed")
			resp = errorResponse(req.ID, CodeTransport, err.Error())
		}
		if resp.ID == "" {
			resp.ID = req.ID
		}
		c.deliver(resp)
	}()
	return nil
}

func (c *grpcConn) Done() <-chan struct{} {
	return c.done
}

func (c *grpcConn) Disconnect(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Close() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ErrDisconnectTimeout
	}
}

func (c *grpcConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
