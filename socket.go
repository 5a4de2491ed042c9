// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	registerTransport(TransportSocket, dialSocket, listenSocket)
}

// frameType identifies socket bus frames
type frameType uint8

const (
	frameExecute    frameType = 0x01
	frameResponse   frameType = 0x02
	frameDisconnect frameType = 0x04
)

const socketWriteTimeout = 30 * time.Second

// frame is one named message on the bus. Requests travel on the "execute"
// channel, responses on the channel named by their correlation id.
type frame struct {
	typ  frameType
	name string
	body []byte
}

// writeFrame encodes: [4 len][1 type][2 nameLen][name][body]
func writeFrame(w io.Writer, f frame, max uint32) error {
	msgLen := 1 + 2 + len(f.name) + len(f.body)
	if len(f.name) > 0xFFFF || uint64(msgLen) > uint64(max) {
		return fmt.Errorf("%w: %d bytes", ErrInvalidFrame, msgLen)
	}

	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(f.typ)
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(f.name)))
	copy(buf[7:], f.name)
	copy(buf[7+len(f.name):], f.body)

	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader, max uint32) (frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}

	msgLen := binary.BigEndian.Uint32(header[:])
	if msgLen < 3 || msgLen > max {
		return frame{}, fmt.Errorf("%w: length %d", ErrInvalidFrame, msgLen)
	}

	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return frame{}, err
	}

	nameLen := int(binary.BigEndian.Uint16(msg[1:3]))
	if 3+nameLen > len(msg) {
		return frame{}, fmt.Errorf("%w: name length %d", ErrInvalidFrame, nameLen)
	}
	return frame{
		typ:  frameType(msg[0]),
		name: string(msg[3 : 3+nameLen]),
		body: msg[3+nameLen:],
	}, nil
}

// socketConn is the client end of the socket bus
type socketConn struct {
	conn     net.Conn
	codec    Codec
	max      uint32
	deliver  Deliver
	logger   zerolog.Logger
	writeMu  sync.Mutex
	closed   atomic.Bool
	readDone chan struct{}
}

func dialSocket(ctx context.Context, o *options, deliver Deliver) (Conn, error) {
	conn, err := dialUnix(ctx, o.cfg.SocketPath())
	if err != nil {
		return nil, err
	}

	sc := &socketConn{
		conn:     conn,
		codec:    o.codec,
		max:      o.cfg.MaxMessageBytes,
		deliver:  deliver,
		logger:   o.logger,
		readDone: make(chan struct{}),
	}
	go sc.readLoop()
	return sc, nil
}

func (c *socketConn) Send(ctx context.Context, req *ExecuteRequest) error {
	if c.closed.Load() {
		return ErrClosed
	}
	body, err := c.codec.Encode(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.write(ctx, frame{typ: frameExecute, name: EventExecute, body: body})
}

func (c *socketConn) write(ctx context.Context, f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}
	if err := writeFrame(c.conn, f, c.max); err != nil {
		return fmt.Errorf("socket write: %w", err)
	}
	return nil
}

func (c *socketConn) readLoop() {
	defer close(c.readDone)

	for {
		f, err := readFrame(c.conn, c.max)
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.closed.Load() {
				c.logger.Debug().Err(err).Msg("socket read loop stopped")
			}
			return
		}
		if f.typ != frameResponse {
			continue
		}

		var resp ExecuteResponse
		if err := c.codec.Decode(f.body, &resp); err != nil {
			c.logger.Warn().Err(err).Str("id", f.name).Msg("dropping undecodable response")
			continue
		}
		if resp.ID == "" {
			resp.ID = f.name
		}
		c.deliver(&resp)
	}
}

func (c *socketConn) Done() <-chan struct{} {
	return c.readDone
}

// Disconnect asks the worker to close the channel; the worker closing its
// end is the acknowledgement.
func (c *socketConn) Disconnect(ctx context.Context) error {
	if c.closed.Load() {
		return nil
	}
	if err := c.write(ctx, frame{typ: frameDisconnect}); err != nil {
		c.Close()
		return err
	}

	select {
	case <-c.readDone:
		return c.Close()
	case <-ctx.Done():
		c.Close()
		return ErrDisconnectTimeout
	}
}

func (c *socketConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// socketServer is the worker end of the socket bus
type socketServer struct {
	listener net.Listener
	handler  Handler
	codec    Codec
	max      uint32
	logger   zerolog.Logger
	conns    sync.Map
	closed   atomic.Bool
}

func listenSocket(o *options, h Handler) (Server, error) {
	lis, err := listenUnix(o.cfg)
	if err != nil {
		return nil, err
	}
	return &socketServer{
		listener: lis,
		handler:  h,
		codec:    o.codec,
		max:      o.cfg.MaxMessageBytes,
		logger:   o.logger,
	}, nil
}

func (s *socketServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *socketServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	var writeMu sync.Mutex
	reply := func(resp *ExecuteResponse) error {
		body, err := s.codec.Encode(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		return writeFrame(conn, frame{typ: frameResponse, name: resp.ID, body: body}, s.max)
	}

	for {
		f, err := readFrame(conn, s.max)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.logger.Debug().Err(err).Msg("connection read stopped")
			}
			return
		}

		switch f.typ {
		case frameExecute:
			var req ExecuteRequest
			if err := s.codec.Decode(f.body, &req); err != nil {
				s.logger.Warn().Err(err).Msg("dropping undecodable request")
				continue
			}
			go s.handler.ServeExecute(ctx, &req, reply)

		case frameDisconnect:
			return
		}
	}
}

// Close closes the server
func (s *socketServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ interface{}) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *socketServer) Addr() string {
	return s.listener.Addr().String()
}
