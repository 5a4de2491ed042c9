// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrClosed            = errors.New("ipc: connection closed")
	ErrConnectTimeout    = errors.New("ipc time out")
	ErrDisconnectTimeout = errors.New("ipc disconnect time-out")
	ErrUndefined         = errors.New("ipc: undefined proxy node")
	ErrNoPath            = errors.New("ipc: empty operation path")
	ErrInvalidFrame      = errors.New("ipc: invalid frame")
)

// ErrorCode classifies a failed call on the wire. The message stays the
// primary, human readable form.
type ErrorCode string

const (
	CodeProtocol        ErrorCode = "protocol"
	CodeNotFound        ErrorCode = "not_found"
	CodeHandler         ErrorCode = "handler"
	CodeInvalidArgument ErrorCode = "invalid_argument"
	CodeTransport       ErrorCode = "transport"
)

// Messages produced by the dispatcher.
const (
	msgNameRequired = "worker name is required"
	msgNotFound     = `worker "%s" not found`
)

func notFoundMessage(name string) string {
	return fmt.Sprintf(msgNotFound, name)
}

// RemoteError is a failure reported by the worker. Error returns the
// worker's message verbatim.
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// IsCode reports whether err is a RemoteError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Code == code
}

// InvalidArgument marks err as an argument validation failure. The
// dispatcher reports it with CodeInvalidArgument instead of CodeHandler.
func InvalidArgument(err error) error {
	if err == nil {
		return nil
	}
	return &invalidArgumentError{err: err}
}

type invalidArgumentError struct {
	err error
}

func (e *invalidArgumentError) Error() string { return e.err.Error() }
func (e *invalidArgumentError) Unwrap() error { return e.err }

func codeOf(err error) ErrorCode {
	var ia *invalidArgumentError
	if errors.As(err, &ia) {
		return CodeInvalidArgument
	}
	return CodeHandler
}
