// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"encoding/json"
)

// Codec encodes/decodes message bodies
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name identifies the codec to transports that negotiate by name (gRPC
// content-subtype).
func (JSONCodec) Name() string {
	return "json"
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}
