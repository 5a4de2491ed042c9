// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultWorkerID = "worker"
	DefaultClientID = "client"

	defaultMaxMessageBytes = 64 * 1024 * 1024
)

// Config is the connection configuration shared by workers and clients.
type Config struct {
	// AppSpace prefixes endpoint names. Empty means derive it from the
	// nearest go.mod (see AppName).
	AppSpace   string
	WorkerID   string
	ClientID   string
	SocketRoot string
	Transport  string

	ConnectTimeout    time.Duration
	DisconnectTimeout time.Duration
	// CallTimeout bounds the wait for a response. Zero waits until the
	// response arrives or the connection closes.
	CallTimeout time.Duration

	MaxMessageBytes uint32
}

func DefaultConfig() Config {
	return Config{
		WorkerID:          DefaultWorkerID,
		ClientID:          DefaultClientID,
		SocketRoot:        os.TempDir(),
		Transport:         DefaultTransport,
		ConnectTimeout:    5 * time.Second,
		DisconnectTimeout: 3 * time.Second,
		MaxMessageBytes:   defaultMaxMessageBytes,
	}
}

// SocketPath returns the unix socket path of the worker endpoint.
func (c Config) SocketPath() string {
	return filepath.Join(c.SocketRoot, c.AppSpace+c.WorkerID)
}

// resolve fills the derived and defaulted fields.
func (c Config) resolve() (Config, error) {
	def := DefaultConfig()
	if c.AppSpace == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		c.AppSpace = AppName(wd)
	}
	if c.WorkerID == "" {
		c.WorkerID = def.WorkerID
	}
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}
	if c.SocketRoot == "" {
		c.SocketRoot = def.SocketRoot
	}
	if c.Transport == "" {
		c.Transport = def.Transport
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.DisconnectTimeout <= 0 {
		c.DisconnectTimeout = def.DisconnectTimeout
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = def.MaxMessageBytes
	}
	if c.CallTimeout < 0 {
		return Config{}, fmt.Errorf("ipc: negative call timeout %s", c.CallTimeout)
	}
	return c, nil
}

type fileConfig struct {
	AppSpace          string `toml:"app_space"`
	WorkerID          string `toml:"worker_id"`
	ClientID          string `toml:"client_id"`
	SocketRoot        string `toml:"socket_root"`
	Transport         string `toml:"transport"`
	ConnectTimeout    string `toml:"connect_timeout"`
	DisconnectTimeout string `toml:"disconnect_timeout"`
	CallTimeout       string `toml:"call_timeout"`
	MaxMessageBytes   int64  `toml:"max_message_bytes"`
}

// LoadConfig overlays the keys defined in a TOML file onto DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load ipc config: %w", err)
	}

	if meta.IsDefined("app_space") {
		cfg.AppSpace = strings.TrimSpace(raw.AppSpace)
	}
	if meta.IsDefined("worker_id") {
		if id := strings.TrimSpace(raw.WorkerID); id != "" {
			cfg.WorkerID = id
		}
	}
	if meta.IsDefined("client_id") {
		if id := strings.TrimSpace(raw.ClientID); id != "" {
			cfg.ClientID = id
		}
	}
	if meta.IsDefined("socket_root") {
		cfg.SocketRoot = strings.TrimSpace(raw.SocketRoot)
	}
	if meta.IsDefined("transport") {
		name := strings.ToLower(strings.TrimSpace(raw.Transport))
		if !HasTransport(name) {
			return Config{}, fmt.Errorf("load ipc config: unknown transport %q", raw.Transport)
		}
		cfg.Transport = name
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"disconnect_timeout", raw.DisconnectTimeout, &cfg.DisconnectTimeout},
		{"call_timeout", raw.CallTimeout, &cfg.CallTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_message_bytes") {
		if raw.MaxMessageBytes <= 0 || raw.MaxMessageBytes > defaultMaxMessageBytes {
			return Config{}, fmt.Errorf("max_message_bytes out of range: %d", raw.MaxMessageBytes)
		}
		cfg.MaxMessageBytes = uint32(raw.MaxMessageBytes)
	}
	return cfg, nil
}
