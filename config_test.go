// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.ConnectTimeout)
	}
	if cfg.DisconnectTimeout != 3*time.Second {
		t.Errorf("DisconnectTimeout = %s", cfg.DisconnectTimeout)
	}
	if cfg.CallTimeout != 0 {
		t.Errorf("CallTimeout = %s, want none", cfg.CallTimeout)
	}
	if cfg.Transport != TransportSocket {
		t.Errorf("Transport = %s", cfg.Transport)
	}
}

func TestSocketPath(t *testing.T) {
	cfg := Config{SocketRoot: "/run/ipc", AppSpace: "ipc_app.", WorkerID: "worker"}
	if got := cfg.SocketPath(); got != "/run/ipc/ipc_app.worker" {
		t.Fatalf("SocketPath = %s", got)
	}
}

func TestResolveFillsDefaults(t *testing.T) {
	cfg, err := Config{AppSpace: "x."}.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := DefaultConfig()
	want.AppSpace = "x."
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("resolve (-want +got):\n%s", diff)
	}

	if _, err := (Config{AppSpace: "x.", CallTimeout: -time.Second}).resolve(); err == nil {
		t.Fatal("expected error for negative call timeout")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.toml")
	writeFile(t, path, `
app_space = "ipc_demo."
worker_id = "w1"
transport = "GRPC"
connect_timeout = "250ms"
call_timeout = "2s"
max_message_bytes = 1024
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := DefaultConfig()
	want.AppSpace = "ipc_demo."
	want.WorkerID = "w1"
	want.Transport = TransportGRPC
	want.ConnectTimeout = 250 * time.Millisecond
	want.CallTimeout = 2 * time.Second
	want.MaxMessageBytes = 1024
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("LoadConfig (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"unknown transport": `transport = "smoke"`,
		"bad duration":      `connect_timeout = "soon"`,
		"too large":         `max_message_bytes = 999999999999`,
		"not toml":          `=`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ipc.toml")
			writeFile(t, path, content)
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAppName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/tools/myapp\n\ngo 1.22\n")
	nested := filepath.Join(dir, "internal", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	for _, d := range []string{dir, nested} {
		if got := AppName(d); got != "ipc_myapp." {
			t.Errorf("AppName(%s) = %q, want ipc_myapp.", d, got)
		}
	}
}

func TestAppNameWithoutModule(t *testing.T) {
	dir := t.TempDir()
	if _, found := findModFile(dir); found {
		t.Skip("a go.mod exists above the temp dir")
	}
	if got := AppName(dir); got != "ipc_unknown." {
		t.Fatalf("AppName = %q, want ipc_unknown.", got)
	}
}

func TestAvailableTransports(t *testing.T) {
	want := []string{TransportGRPC, TransportJSON, TransportSocket}
	if diff := cmp.Diff(want, AvailableTransports()); diff != "" {
		t.Fatalf("AvailableTransports (-want +got):\n%s", diff)
	}
	for _, name := range want {
		if !HasTransport(name) {
			t.Errorf("HasTransport(%s) = false", name)
		}
	}
	if HasTransport(strings.ToUpper(TransportGRPC)) {
		t.Error("transport names are case sensitive")
	}
}
