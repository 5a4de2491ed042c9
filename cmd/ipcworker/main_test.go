// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/luxfi/ipc"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{`{"name":"bob"}`, `12`, `hello world`, `"quoted"`})
	want := []any{
		json.RawMessage(`{"name":"bob"}`),
		json.RawMessage(`12`),
		"hello world",
		json.RawMessage(`"quoted"`),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parseArgs (-want +got):\n%s", diff)
	}
}

func TestListBuiltins(t *testing.T) {
	out, err := runRoot(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"echo", "fail", "sum", "sys.hostname", "sys.now", "upper"}
	if diff := cmp.Diff(want, strings.Fields(out)); diff != "" {
		t.Fatalf("list (-want +got):\n%s", diff)
	}
}

func TestListDefinitions(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "text"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "text", "shout.toml"), []byte(`handler = "upper"`), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runRoot(t, "list", "--defs", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "text.shout" {
		t.Fatalf("list = %q", out)
	}
}

func TestGlobalFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.toml")
	if err := os.WriteFile(path, []byte("worker_id = \"from-file\"\ntransport = \"json\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	g := &globalFlags{configPath: path, transport: "grpc", appSpace: "ipc_cli."}
	cfg, err := g.config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.WorkerID != "from-file" || cfg.Transport != "grpc" || cfg.AppSpace != "ipc_cli." {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestCallAgainstWorker(t *testing.T) {
	root, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)

	reg, err := builtinRegistry()
	if err != nil {
		t.Fatalf("builtinRegistry: %v", err)
	}
	w, err := ipc.NewWorker(reg, ipc.WithAppSpace("ipc_cli."), ipc.WithSocketRoot(root))
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	srv, err := w.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	base := []string{"call", "--app-space", "ipc_cli.", "--socket-root", root, "--timeout", (5 * time.Second).String()}

	out, err := runRoot(t, append(base, "sum", "1", "2", "3.5")...)
	if err != nil {
		t.Fatalf("call sum: %v", err)
	}
	if strings.TrimSpace(out) != "6.5" {
		t.Fatalf("sum = %q", out)
	}

	out, err = runRoot(t, append(base, "upper", "shout")...)
	if err != nil {
		t.Fatalf("call upper: %v", err)
	}
	if strings.TrimSpace(out) != `"SHOUT"` {
		t.Fatalf("upper = %q", out)
	}

	_, err = runRoot(t, append(base, "sys.missing")...)
	if err == nil || err.Error() != `worker "sys.missing" not found` {
		t.Fatalf("missing err = %v", err)
	}

	_, err = runRoot(t, append(base, "sum", "x")...)
	if !ipc.IsCode(err, ipc.CodeInvalidArgument) {
		t.Fatalf("sum x err = %v", err)
	}
}
