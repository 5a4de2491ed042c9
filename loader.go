// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/jsonschema-go/jsonschema"
)

// Load builds a Registry from a definition tree. Methods are wrapped with
// wrapper (SchemaWrapper when nil); definitions without a handler are
// namespaces and are recursed into.
func Load(defs map[string]Definition, wrapper MethodWrapper) (*Registry, error) {
	if wrapper == nil {
		wrapper = SchemaWrapper{}
	}
	b := NewBuilder()
	if err := loadInto(b, nil, defs, wrapper); err != nil {
		return nil, err
	}
	return b.Build()
}

func loadInto(b *Builder, prefix []string, defs map[string]Definition, wrapper MethodWrapper) error {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		path := append(append([]string(nil), prefix...), name)
		if !def.IsMethod() {
			if err := loadInto(b, path, def.Children, wrapper); err != nil {
				return err
			}
			continue
		}
		op, err := wrapper.Wrap(def)
		if err != nil {
			return fmt.Errorf("wrap %q: %w", strings.Join(path, "."), err)
		}
		b.HandlePath(path, op)
	}
	return nil
}

// fileDefinition is the on-disk form of one method definition.
type fileDefinition struct {
	Handler     string `toml:"handler"`
	Description string `toml:"description"`
	Input       string `toml:"input"`
	Output      string `toml:"output"`
}

// LoadDir builds a Registry from a directory of TOML method definitions.
// The relative path of each file, without its extension, is the method
// path; directories are namespaces. Each file names its implementation in
// handlers.
func LoadDir(dir string, handlers map[string]Operation, wrapper MethodWrapper) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("load dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load dir: %s is not a directory", dir)
	}

	defs := map[string]Definition{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".toml" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		segments := strings.Split(filepath.ToSlash(strings.TrimSuffix(rel, ".toml")), "/")

		def, err := readDefinition(path, handlers)
		if err != nil {
			return err
		}
		return insertDefinition(defs, segments, def)
	})
	if err != nil {
		return nil, err
	}
	return Load(defs, wrapper)
}

func readDefinition(path string, handlers map[string]Operation) (Definition, error) {
	var raw fileDefinition
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Definition{}, fmt.Errorf("decode %s: %w", path, err)
	}
	name := strings.TrimSpace(raw.Handler)
	if name == "" {
		return Definition{}, fmt.Errorf("%s: handler is required", path)
	}
	op, ok := handlers[name]
	if !ok {
		return Definition{}, fmt.Errorf("%s: unknown handler %q", path, name)
	}

	def := Definition{Description: raw.Description, Handler: op}
	var err error
	if def.Input, err = parseSchema(raw.Input); err != nil {
		return Definition{}, fmt.Errorf("%s: input schema: %w", path, err)
	}
	if def.Output, err = parseSchema(raw.Output); err != nil {
		return Definition{}, fmt.Errorf("%s: output schema: %w", path, err)
	}
	return def, nil
}

func parseSchema(text string) (*jsonschema.Schema, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func insertDefinition(defs map[string]Definition, segments []string, def Definition) error {
	head := segments[0]
	if len(segments) == 1 {
		if _, exists := defs[head]; exists {
			return fmt.Errorf("%w: %q", ErrPathConflict, head)
		}
		defs[head] = def
		return nil
	}
	ns, exists := defs[head]
	if exists && ns.IsMethod() {
		return fmt.Errorf("%w: %q is an operation", ErrPathConflict, head)
	}
	if ns.Children == nil {
		ns.Children = map[string]Definition{}
	}
	if err := insertDefinition(ns.Children, segments[1:], def); err != nil {
		return err
	}
	defs[head] = ns
	return nil
}
