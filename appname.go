// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"os"
	"path"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

const (
	appSpacePrefix = "ipc_"
	unknownApp     = "unknown"
)

// AppName derives an application namespace from the nearest go.mod at or
// above dir, e.g. "ipc_myapp." for module example.com/myapp. Without a
// module file the namespace is "ipc_unknown.".
func AppName(dir string) string {
	name := unknownApp
	if file, ok := findModFile(dir); ok {
		if data, err := os.ReadFile(file); err == nil {
			if mod := modfile.ModulePath(data); mod != "" {
				name = path.Base(mod)
			}
		}
	}
	return appSpacePrefix + name + "."
}

func findModFile(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, "go.mod")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
