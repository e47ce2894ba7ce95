// SPDX-License-Identifier: Apache-2.0

// Package schema validates the documents atg-mcp reads from disk against an
// embedded CUE schema.
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// Definitions available in the schema.
const (
	Chart       = "#Chart"
	Calibration = "#Calibration"
	Config      = "#Config"
)

//go:embed schema.cue
var source string

var (
	mu     sync.Mutex
	cctx   *cue.Context
	root   cue.Value
	loaded bool
)

// load compiles the schema once. Callers must hold mu.
func load() error {
	if loaded {
		return root.Err()
	}
	cctx = cuecontext.New()
	root = cctx.CompileString(source, cue.Filename("schema.cue"))
	loaded = true
	return root.Err()
}

// ValidateYAML checks a YAML document against the named definition.
func ValidateYAML(definition, filename string, data []byte) error {
	mu.Lock()
	defer mu.Unlock()
	if err := load(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	f, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	v := cctx.BuildFile(f)
	if err := v.Err(); err != nil {
		return fmt.Errorf("build %s: %w", filename, err)
	}
	return unify(definition, v)
}

// ValidateValue checks a Go value, encoded through its json tags, against the
// named definition.
func ValidateValue(definition string, x any) error {
	mu.Lock()
	defer mu.Unlock()
	if err := load(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v := cctx.Encode(x)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return unify(definition, v)
}

func unify(definition string, v cue.Value) error {
	def := root.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema has no definition %s", definition)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s: %w", definition, err)
	}
	return nil
}
