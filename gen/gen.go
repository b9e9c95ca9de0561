// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gen emits the runtime peripheral library from a validated
// model: one Go package per peripheral holding a marker type per
// reachable state and a method per legal transition, plus a shared mmap
// package of base addresses.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/mod/module"

	"github.com/hwstate/halgen/model"
)

// SupportPackage is the import path of the hand written runtime support
// package every generated file depends on.
const SupportPackage = "github.com/hwstate/halgen/hal"

// Config parameterizes one generation pass.
type Config struct {
	// Dir is the root of the emitted tree.
	Dir string
	// ImportRoot is the import path corresponding to Dir in the firmware
	// module, used for cross package imports within the emitted tree.
	ImportRoot string
	// Part tags every emitted file with a build constraint, so several
	// parts can share one output tree the way MCU families share HALs.
	Part string
}

// ErrorKind classifies generation failures. A model that validated
// successfully can only fail generation on output constraints.
type ErrorKind int

const (
	// AddressOverflow: a register address does not fit the target's
	// 32-bit addressing width.
	AddressOverflow ErrorKind = iota + 1

	// BadImportRoot: the configured import root is not a valid import
	// path.
	BadImportRoot

	// Internal: emitted source failed the gofmt pass. Always a bug in
	// the generator itself.
	Internal
)

func (k ErrorKind) String() string {
	switch k {
	case AddressOverflow:
		return "address overflow"
	case BadImportRoot:
		return "bad import root"
	case Internal:
		return "internal"
	}
	return "unknown"
}

// Error is a fatal generation failure. There is no partial output: any
// Error aborts the pass before a single file is written.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("gen: %s: %s", e.Kind, e.Msg) }

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// file is an in-memory output file. Everything is emitted into buffers
// and formatted before the first byte reaches the filesystem, so a
// failing pass leaves no partial tree behind.
type file struct {
	path string
	bytes.Buffer
}

func (f *file) donotedit(part string) {
	fmt.Fprintln(f, "// Code generated by halgen. DO NOT EDIT.")
	fmt.Fprintln(f)
	fmt.Fprintln(f, "//go:build", part)
	fmt.Fprintln(f)
}

// Generate emits the runtime peripheral library of a validated model.
func Generate(m *model.Model, cfg Config) error {
	if err := module.CheckImportPath(cfg.ImportRoot); err != nil {
		return errorf(BadImportRoot, "%v", err)
	}
	if err := checkAddresses(m); err != nil {
		return err
	}

	var files []*file
	files = append(files, mmapFile(m, cfg))
	for _, p := range m.Peripherals {
		files = append(files, periphFile(m, p, cfg))
	}

	for _, f := range files {
		src, err := format.Source(f.Bytes())
		if err != nil {
			return errorf(Internal, "%s does not format: %v", f.path, err)
		}
		f.Reset()
		f.Write(src)
	}

	for _, f := range files {
		path := filepath.Join(cfg.Dir, f.path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// checkAddresses re-derives every register address in 64-bit arithmetic.
// The model stores 32-bit addresses, so a profile placing a register past
// the addressing width would have wrapped silently.
func checkAddresses(m *model.Model) error {
	for _, p := range m.Peripherals {
		pp, ok := m.Part.Peripherals[p.Name]
		if !ok {
			continue
		}
		for _, r := range p.Registers {
			end := uint64(pp.Base) + uint64(r.Schema.Offset) + uint64(r.Width)/8
			if _, override := pp.Registers[r.Name]; override {
				end = uint64(r.Addr) + uint64(r.Width)/8
			}
			if end-1 > math.MaxUint32 {
				return errorf(AddressOverflow,
					"register %s.%s ends at %#x, beyond the 32-bit addressing width of part %q",
					p.Name, r.Name, end-1, m.Part.Name)
			}
		}
	}
	return nil
}
