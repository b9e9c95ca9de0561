// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hwstate/halgen/model"
)

// mmapFile emits the base address package shared by every generated
// peripheral package.
func mmapFile(m *model.Model, cfg Config) *file {
	f := &file{path: filepath.Join("mmap", cfg.Part+".go")}
	f.donotedit(cfg.Part)
	fmt.Fprintln(f, "// Package mmap provides base memory addresses for all peripherals.")
	fmt.Fprintln(f, "package mmap")
	fmt.Fprintln(f)
	fmt.Fprintln(f, "const (")
	for _, p := range m.Peripherals {
		pp, ok := m.Part.Peripherals[p.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(f, "\t%s_BASE uint32 = 0x%08X", strings.ToUpper(p.Name), uint32(pp.Base))
		if d := p.Schema.Description; d != "" {
			fmt.Fprintf(f, " // %s", d)
		}
		fmt.Fprintln(f)
	}
	fmt.Fprintln(f, ")")
	return f
}
