// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profile loads device profiles: the part specific register
// address tables that, joined with a schema, place every register at a
// concrete bus address. One profile file describes a family; a part
// identifier (such as "g431") selects one member.
package profile

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Addr is a bus address accepting 0x prefixed forms.
type Addr uint32

func (a *Addr) UnmarshalYAML(n *yaml.Node) error {
	v, err := strconv.ParseUint(n.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: bad address %q", n.Line, n.Value)
	}
	*a = Addr(v)
	return nil
}

// Set is a family of parts sharing one schema.
type Set struct {
	Family string           `yaml:"family"`
	Parts  map[string]*Part `yaml:"parts"`
}

// Part maps peripheral names to base addresses for one concrete part.
type Part struct {
	Name        string                 `yaml:"-"`
	Peripherals map[string]*Peripheral `yaml:"peripherals"`
	Memory      []*Window              `yaml:"memory"`
}

// Peripheral places one schema peripheral. Registers may override single
// register addresses when a part deviates from base+offset placement.
type Peripheral struct {
	Base      Addr            `yaml:"base"`
	Registers map[string]Addr `yaml:"registers"`
}

// Window is a named address window of the part (flash, ram, peripheral
// apertures), used by the reset image tool.
type Window struct {
	Name string `yaml:"name"`
	Base Addr   `yaml:"base"`
	Size Addr   `yaml:"size"`
}

// Load reads a device profile file.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, path)
}

// Decode decodes a device profile document.
func Decode(r io.Reader, name string) (*Set, error) {
	set := new(Set)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(set); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for pname, part := range set.Parts {
		part.Name = pname
	}
	return set, nil
}

// Select returns the profile of one part. The error lists the known part
// identifiers so a build-time typo is self explaining.
func (s *Set) Select(part string) (*Part, error) {
	p, ok := s.Parts[part]
	if !ok {
		known := make([]string, 0, len(s.Parts))
		for name := range s.Parts {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("profile: unknown part %q (known parts: %s)",
			part, strings.Join(known, ", "))
	}
	return p, nil
}

// RegisterAddr resolves the absolute address of a register, honoring per
// register overrides.
func (p *Part) RegisterAddr(periph, reg string, offset uint32) (uint32, error) {
	pp, ok := p.Peripherals[periph]
	if !ok {
		return 0, fmt.Errorf("profile: part %q does not place peripheral %q", p.Name, periph)
	}
	if a, ok := pp.Registers[reg]; ok {
		return uint32(a), nil
	}
	return uint32(pp.Base) + offset, nil
}
