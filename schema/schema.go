// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schema defines the declarative description of a device's
// peripherals: registers, fields, legal field values and cross peripheral
// dependency declarations. It is pure data. No state graph or transition
// logic lives here; that is the model package's job.
package schema

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Uint is an unsigned scalar accepting the 0x and 0b prefixed forms
// commonly used in register descriptions.
type Uint uint32

func (u *Uint) UnmarshalYAML(n *yaml.Node) error {
	v, err := strconv.ParseUint(n.Value, 0, 32)
	if err != nil {
		return &Error{
			Kind: MalformedValueRange,
			Line: n.Line, Col: n.Column,
			Msg: fmt.Sprintf("bad unsigned value %q", n.Value),
		}
	}
	*u = Uint(v)
	return nil
}

// Access describes how firmware may interact with a field. StateAccess
// marks a field as state bearing: its value is part of the owning
// peripheral's configuration state and is tracked at the type level.
type Access int

const (
	ReadAccess Access = iota + 1
	WriteAccess
	ReadWriteAccess
	StateAccess
)

var accessNames = map[string]Access{
	"read":       ReadAccess,
	"write":      WriteAccess,
	"read-write": ReadWriteAccess,
	"state":      StateAccess,
}

func (a *Access) UnmarshalYAML(n *yaml.Node) error {
	v, ok := accessNames[n.Value]
	if !ok {
		return &Error{
			Kind: MalformedValueRange,
			Line: n.Line, Col: n.Column,
			Msg: fmt.Sprintf("bad access %q: not read, write, read-write, state", n.Value),
		}
	}
	*a = v
	return nil
}

func (a Access) String() string {
	for s, v := range accessNames {
		if v == a {
			return s
		}
	}
	return "unspecified"
}

// checkKeys rejects unknown mapping keys. The decoder level KnownFields
// option does not reach nested custom unmarshalers, which decode through
// yaml.Node directly.
func checkKeys(n *yaml.Node, v any) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	t := reflect.TypeOf(v).Elem()
	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag != "" && tag != "-" {
			known[tag] = true
		}
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; !known[k.Value] {
			return &Error{
				Kind: UnknownFieldReference,
				Line: k.Line, Col: k.Column,
				Msg:  fmt.Sprintf("unknown key %q", k.Value),
			}
		}
	}
	return nil
}

// Pos is the source position of a schema entity, kept for error messages.
type Pos struct {
	Line int
	Col  int
}

// Device is the root of a schema file.
type Device struct {
	Name        string        `yaml:"device"`
	Description string        `yaml:"description"`
	Peripherals []*Peripheral `yaml:"peripherals"`
}

// Peripheral declares registers and, optionally, an explicit set of legal
// states and transitions. When States is empty the model derives the state
// set from the state bearing fields; when Transitions is empty the model
// derives all single register write edges.
type Peripheral struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Requires    []*Dependency `yaml:"requires"`
	Registers   []*Register   `yaml:"registers"`
	States      []*State      `yaml:"states"`
	Transitions []*Transition `yaml:"transitions"`
	Pos         Pos           `yaml:"-"`
}

type peripheralYAML Peripheral

func (p *Peripheral) UnmarshalYAML(n *yaml.Node) error {
	p.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*peripheralYAML)(p)); err != nil {
		return err
	}
	return n.Decode((*peripheralYAML)(p))
}

// Register is a single memory mapped register. Offset is relative to the
// peripheral base address taken from the device profile. Width defaults
// to 32 bits.
type Register struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Offset      Uint     `yaml:"offset"`
	Width       Uint     `yaml:"width"`
	Reset       Uint     `yaml:"reset"`
	Fields      []*Field `yaml:"fields"`
	Pos         Pos      `yaml:"-"`
}

type registerYAML Register

func (r *Register) UnmarshalYAML(n *yaml.Node) error {
	r.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*registerYAML)(r)); err != nil {
		return err
	}
	return n.Decode((*registerYAML)(r))
}

// Field is a bit range within a register, with either an enumerated set
// of legal values or a numeric range. Width defaults to 1 bit.
type Field struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Offset      Uint     `yaml:"offset"`
	Width       Uint     `yaml:"width"`
	Access      Access   `yaml:"access"`
	Values      []*Value `yaml:"values"`
	Range       *Range   `yaml:"range"`
	Pos         Pos      `yaml:"-"`
}

type fieldYAML Field

func (f *Field) UnmarshalYAML(n *yaml.Node) error {
	f.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*fieldYAML)(f)); err != nil {
		return err
	}
	return n.Decode((*fieldYAML)(f))
}

// Value is one legal symbolic value of an enumerated field. Requires
// declares variant level dependencies: inhabiting this value is only legal
// while the referenced field holds one of the listed values.
type Value struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Bits        Uint          `yaml:"bits"`
	Requires    []*Dependency `yaml:"requires"`
	Pos         Pos           `yaml:"-"`
}

type valueYAML Value

func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	v.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*valueYAML)(v)); err != nil {
		return err
	}
	return n.Decode((*valueYAML)(v))
}

// Range bounds a numeric (non enumerated) field.
type Range struct {
	Min Uint `yaml:"min"`
	Max Uint `yaml:"max"`
}

// State names one legal combination of state field values. States are
// optional; most peripherals let the model derive them.
type State struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Fields      []*FieldValue `yaml:"fields"`
	Pos         Pos           `yaml:"-"`
}

type stateYAML State

func (s *State) UnmarshalYAML(n *yaml.Node) error {
	s.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*stateYAML)(s)); err != nil {
		return err
	}
	return n.Decode((*stateYAML)(s))
}

// FieldValue assigns one field of the owning peripheral a named value.
type FieldValue struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// Transition declares one legal directed edge between two states, named by
// the state names (explicit or derived). Requires guards this edge alone.
type Transition struct {
	From     string        `yaml:"from"`
	To       string        `yaml:"to"`
	Requires []*Dependency `yaml:"requires"`
	Pos      Pos           `yaml:"-"`
}

type transitionYAML Transition

func (t *Transition) UnmarshalYAML(n *yaml.Node) error {
	t.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*transitionYAML)(t)); err != nil {
		return err
	}
	return n.Decode((*transitionYAML)(t))
}

// Dependency is a cross peripheral constraint: the field named by Path
// (peripheral.register.field) must hold one of Values.
type Dependency struct {
	Path   string   `yaml:"path"`
	Values []string `yaml:"values"`
	Pos    Pos      `yaml:"-"`
}

type dependencyYAML Dependency

func (d *Dependency) UnmarshalYAML(n *yaml.Node) error {
	d.Pos = Pos{n.Line, n.Column}
	if err := checkKeys(n, (*dependencyYAML)(d)); err != nil {
		return err
	}
	return n.Decode((*dependencyYAML)(d))
}

// Load reads, decodes and validates a schema file.
func Load(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, path)
}

// Decode decodes and validates a schema document. The name is used in
// error messages only.
func Decode(r io.Reader, name string) (*Device, error) {
	dev := new(Device)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(dev); err != nil {
		if e, ok := err.(*Error); ok {
			e.File = name
			return nil, e
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	normalize(dev)
	if errs := Validate(dev); len(errs) > 0 {
		for _, e := range errs {
			e.File = name
		}
		return nil, errs
	}
	return dev, nil
}

// normalize fills in defaulted widths.
func normalize(dev *Device) {
	for _, p := range dev.Peripherals {
		for _, r := range p.Registers {
			if r.Width == 0 {
				r.Width = 32
			}
			for _, f := range r.Fields {
				if f.Width == 0 {
					f.Width = 1
				}
			}
		}
	}
}
