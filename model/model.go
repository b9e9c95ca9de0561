// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model turns a schema and a device profile into a validated
// state-transition graph per peripheral. The graph is computed once at
// build time, validated, handed to the generator, and never mutated.
package model

import (
	"strings"

	"github.com/hwstate/halgen/profile"
	"github.com/hwstate/halgen/schema"
)

// Model is the validated in-memory graph of one (schema, part) pair.
type Model struct {
	Device      *schema.Device
	Part        *profile.Part
	Peripherals []*Peripheral

	// Warnings collected during a successful build. Warnings never gate
	// generation; they are surfaced by the CLI and otherwise ignored.
	Warnings Diagnostics

	pmap map[string]*Peripheral
}

// Peripheral is a schema peripheral with resolved addresses and its
// computed state graph.
type Peripheral struct {
	Name        string
	Registers   []*Register
	StateFields []*Field
	States      []*State
	Reset       *State
	Transitions []*Transition

	// Requires are the peripheral's ontological dependencies. A
	// peripheral with ontological dependencies is generated masked: the
	// guarded unmask operation is the only way to obtain its reset
	// marker.
	Requires []*Guard

	Schema *schema.Peripheral
	index  int // declaration order
}

// Masked reports whether the peripheral's existence is gated on another
// peripheral's state.
func (p *Peripheral) Masked() bool { return len(p.Requires) > 0 }

// Register is a schema register placed at its absolute bus address.
type Register struct {
	Name   string
	Addr   uint32
	Width  uint
	Reset  uint32
	Fields []*Field

	Periph *Peripheral
	Schema *schema.Register
}

// Field is a resolved schema field.
type Field struct {
	Name   string
	Offset uint
	Width  uint
	Access schema.Access
	Values []*Value

	Reg        *Register
	Schema     *schema.Field
	stateIndex int // position among the peripheral's state fields, -1 if none
}

// Mask is the field's bit mask within its register.
func (f *Field) Mask() uint32 {
	return (uint32(1)<<f.Width - 1) << f.Offset
}

// Path is the field's canonical dotted path.
func (f *Field) Path() string {
	return schema.Path(f.Reg.Periph.Name, f.Reg.Name, f.Name)
}

// Value is one legal symbolic value of a field.
type Value struct {
	Name string
	Bits uint32

	Field    *Field
	Requires []*Guard // statewise dependencies, resolved
	Schema   *schema.Value
}

// Guard is a resolved dependency: the target field must hold one of the
// accepted values. It also records the dependency states of the target
// peripheral, the ones the generator turns into proof requirements.
type Guard struct {
	Field  *Field
	Accept []*Value

	Schema *schema.Dependency
}

// Satisfied reports whether a state of the guard's target peripheral
// satisfies the guard.
func (g *Guard) Satisfied(s *State) bool {
	v := s.Assignment(g.Field)
	if v == nil {
		return false
	}
	for _, a := range g.Accept {
		if a == v {
			return true
		}
	}
	return false
}

// State is one legal, fully specified configuration point: a value
// assignment for every state field of the peripheral, in state field
// declaration order.
type State struct {
	Name   string
	Index  int
	Assign []*Value

	Periph *Peripheral
	Schema *schema.State // nil when derived
}

// Assignment returns the state's value of a field, or nil if the field is
// not a state field of the state's peripheral.
func (s *State) Assignment(f *Field) *Value {
	if f.stateIndex < 0 || f.Reg.Periph != s.Periph {
		return nil
	}
	return s.Assign[f.stateIndex]
}

// Transition is a directed edge between two states of one peripheral,
// labeled with the concrete register writes realizing it and guarded by
// the dependencies that must hold while it is taken.
type Transition struct {
	From   *State
	To     *State
	Writes []Write
	Guards []*Guard

	Schema *schema.Transition // nil when derived
}

// Write is a single read-modify-write step. Bits outside Mask are
// preserved; a Mask covering the whole register degenerates to a plain
// store.
type Write struct {
	Addr  uint32
	Width uint
	Mask  uint32
	Value uint32
}

// Peripheral looks a peripheral up by name.
func (m *Model) Peripheral(name string) *Peripheral { return m.pmap[name] }

// TransitionsFor exposes a peripheral's finite transition set to the
// generator, ordered by source state index, then declaration order.
func (m *Model) TransitionsFor(p *Peripheral) []*Transition { return p.Transitions }

// Build constructs and validates the model. On validation failure it
// returns a *Error wrapping every diagnostic of the pass.
func Build(dev *schema.Device, part *profile.Part) (*Model, error) {
	m := &Model{
		Device: dev,
		Part:   part,
		pmap:   make(map[string]*Peripheral, len(dev.Peripherals)),
	}
	var diags Diagnostics

	for i, sp := range dev.Peripherals {
		p := resolvePeripheral(sp, part, i, &diags)
		m.Peripherals = append(m.Peripherals, p)
		m.pmap[p.Name] = p
	}

	// Dependency guards cross peripheral boundaries, so they resolve
	// only once every peripheral exists.
	m.resolveGuards(&diags)

	m.checkOverlaps(&diags)

	for _, p := range m.Peripherals {
		if m.deriveStates(p, &diags) {
			m.deriveTransitions(p, &diags)
			checkReachable(p, &diags)
		}
	}

	m.checkDependencyCycles(&diags)

	if diags.Errors() {
		kind := Kind(0)
		for _, d := range diags {
			if d.Rank == ErrorRank {
				kind = d.Kind
				break
			}
		}
		return nil, &Error{Kind: kind, Diags: diags}
	}
	m.Warnings = diags
	return m, nil
}

func resolvePeripheral(sp *schema.Peripheral, part *profile.Part, index int, diags *Diagnostics) *Peripheral {
	p := &Peripheral{Name: sp.Name, Schema: sp, index: index}
	ctx := Context{sp.Name}

	for _, sr := range sp.Registers {
		addr, err := part.RegisterAddr(sp.Name, sr.Name, uint32(sr.Offset))
		if err != nil {
			diags.error(UnknownReference, ctx.And(sr.Name), "%s", err)
		}
		r := &Register{
			Name:   sr.Name,
			Addr:   addr,
			Width:  uint(sr.Width),
			Reset:  uint32(sr.Reset),
			Periph: p,
			Schema: sr,
		}
		for _, sf := range sr.Fields {
			f := &Field{
				Name:       sf.Name,
				Offset:     uint(sf.Offset),
				Width:      uint(sf.Width),
				Access:     sf.Access,
				Reg:        r,
				Schema:     sf,
				stateIndex: -1,
			}
			for _, sv := range sf.Values {
				f.Values = append(f.Values, &Value{
					Name:   sv.Name,
					Bits:   uint32(sv.Bits),
					Field:  f,
					Schema: sv,
				})
			}
			if f.Access == schema.StateAccess {
				f.stateIndex = len(p.StateFields)
				p.StateFields = append(p.StateFields, f)
			}
			r.Fields = append(r.Fields, f)
		}
		p.Registers = append(p.Registers, r)
	}
	return p
}

// resolveGuards resolves every dependency declaration in the device into
// guards pointing at concrete fields and values.
func (m *Model) resolveGuards(diags *Diagnostics) {
	for _, p := range m.Peripherals {
		ctx := Context{p.Name}
		for _, sd := range p.Schema.Requires {
			if g := m.resolveGuard(p, sd, ctx, diags); g != nil {
				p.Requires = append(p.Requires, g)
			}
		}
		for _, r := range p.Registers {
			for _, f := range r.Fields {
				for _, v := range f.Values {
					for _, sd := range v.Schema.Requires {
						fctx := ctx.And(r.Name).And(f.Name).And(v.Name)
						if g := m.resolveGuard(p, sd, fctx, diags); g != nil {
							v.Requires = append(v.Requires, g)
						}
					}
				}
			}
		}
	}
}

func (m *Model) resolveGuard(p *Peripheral, sd *schema.Dependency, ctx Context, diags *Diagnostics) *Guard {
	parts := strings.Split(sd.Path, ".")
	if len(parts) != 3 {
		diags.error(UnknownReference, ctx, "dependency path %q: want peripheral.register.field", sd.Path)
		return nil
	}
	dp := m.pmap[parts[0]]
	if dp == nil {
		diags.error(UnknownReference, ctx, "dependency peripheral %q does not exist", parts[0])
		return nil
	}
	if dp == p {
		// A peripheral depending on itself can never be linearized.
		diags.error(CyclicDependency, ctx, "peripheral %q depends on its own state", p.Name)
		return nil
	}
	var df *Field
	for _, r := range dp.Registers {
		if r.Name != parts[1] {
			continue
		}
		for _, f := range r.Fields {
			if f.Name == parts[2] {
				df = f
				break
			}
		}
	}
	if df == nil {
		diags.error(UnknownReference, ctx, "dependency path %q names nothing", sd.Path)
		return nil
	}
	if df.stateIndex < 0 {
		diags.error(UnknownReference, ctx,
			"dependency path %q targets a non-state field which cannot be depended on", sd.Path)
		return nil
	}
	g := &Guard{Field: df, Schema: sd}
	for _, name := range sd.Values {
		var av *Value
		for _, v := range df.Values {
			if v.Name == name {
				av = v
				break
			}
		}
		if av == nil {
			diags.error(UnknownReference, ctx,
				"dependency value %q does not exist in field %q", name, sd.Path)
			continue
		}
		g.Accept = append(g.Accept, av)
	}
	if len(g.Accept) == 0 {
		return nil
	}
	return g
}
