// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import (
	"strings"

	"github.com/hwstate/halgen/model"
)

// pascal converts a lowercase schema identifier to an exported Go name:
// "rev_out" -> "RevOut".
func pascal(s string) string {
	var b strings.Builder
	up := true
	for _, c := range s {
		switch {
		case c == '_':
			up = true
		case up && c >= 'a' && c <= 'z':
			b.WriteRune(c &^ 0x20)
			up = false
		default:
			// Digits pass through without clearing up, so a letter
			// following "_1" still starts a new word.
			b.WriteRune(c)
		}
	}
	return b.String()
}

// proofSpec is one proof obligation other peripherals place on this one:
// the field must hold one of the accepted values. The generator turns
// each distinct spec into an interface implemented by the satisfying
// state markers.
type proofSpec struct {
	field  *model.Field
	accept []*model.Value
}

// name is the emitted interface name: field name joined with the
// accepted value names, "CordicenEnabled" or "ModerInputOrAnalog".
func (ps proofSpec) name() string {
	n := pascal(ps.field.Name)
	for i, v := range ps.accept {
		if i > 0 {
			n += "Or"
		}
		n += v.Name
	}
	return n
}

func (ps proofSpec) method() string { return "Prove" + ps.name() }

// proofsFor collects the distinct proof obligations every other
// peripheral places on target, in model declaration order.
func proofsFor(m *model.Model, target *model.Peripheral) []proofSpec {
	var specs []proofSpec
	seen := make(map[string]bool)
	add := func(g *model.Guard) {
		if g.Field.Reg.Periph != target {
			return
		}
		ps := proofSpec{field: g.Field, accept: g.Accept}
		if name := ps.name(); !seen[name] {
			seen[name] = true
			specs = append(specs, ps)
		}
	}
	for _, p := range m.Peripherals {
		for _, g := range p.Requires {
			add(g)
		}
		for _, r := range p.Registers {
			for _, f := range r.Fields {
				for _, v := range f.Values {
					for _, g := range v.Requires {
						add(g)
					}
				}
			}
		}
		for _, t := range p.Transitions {
			for _, g := range t.Guards {
				add(g)
			}
		}
	}
	return specs
}

// satisfies reports whether a state of the spec's peripheral holds one of
// the accepted values.
func (ps proofSpec) satisfies(s *model.State) bool {
	v := s.Assignment(ps.field)
	if v == nil {
		return false
	}
	for _, a := range ps.accept {
		if a == v {
			return true
		}
	}
	return false
}
