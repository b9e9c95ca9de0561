// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// deriveStates computes the peripheral's state set. Explicitly declared
// states win; otherwise the set is the Cartesian product of the state
// fields' legal values. It reports whether the peripheral's graph is
// usable for transition derivation.
func (m *Model) deriveStates(p *Peripheral, diags *Diagnostics) bool {
	ctx := Context{p.Name}

	if len(p.StateFields) == 0 {
		// A peripheral without state bearing fields has a single
		// configuration point: its reset state.
		s := &State{Name: "Reset", Index: 0, Periph: p}
		p.States = []*State{s}
		p.Reset = s
		return false
	}

	if len(p.Schema.States) > 0 {
		for i, ss := range p.Schema.States {
			s := &State{Name: ss.Name, Index: i, Periph: p, Schema: ss}
			s.Assign = make([]*Value, len(p.StateFields))
			for _, fv := range ss.Fields {
				for _, f := range p.StateFields {
					if f.Name == fv.Field {
						for _, v := range f.Values {
							if v.Name == fv.Value {
								s.Assign[f.stateIndex] = v
							}
						}
					}
				}
			}
			// The schema package guarantees completeness; a hole here
			// means the schema was not validated.
			for i, v := range s.Assign {
				if v == nil {
					diags.error(UnknownReference, ctx.And(ss.Name),
						"state does not assign field %q", p.StateFields[i].Name)
					return false
				}
			}
			p.States = append(p.States, s)
		}
	} else {
		p.States = productStates(p)
	}

	// Two states asserting the identical assignment tuple would make the
	// requested-target naming ambiguous.
	seen := make(map[string]*State, len(p.States))
	for _, s := range p.States {
		if prev, ok := seen[s.Name]; ok {
			diags.error(ConflictingAssignment, ctx,
				"states %q and %q collide on name %q", prev.Name, s.Name, s.Name)
		}
		seen[s.Name] = s
		for _, prev := range p.States {
			if prev == s {
				break
			}
			if sameAssign(prev, s) {
				diags.error(ConflictingAssignment, ctx,
					"states %q and %q assert identical assignments", prev.Name, s.Name)
			}
		}
	}

	return m.resolveReset(p, ctx, diags)
}

// productStates enumerates the full Cartesian product of the state
// fields' values, in declaration order, naming each state by the joined
// value names.
func productStates(p *Peripheral) []*State {
	var states []*State
	assign := make([]*Value, len(p.StateFields))
	var rec func(i int)
	rec = func(i int) {
		if i == len(p.StateFields) {
			s := &State{
				Name:   stateName(assign),
				Index:  len(states),
				Periph: p,
				Assign: append([]*Value(nil), assign...),
			}
			states = append(states, s)
			return
		}
		for _, v := range p.StateFields[i].Values {
			assign[i] = v
			rec(i + 1)
		}
	}
	rec(0)
	return states
}

func stateName(assign []*Value) string {
	name := ""
	for _, v := range assign {
		name += v.Name
	}
	return name
}

func sameAssign(a, b *State) bool {
	for i := range a.Assign {
		if a.Assign[i] != b.Assign[i] {
			return false
		}
	}
	return true
}

// resolveReset finds the unique state matching the registers' documented
// reset values.
func (m *Model) resolveReset(p *Peripheral, ctx Context, diags *Diagnostics) bool {
	for _, s := range p.States {
		match := true
		for i, f := range p.StateFields {
			reset := f.Reg.Reset >> f.Offset & (uint32(1)<<f.Width - 1)
			if s.Assign[i].Bits != reset {
				match = false
				break
			}
		}
		if match {
			p.Reset = s
			return true
		}
	}
	diags.error(UnreachableState, ctx,
		"no state corresponds to the register reset values").
		note("every peripheral needs a unique initial state matching its registers' reset values")
	return false
}

// deriveTransitions computes the peripheral's edge set: the declared
// edges when the schema names them, otherwise every pair of states whose
// difference is confined to a single register (one read-modify-write
// realizes the move). Dependency guards are overlaid afterwards.
func (m *Model) deriveTransitions(p *Peripheral, diags *Diagnostics) {
	ctx := Context{p.Name}

	if len(p.Schema.Transitions) > 0 {
		byName := make(map[string]*State, len(p.States))
		for _, s := range p.States {
			byName[s.Name] = s
		}
		type edge struct{ from, to int }
		declared := make(map[edge]*Transition)
		for _, st := range p.Schema.Transitions {
			from, to := byName[st.From], byName[st.To]
			if from == nil {
				diags.error(UnknownReference, ctx, "transition source %q is not a state", st.From)
				continue
			}
			if to == nil {
				diags.error(UnknownReference, ctx, "transition target %q is not a state", st.To)
				continue
			}
			if from == to {
				diags.warning(NonDeterministicTransition, ctx,
					"transition from %q to itself has no effect; ignored", st.From)
				continue
			}
			t := &Transition{From: from, To: to, Schema: st}
			for _, sd := range st.Requires {
				if g := m.resolveGuard(p, sd, ctx, diags); g != nil {
					t.Guards = append(t.Guards, g)
				}
			}
			if prev, ok := declared[edge{from.Index, to.Index}]; ok {
				if guardsEqual(prev.Guards, t.Guards) {
					diags.error(NonDeterministicTransition, ctx,
						"transition %q -> %q declared twice", st.From, st.To)
				} else {
					// Ambiguous dependency-satisfying paths resolve by
					// declaration order: the first declared edge wins.
					diags.warning(NonDeterministicTransition, ctx,
						"transition %q -> %q redeclared with different guards; first declaration wins",
						st.From, st.To)
				}
				continue
			}
			declared[edge{from.Index, to.Index}] = t
			p.Transitions = append(p.Transitions, t)
		}
	} else {
		for _, from := range p.States {
			for _, to := range p.States {
				if from == to || !singleRegisterMove(from, to) {
					continue
				}
				p.Transitions = append(p.Transitions, &Transition{From: from, To: to})
			}
		}
	}

	for _, t := range p.Transitions {
		t.Writes = writesFor(t.From, t.To)
		overlayVariantGuards(t)
	}
}

// singleRegisterMove reports whether the states differ only in fields of
// one register.
func singleRegisterMove(from, to *State) bool {
	var reg *Register
	for i, f := range from.Periph.StateFields {
		if from.Assign[i] == to.Assign[i] {
			continue
		}
		if reg != nil && reg != f.Reg {
			return false
		}
		reg = f.Reg
	}
	return reg != nil
}

// writesFor computes the read-modify-write sequence realizing a move, one
// write per register whose state fields change, in register declaration
// order. The computation is purely positional, so rebuilding the model
// reproduces the identical sequence.
func writesFor(from, to *State) []Write {
	var writes []Write
	for _, r := range from.Periph.Registers {
		var mask, value uint32
		for _, f := range r.Fields {
			i := f.stateIndex
			if i < 0 || from.Assign[i] == to.Assign[i] {
				continue
			}
			mask |= f.Mask()
			value |= to.Assign[i].Bits << f.Offset
		}
		if mask != 0 {
			writes = append(writes, Write{Addr: r.Addr, Width: r.Width, Mask: mask, Value: value})
		}
	}
	return writes
}

// overlayVariantGuards attaches the statewise dependencies of every value
// the transition newly enters.
func overlayVariantGuards(t *Transition) {
	for i := range t.To.Assign {
		v := t.To.Assign[i]
		if v == t.From.Assign[i] {
			continue
		}
		t.Guards = append(t.Guards, v.Requires...)
	}
}

func guardsEqual(a, b []*Guard) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Field != b[i].Field || len(a[i].Accept) != len(b[i].Accept) {
			return false
		}
		for k := range a[i].Accept {
			if a[i].Accept[k] != b[i].Accept[k] {
				return false
			}
		}
	}
	return true
}
