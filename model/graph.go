// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"sort"
	"strings"
)

// checkOverlaps validates the physical layout: no two fields of one
// register, no two registers of one peripheral, and no two peripheral
// address windows may overlap. Register addresses must be aligned to the
// register width. Enumerated values of one field must have distinct bit
// patterns.
func (m *Model) checkOverlaps(diags *Diagnostics) {
	for _, p := range m.Peripherals {
		ctx := Context{p.Name}
		for _, r := range p.Registers {
			rctx := ctx.And(r.Name)
			if r.Addr%(uint32(r.Width)/8) != 0 {
				diags.error(ConflictingAssignment, rctx,
					"register address 0x%08x is not aligned to the %d-bit register width", r.Addr, r.Width)
			}
			for i, f := range r.Fields {
				for _, f2 := range r.Fields[:i] {
					if f.Mask()&f2.Mask() != 0 {
						diags.error(ConflictingAssignment, rctx,
							"fields %q and %q overlap", f2.Name, f.Name)
					}
				}
				seen := make(map[uint32]string, len(f.Values))
				for _, v := range f.Values {
					if prev, ok := seen[v.Bits]; ok {
						diags.error(ConflictingAssignment, rctx.And(f.Name),
							"values %q and %q share the bit pattern %#b", prev, v.Name, v.Bits)
					}
					seen[v.Bits] = v.Name
				}
			}
		}

		regs := append([]*Register(nil), p.Registers...)
		sort.SliceStable(regs, func(i, k int) bool { return regs[i].Addr < regs[k].Addr })
		for i := 1; i < len(regs); i++ {
			lhs, rhs := regs[i-1], regs[i]
			if lhs.Addr+uint32(lhs.Width)/8 > rhs.Addr {
				diags.error(ConflictingAssignment, ctx,
					"registers %q and %q overlap at 0x%08x", lhs.Name, rhs.Name, rhs.Addr)
			}
		}
	}

	type window struct {
		p        *Peripheral
		lo, hi   uint32 // [lo, hi)
		declared int
	}
	var windows []window
	for i, p := range m.Peripherals {
		if len(p.Registers) == 0 {
			continue
		}
		w := window{p: p, lo: p.Registers[0].Addr, declared: i}
		for _, r := range p.Registers {
			if r.Addr < w.lo {
				w.lo = r.Addr
			}
			if end := r.Addr + uint32(r.Width)/8; end > w.hi {
				w.hi = end
			}
		}
		windows = append(windows, w)
	}
	sort.SliceStable(windows, func(i, k int) bool { return windows[i].lo < windows[k].lo })
	for i := 1; i < len(windows); i++ {
		lhs, rhs := windows[i-1], windows[i]
		if lhs.hi > rhs.lo {
			diags.error(ConflictingAssignment, Context{lhs.p.Name},
				"peripherals %q and %q overlap at 0x%08x...0x%08x",
				lhs.p.Name, rhs.p.Name, rhs.lo, lhs.hi-1)
		}
	}
}

// checkReachable walks the transition graph breadth-first from the reset
// state. Every state must be reachable; an unreached state is a modeling
// error, not a warning.
func checkReachable(p *Peripheral, diags *Diagnostics) {
	visited := make([]bool, len(p.States))
	queue := []*State{p.Reset}
	visited[p.Reset.Index] = true
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, t := range p.Transitions {
			if t.From == s && !visited[t.To.Index] {
				visited[t.To.Index] = true
				queue = append(queue, t.To)
			}
		}
	}
	for _, s := range p.States {
		if !visited[s.Index] {
			diags.error(UnreachableState, Context{p.Name, s.Name},
				"state has no transition path from the reset state %q", p.Reset.Name).
				note("declare a transition chain reaching it or remove the state")
		}
	}
}

// allGuards collects every guard declared by the peripheral, in
// declaration order: ontological, statewise (per value), and per
// transition.
func (p *Peripheral) allGuards() []*Guard {
	guards := append([]*Guard(nil), p.Requires...)
	for _, r := range p.Registers {
		for _, f := range r.Fields {
			for _, v := range f.Values {
				guards = append(guards, v.Requires...)
			}
		}
	}
	for _, t := range p.Transitions {
		guards = append(guards, t.Guards...)
	}
	return guards
}

// dependencyEdges returns the configure-before adjacency: an edge B -> A
// for every guard of A targeting B's state.
func (m *Model) dependencyEdges() [][]int {
	adj := make([][]int, len(m.Peripherals))
	seen := make(map[[2]int]bool)
	for _, p := range m.Peripherals {
		for _, g := range p.allGuards() {
			dep := g.Field.Reg.Periph
			key := [2]int{dep.index, p.index}
			if dep == p || seen[key] {
				continue
			}
			seen[key] = true
			adj[dep.index] = append(adj[dep.index], p.index)
		}
	}
	return adj
}

// checkDependencyCycles rejects any dependency structure that cannot be
// linearized into an initialization order. Standard three color DFS; the
// reported message spells out one offending cycle.
func (m *Model) checkDependencyCycles(diags *Diagnostics) {
	adj := m.dependencyEdges()

	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(m.Peripherals))
	var stack []int

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		stack = append(stack, i)
		for _, k := range adj[i] {
			switch color[k] {
			case gray:
				// Back edge: slice the cycle out of the DFS stack.
				start := 0
				for n, idx := range stack {
					if idx == k {
						start = n
						break
					}
				}
				names := make([]string, 0, len(stack)-start+1)
				for _, idx := range stack[start:] {
					names = append(names, m.Peripherals[idx].Name)
				}
				names = append(names, m.Peripherals[k].Name)
				diags.error(CyclicDependency, Context{m.Peripherals[k].Name},
					"configure-before order cannot be linearized: %s",
					strings.Join(names, " -> ")).
					note("break the cycle by removing one of the dependencies")
				return true
			case white:
				if visit(k) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return false
	}

	for i := range m.Peripherals {
		if color[i] == white {
			if visit(i) {
				return
			}
		}
	}
}

// TopologicalOrder yields an initialization order satisfying every
// dependency. Ties break by declaration order in the schema, so the
// result is reproducible across builds.
func (m *Model) TopologicalOrder() []*Peripheral {
	adj := m.dependencyEdges()
	indeg := make([]int, len(m.Peripherals))
	for _, next := range adj {
		for _, k := range next {
			indeg[k]++
		}
	}
	order := make([]*Peripheral, 0, len(m.Peripherals))
	done := make([]bool, len(m.Peripherals))
	for len(order) < len(m.Peripherals) {
		progress := false
		for i, p := range m.Peripherals {
			if done[i] || indeg[i] > 0 {
				continue
			}
			done[i] = true
			progress = true
			order = append(order, p)
			for _, k := range adj[i] {
				indeg[k]--
			}
		}
		if !progress {
			// Unreachable on a validated model; cycles are fatal in Build.
			break
		}
	}
	return order
}
