// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hwstate/halgen/model"
	"github.com/hwstate/halgen/schema"
)

// periphFile emits one peripheral package: a marker type per reachable
// state, the take operation, a method per legal transition, proof
// interfaces for every dependency other peripherals declare on this one,
// and plain accessors for the non-state fields.
func periphFile(m *model.Model, p *model.Peripheral, cfg Config) *file {
	f := &file{path: filepath.Join(p.Name, cfg.Part+".go")}
	f.donotedit(cfg.Part)

	proofs := proofsFor(m, p)

	packageDoc(f, p, proofs)
	imports(f, m, p, cfg)
	registerAddrs(f, m, p)

	fmt.Fprintf(f, "\nvar handle = hal.NewHandle(%q)\n", p.Name)

	markers(f, p)
	take(f, p)
	for _, t := range p.Transitions {
		transition(f, p, t)
	}
	for _, ps := range proofs {
		proof(f, p, ps)
	}
	accessors(f, p)

	return f
}

func packageDoc(f *file, p *model.Peripheral, proofs []proofSpec) {
	descr := p.Schema.Description
	if descr == "" {
		descr = strings.ToUpper(p.Name) + " peripheral"
	}
	fmt.Fprintln(f, "// Package", p.Name, "provides the typestate configuration interface of the")
	fmt.Fprintln(f, "//", descr+".")
	fmt.Fprintln(f, "//")
	fmt.Fprintln(f, "// States:")
	tw := new(tabwriter.Writer)
	tw.Init(f, 0, 0, 1, ' ', 0)
	for _, s := range p.States {
		note := ""
		if s == p.Reset {
			note = " (reset)"
		}
		fmt.Fprintf(tw, "//  %s\t%s\n", s.Name, note)
	}
	tw.Flush()
	if len(p.Transitions) > 0 {
		fmt.Fprintln(f, "// Transitions:")
		for _, t := range p.Transitions {
			fmt.Fprintf(tw, "//  %s\t-> %s\t%s\n", t.From.Name, t.To.Name, guardNote(t.Guards))
		}
		tw.Flush()
	}
	fmt.Fprintln(f, "// Registers:")
	for _, r := range p.Registers {
		fmt.Fprintf(tw, "//  0x%03X\t%2d\t %s\t %s\n",
			uint32(r.Schema.Offset), r.Width, r.Name, r.Schema.Description)
	}
	tw.Flush()
	if len(proofs) > 0 {
		fmt.Fprintln(f, "// Proofs:")
		for _, ps := range proofs {
			fmt.Fprintf(f, "//  %s\n", ps.name())
		}
	}
	fmt.Fprintln(f, "package", p.Name)
}

func guardNote(guards []*model.Guard) string {
	if len(guards) == 0 {
		return ""
	}
	parts := make([]string, len(guards))
	for i, g := range guards {
		names := make([]string, len(g.Accept))
		for k, v := range g.Accept {
			names[k] = v.Name
		}
		parts[i] = fmt.Sprintf("requires %s in %s", g.Field.Path(), strings.Join(names, "|"))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func imports(f *file, m *model.Model, p *model.Peripheral, cfg Config) {
	deps := make(map[string]bool)
	for _, g := range p.Requires {
		deps[g.Field.Reg.Periph.Name] = true
	}
	for _, t := range p.Transitions {
		for _, g := range t.Guards {
			deps[g.Field.Reg.Periph.Name] = true
		}
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	// The mmap package is referenced only by address constants derived
	// from the peripheral base. A register the profile placed individually
	// gets an absolute constant instead.
	mmapUsed := false
	pp := m.Part.Peripherals[p.Name]
	for _, r := range p.Registers {
		if _, override := pp.Registers[r.Name]; !override {
			mmapUsed = true
			break
		}
	}

	fmt.Fprintln(f, "\nimport (")
	fmt.Fprintf(f, "\t%q\n", SupportPackage)
	if mmapUsed || len(names) > 0 {
		fmt.Fprintln(f)
	}
	if mmapUsed {
		fmt.Fprintf(f, "\t%q\n", cfg.ImportRoot+"/mmap")
	}
	for _, name := range names {
		fmt.Fprintf(f, "\t%q\n", cfg.ImportRoot+"/"+name)
	}
	fmt.Fprintln(f, ")")
}

// registerAddrs emits one address constant per register, derived from the
// mmap base unless the profile placed the register individually.
func registerAddrs(f *file, m *model.Model, p *model.Peripheral) {
	if len(p.Registers) == 0 {
		return
	}
	pp := m.Part.Peripherals[p.Name]
	fmt.Fprintln(f, "\n// register addresses")
	fmt.Fprintln(f, "const (")
	for _, r := range p.Registers {
		if _, override := pp.Registers[r.Name]; override {
			fmt.Fprintf(f, "\t%sAddr uint32 = 0x%08X\n", r.Name, r.Addr)
		} else {
			fmt.Fprintf(f, "\t%sAddr = mmap.%s_BASE + 0x%02X\n",
				r.Name, strings.ToUpper(p.Name), uint32(r.Schema.Offset))
		}
	}
	fmt.Fprintln(f, ")")
}

func markers(f *file, p *model.Peripheral) {
	if p.Masked() {
		fmt.Fprintln(f, "\n// Masked marks the peripheral before its existence dependencies are")
		fmt.Fprintln(f, "// satisfied. Unmask is the only operation available on it.")
		fmt.Fprintln(f, "type Masked struct {")
		fmt.Fprintln(f, "\th *hal.Handle")
		fmt.Fprintln(f, "\tg uint32")
		fmt.Fprintln(f, "}")
	}
	for _, s := range p.States {
		fmt.Fprintf(f, "\n// %s marks the configuration %s.\n", s.Name, assignDoc(s))
		fmt.Fprintf(f, "type %s struct {\n", s.Name)
		fmt.Fprintln(f, "\th *hal.Handle")
		fmt.Fprintln(f, "\tg uint32")
		fmt.Fprintln(f, "}")
	}
}

func assignDoc(s *model.State) string {
	if s.Schema != nil && s.Schema.Description != "" {
		return s.Schema.Description
	}
	if len(s.Assign) == 0 {
		return "at reset"
	}
	parts := make([]string, len(s.Assign))
	for i, v := range s.Assign {
		parts[i] = fmt.Sprintf("%s=%s", s.Periph.StateFields[i].Name, v.Name)
	}
	return strings.Join(parts, ", ")
}

func take(f *file, p *model.Peripheral) {
	if !p.Masked() {
		fmt.Fprintln(f, "\n// TakeReset claims ownership of the peripheral and returns the marker")
		fmt.Fprintln(f, "// of its reset state. It may be called exactly once; a second call")
		fmt.Fprintln(f, "// panics.")
		fmt.Fprintf(f, "func TakeReset() %s {\n", p.Reset.Name)
		fmt.Fprintln(f, "\thandle.Take()")
		fmt.Fprintf(f, "\treturn %s{h: handle, g: handle.Gen()}\n", p.Reset.Name)
		fmt.Fprintln(f, "}")
		return
	}
	fmt.Fprintln(f, "\n// Take claims ownership of the masked peripheral. It may be called")
	fmt.Fprintln(f, "// exactly once; a second call panics.")
	fmt.Fprintln(f, "func Take() Masked {")
	fmt.Fprintln(f, "\thandle.Take()")
	fmt.Fprintln(f, "\treturn Masked{h: handle, g: handle.Gen()}")
	fmt.Fprintln(f, "}")

	params, proves := guardArgs(p.Requires)
	fmt.Fprintln(f, "\n// Unmask presents proof that the peripheral's existence dependencies")
	fmt.Fprintln(f, "// hold and returns the marker of the reset state.")
	fmt.Fprintf(f, "func (s Masked) Unmask(%s) %s {\n", params, p.Reset.Name)
	for _, pr := range proves {
		fmt.Fprintf(f, "\t%s\n", pr)
	}
	fmt.Fprintln(f, "\tg := s.h.Use(s.g)")
	fmt.Fprintf(f, "\treturn %s{h: s.h, g: g}\n", p.Reset.Name)
	fmt.Fprintln(f, "}")
}

// guardArgs renders the proof parameter list of a guarded operation and
// the corresponding proof calls. Parameters are named after the
// dependency peripheral, stepping around the receiver and the locals the
// method body declares.
func guardArgs(guards []*model.Guard) (params string, proves []string) {
	var plist []string
	taken := map[string]bool{"s": true, "g": true, "v": true, "hal": true}
	for _, gd := range guards {
		dep := gd.Field.Reg.Periph.Name
		name := dep
		for i := 1; taken[name]; i++ {
			name = fmt.Sprintf("%s%d", dep, i)
		}
		taken[name] = true
		ps := proofSpec{field: gd.Field, accept: gd.Accept}
		plist = append(plist, fmt.Sprintf("%s %s.%s", name, dep, ps.name()))
		proves = append(proves, fmt.Sprintf("%s.%s()", name, ps.method()))
	}
	return strings.Join(plist, ", "), proves
}

func transition(f *file, p *model.Peripheral, t *model.Transition) {
	params, proves := guardArgs(t.Guards)

	fmt.Fprintf(f, "\n// Into%s moves the peripheral from %s to %s.\n", t.To.Name, t.From.Name, t.To.Name)
	if len(t.Guards) > 0 {
		fmt.Fprintln(f, "// The caller must present proof of the guarding dependencies:")
		for _, g := range t.Guards {
			names := make([]string, len(g.Accept))
			for i, v := range g.Accept {
				names[i] = v.Name
			}
			fmt.Fprintf(f, "//  %s in %s\n", g.Field.Path(), strings.Join(names, "|"))
		}
	}
	fmt.Fprintf(f, "func (s %s) Into%s(%s) %s {\n", t.From.Name, t.To.Name, params, t.To.Name)
	for _, pr := range proves {
		fmt.Fprintf(f, "\t%s\n", pr)
	}
	fmt.Fprintln(f, "\tg := s.h.Use(s.g)")
	writeSeq(f, p, t.Writes)
	fmt.Fprintf(f, "\treturn %s{h: s.h, g: g}\n", t.To.Name)
	fmt.Fprintln(f, "}")
}

// writeSeq emits the concrete read-modify-write sequence of a transition.
// A write whose mask covers the whole register degenerates to a plain
// store.
func writeSeq(f *file, p *model.Peripheral, writes []model.Write) {
	declared := false
	for _, w := range writes {
		reg := regByAddr(p, w.Addr)
		if w.Mask == uint32(1)<<w.Width-1 {
			fmt.Fprintf(f, "\t%s\n", storeStmt(reg, fmt.Sprintf("%#x", w.Value)))
			continue
		}
		if declared {
			fmt.Fprintf(f, "\tv = %s\n", loadExpr(reg))
		} else {
			fmt.Fprintf(f, "\tv := %s\n", loadExpr(reg))
			declared = true
		}
		fmt.Fprintf(f, "\t%s\n", storeStmt(reg, fmt.Sprintf("v&^%#x|%#x", w.Mask, w.Value)))
	}
}

func regByAddr(p *model.Peripheral, addr uint32) *model.Register {
	for _, r := range p.Registers {
		if r.Addr == addr {
			return r
		}
	}
	panic("gen: write targets no register")
}

// loadExpr renders a load of the whole register as a uint32 expression.
func loadExpr(r *model.Register) string {
	switch r.Width {
	case 16:
		return fmt.Sprintf("uint32(hal.Current.Load16(%sAddr))", r.Name)
	case 8:
		return fmt.Sprintf("uint32(hal.Current.Load8(%sAddr))", r.Name)
	}
	return fmt.Sprintf("hal.Current.Load32(%sAddr)", r.Name)
}

// storeStmt renders a store of the uint32 expression v to the whole
// register.
func storeStmt(r *model.Register, v string) string {
	switch r.Width {
	case 16:
		return fmt.Sprintf("hal.Current.Store16(%sAddr, uint16(%s))", r.Name, v)
	case 8:
		return fmt.Sprintf("hal.Current.Store8(%sAddr, uint8(%s))", r.Name, v)
	}
	return fmt.Sprintf("hal.Current.Store32(%sAddr, %s)", r.Name, v)
}

// proof emits one proof interface and its implementations on the
// satisfying state markers. The methods take pointer receivers and check
// marker liveness, so a consumed marker cannot be presented as proof.
func proof(f *file, p *model.Peripheral, ps proofSpec) {
	names := make([]string, len(ps.accept))
	for i, v := range ps.accept {
		names[i] = v.Name
	}
	fmt.Fprintf(f, "\n// %s is proof that %s holds %s.\n",
		ps.name(), ps.field.Path(), strings.Join(names, " or "))
	fmt.Fprintln(f, "// Dependent peripherals accept it as a transition argument; present a")
	fmt.Fprintln(f, "// live state marker.")
	fmt.Fprintf(f, "type %s interface {\n", ps.name())
	fmt.Fprintf(f, "\t%s()\n", ps.method())
	fmt.Fprintln(f, "}")
	for _, s := range p.States {
		if ps.satisfies(s) {
			fmt.Fprintf(f, "\nfunc (s *%s) %s() { s.h.Check(s.g) }\n", s.Name, ps.method())
		}
	}
}

// accessors emits value constants and read/write functions for the
// non-state fields. State fields have no accessors: their value is what
// the live marker says it is.
func accessors(f *file, p *model.Peripheral) {
	for _, r := range p.Registers {
		for _, fl := range r.Fields {
			if fl.Access == schema.StateAccess {
				continue
			}
			fn := pascal(fl.Name)
			if len(fl.Values) > 0 {
				fmt.Fprintf(f, "\n// %s field values\n", fl.Name)
				fmt.Fprintln(f, "const (")
				for _, v := range fl.Values {
					fmt.Fprintf(f, "\t%s%s uint32 = %#x", fn, v.Name, v.Bits)
					if d := v.Schema.Description; d != "" {
						fmt.Fprintf(f, " // %s", d)
					}
					fmt.Fprintln(f)
				}
				fmt.Fprintln(f, ")")
			}
			full := fl.Offset == 0 && fl.Width == r.Width
			mask := uint32(1)<<fl.Width - 1
			if fl.Access == schema.ReadAccess || fl.Access == schema.ReadWriteAccess {
				fmt.Fprintf(f, "\n// Read%s reads the %s field of the %s register.\n", fn, fl.Name, r.Name)
				fmt.Fprintf(f, "func Read%s() uint32 {\n", fn)
				if full {
					fmt.Fprintf(f, "\treturn %s\n", loadExpr(r))
				} else if fl.Offset == 0 {
					fmt.Fprintf(f, "\treturn %s & %#x\n", loadExpr(r), mask)
				} else {
					fmt.Fprintf(f, "\treturn %s >> %d & %#x\n", loadExpr(r), fl.Offset, mask)
				}
				fmt.Fprintln(f, "}")
			}
			if fl.Access == schema.WriteAccess || fl.Access == schema.ReadWriteAccess {
				fmt.Fprintf(f, "\n// Write%s writes the %s field of the %s register.\n", fn, fl.Name, r.Name)
				fmt.Fprintf(f, "func Write%s(v uint32) {\n", fn)
				if full {
					fmt.Fprintf(f, "\t%s\n", storeStmt(r, "v"))
				} else {
					rmw := fmt.Sprintf("%s&^%#x|v<<%d&%#x",
						loadExpr(r), fl.Mask(), fl.Offset, fl.Mask())
					fmt.Fprintf(f, "\t%s\n", storeStmt(r, rmw))
				}
				fmt.Fprintln(f, "}")
			}
		}
	}
}
