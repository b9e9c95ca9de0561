// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"go/token"
	"strings"
)

// Names the generator claims for itself in every emitted package. A
// peripheral named hal would make dependent packages import two
// packages under one identifier.
var reserved = map[string]bool{
	"reset":  true,
	"masked": true,
	"take":   true,
	"handle": true,
	"mmap":   true,
	"hal":    true,
}

// Marker type names every generated package owns.
var reservedExported = map[string]bool{
	"Reset":  true,
	"Masked": true,
}

// Validate checks a schema for lexical and structural errors: duplicated
// names, malformed bit ranges, and references that name nothing. Graph
// level properties (reachability, conflicts, cycles) are checked by the
// model package.
func Validate(dev *Device) ErrorList {
	var errs ErrorList

	periphs := make(map[string]*Peripheral)
	for _, p := range dev.Peripherals {
		if _, ok := periphs[p.Name]; ok {
			errs.add(DuplicateField, p.Pos, "peripheral %q declared twice", p.Name)
			continue
		}
		periphs[p.Name] = p
		checkName(&errs, p.Pos, "peripheral", p.Name)
		validatePeripheral(&errs, p)
	}

	// Dependency paths can reference any peripheral, so they resolve
	// only after the whole device is known.
	for _, p := range dev.Peripherals {
		for _, d := range p.Requires {
			resolveDependency(&errs, dev, d)
		}
		for _, r := range p.Registers {
			for _, f := range r.Fields {
				for _, v := range f.Values {
					for _, d := range v.Requires {
						resolveDependency(&errs, dev, d)
					}
				}
			}
		}
		for _, t := range p.Transitions {
			for _, d := range t.Requires {
				resolveDependency(&errs, dev, d)
			}
		}
	}

	return errs
}

func validatePeripheral(errs *ErrorList, p *Peripheral) {
	regs := make(map[string]*Register)
	stateFields := make(map[string]*Field)
	fieldRegs := make(map[string]string)
	for _, r := range p.Registers {
		if _, ok := regs[r.Name]; ok {
			errs.add(DuplicateField, r.Pos, "register %q declared twice in peripheral %q", r.Name, p.Name)
			continue
		}
		regs[r.Name] = r
		checkName(errs, r.Pos, "register", r.Name)
		validateRegister(errs, p, r)
		// Accessor and proof names derive from the field name alone, so
		// it must be unique across the whole peripheral, not just within
		// one register.
		for _, f := range r.Fields {
			if prev, ok := fieldRegs[f.Name]; ok {
				if prev != r.Name {
					errs.add(DuplicateField, f.Pos,
						"field %q declared in registers %q and %q of peripheral %q",
						f.Name, prev, r.Name, p.Name)
				}
				continue
			}
			fieldRegs[f.Name] = r.Name
			if f.Access == StateAccess {
				stateFields[f.Name] = f
			}
		}
	}

	if len(p.States) > 0 && len(stateFields) == 0 {
		errs.add(UnknownFieldReference, p.Pos,
			"peripheral %q declares states but has no state fields", p.Name)
	}

	states := make(map[string]*State)
	for _, s := range p.States {
		if _, ok := states[s.Name]; ok {
			errs.add(DuplicateField, s.Pos, "state %q declared twice in peripheral %q", s.Name, p.Name)
			continue
		}
		states[s.Name] = s
		if !exportedIdent(s.Name) {
			errs.add(ReservedName, s.Pos,
				"state %q: want an exported identifier (PascalCase)", s.Name)
		} else if reservedExported[s.Name] {
			errs.add(ReservedName, s.Pos, "state name %q is reserved", s.Name)
		}
		assigned := make(map[string]bool)
		for _, fv := range s.Fields {
			f, ok := stateFields[fv.Field]
			if !ok {
				errs.add(UnknownFieldReference, s.Pos,
					"state %q assigns %q which is not a state field of peripheral %q",
					s.Name, fv.Field, p.Name)
				continue
			}
			if assigned[fv.Field] {
				errs.add(DuplicateField, s.Pos, "state %q assigns field %q twice", s.Name, fv.Field)
			}
			assigned[fv.Field] = true
			if findValue(f, fv.Value) == nil {
				errs.add(UnknownFieldReference, s.Pos,
					"state %q assigns field %q the unknown value %q", s.Name, fv.Field, fv.Value)
			}
		}
		// A state is one fully specified configuration point.
		for name := range stateFields {
			if !assigned[name] {
				errs.add(MalformedValueRange, s.Pos,
					"state %q does not assign state field %q", s.Name, name)
			}
		}
	}

	if len(p.States) > 0 {
		for _, t := range p.Transitions {
			if _, ok := states[t.From]; !ok {
				errs.add(UnknownFieldReference, t.Pos,
					"transition source %q is not a state of peripheral %q", t.From, p.Name)
			}
			if _, ok := states[t.To]; !ok {
				errs.add(UnknownFieldReference, t.Pos,
					"transition target %q is not a state of peripheral %q", t.To, p.Name)
			}
		}
	}
}

func validateRegister(errs *ErrorList, p *Peripheral, r *Register) {
	switch r.Width {
	case 8, 16, 32:
	default:
		errs.add(MalformedValueRange, r.Pos,
			"register %q width %d: not 8, 16, 32", r.Name, r.Width)
	}
	fields := make(map[string]*Field)
	for _, f := range r.Fields {
		if _, ok := fields[f.Name]; ok {
			errs.add(DuplicateField, f.Pos, "field %q declared twice in register %q", f.Name, r.Name)
			continue
		}
		fields[f.Name] = f
		checkName(errs, f.Pos, "field", f.Name)
		validateField(errs, r, f)
	}
}

func validateField(errs *ErrorList, r *Register, f *Field) {
	if f.Access == 0 {
		errs.add(MalformedValueRange, f.Pos, "field %q: access not specified", f.Name)
	}
	if uint(f.Offset)+uint(f.Width) > uint(r.Width) {
		errs.add(MalformedValueRange, f.Pos,
			"field %q [%d:%d] exceeds the %d-bit register %q",
			f.Name, f.Offset, uint(f.Offset)+uint(f.Width)-1, r.Width, r.Name)
	}
	if len(f.Values) > 0 && f.Range != nil {
		errs.add(MalformedValueRange, f.Pos,
			"field %q has both enumerated values and a numeric range", f.Name)
	}
	if f.Access == StateAccess && len(f.Values) == 0 {
		errs.add(MalformedValueRange, f.Pos,
			"state field %q must enumerate its legal values", f.Name)
	}
	limit := uint64(1)<<f.Width - 1
	if f.Range != nil {
		if f.Range.Min > f.Range.Max {
			errs.add(MalformedValueRange, f.Pos,
				"field %q range [%d, %d]: min exceeds max", f.Name, f.Range.Min, f.Range.Max)
		}
		if uint64(f.Range.Max) > limit {
			errs.add(MalformedValueRange, f.Pos,
				"field %q range max %d exceeds the %d-bit field (largest possible: %d)",
				f.Name, f.Range.Max, f.Width, limit)
		}
	}
	values := make(map[string]*Value)
	for _, v := range f.Values {
		if _, ok := values[v.Name]; ok {
			errs.add(DuplicateField, v.Pos, "value %q declared twice in field %q", v.Name, f.Name)
			continue
		}
		values[v.Name] = v
		if !exportedIdent(v.Name) {
			errs.add(ReservedName, v.Pos,
				"value %q: want an exported identifier (PascalCase)", v.Name)
		} else if reservedExported[v.Name] {
			errs.add(ReservedName, v.Pos, "value name %q is reserved", v.Name)
		}
		if uint64(v.Bits) > limit {
			errs.add(MalformedValueRange, v.Pos,
				"value %q = %d exceeds the %d-bit field %q (largest possible: %d)",
				v.Name, v.Bits, f.Width, f.Name, limit)
		}
	}
}

// resolveDependency checks that a dependency path names a state bearing
// enumerated field and that every listed value exists.
func resolveDependency(errs *ErrorList, dev *Device, d *Dependency) {
	parts := strings.Split(d.Path, ".")
	if len(parts) != 3 {
		errs.add(UnknownFieldReference, d.Pos,
			"dependency path %q: want peripheral.register.field", d.Path)
		return
	}
	f := findField(dev, parts[0], parts[1], parts[2])
	if f == nil {
		errs.add(UnknownFieldReference, d.Pos, "dependency path %q names nothing", d.Path)
		return
	}
	if f.Access != StateAccess {
		errs.add(UnknownFieldReference, d.Pos,
			"dependency path %q targets a non-state field which cannot be depended on", d.Path)
		return
	}
	if len(d.Values) == 0 {
		errs.add(UnknownFieldReference, d.Pos, "dependency on %q lists no values", d.Path)
	}
	for _, name := range d.Values {
		if findValue(f, name) == nil {
			errs.add(UnknownFieldReference, d.Pos,
				"dependency value %q does not exist in field %q", name, d.Path)
		}
	}
}

func findField(dev *Device, periph, reg, field string) *Field {
	for _, p := range dev.Peripherals {
		if p.Name != periph {
			continue
		}
		for _, r := range p.Registers {
			if r.Name != reg {
				continue
			}
			for _, f := range r.Fields {
				if f.Name == field {
					return f
				}
			}
		}
	}
	return nil
}

func findValue(f *Field, name string) *Value {
	for _, v := range f.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func exportedIdent(name string) bool {
	if name == "" || !token.IsIdentifier(name) {
		return false
	}
	return name[0] >= 'A' && name[0] <= 'Z'
}

func checkName(errs *ErrorList, pos Pos, what, name string) {
	if name == "" {
		errs.add(ReservedName, pos, "%s name is empty", what)
		return
	}
	for i, c := range name {
		lower := c >= 'a' && c <= 'z'
		digit := c >= '0' && c <= '9'
		if !lower && c != '_' && !(digit && i > 0) {
			errs.add(ReservedName, pos,
				"%s name %q: want a lowercase identifier", what, name)
			return
		}
	}
	if reserved[name] || token.IsKeyword(name) {
		errs.add(ReservedName, pos, "%s name %q is reserved", what, name)
	}
}

// Path formats the canonical dotted path of a field, as used by
// dependency declarations and diagnostics.
func Path(periph, reg, field string) string {
	return fmt.Sprintf("%s.%s.%s", periph, reg, field)
}
