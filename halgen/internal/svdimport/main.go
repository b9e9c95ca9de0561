// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package svdimport converts a CMSIS-SVD file into schema and profile
// skeletons. The output is a starting point, not a finished schema: every
// imported field is read-write and the author promotes the state bearing
// ones to state access and declares dependencies by hand.
package svdimport

import (
	"encoding/xml"
	"flag"
	"fmt"
	"go/token"
	"os"
	"strings"

	"github.com/hwstate/halgen/halgen/internal/util"
	"github.com/hwstate/halgen/svd"
)

const Descr = "convert a CMSIS-SVD file into schema and profile skeletons"

func Main(args []string) {
	if len(args) == 0 {
		fmt.Println(Descr)
		return
	}
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  svdimport [OPTIONS] SVD [SCHEMA [PROFILE]]\nOptions:\n")
		fs.PrintDefaults()
	}
	periph := fs.String("periph", "", "import these peripherals only P1[,P2[,...]]")
	part := fs.String("part", "", "part name in the emitted profile (default: lowercased device name)")
	fs.Parse(args[1:])
	if fs.NArg() < 1 || fs.NArg() > 3 {
		fs.Usage()
		os.Exit(1)
	}

	f, err := os.Open(fs.Arg(0))
	util.FatalErr("", err)
	defer f.Close()
	dev := new(svd.Device)
	err = xml.NewDecoder(f).Decode(dev)
	util.FatalErr(fs.Arg(0), err)

	resolveDerived(dev)
	peripherals := filter(dev, *periph)
	if len(peripherals) == 0 {
		util.Fatal("%s: no peripherals selected", fs.Arg(0))
	}

	devName := ident(dev.Name)
	if *part == "" {
		*part = devName
	}
	schemaOut := fs.Arg(1)
	if schemaOut == "" {
		schemaOut = devName + ".yaml"
	}
	profileOut := fs.Arg(2)
	if profileOut == "" {
		profileOut = devName + ".parts.yaml"
	}

	writeFile(schemaOut, func(w *strings.Builder) { emitSchema(w, dev, peripherals) })
	writeFile(profileOut, func(w *strings.Builder) { emitProfile(w, dev, peripherals, *part) })
	fmt.Printf("%s: %d peripherals imported into %s and %s\n",
		dev.Name, len(peripherals), schemaOut, profileOut)
}

// resolveDerived copies registers into peripherals declared derivedFrom
// another one, the SVD shorthand for identical register layouts.
func resolveDerived(dev *svd.Device) {
	byName := make(map[string]*svd.Peripheral, len(dev.Peripherals))
	for _, p := range dev.Peripherals {
		byName[p.Name] = p
	}
	for _, p := range dev.Peripherals {
		if p.DerivedFrom == nil || len(p.Registers) > 0 {
			continue
		}
		if origin := byName[*p.DerivedFrom]; origin != nil {
			p.Registers = origin.Registers
			if p.Description == nil {
				p.Description = origin.Description
			}
		}
	}
}

func filter(dev *svd.Device, list string) []*svd.Peripheral {
	if list == "" {
		return dev.Peripherals
	}
	want := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		want[strings.ToUpper(strings.TrimSpace(name))] = true
	}
	var out []*svd.Peripheral
	for _, p := range dev.Peripherals {
		if want[strings.ToUpper(p.Name)] {
			out = append(out, p)
		}
	}
	return out
}

func emitSchema(w *strings.Builder, dev *svd.Device, peripherals []*svd.Peripheral) {
	fmt.Fprintf(w, "# imported from SVD; review field access (promote state fields) and\n")
	fmt.Fprintf(w, "# declare dependencies before use\n")
	fmt.Fprintf(w, "device: %s\n", ident(dev.Name))
	if dev.Description != "" {
		fmt.Fprintf(w, "description: %s\n", quote(dev.Description))
	}
	fmt.Fprintf(w, "peripherals:\n")
	for _, p := range peripherals {
		fmt.Fprintf(w, "  - name: %s\n", ident(p.Name))
		if d := deref(p.Description); d != "" {
			fmt.Fprintf(w, "    description: %s\n", quote(d))
		}
		fmt.Fprintf(w, "    registers:\n")
		for _, r := range p.Registers {
			emitRegister(w, dev, p, r)
		}
	}
}

func emitRegister(w *strings.Builder, dev *svd.Device, p *svd.Peripheral, r *svd.Register) {
	fmt.Fprintf(w, "      - name: %s\n", ident(r.Name))
	if d := deref(r.Description); d != "" {
		fmt.Fprintf(w, "        description: %s\n", quote(d))
	}
	fmt.Fprintf(w, "        offset: 0x%02X\n", uint64(r.AddressOffset))
	if width := regWidth(dev, p, r); width != 32 {
		fmt.Fprintf(w, "        width: %d\n", width)
	}
	if reset := regReset(dev, p, r); reset != 0 {
		fmt.Fprintf(w, "        reset: 0x%X\n", reset)
	}
	if len(r.Fields) == 0 {
		return
	}
	fmt.Fprintf(w, "        fields:\n")
	for _, f := range r.Fields {
		offset, width := f.Bits()
		fmt.Fprintf(w, "          - name: %s\n", ident(f.Name))
		if d := deref(f.Description); d != "" {
			fmt.Fprintf(w, "            description: %s\n", quote(d))
		}
		fmt.Fprintf(w, "            offset: %d\n", offset)
		if width != 1 {
			fmt.Fprintf(w, "            width: %d\n", width)
		}
		fmt.Fprintf(w, "            access: %s\n", access(f))
		emitValues(w, f)
	}
}

func emitValues(w *strings.Builder, f *svd.Field) {
	var values []*svd.EnumeratedValue
	for _, evs := range f.EnumeratedValues {
		values = append(values, evs.EnumeratedValue...)
	}
	first := true
	seen := make(map[string]bool)
	for _, ev := range values {
		bits, err := ev.Val()
		if err != nil || ev.Name == nil {
			continue
		}
		name := valueIdent(*ev.Name)
		if seen[name] {
			continue
		}
		seen[name] = true
		if first {
			fmt.Fprintf(w, "            values:\n")
			first = false
		}
		fmt.Fprintf(w, "              - name: %s\n", name)
		fmt.Fprintf(w, "                bits: %d\n", bits)
		if d := deref(ev.Description); d != "" {
			fmt.Fprintf(w, "                description: %s\n", quote(d))
		}
	}
}

func emitProfile(w *strings.Builder, dev *svd.Device, peripherals []*svd.Peripheral, part string) {
	family := ident(dev.Name)
	if dev.Series != nil && *dev.Series != "" {
		family = ident(*dev.Series)
	}
	fmt.Fprintf(w, "family: %s\n", family)
	fmt.Fprintf(w, "parts:\n")
	fmt.Fprintf(w, "  %s:\n", part)
	fmt.Fprintf(w, "    peripherals:\n")
	for _, p := range peripherals {
		fmt.Fprintf(w, "      %s: {base: 0x%08X}\n", ident(p.Name), uint64(p.BaseAddress))
	}
}

func regWidth(dev *svd.Device, p *svd.Peripheral, r *svd.Register) uint {
	for _, g := range []*svd.RegisterPropertiesGroup{
		r.RegisterPropertiesGroup, p.RegisterPropertiesGroup, dev.RegisterPropertiesGroup,
	} {
		if g != nil && g.Size != nil {
			return uint(*g.Size)
		}
	}
	return 32
}

func regReset(dev *svd.Device, p *svd.Peripheral, r *svd.Register) uint32 {
	for _, g := range []*svd.RegisterPropertiesGroup{
		r.RegisterPropertiesGroup, p.RegisterPropertiesGroup, dev.RegisterPropertiesGroup,
	} {
		if g != nil && g.ResetValue != nil {
			return uint32(*g.ResetValue)
		}
	}
	return 0
}

func access(f *svd.Field) string {
	if f.Access == nil {
		return "read-write"
	}
	switch *f.Access {
	case "read-only":
		return "read"
	case "write-only", "writeOnce":
		return "write"
	}
	return "read-write"
}

// The schema grammar claims these names for the generator.
var reserved = map[string]bool{
	"reset": true, "masked": true, "take": true, "handle": true, "mmap": true, "hal": true,
}

// ident lowers an SVD name into the schema's identifier grammar.
func ident(name string) string {
	var b strings.Builder
	for i, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteByte('r')
			}
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		return "unnamed"
	}
	if reserved[s] || token.IsKeyword(s) {
		s += "_"
	}
	return s
}

// valueIdent makes an exported identifier out of an SVD enumerated value
// name: "DIV_1" -> "Div1", "1MHZ" -> "V1Mhz".
func valueIdent(name string) string {
	var b strings.Builder
	up := true
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z':
			if up {
				c &^= 0x20
				up = false
			}
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if b.Len() == 0 {
				b.WriteByte('V')
			}
			b.WriteRune(c)
			up = true
		default:
			up = true
		}
	}
	if b.Len() == 0 {
		return "Unnamed"
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// quote collapses the whitespace runs common in SVD descriptions and
// emits a YAML safe double quoted scalar.
func quote(s string) string {
	return fmt.Sprintf("%q", strings.Join(strings.Fields(s), " "))
}

func writeFile(path string, emit func(w *strings.Builder)) {
	var b strings.Builder
	emit(&b)
	util.FatalErr("", os.WriteFile(path, []byte(b.String()), 0o644))
}
