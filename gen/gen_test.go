// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen_test

import (
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstate/halgen/gen"
	"github.com/hwstate/halgen/model"
	"github.com/hwstate/halgen/profile"
	"github.com/hwstate/halgen/schema"
)

const importRoot = "example.com/dev/g4hal"

func buildCorpus(t *testing.T, part string) *model.Model {
	t.Helper()
	dev, err := schema.Load("../testdata/g431.yaml")
	require.NoError(t, err)
	set, err := profile.Load("../testdata/g4.parts.yaml")
	require.NoError(t, err)
	p, err := set.Select(part)
	require.NoError(t, err)
	m, err := model.Build(dev, p)
	require.NoError(t, err)
	return m
}

func generate(t *testing.T, part string) (string, *model.Model) {
	t.Helper()
	m := buildCorpus(t, part)
	dir := t.TempDir()
	err := gen.Generate(m, gen.Config{Dir: dir, ImportRoot: importRoot, Part: part})
	require.NoError(t, err)
	return dir, m
}

func read(t *testing.T, dir string, elem ...string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(append([]string{dir}, elem...)...))
	require.NoError(t, err)
	return string(b)
}

func TestGeneratedFileSet(t *testing.T) {
	dir, m := generate(t, "g431")

	want := []string{"mmap"}
	for _, p := range m.Peripherals {
		want = append(want, p.Name)
	}
	for _, name := range want {
		src := read(t, dir, name, "g431.go")
		assert.True(t, strings.HasPrefix(src, "// Code generated by halgen. DO NOT EDIT.\n"), name)
		assert.Contains(t, src, "//go:build g431", name)

		// Output is gofmt clean.
		formatted, err := format.Source([]byte(src))
		require.NoError(t, err, name)
		assert.Equal(t, string(formatted), src, "%s is not gofmt clean", name)
	}
}

func TestMmapPackage(t *testing.T) {
	dir, _ := generate(t, "g431")
	src := read(t, dir, "mmap", "g431.go")
	assert.Contains(t, src, "package mmap")
	// gofmt aligns the const block, so match loosely on whitespace.
	assert.Regexp(t, `RCC_BASE\s+uint32 = 0x40021000`, src)
	assert.Regexp(t, `GPIOA_BASE\s+uint32 = 0x48000000`, src)
	assert.Regexp(t, `CORDIC_BASE\s+uint32 = 0x40020C00`, src)
}

func TestRegisterAddressConstants(t *testing.T) {
	dir, _ := generate(t, "g431")

	rcc := read(t, dir, "rcc", "g431.go")
	assert.Contains(t, rcc, "ahb1enrAddr = mmap.RCC_BASE + 0x48")

	// The profile overrides exticr1, so the constant is absolute and the
	// package does not import mmap.
	syscfg := read(t, dir, "syscfg", "g431.go")
	assert.Contains(t, syscfg, "exticr1Addr uint32 = 0x40010008")
	assert.NotContains(t, syscfg, importRoot+"/mmap")
}

// TestMarkerSurface recovers the marker types and transition methods from
// every generated package and compares them against the model. In
// particular no method exists for an undeclared edge.
func TestMarkerSurface(t *testing.T) {
	dir, m := generate(t, "g431")

	for _, p := range m.Peripherals {
		path := filepath.Join(dir, p.Name, "g431.go")
		src, err := os.ReadFile(path)
		require.NoError(t, err)
		mk, err := gen.ParseMarkers(path, src)
		require.NoError(t, err)

		var states []string
		for _, s := range p.States {
			states = append(states, s.Name)
		}
		assert.ElementsMatch(t, states, mk.States, p.Name)

		var edges []gen.Edge
		for _, tr := range p.Transitions {
			edges = append(edges, gen.Edge{From: tr.From.Name, To: tr.To.Name})
		}
		assert.ElementsMatch(t, edges, mk.Transitions, p.Name)
	}

	// gpioa declares no Input -> Output guard shortcut through Alt and no
	// Analog -> Alt edge at all.
	gpioa := read(t, dir, "gpioa", "g431.go")
	assert.NotContains(t, gpioa, "func (s Analog) IntoAlt")
	assert.Contains(t, gpioa, "func (s Analog) IntoInput() Input")
}

func TestMaskedPeripheral(t *testing.T) {
	dir, _ := generate(t, "g431")

	cordic := read(t, dir, "cordic", "g431.go")
	assert.Contains(t, cordic, "type Masked struct")
	assert.Contains(t, cordic, "func Take() Masked")
	assert.NotContains(t, cordic, "func TakeReset()")
	assert.Contains(t, cordic, "func (s Masked) Unmask(rcc rcc.CordicenEnabled) CosP20")
	assert.Contains(t, cordic, `"`+importRoot+`/rcc"`)

	// An unmasked peripheral exposes TakeReset instead.
	gpioa := read(t, dir, "gpioa", "g431.go")
	assert.Contains(t, gpioa, "func TakeReset() Analog")
	assert.NotContains(t, gpioa, "type Masked struct")
}

func TestProofInterfaces(t *testing.T) {
	dir, _ := generate(t, "g431")

	rcc := read(t, dir, "rcc", "g431.go")
	assert.Contains(t, rcc, "type CordicenEnabled interface")
	assert.Contains(t, rcc, "ProveCordicenEnabled()")
	// Both states holding cordicen=Enabled satisfy the proof.
	assert.Contains(t, rcc, "func (s *EnabledDisabled) ProveCordicenEnabled()")
	assert.Contains(t, rcc, "func (s *EnabledEnabled) ProveCordicenEnabled()")
	assert.NotContains(t, rcc, "func (s *DisabledDisabled) ProveCordicenEnabled()")

	gpioa := read(t, dir, "gpioa", "g431.go")
	assert.Contains(t, gpioa, "type Mode0Input interface")
	assert.Contains(t, gpioa, "func (s *Input) ProveMode0Input()")

	// The guarded syscfg edge takes the proof as a parameter.
	syscfg := read(t, dir, "syscfg", "g431.go")
	assert.Contains(t, syscfg, "func (s Pb0) IntoPa0(gpioa gpioa.Mode0Input) Pa0")
	assert.Contains(t, syscfg, "gpioa.ProveMode0Input()")
	// The unguarded opposite edge takes none.
	assert.Contains(t, syscfg, "func (s Pa0) IntoPb0() Pb0")
}

func TestAccessors(t *testing.T) {
	dir, _ := generate(t, "g431")

	cordic := read(t, dir, "cordic", "g431.go")
	// Full width fields degenerate to plain loads and stores.
	assert.Contains(t, cordic, "func ReadRes() uint32 {\n\treturn hal.Current.Load32(rdataAddr)\n}")
	assert.Contains(t, cordic, "func WriteArg(v uint32) {\n\thal.Current.Store32(wdataAddr, v)\n}")
	// Partial fields shift and mask.
	assert.Contains(t, cordic, "func ReadScale() uint32")
	assert.Contains(t, cordic, "func ReadRrdy() uint32")
	assert.NotContains(t, cordic, "func WriteRrdy")
	// State fields get no accessors; the marker is the value.
	assert.NotContains(t, cordic, "func ReadFunction")
	assert.NotContains(t, cordic, "func WriteFunction")
}

func TestTransitionWritesEmitted(t *testing.T) {
	dir, _ := generate(t, "g431")

	gpioa := read(t, dir, "gpioa", "g431.go")
	// Analog(0b11) -> Output(0b01) in the 2-bit mode0 field.
	assert.Contains(t, gpioa, "v := hal.Current.Load32(moderAddr)")
	assert.Contains(t, gpioa, "hal.Current.Store32(moderAddr, v&^0x3|0x1)")

	// Every transition consumes the source marker.
	assert.Contains(t, gpioa, "g := s.h.Use(s.g)")
}

func TestGenerateMultiPart(t *testing.T) {
	m431 := buildCorpus(t, "g431")
	m474 := buildCorpus(t, "g474")
	dir := t.TempDir()

	require.NoError(t, gen.Generate(m431, gen.Config{Dir: dir, ImportRoot: importRoot, Part: "g431"}))
	require.NoError(t, gen.Generate(m474, gen.Config{Dir: dir, ImportRoot: importRoot, Part: "g474"}))

	a := read(t, dir, "rcc", "g431.go")
	b := read(t, dir, "rcc", "g474.go")
	assert.Contains(t, a, "//go:build g431")
	assert.Contains(t, b, "//go:build g474")

	// g474 does not override exticr1, so its constant is base relative.
	s474 := read(t, dir, "syscfg", "g474.go")
	assert.Contains(t, s474, "exticr1Addr = mmap.SYSCFG_BASE + 0x08")
}

func TestBadImportRoot(t *testing.T) {
	m := buildCorpus(t, "g431")
	err := gen.Generate(m, gen.Config{Dir: t.TempDir(), ImportRoot: "bad path!", Part: "g431"})
	require.Error(t, err)
	ge, ok := err.(*gen.Error)
	require.True(t, ok)
	assert.Equal(t, gen.BadImportRoot, ge.Kind)
}

func TestAddressOverflow(t *testing.T) {
	dev, err := schema.Decode(strings.NewReader(`
device: testdev
peripherals:
  - name: p
    registers:
      - name: cr
        offset: 0x08
`), "test.yaml")
	require.NoError(t, err)
	set, err := profile.Decode(strings.NewReader(`
family: test
parts:
  p1:
    peripherals:
      p: {base: 0xFFFFFFF8}
`), "parts.yaml")
	require.NoError(t, err)
	part, err := set.Select("p1")
	require.NoError(t, err)
	m, err := model.Build(dev, part)
	require.NoError(t, err)

	dir := t.TempDir()
	err = gen.Generate(m, gen.Config{Dir: dir, ImportRoot: importRoot, Part: "p1"})
	require.Error(t, err)
	ge, ok := err.(*gen.Error)
	require.True(t, ok)
	assert.Equal(t, gen.AddressOverflow, ge.Kind)
	assert.Contains(t, ge.Msg, "p.cr")

	// No partial output.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestGuardParamAvoidsLocals: a dependency peripheral named like one of
// the identifiers a method body declares (the receiver s, the generation
// g, the scratch word v, the hal import) must not shadow them; the proof
// parameter is renamed instead.
func TestGuardParamAvoidsLocals(t *testing.T) {
	dev, err := schema.Decode(strings.NewReader(`
device: testdev
peripherals:
  - name: g
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
  - name: p
    requires:
      - {path: g.cr.en, values: [On]}
    registers:
      - name: cr
        fields:
          - name: mode
            offset: 0
            access: state
            values:
              - {name: A, bits: 0}
              - name: B
                bits: 1
                requires:
                  - {path: g.cr.en, values: [On]}
`), "test.yaml")
	require.NoError(t, err)
	set, err := profile.Decode(strings.NewReader(`
family: test
parts:
  p1:
    peripherals:
      g: {base: 0x40000000}
      p: {base: 0x40001000}
`), "parts.yaml")
	require.NoError(t, err)
	part, err := set.Select("p1")
	require.NoError(t, err)
	m, err := model.Build(dev, part)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, gen.Generate(m, gen.Config{Dir: dir, ImportRoot: importRoot, Part: "p1"}))

	src := read(t, dir, "p", "p1.go")
	assert.Contains(t, src, "func (s Masked) Unmask(g1 g.EnOn) A")
	assert.Contains(t, src, "func (s A) IntoB(g1 g.EnOn) B")
	assert.Contains(t, src, "g1.ProveEnOn()")
	assert.NotContains(t, src, "(g g.")
	// The body's own locals survive next to the renamed parameter.
	assert.Contains(t, src, "g := s.h.Use(s.g)")
	assert.Contains(t, src, "v := hal.Current.Load32(crAddr)")
}

func TestParseMarkers(t *testing.T) {
	src := []byte(`package pin

import "example.com/hal"

type Masked struct {
	h *hal.Handle
	g uint32
}

type Input struct {
	h *hal.Handle
	g uint32
}

type Output struct {
	h *hal.Handle
	g uint32
}

type notAMarker struct {
	x int
}

func (s Input) IntoOutput() Output { return Output{} }

func (s Masked) Unmask() Input { return Input{} }
`)
	mk, err := gen.ParseMarkers("pin.go", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"Input", "Output"}, mk.States)
	assert.Equal(t, []gen.Edge{{From: "Input", To: "Output"}}, mk.Transitions)
}
