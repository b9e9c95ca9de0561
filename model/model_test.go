// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstate/halgen/model"
	"github.com/hwstate/halgen/profile"
	"github.com/hwstate/halgen/schema"
)

func buildCorpus(t *testing.T) *model.Model {
	t.Helper()
	dev, err := schema.Load("../testdata/g431.yaml")
	require.NoError(t, err)
	set, err := profile.Load("../testdata/g4.parts.yaml")
	require.NoError(t, err)
	part, err := set.Select("g431")
	require.NoError(t, err)
	m, err := model.Build(dev, part)
	require.NoError(t, err)
	return m
}

// build assembles a model from inline documents, for the error cases.
func build(t *testing.T, peripherals, parts string) (*model.Model, error) {
	t.Helper()
	dev, err := schema.Decode(strings.NewReader("device: testdev\nperipherals:\n"+peripherals), "test.yaml")
	require.NoError(t, err)
	set, err := profile.Decode(strings.NewReader("family: test\nparts:\n"+parts), "parts.yaml")
	require.NoError(t, err)
	part, err := set.Select("p1")
	require.NoError(t, err)
	return model.Build(dev, part)
}

const onePeriph = `
  p1:
    peripherals:
      p: {base: 0x40000000}
`

const twoPeriphs = `
  p1:
    peripherals:
      p: {base: 0x40000000}
      q: {base: 0x40001000}
`

func TestBuildCorpus(t *testing.T) {
	m := buildCorpus(t)
	require.Len(t, m.Peripherals, 5)

	rcc := m.Peripheral("rcc")
	require.NotNil(t, rcc)
	assert.False(t, rcc.Masked())
	// Cartesian product of the two clock enable fields.
	assert.Len(t, rcc.States, 4)
	assert.Equal(t, "DisabledDisabled", rcc.Reset.Name)
	// All states live in one register, so every ordered pair is an edge.
	assert.Len(t, rcc.Transitions, 12)

	cordic := m.Peripheral("cordic")
	assert.True(t, cordic.Masked())
	assert.Len(t, cordic.States, 6)
	assert.Equal(t, "CosP20", cordic.Reset.Name)

	crc := m.Peripheral("crc")
	assert.True(t, crc.Masked())
	assert.Equal(t, "B32None", crc.Reset.Name)

	gpioa := m.Peripheral("gpioa")
	assert.Equal(t, "Analog", gpioa.Reset.Name)
	// Declared edges only, never the full product.
	assert.Len(t, gpioa.Transitions, 8)

	cordicen := rcc.Registers[0].Fields[0]
	assert.Equal(t, uint32(0x8), cordicen.Mask())
	assert.Equal(t, "rcc.ahb1enr.cordicen", cordicen.Path())
}

func TestResolvedAddresses(t *testing.T) {
	m := buildCorpus(t)

	assert.Equal(t, uint32(0x40021048), m.Peripheral("rcc").Registers[0].Addr)
	// Per register profile override.
	assert.Equal(t, uint32(0x40010008), m.Peripheral("syscfg").Registers[0].Addr)
}

func TestTransitionWrites(t *testing.T) {
	m := buildCorpus(t)

	gpioa := m.Peripheral("gpioa")
	var analogToInput *model.Transition
	for _, tr := range gpioa.Transitions {
		if tr.From.Name == "Analog" && tr.To.Name == "Input" {
			analogToInput = tr
		}
	}
	require.NotNil(t, analogToInput)
	require.Len(t, analogToInput.Writes, 1)
	w := analogToInput.Writes[0]
	assert.Equal(t, uint32(0x48000000), w.Addr)
	assert.Equal(t, uint(32), w.Width)
	assert.Equal(t, uint32(0x3), w.Mask)
	assert.Equal(t, uint32(0x0), w.Value)

	cordic := m.Peripheral("cordic")
	for _, tr := range cordic.Transitions {
		if tr.From.Name == "CosP20" && tr.To.Name == "SinP20" {
			require.Len(t, tr.Writes, 1)
			assert.Equal(t, uint32(0x40020C00), tr.Writes[0].Addr)
			assert.Equal(t, uint32(0xF), tr.Writes[0].Mask)
			assert.Equal(t, uint32(0x1), tr.Writes[0].Value)
		}
	}
}

// TestVariantGuards checks that entering a value with statewise
// dependencies guards the edge, and that the guard accepts exactly the
// declared dependency states.
func TestVariantGuards(t *testing.T) {
	m := buildCorpus(t)

	syscfg := m.Peripheral("syscfg")
	gpioa := m.Peripheral("gpioa")
	var toPa0, toPb0 *model.Transition
	for _, tr := range syscfg.Transitions {
		switch tr.To.Name {
		case "Pa0":
			toPa0 = tr
		case "Pb0":
			toPb0 = tr
		}
	}
	require.NotNil(t, toPa0)
	require.NotNil(t, toPb0)

	assert.Empty(t, toPb0.Guards)
	require.Len(t, toPa0.Guards, 1)
	g := toPa0.Guards[0]
	assert.Equal(t, "gpioa.moder.mode0", g.Field.Path())
	for _, s := range gpioa.States {
		if s.Name == "Input" {
			assert.True(t, g.Satisfied(s))
		} else {
			assert.False(t, g.Satisfied(s), "state %s must not satisfy the guard", s.Name)
		}
	}
}

// TestDeterminism rebuilds the model and compares the full derived
// surface. Generation must be reproducible from the same inputs.
func TestDeterminism(t *testing.T) {
	type edge struct {
		from, to string
		writes   []model.Write
	}
	surface := func(m *model.Model) map[string][]edge {
		out := make(map[string][]edge)
		for _, p := range m.Peripherals {
			var edges []edge
			for _, tr := range p.Transitions {
				edges = append(edges, edge{tr.From.Name, tr.To.Name, tr.Writes})
			}
			out[p.Name] = edges
		}
		return out
	}
	a, b := buildCorpus(t), buildCorpus(t)
	assert.True(t, reflect.DeepEqual(surface(a), surface(b)))
}

func TestTopologicalOrder(t *testing.T) {
	m := buildCorpus(t)
	order := m.TopologicalOrder()
	require.Len(t, order, 5)

	pos := make(map[string]int)
	for i, p := range order {
		pos[p.Name] = i
	}
	assert.Less(t, pos["rcc"], pos["cordic"])
	assert.Less(t, pos["rcc"], pos["crc"])
	assert.Less(t, pos["gpioa"], pos["syscfg"])
}

func wantKind(t *testing.T, err error, kind model.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	me, ok := err.(*model.Error)
	require.True(t, ok, "want *model.Error, got %T: %v", err, err)
	found := false
	for _, d := range me.Diags {
		if d.Rank == model.ErrorRank && d.Kind == kind && strings.Contains(d.Message, msg) {
			found = true
		}
	}
	assert.True(t, found, "no %v error containing %q in: %v", kind, msg, err)
}

func TestUnreachableState(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            width: 2
            access: state
            values:
              - {name: Off, bits: 0}
              - {name: On, bits: 1}
              - {name: Fast, bits: 2}
    transitions:
      - {from: Off, to: On}
      - {from: On, to: Off}
`, onePeriph)
	wantKind(t, err, model.UnreachableState, "no transition path from the reset state")
}

func TestNoResetState(t *testing.T) {
	// cr resets to 0 but no value of en is 0.
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            width: 2
            access: state
            values:
              - {name: On, bits: 1}
              - {name: Fast, bits: 2}
`, onePeriph)
	wantKind(t, err, model.UnreachableState, "no state corresponds to the register reset values")
}

func TestDependencyCycle(t *testing.T) {
	_, err := build(t, `
  - name: p
    requires:
      - {path: q.cr.en, values: [On]}
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
  - name: q
    requires:
      - {path: p.cr.en, values: [On]}
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
`, twoPeriphs)
	wantKind(t, err, model.CyclicDependency, "cannot be linearized")
}

func TestSelfDependency(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values:
              - {name: Off, bits: 0}
              - name: On
                bits: 1
                requires:
                  - {path: p.cr.en, values: [Off]}
`, onePeriph)
	wantKind(t, err, model.CyclicDependency, "depends on its own state")
}

func TestConflictingStates(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
    states:
      - name: Idle
        fields: [{field: en, value: Off}]
      - name: Sleeping
        fields: [{field: en, value: Off}]
    transitions:
      - {from: Idle, to: Sleeping}
`, onePeriph)
	wantKind(t, err, model.ConflictingAssignment, "identical assignments")
}

func TestOverlappingFields(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - {name: lo, offset: 0, width: 4, access: read}
          - {name: hi, offset: 3, width: 4, access: read}
`, onePeriph)
	wantKind(t, err, model.ConflictingAssignment, `fields "lo" and "hi" overlap`)
}

func TestOverlappingRegisters(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - {name: cr, offset: 0x00}
      - {name: sr, offset: 0x02}
`, onePeriph)
	wantKind(t, err, model.ConflictingAssignment, `registers "cr" and "sr" overlap`)
}

func TestOverlappingPeripherals(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers: [{name: cr, offset: 0x00}]
  - name: q
    registers: [{name: cr, offset: 0x00}]
`, `
  p1:
    peripherals:
      p: {base: 0x40000000}
      q: {base: 0x40000000}
`)
	wantKind(t, err, model.ConflictingAssignment, `peripherals "p" and "q" overlap`)
}

func TestDuplicateTransition(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
    transitions:
      - {from: Off, to: On}
      - {from: Off, to: On}
      - {from: On, to: Off}
`, onePeriph)
	wantKind(t, err, model.NonDeterministicTransition, `declared twice`)
}

// TestRedeclaredTransitionGuards: the same edge declared twice with
// different guards is ambiguous; the first declaration wins and the
// redeclaration is only a warning.
func TestRedeclaredTransitionGuards(t *testing.T) {
	m, err := build(t, `
  - name: q
    registers:
      - name: cr
        fields:
          - name: clk
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
    transitions:
      - {from: Off, to: On}
      - from: Off
        to: On
        requires:
          - {path: q.cr.clk, values: [On]}
      - {from: On, to: Off}
`, `
  p1:
    peripherals:
      q: {base: 0x40000000}
      p: {base: 0x40001000}
`)
	require.NoError(t, err)

	warned := false
	for _, d := range m.Warnings {
		if d.Rank == model.Warning && d.Kind == model.NonDeterministicTransition {
			warned = true
		}
	}
	assert.True(t, warned)

	p := m.Peripheral("p")
	require.Len(t, p.Transitions, 2)
	// First declaration wins: the edge is unguarded.
	for _, tr := range p.Transitions {
		if tr.From.Name == "Off" && tr.To.Name == "On" {
			assert.Empty(t, tr.Guards)
		}
	}
}

func TestUnknownTransitionEndpoint(t *testing.T) {
	_, err := build(t, `
  - name: p
    registers:
      - name: cr
        fields:
          - name: en
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
    transitions:
      - {from: Off, to: Sleep}
`, onePeriph)
	wantKind(t, err, model.UnknownReference, `transition target "Sleep" is not a state`)
}

// TestStatelessPeripheral: a peripheral without state fields gets the
// single Reset state and no transitions.
func TestStatelessPeripheral(t *testing.T) {
	m, err := build(t, `
  - name: p
    registers:
      - name: dr
        fields:
          - {name: data, offset: 0, width: 32, access: read-write}
`, onePeriph)
	require.NoError(t, err)

	p := m.Peripheral("p")
	require.Len(t, p.States, 1)
	assert.Equal(t, "Reset", p.States[0].Name)
	assert.Same(t, p.States[0], p.Reset)
	assert.Empty(t, p.Transitions)
}

// TestDerivedSingleRegisterMoves: derived transitions exist exactly
// between state pairs whose difference is confined to one register.
func TestDerivedSingleRegisterMoves(t *testing.T) {
	m, err := build(t, `
  - name: p
    registers:
      - name: cr1
        offset: 0x00
        fields:
          - name: a
            offset: 0
            access: state
            values: [{name: Off, bits: 0}, {name: On, bits: 1}]
      - name: cr2
        offset: 0x04
        fields:
          - name: b
            offset: 0
            access: state
            values: [{name: Lo, bits: 0}, {name: Hi, bits: 1}]
`, onePeriph)
	require.NoError(t, err)

	p := m.Peripheral("p")
	require.Len(t, p.States, 4)
	// Diagonal moves (both registers change) are not single moves:
	// 12 ordered pairs minus the 4 diagonal ones.
	assert.Len(t, p.Transitions, 8)
	for _, tr := range p.Transitions {
		assert.Len(t, tr.Writes, 1, "%s -> %s must be a single register move", tr.From.Name, tr.To.Name)
	}
}

func TestUnknownDependencyPeripheral(t *testing.T) {
	// The schema package validates paths lexically; a path naming a
	// missing peripheral in an otherwise well formed document is caught
	// at schema validation already, so the model check needs a schema
	// that passed. Decode bypass: build the device by hand.
	dev := &schema.Device{
		Name: "testdev",
		Peripherals: []*schema.Peripheral{{
			Name: "p",
			Requires: []*schema.Dependency{
				{Path: "ghost.cr.en", Values: []string{"On"}},
			},
			Registers: []*schema.Register{{
				Name: "cr", Width: 32,
				Fields: []*schema.Field{{
					Name: "en", Width: 1, Access: schema.StateAccess,
					Values: []*schema.Value{
						{Name: "Off", Bits: 0},
						{Name: "On", Bits: 1},
					},
				}},
			}},
		}},
	}
	set, err := profile.Decode(strings.NewReader("family: test\nparts:\n"+onePeriph), "parts.yaml")
	require.NoError(t, err)
	part, err := set.Select("p1")
	require.NoError(t, err)
	_, err = model.Build(dev, part)
	wantKind(t, err, model.UnknownReference, `dependency peripheral "ghost" does not exist`)
}
