// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstate/halgen/hal"
)

func TestTakeTwicePanics(t *testing.T) {
	h := hal.NewHandle("uart")
	h.Take()
	assert.PanicsWithValue(t, "hal: uart marker taken twice", func() { h.Take() })
}

func TestUseConsumesGeneration(t *testing.T) {
	h := hal.NewHandle("uart")
	h.Take()

	g0 := h.Gen()
	g1 := h.Use(g0)
	require.NotEqual(t, g0, g1)

	// The consumed generation is stale.
	assert.PanicsWithValue(t, "hal: stale uart marker used after transition", func() { h.Use(g0) })

	// The fresh one moves on.
	g2 := h.Use(g1)
	assert.NotEqual(t, g1, g2)
}

func TestCheckDoesNotConsume(t *testing.T) {
	h := hal.NewHandle("rcc")
	h.Take()

	g := h.Gen()
	h.Check(g)
	h.Check(g) // proofs are reusable while the marker lives

	g = h.Use(g)
	h.Check(g)
	assert.PanicsWithValue(t, "hal: stale rcc marker presented as proof", func() { h.Check(g - 1) })
}

func TestMemWordAccess(t *testing.T) {
	m := hal.NewMem()
	m.Store32(0x40000000, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), m.Load32(0x40000000))

	// Unwritten registers read as zero.
	assert.Equal(t, uint32(0), m.Load32(0x40000004))

	m.Seed(0x48000000, 0xFFFFFFFF)
	assert.Equal(t, uint32(0xFFFFFFFF), m.Load32(0x48000000))
}

func TestMemSubwordAccess(t *testing.T) {
	m := hal.NewMem()
	m.Store32(0x40000000, 0x11223344)

	assert.Equal(t, uint16(0x3344), m.Load16(0x40000000))
	assert.Equal(t, uint16(0x1122), m.Load16(0x40000002))
	assert.Equal(t, uint8(0x44), m.Load8(0x40000000))
	assert.Equal(t, uint8(0x22), m.Load8(0x40000002))

	// A subword store preserves the rest of the word.
	m.Store16(0x40000000, 0xAABB)
	assert.Equal(t, uint32(0x1122AABB), m.Load32(0x40000000))
	m.Store8(0x40000003, 0xCC)
	assert.Equal(t, uint32(0xCC22AABB), m.Load32(0x40000000))
}

// TestTransitionSequence drives Mem the way a generated transition does:
// read, clear the field mask, set the target bits, store, advance the
// marker generation.
func TestTransitionSequence(t *testing.T) {
	const moder = 0x48000000

	m := hal.NewMem()
	m.Seed(moder, 0xFFFFFFFF) // documented reset value

	h := hal.NewHandle("gpioa")
	h.Take()
	g := h.Gen()

	// Analog (0b11) -> Output (0b01) in the 2-bit pin 0 mode field.
	g = h.Use(g)
	v := m.Load32(moder)
	m.Store32(moder, v&^0x3|0x1)

	assert.Equal(t, uint32(0xFFFFFFFD), m.Load32(moder))
	h.Check(g)
}
