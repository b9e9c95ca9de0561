// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hal is the runtime support library imported by generated
// peripheral packages. It provides the register bus abstraction and the
// ownership handle that enforces the one-live-marker-per-peripheral
// discipline at runtime.
package hal

import "fmt"

// Bus gives access to memory mapped registers. Generated transition code
// performs all of its read-modify-write sequences through the package
// level Bus variable. On a real target it is replaced by an MMIO
// implementation; the default Mem implementation simulates the register
// file in a map, which is sufficient for host-side tests and emulation.
type Bus interface {
	Load32(addr uint32) uint32
	Store32(addr, v uint32)
	Load16(addr uint32) uint16
	Store16(addr uint32, v uint16)
	Load8(addr uint32) uint8
	Store8(addr uint32, v uint8)
}

// Current register bus. Generated code never caches it, so tests may swap
// it at any point before taking the first marker.
var Current Bus = NewMem()

// Mem is a word granular simulated register file.
type Mem struct {
	words map[uint32]uint32
}

func NewMem() *Mem {
	return &Mem{words: make(map[uint32]uint32)}
}

// Seed presets a register word, typically with its documented reset value.
func (m *Mem) Seed(addr, v uint32) { m.words[addr&^3] = v }

func (m *Mem) Load32(addr uint32) uint32     { return m.words[addr&^3] }
func (m *Mem) Store32(addr, v uint32)        { m.words[addr&^3] = v }
func (m *Mem) Load16(addr uint32) uint16     { return uint16(m.load(addr, 16)) }
func (m *Mem) Store16(addr uint32, v uint16) { m.store(addr, 16, uint32(v)) }
func (m *Mem) Load8(addr uint32) uint8       { return uint8(m.load(addr, 8)) }
func (m *Mem) Store8(addr uint32, v uint8)   { m.store(addr, 8, uint32(v)) }

func (m *Mem) load(addr uint32, width uint) uint32 {
	shift := (addr & 3) * 8
	mask := uint32(1)<<width - 1
	return m.words[addr&^3] >> shift & mask
}

func (m *Mem) store(addr uint32, width, v uint32) {
	shift := (addr & 3) * 8
	mask := (uint32(1)<<width - 1) << shift
	w := addr &^ 3
	m.words[w] = m.words[w]&^mask | v<<shift&mask
}

// Handle is the per peripheral instance ownership cell embedded (by
// pointer) in every generated marker type. It tracks two things:
//
//   - whether the peripheral's initial marker has been taken, so the
//     reset state marker can be obtained exactly once, and
//   - a generation counter, so a marker that was already consumed by a
//     transition panics when used again instead of silently desyncing
//     the type level state from the hardware.
type Handle struct {
	name  string
	taken bool
	gen   uint32
}

func NewHandle(name string) *Handle { return &Handle{name: name} }

// Take claims initial ownership. It panics on the second call: firmware
// obtains the reset marker for each peripheral exactly once at startup.
func (h *Handle) Take() {
	if h.taken {
		panic(fmt.Sprintf("hal: %s marker taken twice", h.name))
	}
	h.taken = true
}

// Use consumes the marker generation g. Generated transition methods call
// Use with the generation captured when the marker was created; a stale
// marker (one already moved through a transition) panics.
func (h *Handle) Use(g uint32) uint32 {
	if g != h.gen {
		panic(fmt.Sprintf("hal: stale %s marker used after transition", h.name))
	}
	h.gen++
	return h.gen
}

// Check asserts that the marker generation g is still live, without
// consuming it. Generated proof methods call Check so a guarded
// transition cannot be satisfied by a marker of a state the dependency
// peripheral already left.
func (h *Handle) Check(g uint32) {
	if g != h.gen {
		panic(fmt.Sprintf("hal: stale %s marker presented as proof", h.name))
	}
}

// Gen returns the current marker generation.
func (h *Handle) Gen() uint32 { return h.gen }
