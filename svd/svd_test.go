// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package svd_test

import (
	"encoding/xml"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwstate/halgen/svd"
)

func load(t *testing.T) *svd.Device {
	t.Helper()
	f, err := os.Open("../testdata/sample.svd")
	require.NoError(t, err)
	defer f.Close()
	dev := new(svd.Device)
	require.NoError(t, xml.NewDecoder(f).Decode(dev))
	return dev
}

func TestDecode(t *testing.T) {
	dev := load(t)

	assert.Equal(t, "EX32L100", dev.Name)
	require.NotNil(t, dev.Series)
	assert.Equal(t, "EX32L", *dev.Series)
	require.Len(t, dev.Peripherals, 3)

	rcc := dev.Peripherals[0]
	assert.Equal(t, svd.Uint64(0x40021000), rcc.BaseAddress)
	require.Len(t, rcc.Registers, 1)

	cr := rcc.Registers[0]
	assert.Equal(t, svd.Uint64(0), cr.AddressOffset)
	require.NotNil(t, cr.ResetValue)
	assert.Equal(t, svd.Uint64(0x63), *cr.ResetValue)

	gpiob := dev.Peripherals[2]
	require.NotNil(t, gpiob.DerivedFrom)
	assert.Equal(t, "GPIOA", *gpiob.DerivedFrom)
	assert.Empty(t, gpiob.Registers)
}

func TestFieldBits(t *testing.T) {
	dev := load(t)
	fields := dev.Peripherals[0].Registers[0].Fields
	require.Len(t, fields, 2)

	// bitOffset/bitWidth notation
	offset, width := fields[0].Bits()
	assert.Equal(t, uint(0), offset)
	assert.Equal(t, uint(1), width)

	// lsb/msb notation
	offset, width = fields[1].Bits()
	assert.Equal(t, uint(1), offset)
	assert.Equal(t, uint(1), width)
}

func TestEnumeratedValue(t *testing.T) {
	dev := load(t)
	evs := dev.Peripherals[0].Registers[0].Fields[0].EnumeratedValues
	require.Len(t, evs, 1)
	require.Len(t, evs[0].EnumeratedValue, 2)

	v, err := evs[0].EnumeratedValue[0].Val()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	// SVD binary notation
	v, err = evs[0].EnumeratedValue[1].Val()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	var nilValue svd.EnumeratedValue
	_, err = nilValue.Val()
	assert.ErrorIs(t, err, svd.ErrNilValue)

	// An empty <value></value> element is an error, not a panic.
	empty := ""
	_, err = (&svd.EnumeratedValue{Value: &empty}).Val()
	assert.Error(t, err)
}
