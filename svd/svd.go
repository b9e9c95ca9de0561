// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package svd decodes the subset of CMSIS-SVD that the svdimport command
// translates into schema skeletons: peripherals, registers, fields and
// their enumerated values. Vendor extensions and CPU description elements
// are ignored.
package svd

import (
	"encoding/xml"
	"errors"
	"strconv"
)

// Uint is an unsigned scalar accepting the 0x and # prefixed forms found
// in SVD files.
type Uint uint

func (u *Uint) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 0, 0)
	*u = Uint(v)
	return err
}

type Uint64 uint64

func (u *Uint64) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 0, 64)
	*u = Uint64(v)
	return err
}

type Device struct {
	Vendor      *string `xml:"vendor"`
	Name        string  `xml:"name"`
	Series      *string `xml:"series"`
	Description string  `xml:"description"`
	Width       Uint    `xml:"width"`
	*RegisterPropertiesGroup
	Peripherals []*Peripheral `xml:"peripherals>peripheral"`
}

// RegisterPropertiesGroup carries the properties SVD lets outer elements
// default for inner ones. Nil means inherited.
type RegisterPropertiesGroup struct {
	Size       *Uint   `xml:"size"`
	Access     *string `xml:"access"`
	ResetValue *Uint64 `xml:"resetValue"`
	ResetMask  *Uint64 `xml:"resetMask"`
}

type Peripheral struct {
	DerivedFrom *string `xml:"derivedFrom,attr"`
	Name        string  `xml:"name"`
	Description *string `xml:"description"`
	GroupName   *string `xml:"groupName"`
	BaseAddress Uint64  `xml:"baseAddress"`
	*RegisterPropertiesGroup
	Registers []*Register `xml:"registers>register"`
}

type Register struct {
	Name          string  `xml:"name"`
	Description   *string `xml:"description"`
	AddressOffset Uint64  `xml:"addressOffset"`
	*RegisterPropertiesGroup
	Fields []*Field `xml:"fields>field"`
}

type Field struct {
	Name        string  `xml:"name"`
	Description *string `xml:"description"`
	*BitRangeOffsetWidth
	*BitRangeLSBMSB
	Access           *string             `xml:"access"`
	EnumeratedValues []*EnumeratedValues `xml:"enumeratedValues"`
}

type BitRangeOffsetWidth struct {
	BitOffset Uint  `xml:"bitOffset"`
	BitWidth  *Uint `xml:"bitWidth"`
}

type BitRangeLSBMSB struct {
	LSB Uint `xml:"lsb"`
	MSB Uint `xml:"msb"`
}

// Bits returns the field's bit position in the (offset, width) form,
// whichever of the two SVD range notations the file uses.
func (f *Field) Bits() (offset, width uint) {
	if f.BitRangeOffsetWidth != nil {
		offset, width = uint(f.BitOffset), 1
		if f.BitWidth != nil {
			width = uint(*f.BitWidth)
		}
		return offset, width
	}
	if f.BitRangeLSBMSB != nil {
		return uint(f.LSB), uint(f.MSB-f.LSB) + 1
	}
	return 0, 1
}

type EnumeratedValues struct {
	Name            *string            `xml:"name"`
	Usage           *string            `xml:"usage"`
	EnumeratedValue []*EnumeratedValue `xml:"enumeratedValue"`
}

type EnumeratedValue struct {
	Name        *string `xml:"name"`
	Description *string `xml:"description"`
	Value       *string `xml:"value"`
	IsDefault   *bool   `xml:"isDefault"`
}

var ErrNilValue = errors.New("nil value")

// Val parses the enumerated value, accepting the SVD binary #1011 and
// #1x0x "do not care" notations with x treated as 0.
func (ev *EnumeratedValue) Val() (uint64, error) {
	if ev.Value == nil {
		return 0, ErrNilValue
	}
	s := *ev.Value
	if len(s) > 0 && s[0] == '#' {
		a := make([]byte, len(s)+1)
		a[0] = '0'
		a[1] = 'b'
		for i := 1; i < len(s); i++ {
			b := s[i]
			if b == 'x' {
				b = '0'
			}
			a[i+1] = b
		}
		s = string(a)
	}
	return strconv.ParseUint(s, 0, 64)
}
