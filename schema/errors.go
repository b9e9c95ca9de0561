// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"strings"
)

// ErrorKind classifies schema errors.
type ErrorKind int

const (
	// DuplicateField reports a duplicated name: two fields of one
	// register, but also duplicated peripheral, register, value, or
	// state names.
	DuplicateField ErrorKind = iota + 1

	// UnknownFieldReference reports a dependency path, state assignment
	// or transition endpoint that names nothing.
	UnknownFieldReference

	// MalformedValueRange reports a value or bit range that does not fit
	// its field, a field that does not fit its register, or a scalar
	// that failed to parse.
	MalformedValueRange

	// ReservedName reports an identifier the generator reserves for
	// itself (state machinery names and Go keywords).
	ReservedName
)

func (k ErrorKind) String() string {
	switch k {
	case DuplicateField:
		return "duplicate field"
	case UnknownFieldReference:
		return "unknown field reference"
	case MalformedValueRange:
		return "malformed value range"
	case ReservedName:
		return "reserved name"
	}
	return "unknown"
}

// Error is a single schema authoring error with its source position.
type Error struct {
	Kind ErrorKind
	File string
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		fmt.Fprintf(&b, "%s:", e.File)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:%d:", e.Line, e.Col)
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Msg)
	return b.String()
}

// ErrorList collects every error found in one validation pass, so an
// author can fix a schema in one round trip.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0], len(l)-1)
}

func (l *ErrorList) add(kind ErrorKind, pos Pos, format string, args ...any) {
	*l = append(*l, &Error{
		Kind: kind,
		Line: pos.Line,
		Col:  pos.Col,
		Msg:  fmt.Sprintf(format, args...),
	})
}
