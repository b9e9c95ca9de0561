// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"strings"
)

// Rank separates fatal diagnostics from advisory ones. A warning never
// gates a build; an error always does.
type Rank int

const (
	Warning Rank = iota + 1
	ErrorRank
)

func (r Rank) String() string {
	if r == Warning {
		return "warning"
	}
	return "error"
}

// Kind classifies model diagnostics.
type Kind int

const (
	// UnreachableState: a legal state has no transition path from reset,
	// or no state corresponds to the registers' reset values.
	UnreachableState Kind = iota + 1

	// ConflictingAssignment: overlapping fields, registers or peripheral
	// address windows, or two values of one field sharing a bit pattern.
	ConflictingAssignment

	// CyclicDependency: the configure-before order induced by the
	// dependency declarations cannot be linearized.
	CyclicDependency

	// NonDeterministicTransition: more than one edge for the same
	// (source, target) pair.
	NonDeterministicTransition

	// UnknownReference: a transition endpoint or dependency that names
	// no known entity (resolved against the full device, so it is
	// detected here rather than in the schema package).
	UnknownReference
)

func (k Kind) String() string {
	switch k {
	case UnreachableState:
		return "unreachable state"
	case ConflictingAssignment:
		return "conflicting assignment"
	case CyclicDependency:
		return "cyclic dependency"
	case NonDeterministicTransition:
		return "non-deterministic transition"
	case UnknownReference:
		return "unknown reference"
	}
	return "unknown"
}

// Context is the dotted path localizing a diagnostic, for example
// "cordic.csr.func".
type Context []string

func (c Context) And(part string) Context {
	nc := make(Context, len(c), len(c)+1)
	copy(nc, c)
	return append(nc, part)
}

func (c Context) String() string { return strings.Join(c, ".") }

// Diagnostic is one finding of model validation, with enough context to
// localize the authoring mistake (peripheral, register, field names and
// the conflicting values are part of the message).
type Diagnostic struct {
	Rank    Rank
	Kind    Kind
	Context Context
	Message string
	Notes   []string
}

func (d *Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: [%s] %s: %s", d.Rank, d.Context, d.Kind, d.Message)
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "\n  note: %s", n)
	}
	return b.String()
}

// Diagnostics is an ordered list of findings. Order is deterministic:
// validation walks the model in declaration order.
type Diagnostics []*Diagnostic

func (ds *Diagnostics) error(kind Kind, ctx Context, format string, args ...any) *Diagnostic {
	d := &Diagnostic{
		Rank:    ErrorRank,
		Kind:    kind,
		Context: ctx,
		Message: fmt.Sprintf(format, args...),
	}
	*ds = append(*ds, d)
	return d
}

func (ds *Diagnostics) warning(kind Kind, ctx Context, format string, args ...any) *Diagnostic {
	d := &Diagnostic{
		Rank:    Warning,
		Kind:    kind,
		Context: ctx,
		Message: fmt.Sprintf(format, args...),
	}
	*ds = append(*ds, d)
	return d
}

func (d *Diagnostic) note(format string, args ...any) *Diagnostic {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
	return d
}

// Errors reports whether any diagnostic is fatal.
func (ds Diagnostics) Errors() bool {
	for _, d := range ds {
		if d.Rank == ErrorRank {
			return true
		}
	}
	return false
}

// Error wraps the fatal subset of a validation pass. Kind is the kind of
// the first error ranked diagnostic.
type Error struct {
	Kind  Kind
	Diags Diagnostics
}

func (e *Error) Error() string {
	n := 0
	var first *Diagnostic
	for _, d := range e.Diags {
		if d.Rank == ErrorRank {
			if first == nil {
				first = d
			}
			n++
		}
	}
	if first == nil {
		return "model: no errors"
	}
	if n == 1 {
		return "model: " + first.String()
	}
	return fmt.Sprintf("model: %s (and %d more errors)", first, n-1)
}
