// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"
)

// Markers is the state surface recovered from one generated peripheral
// package: the marker type names and the transition edges encoded as
// Into methods. The verify command compares it against the model the
// source was generated from.
type Markers struct {
	States      []string
	Transitions []Edge
}

// Edge is one recovered transition: a method Into<To> on marker type From.
type Edge struct {
	From, To string
}

// ParseMarkers recovers the marker surface from generated Go source.
func ParseMarkers(filename string, src []byte) (*Markers, error) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	mk := new(Markers)
	for _, decl := range af.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				if isMarkerStruct(ts) && ts.Name.Name != "Masked" {
					mk.States = append(mk.States, ts.Name.Name)
				}
			}
		case *ast.FuncDecl:
			from, ok := markerReceiver(d)
			if !ok || from == "Masked" {
				continue
			}
			if to, ok := strings.CutPrefix(d.Name.Name, "Into"); ok {
				mk.Transitions = append(mk.Transitions, Edge{From: from, To: to})
			}
		}
	}
	sort.Strings(mk.States)
	sort.Slice(mk.Transitions, func(i, j int) bool {
		a, b := mk.Transitions[i], mk.Transitions[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return mk, nil
}

// isMarkerStruct matches the exact shape emitted for a state marker:
// struct { h *hal.Handle; g uint32 }.
func isMarkerStruct(ts *ast.TypeSpec) bool {
	st, ok := ts.Type.(*ast.StructType)
	if !ok || len(st.Fields.List) != 2 {
		return false
	}
	h, g := st.Fields.List[0], st.Fields.List[1]
	if len(h.Names) != 1 || h.Names[0].Name != "h" {
		return false
	}
	if len(g.Names) != 1 || g.Names[0].Name != "g" {
		return false
	}
	ptr, ok := h.Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := ptr.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Handle" {
		return false
	}
	ident, ok := g.Type.(*ast.Ident)
	return ok && ident.Name == "uint32"
}

// markerReceiver returns the receiver type name of a value-receiver
// method, which is how transition methods are emitted.
func markerReceiver(d *ast.FuncDecl) (string, bool) {
	if d.Recv == nil || len(d.Recv.List) != 1 {
		return "", false
	}
	ident, ok := d.Recv.List[0].Type.(*ast.Ident)
	if !ok {
		return "", false
	}
	return ident.Name, true
}
