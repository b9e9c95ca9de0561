// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/tools/go/packages"

	"github.com/hwstate/halgen/gen"
	"github.com/hwstate/halgen/halgen/internal/util"
	"github.com/hwstate/halgen/model"
)

const Descr = "check a generated tree against its schema and profile"

// Main re-derives the model and compares it against a previously
// generated tree: the tree must type check and every peripheral package
// must expose exactly the model's states and transitions. It catches
// hand edits and stale output after a schema change.
func Main(args []string) {
	if len(args) == 0 {
		fmt.Println(Descr)
		return
	}
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  verify [OPTIONS] SCHEMA PROFILE\nOptions:\n")
		fs.PrintDefaults()
	}
	dir := fs.String("dir", ".", "root of the generated tree")
	part := fs.String("part", "", "part to verify (required with a multi-part profile)")
	typecheck := fs.Bool("typecheck", true, "also load and type check the generated packages")
	fs.Parse(args[1:])
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}

	dev, set := util.LoadInputs(fs.Arg(0), fs.Arg(1))
	parts := util.Parts(set, *part)
	if len(parts) != 1 {
		util.Fatal("verify needs a single part, profile has %d (use -part)", len(parts))
	}
	m := util.BuildModel(dev, parts[0])

	bad := false
	for _, p := range m.Peripherals {
		path := filepath.Join(*dir, p.Name, m.Part.Name+".go")
		src, err := os.ReadFile(path)
		util.FatalErr("", err)
		mk, err := gen.ParseMarkers(path, src)
		util.FatalErr(path, err)
		bad = diff(p, mk, path) || bad
	}
	if *typecheck {
		cfg := &packages.Config{
			Mode:       packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedSyntax,
			Dir:        *dir,
			BuildFlags: []string{"-tags", m.Part.Name},
		}
		pkgs, err := packages.Load(cfg, "./...")
		util.FatalErr("", err)
		if packages.PrintErrors(pkgs) > 0 {
			bad = true
		}
	}
	if bad {
		os.Exit(1)
	}
	fmt.Printf("%s: verified\n", m.Part.Name)
}

// diff compares one peripheral's generated marker surface against the
// model and reports every discrepancy.
func diff(p *model.Peripheral, mk *gen.Markers, path string) (bad bool) {
	want := make([]string, len(p.States))
	for i, s := range p.States {
		want[i] = s.Name
	}
	sort.Strings(want)
	if !equal(want, mk.States) {
		util.Warn("%s: states %v, schema wants %v", path, mk.States, want)
		bad = true
	}

	edges := make([]gen.Edge, len(p.Transitions))
	for i, t := range p.Transitions {
		edges[i] = gen.Edge{From: t.From.Name, To: t.To.Name}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	if len(edges) != len(mk.Transitions) {
		util.Warn("%s: %d transitions, schema wants %d", path, len(mk.Transitions), len(edges))
		return true
	}
	for i := range edges {
		if edges[i] != mk.Transitions[i] {
			util.Warn("%s: transition %s->%s, schema wants %s->%s",
				path, mk.Transitions[i].From, mk.Transitions[i].To, edges[i].From, edges[i].To)
			bad = true
		}
	}
	return bad
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
