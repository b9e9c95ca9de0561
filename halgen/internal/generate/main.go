// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/hwstate/halgen/gen"
	"github.com/hwstate/halgen/halgen/internal/util"
	"github.com/hwstate/halgen/model"
)

const Descr = "generate the runtime peripheral library"

func Main(args []string) {
	if len(args) == 0 {
		fmt.Println(Descr)
		return
	}
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  generate [OPTIONS] SCHEMA PROFILE\nOptions:\n")
		fs.PrintDefaults()
	}
	dir := fs.String("o", ".", "output directory")
	root := fs.String("root", "", "import path of the output directory (required)")
	part := fs.String("part", "", "generate for this part only (default: every part)")
	fs.Parse(args[1:])
	if fs.NArg() != 2 || *root == "" {
		fs.Usage()
		os.Exit(1)
	}

	dev, set := util.LoadInputs(fs.Arg(0), fs.Arg(1))
	parts := util.Parts(set, *part)

	// The parts of a family are independent and every emitted file carries
	// the part name, so generation fans out.
	models := make([]*model.Model, len(parts))
	for i, p := range parts {
		models[i] = util.BuildModel(dev, p)
	}
	var g errgroup.Group
	for i := range parts {
		m := models[i]
		g.Go(func() error {
			return gen.Generate(m, gen.Config{
				Dir:        *dir,
				ImportRoot: *root,
				Part:       m.Part.Name,
			})
		})
	}
	util.FatalErr("", g.Wait())
	for _, p := range parts {
		fmt.Printf("%s: generated into %s\n", p.Name, *dir)
	}
}
