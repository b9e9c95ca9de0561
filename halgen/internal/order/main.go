// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package order

import (
	"flag"
	"fmt"
	"os"

	"github.com/hwstate/halgen/halgen/internal/util"
)

const Descr = "print the configure-before order of the peripherals"

func Main(args []string) {
	if len(args) == 0 {
		fmt.Println(Descr)
		return
	}
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  order [OPTIONS] SCHEMA PROFILE\nOptions:\n")
		fs.PrintDefaults()
	}
	part := fs.String("part", "", "order for this part only (default: every part)")
	fs.Parse(args[1:])
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}

	dev, set := util.LoadInputs(fs.Arg(0), fs.Arg(1))
	for _, p := range util.Parts(set, *part) {
		m := util.BuildModel(dev, p)
		fmt.Printf("%s:", p.Name)
		for _, pp := range m.TopologicalOrder() {
			fmt.Printf(" %s", pp.Name)
		}
		fmt.Println()
	}
}
