// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"flag"
	"fmt"
	"os"

	"github.com/hwstate/halgen/halgen/internal/util"
	"github.com/hwstate/halgen/model"
)

const Descr = "validate a schema against a device profile"

func Main(args []string) {
	if len(args) == 0 {
		fmt.Println(Descr)
		return
	}
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  validate [OPTIONS] SCHEMA PROFILE\nOptions:\n")
		fs.PrintDefaults()
	}
	part := fs.String("part", "", "validate this part only (default: every part)")
	fs.Parse(args[1:])
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}

	dev, set := util.LoadInputs(fs.Arg(0), fs.Arg(1))
	for _, p := range util.Parts(set, *part) {
		m, err := model.Build(dev, p)
		if err != nil {
			if me, ok := err.(*model.Error); ok {
				for _, d := range me.Diags {
					util.Warn("%s: %s", p.Name, d)
				}
				os.Exit(1)
			}
			util.FatalErr(p.Name, err)
		}
		for _, d := range m.Warnings {
			util.Warn("%s: %s", p.Name, d)
		}
		states, transitions := 0, 0
		for _, pp := range m.Peripherals {
			states += len(pp.States)
			transitions += len(pp.Transitions)
		}
		fmt.Printf("%s: ok: %d peripherals, %d states, %d transitions\n",
			p.Name, len(m.Peripherals), states, transitions)
	}
}
