// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resetimg

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/marcinbor85/gohex"

	"github.com/hwstate/halgen/halgen/internal/util"
)

const Descr = "dump the reset register image in the Intel HEX format"

// Main emits every register's documented reset value at its absolute
// address. Emulators and register-file simulators load the image to start
// from a faithful reset state.
func Main(args []string) {
	if len(args) == 0 {
		fmt.Println(Descr)
		return
	}
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	fs.Usage = func() {
		os.Stderr.WriteString("Usage:\n  resetimg [OPTIONS] SCHEMA PROFILE [HEX]\nOptions:\n")
		fs.PrintDefaults()
	}
	part := fs.String("part", "", "part to dump (required with a multi-part profile)")
	fs.Parse(args[1:])
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		os.Exit(1)
	}

	dev, set := util.LoadInputs(fs.Arg(0), fs.Arg(1))
	parts := util.Parts(set, *part)
	if len(parts) != 1 {
		util.Fatal("resetimg needs a single part, profile has %d (use -part)", len(parts))
	}
	m := util.BuildModel(dev, parts[0])

	mem := gohex.NewMemory()
	for _, p := range m.Peripherals {
		for _, r := range p.Registers {
			buf := make([]byte, r.Width/8)
			switch r.Width {
			case 32:
				binary.LittleEndian.PutUint32(buf, r.Reset)
			case 16:
				binary.LittleEndian.PutUint16(buf, uint16(r.Reset))
			default:
				buf[0] = uint8(r.Reset)
			}
			err := mem.AddBinary(r.Addr, buf)
			util.FatalErr(p.Name+"."+r.Name, err)
		}
	}

	out := fs.Arg(2)
	if out == "" {
		out = parts[0].Name + ".hex"
	}
	w, err := os.Create(out)
	util.FatalErr("", err)
	defer w.Close()
	err = mem.DumpIntelHex(w, 16)
	util.FatalErr("dumpintelhex", err)
}
