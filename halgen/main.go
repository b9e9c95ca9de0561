// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Halgen models microcontroller peripherals declared in a YAML schema and
// generates the typestate runtime library firmware configures them
// through.
package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/hwstate/halgen/halgen/internal/generate"
	"github.com/hwstate/halgen/halgen/internal/order"
	"github.com/hwstate/halgen/halgen/internal/resetimg"
	"github.com/hwstate/halgen/halgen/internal/svdimport"
	"github.com/hwstate/halgen/halgen/internal/validate"
	"github.com/hwstate/halgen/halgen/internal/verify"
)

type tool struct {
	descr string
	main  func(args []string)
}

var tools = map[string]tool{
	"validate":  {validate.Descr, validate.Main},
	"order":     {order.Descr, order.Main},
	"generate":  {generate.Descr, generate.Main},
	"verify":    {verify.Descr, verify.Main},
	"resetimg":  {resetimg.Descr, resetimg.Main},
	"svdimport": {svdimport.Descr, svdimport.Main},
}

func printToolList() {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	slices.Sort(names)
	maxLen := 0
	for _, k := range names {
		if maxLen < len(k) {
			maxLen = len(k)
		}
	}
	uw := os.Stderr
	uw.WriteString("Usage:\n  halgen COMMAND [ARGUMENTS]\n\n")
	uw.WriteString("Available commands:\n")
	for _, name := range names {
		fmt.Fprintf(uw, "  %*s  %s\n", maxLen, name, tools[name].descr)
	}
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" {
		printToolList()
		return
	}
	tool, ok := tools[os.Args[1]]
	if !ok {
		printToolList()
		os.Exit(1)
	}
	tool.main(os.Args[1:])
}
