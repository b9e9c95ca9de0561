// Copyright 2025 The HALGen Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"sort"

	"github.com/hwstate/halgen/model"
	"github.com/hwstate/halgen/profile"
	"github.com/hwstate/halgen/schema"
)

// LoadInputs loads a schema and a profile, the common first step of every
// subcommand. Any failure is fatal.
func LoadInputs(schemaFile, profileFile string) (*schema.Device, *profile.Set) {
	dev, err := schema.Load(schemaFile)
	FatalErr("", err)
	set, err := profile.Load(profileFile)
	FatalErr("", err)
	return dev, set
}

// Parts resolves the -part flag value: a concrete part name selects that
// part, an empty value selects every part of the profile in name order.
func Parts(set *profile.Set, part string) []*profile.Part {
	if part != "" {
		p, err := set.Select(part)
		FatalErr("", err)
		return []*profile.Part{p}
	}
	names := make([]string, 0, len(set.Parts))
	for name := range set.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]*profile.Part, len(names))
	for i, name := range names {
		parts[i] = set.Parts[name]
	}
	return parts
}

// BuildModel builds the model of one part and prints its warnings. Build
// errors are fatal.
func BuildModel(dev *schema.Device, part *profile.Part) *model.Model {
	m, err := model.Build(dev, part)
	FatalErr(part.Name, err)
	for _, d := range m.Warnings {
		Warn("%s: %s", part.Name, d)
	}
	return m
}
