// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/pkg/model"
	"github.com/kraklabs/fbuild/pkg/source"
)

// runRun implements 'fbuild run' and 'fbuild test'. Both build first; run
// executes one app (or example) target, test executes every selected test
// target. The child's exit code propagates.
func runRun(args []string, globals GlobalFlags, asTests bool) {
	name := "run"
	if asTests {
		name = "test"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var opts buildOptions
	addBuildFlags(fs, &opts)
	example := fs.Bool("example", false, "Select example targets instead of apps")
	if err := fs.Parse(args); err != nil {
		fberrors.FatalError(fberrors.NewInputError("Cannot parse flags", err.Error(), ""), globals.JSON)
	}

	// Everything after the -- terminator goes to the child process.
	targets := fs.Args()
	var childArgs []string
	if at := fs.ArgsLenAtDash(); at >= 0 {
		childArgs = targets[at:]
		targets = targets[:at]
	}

	scope := source.ScopeApp
	if *example {
		scope = source.ScopeExample
	}
	if asTests {
		scope = source.ScopeTest
		opts.tests = true
	}

	m, _, err := executeBuild(".", opts, globals)
	if err != nil {
		fberrors.FatalError(err, globals.JSON)
	}

	selected := selectExecutables(m, scope, targets)
	if len(selected) == 0 {
		fberrors.FatalError(fberrors.NewInputError(
			"No matching executable",
			fmt.Sprintf("no %s target matches %s", scope.String(), strings.Join(targets, ", ")),
			"List targets by running fbuild build --verbose",
		), globals.JSON)
	}
	if !asTests && len(selected) > 1 && len(targets) == 0 {
		var names []string
		for _, t := range selected {
			names = append(names, t.DisplayName)
		}
		fberrors.FatalError(fberrors.NewInputError(
			"Ambiguous run target",
			"the package builds more than one executable: "+strings.Join(names, ", "),
			"Name the target: fbuild run <name>",
		), globals.JSON)
	}

	for _, t := range selected {
		cmd := exec.Command(t.OutputFile, childArgs...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			fberrors.FatalError(fberrors.NewInputError(
				"Cannot run executable",
				fmt.Sprintf("%s: %v", t.OutputFile, err),
				"",
			), globals.JSON)
		}
	}
}

// selectExecutables picks the built executables of the given scope whose
// names match the requested list (all of them when the list is empty),
// sorted by output for stable test ordering.
func selectExecutables(m *model.BuildModel, scope source.Scope, names []string) []*model.Target {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var selected []*model.Target
	for i := range m.Targets {
		t := &m.Targets[i]
		if t.Kind != model.TargetExecutable || t.SourceIndex < 0 {
			continue
		}
		sf := &m.Packages[t.PackageIndex].Sources[t.SourceIndex]
		if sf.Scope != scope {
			continue
		}
		if len(wanted) > 0 && !wanted[sf.ExeName] {
			continue
		}
		selected = append(selected, t)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].OutputFile < selected[j].OutputFile })
	return selected
}
