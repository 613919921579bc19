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
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/fbuild/internal/bootstrap"
	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/internal/ui"
)

// runNew implements 'fbuild new <name>': scaffold a fresh package tree.
func runNew(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	lib := fs.Bool("lib", true, "Generate a library section")
	app := fs.Bool("app", true, "Generate an app executable")
	test := fs.Bool("test", true, "Generate a test executable")
	if err := fs.Parse(args); err != nil {
		fberrors.FatalError(fberrors.NewInputError("Cannot parse new flags", err.Error(), ""), globals.JSON)
	}
	if fs.NArg() != 1 {
		fberrors.FatalError(fberrors.NewInputError(
			"Missing package name",
			"fbuild new takes exactly one argument",
			"Run: fbuild new mypackage",
		), globals.JSON)
	}

	info, err := bootstrap.New(bootstrap.ProjectConfig{
		Name:     fs.Arg(0),
		WithLib:  *lib,
		WithApp:  *app,
		WithTest: *test,
	}, nil)
	if err != nil {
		fberrors.FatalError(fberrors.NewInputError("Cannot create package", err.Error(), ""), globals.JSON)
	}
	if !globals.Quiet {
		ui.Successf("Created package %s at %s", info.Name, info.Root)
	}
}
