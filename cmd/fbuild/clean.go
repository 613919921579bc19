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
	"path/filepath"

	flag "github.com/spf13/pflag"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/internal/ui"
	"github.com/kraklabs/fbuild/pkg/manifest"
)

// runClean implements 'fbuild clean': removes the per-profile artifact
// directories under build/, or the whole prefix with --all.
func runClean(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	all := fs.Bool("all", false, "Remove the whole build directory")
	if err := fs.Parse(args); err != nil {
		fberrors.FatalError(fberrors.NewInputError("Cannot parse clean flags", err.Error(), ""), globals.JSON)
	}

	// Cleaning requires a package root; refuse to delete build/ from an
	// arbitrary directory.
	root, err := manifest.Load(".")
	if err != nil {
		fberrors.FatalError(err, globals.JSON)
	}

	buildDir := filepath.Join(root.Dir, "build")
	if _, err := os.Stat(buildDir); os.IsNotExist(err) {
		if !globals.Quiet {
			ui.Info("Nothing to clean")
		}
		return
	}

	if *all {
		if err := os.RemoveAll(buildDir); err != nil {
			fberrors.FatalError(fberrors.NewIOError("Cannot remove build directory", err), globals.JSON)
		}
		if !globals.Quiet {
			ui.Successf("Removed %s", buildDir)
		}
		return
	}

	entries, err := os.ReadDir(buildDir)
	if err != nil {
		fberrors.FatalError(fberrors.NewIOError("Cannot list build directory", err), globals.JSON)
	}
	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(buildDir, entry.Name())); err != nil {
			fberrors.FatalError(fberrors.NewIOError(fmt.Sprintf("Cannot remove %s", entry.Name()), err), globals.JSON)
		}
		removed++
	}
	if !globals.Quiet {
		ui.Successf("Removed %d build trees from %s", removed, buildDir)
	}
}
