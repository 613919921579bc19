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
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/internal/ui"
	"github.com/kraklabs/fbuild/pkg/manifest"
	"github.com/kraklabs/fbuild/pkg/model"
	"github.com/kraklabs/fbuild/pkg/source"
)

// runInstall implements 'fbuild install': build, then copy apps into
// <prefix>/bin and, when the manifest requests library install, the archive
// into <prefix>/lib and module files into <prefix>/include.
func runInstall(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	var opts buildOptions
	addBuildFlags(fs, &opts)
	prefix := fs.String("prefix", defaultPrefix(), "Installation prefix")
	if err := fs.Parse(args); err != nil {
		fberrors.FatalError(fberrors.NewInputError("Cannot parse install flags", err.Error(), ""), globals.JSON)
	}

	m, _, err := executeBuild(".", opts, globals)
	if err != nil {
		fberrors.FatalError(err, globals.JSON)
	}

	installed := 0
	for i := range m.Targets {
		t := &m.Targets[i]
		if t.Kind != model.TargetExecutable || t.SourceIndex < 0 {
			continue
		}
		if m.Packages[t.PackageIndex].Sources[t.SourceIndex].Scope != source.ScopeApp {
			continue
		}
		dest := filepath.Join(*prefix, "bin", filepath.Base(t.OutputFile))
		if err := copyFile(t.OutputFile, dest, 0755); err != nil {
			fberrors.FatalError(fberrors.NewIOError(fmt.Sprintf("Cannot install %s", dest), err), globals.JSON)
		}
		installed++
	}

	root, err := manifest.Load(".")
	if err != nil {
		fberrors.FatalError(err, globals.JSON)
	}
	if root.Library != nil && root.Library.Install {
		n, err := installLibrary(m, *prefix)
		if err != nil {
			fberrors.FatalError(fberrors.NewIOError("Cannot install library artifacts", err), globals.JSON)
		}
		installed += n
	}

	if !globals.Quiet {
		ui.Successf("Installed %d artifacts into %s", installed, *prefix)
	}
}

// installLibrary copies the root archive and its module files.
func installLibrary(m *model.BuildModel, prefix string) (int, error) {
	installed := 0
	for i := range m.Targets {
		t := &m.Targets[i]
		if t.Kind != model.TargetArchive || t.PackageIndex != 0 {
			continue
		}
		dest := filepath.Join(prefix, "lib", filepath.Base(t.OutputFile))
		if err := copyFile(t.OutputFile, dest, 0644); err != nil {
			return installed, err
		}
		installed++

		mods, err := filepath.Glob(filepath.Join(filepath.Dir(t.OutputFile), "*.mod"))
		if err != nil {
			return installed, err
		}
		for _, mod := range mods {
			dest := filepath.Join(prefix, "include", filepath.Base(mod))
			if err := copyFile(mod, dest, 0644); err != nil {
				return installed, err
			}
			installed++
		}
	}
	return installed, nil
}

// copyFile copies src to dest, creating parent directories.
func copyFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// defaultPrefix is ~/.local unless HOME is unset.
func defaultPrefix() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local"
	}
	return filepath.Join(home, ".local")
}
