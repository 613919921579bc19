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

package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
)

// SettingsFile is the optional workspace settings file, relative to the
// package root.
const SettingsFile = ".fbuild/settings.yaml"

// Settings carries workspace-level defaults for the build driver. All
// fields are optional; command-line flags override every one of them.
type Settings struct {
	// Compiler is the Fortran compiler command (default "gfortran").
	Compiler string `yaml:"compiler"`

	// CCompiler is the C compiler command (default: the Fortran compiler's
	// C sibling).
	CCompiler string `yaml:"c-compiler"`

	// CxxCompiler is the C++ compiler command.
	CxxCompiler string `yaml:"cxx-compiler"`

	// Archiver is the static archiver command (default "ar").
	Archiver string `yaml:"archiver"`

	// Profile selects the default flag profile: "release" or "debug".
	Profile string `yaml:"profile"`

	// Jobs bounds build parallelism. Zero means use all CPUs.
	Jobs int `yaml:"jobs"`

	// Flags are extra Fortran compile flags appended to the profile flags.
	Flags string `yaml:"flags"`

	// CFlags are extra C compile flags.
	CFlags string `yaml:"c-flags"`

	// CxxFlags are extra C++ compile flags.
	CxxFlags string `yaml:"cxx-flags"`

	// LinkFlags are extra link flags.
	LinkFlags string `yaml:"link-flags"`

	// ExternalModules lists modules assumed provided outside the build.
	ExternalModules []string `yaml:"external-modules"`
}

// LoadSettings reads .fbuild/settings.yaml under rootDir. A missing file
// yields zero-value settings, not an error; unknown keys are rejected so
// typos do not silently change the build.
func LoadSettings(rootDir string) (*Settings, error) {
	path := filepath.Join(rootDir, SettingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fberrors.NewManifestError(
			"Cannot parse workspace settings",
			fmt.Sprintf("%s: %v", path, err),
			"Fix the YAML syntax or remove the unknown key",
			err,
		)
	}

	switch s.Profile {
	case "", "release", "debug":
	default:
		return nil, fberrors.NewManifestError(
			"Invalid profile in workspace settings",
			fmt.Sprintf("%s: profile must be 'release' or 'debug', found %q", path, s.Profile),
			"Correct the profile value",
			nil,
		)
	}
	return &s, nil
}
