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

// Package manifest loads fpm.toml package manifests, resolves path
// dependencies, and reads the optional .fbuild/settings.yaml workspace
// settings.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
)

// ManifestFile is the manifest file name looked up in every package root.
const ManifestFile = "fpm.toml"

// Manifest is one package's declarative description.
type Manifest struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`

	Library     *Library                `toml:"library"`
	Build       BuildSettings           `toml:"build"`
	Fortran     FortranFeatures         `toml:"fortran"`
	Preprocess  map[string]Preprocessor `toml:"preprocess"`
	Executables []Executable            `toml:"executable"`
	Examples    []Executable            `toml:"example"`
	Tests       []Executable            `toml:"test"`

	Dependencies    map[string]Dependency `toml:"dependencies"`
	DevDependencies map[string]Dependency `toml:"dev-dependencies"`

	// Dir is the directory the manifest was loaded from. Not serialized.
	Dir string `toml:"-"`
}

// Library describes the package's library section.
type Library struct {
	SourceDir  string     `toml:"source-dir"`
	IncludeDir StringList `toml:"include-dir"`
	Install    bool       `toml:"install"`

	// Shared additionally links the library objects into a shared library.
	Shared bool `toml:"shared"`
}

// BuildSettings is the [build] table.
type BuildSettings struct {
	AutoExecutables *bool        `toml:"auto-executables"`
	AutoTests       *bool        `toml:"auto-tests"`
	AutoExamples    *bool        `toml:"auto-examples"`
	ExternalModules StringList   `toml:"external-modules"`
	Link            StringList   `toml:"link"`
	ModuleNaming    ModuleNaming `toml:"module-naming"`
}

// FortranFeatures is the [fortran] table of per-package language features.
type FortranFeatures struct {
	ImplicitTyping   bool   `toml:"implicit-typing"`
	ImplicitExternal bool   `toml:"implicit-external"`
	SourceForm       string `toml:"source-form"`
}

// Preprocessor is one entry of the [preprocess] table, keyed by
// preprocessor name (currently only "cpp" is meaningful).
type Preprocessor struct {
	Suffixes    StringList `toml:"suffixes"`
	Directories StringList `toml:"directories"`
	Macros      StringList `toml:"macros"`
}

// Executable is one [[executable]], [[example]], or [[test]] entry.
type Executable struct {
	Name      string     `toml:"name"`
	SourceDir string     `toml:"source-dir"`
	Main      string     `toml:"main"`
	Link      StringList `toml:"link"`
}

// Dependency is one entry of [dependencies]. Only path dependencies take
// part in the build; fetching from git or a registry happens upstream of
// this tool.
type Dependency struct {
	Path string `toml:"path"`
}

// StringList accepts both a bare TOML string and an array of strings, the
// way manifests in the wild write single-element lists.
type StringList []string

// UnmarshalTOML implements toml.Unmarshaler.
func (l *StringList) UnmarshalTOML(v any) error {
	switch value := v.(type) {
	case string:
		*l = StringList{value}
	case []any:
		out := make(StringList, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string list, found %T element", item)
			}
			out = append(out, s)
		}
		*l = out
	default:
		return fmt.Errorf("expected string or string list, found %T", v)
	}
	return nil
}

// ModuleNaming accepts either a boolean (enforce the package-name-derived
// prefix) or a string (enforce a custom prefix).
type ModuleNaming struct {
	Enforce bool
	Prefix  string
}

// UnmarshalTOML implements toml.Unmarshaler.
func (m *ModuleNaming) UnmarshalTOML(v any) error {
	switch value := v.(type) {
	case bool:
		m.Enforce = value
	case string:
		m.Enforce = true
		m.Prefix = strings.ToLower(value)
	default:
		return fmt.Errorf("module-naming must be a boolean or a prefix string, found %T", v)
	}
	return nil
}

// packageNamePattern is the accepted shape of package names and custom
// module prefixes.
var packageNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// versionPattern accepts semantic versions of at most three components.
var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}$`)

// Load reads and validates the manifest in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fberrors.NewFileNotFoundError(
				"Cannot find package manifest",
				fmt.Sprintf("no %s in %s", ManifestFile, dir),
				"Run fbuild from a package root, or create an fpm.toml",
			)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fberrors.NewManifestError(
			"Cannot parse package manifest",
			fmt.Sprintf("%s: %v", path, err),
			"Fix the TOML syntax error",
			err,
		)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fberrors.NewManifestError(
			"Unknown keys in package manifest",
			fmt.Sprintf("%s: %s", path, strings.Join(keys, ", ")),
			"Remove or correct the unrecognized keys",
			nil,
		)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest dir: %w", err)
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	m.applyDefaults()
	return &m, nil
}

// validate checks the declarations that cannot be expressed in the schema.
func (m *Manifest) validate(path string) error {
	if m.Name == "" {
		return fberrors.NewManifestError(
			"Package manifest is missing a name",
			fmt.Sprintf("%s has no top-level 'name' key", path),
			"Add: name = \"mypackage\"",
			nil,
		)
	}
	if !packageNamePattern.MatchString(m.Name) {
		return fberrors.NewManifestError(
			"Invalid package name",
			fmt.Sprintf("%s: %q is not a valid package name", path, m.Name),
			"Package names start with a letter and use letters, digits, '_' or '-'",
			nil,
		)
	}
	if m.Version != "" && !versionPattern.MatchString(m.Version) {
		return fberrors.NewManifestError(
			"Invalid package version",
			fmt.Sprintf("%s: %q is not a semantic version of at most three components", path, m.Version),
			"Use a version like 0.4.1",
			nil,
		)
	}
	switch m.Fortran.SourceForm {
	case "", "free", "fixed", "default":
	default:
		return fberrors.NewManifestError(
			"Invalid source form",
			fmt.Sprintf("%s: source-form must be 'free', 'fixed', or 'default', found %q", path, m.Fortran.SourceForm),
			"Correct the [fortran] source-form value",
			nil,
		)
	}

	seen := make(map[string]string)
	for _, group := range []struct {
		kind    string
		entries []Executable
	}{
		{"executable", m.Executables},
		{"example", m.Examples},
		{"test", m.Tests},
	} {
		for _, exe := range group.entries {
			if exe.Name == "" {
				return fberrors.NewManifestError(
					fmt.Sprintf("Unnamed [[%s]] entry", group.kind),
					fmt.Sprintf("%s: every [[%s]] entry needs a name", path, group.kind),
					"Add a name key to the entry",
					nil,
				)
			}
			if prev, dup := seen[exe.Name]; dup {
				return fberrors.NewManifestError(
					"Conflicting executable names",
					fmt.Sprintf("%s: %q is declared as both %s and %s", path, exe.Name, prev, group.kind),
					"Rename one of the entries",
					nil,
				)
			}
			seen[exe.Name] = group.kind
		}
	}

	for name, dep := range m.Dependencies {
		if dep.Path == "" {
			return fberrors.NewManifestError(
				"Unsupported dependency declaration",
				fmt.Sprintf("%s: dependency %q has no path; git and registry dependencies must be vendored first", path, name),
				"Use: "+name+" = { path = \"...\" }",
				nil,
			)
		}
	}
	return nil
}

// applyDefaults fills in the conventional directory layout.
func (m *Manifest) applyDefaults() {
	if m.Library != nil && m.Library.SourceDir == "" {
		m.Library.SourceDir = "src"
	}
	if m.Library == nil {
		// A src/ directory implies a library section.
		if info, err := os.Stat(filepath.Join(m.Dir, "src")); err == nil && info.IsDir() {
			m.Library = &Library{SourceDir: "src"}
		}
	}
	for i := range m.Executables {
		defaultExecutable(&m.Executables[i], "app")
	}
	for i := range m.Examples {
		defaultExecutable(&m.Examples[i], "example")
	}
	for i := range m.Tests {
		defaultExecutable(&m.Tests[i], "test")
	}
}

func defaultExecutable(exe *Executable, dir string) {
	if exe.SourceDir == "" {
		exe.SourceDir = dir
	}
	if exe.Main == "" {
		exe.Main = "main.f90"
	}
}

// AutoExecutables reports whether app/ auto-discovery is enabled
// (default true).
func (m *Manifest) AutoExecutables() bool {
	return m.Build.AutoExecutables == nil || *m.Build.AutoExecutables
}

// AutoTests reports whether test/ auto-discovery is enabled (default true).
func (m *Manifest) AutoTests() bool {
	return m.Build.AutoTests == nil || *m.Build.AutoTests
}

// AutoExamples reports whether example/ auto-discovery is enabled
// (default true).
func (m *Manifest) AutoExamples() bool {
	return m.Build.AutoExamples == nil || *m.Build.AutoExamples
}

// ModulePrefix returns the enforced module prefix: the custom prefix when
// set, otherwise the package name normalized to an identifier.
func (m *Manifest) ModulePrefix() string {
	if m.Build.ModuleNaming.Prefix != "" {
		return m.Build.ModuleNaming.Prefix
	}
	return strings.ToLower(strings.ReplaceAll(m.Name, "-", "_"))
}
