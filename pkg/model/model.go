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

// Package model combines manifests, resolved dependencies, and parsed
// sources into the typed target DAG the scheduler and executor consume.
//
// The model is a closed world: after assembly, every module a source uses
// either resolves to a provider inside the model, is declared external, or
// is a fatal error. Targets and sources live in plain slices and reference
// each other through stable integer handles.
package model

import (
	"github.com/kraklabs/fbuild/pkg/compiler"
	"github.com/kraklabs/fbuild/pkg/manifest"
	"github.com/kraklabs/fbuild/pkg/source"
)

// Package is one resolvable unit of the model: the root package or a
// dependency, with its parsed sources.
type Package struct {
	// Name and Version come from the package manifest.
	Name    string
	Version string

	// Dir is the package root directory.
	Dir string

	// Sources holds every parsed source; the slice index is the stable
	// source handle within this package.
	Sources []source.SourceFile

	// Features are the per-package Fortran language features.
	Features manifest.FortranFeatures

	// Preprocess is the per-package preprocessor configuration.
	Preprocess map[string]manifest.Preprocessor

	// EnforceModuleNames requires provided modules to carry ModulePrefix.
	EnforceModuleNames bool

	// ModulePrefix is the enforced prefix (package-name-derived default or
	// the manifest's custom prefix).
	ModulePrefix string

	// IncludeDirs are the package's declared include directories,
	// absolute.
	IncludeDirs []string

	// LinkLibraries are the package-level native libraries from [build]
	// link.
	LinkLibraries []string

	// SharedLib additionally links the package's library objects into a
	// shared library.
	SharedLib bool

	// Dependencies lists direct dependency package names.
	Dependencies []string
}

// BuildModel is the closed world handed to the target builder, scheduler,
// and executor for one build invocation.
type BuildModel struct {
	// RootPackageName names Packages[0].
	RootPackageName string

	// Packages is ordered root-first, then dependencies in resolution
	// order. The slice index is the stable package handle.
	Packages []Package

	// Compiler and Archiver drive the external tools.
	Compiler *compiler.Compiler
	Archiver *compiler.Archiver

	// Global flag strings per language, already profile-expanded.
	FortranFlags string
	CFlags       string
	CxxFlags     string
	LinkFlags    string

	// BuildPrefix is the absolute root of all outputs.
	BuildPrefix string

	// IncludeDirs are model-wide include directories.
	IncludeDirs []string

	// LinkLibraries are model-wide native link libraries.
	LinkLibraries []string

	// ExternalModules are module names assumed provided outside the model;
	// uses of them never become dependencies.
	ExternalModules []string

	// IncludeTests enables building test-scope sources.
	IncludeTests bool

	// Targets is the typed target DAG, populated by BuildTargets. The
	// slice index equals each target's ID.
	Targets []Target
}

// PackageIndex returns the handle of the named package, or -1.
func (m *BuildModel) PackageIndex(name string) int {
	for i := range m.Packages {
		if m.Packages[i].Name == name {
			return i
		}
	}
	return -1
}

// IsExternalModule reports whether name is declared external to the model.
func (m *BuildModel) IsExternalModule(name string) bool {
	for _, ext := range m.ExternalModules {
		if ext == name {
			return true
		}
	}
	return false
}

// Roots returns the DAG roots the scheduler starts from: executables,
// shared libraries, and archives.
func (m *BuildModel) Roots() []TargetID {
	var roots []TargetID
	for i := range m.Targets {
		switch m.Targets[i].Kind {
		case TargetExecutable, TargetArchive, TargetSharedLib:
			roots = append(roots, m.Targets[i].ID)
		}
	}
	return roots
}

// addTarget appends a target and returns its handle.
func (m *BuildModel) addTarget(t Target) TargetID {
	t.ID = TargetID(len(m.Targets))
	m.Targets = append(m.Targets, t)
	return t.ID
}
