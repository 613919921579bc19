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

package model

import (
	"path/filepath"
	"strings"

	"github.com/kraklabs/fbuild/pkg/compiler"
	"github.com/kraklabs/fbuild/pkg/source"
)

// Flag composition. Per target the flag string is the deterministic
// concatenation of: global language flags, package feature flags,
// preprocessor macro flags, include flags, and the module output flag.
// Targets with identical inputs always produce identical strings, which
// the expected digest relies on.

// fortranObjectFlags assembles the compile flag string for one Fortran
// object target.
func (m *BuildModel) fortranObjectFlags(pkgIndex int) string {
	pkg := &m.Packages[pkgIndex]
	var tokens []string
	tokens = append(tokens, strings.Fields(m.FortranFlags)...)
	tokens = append(tokens, m.featureFlags(pkg)...)
	tokens = append(tokens, m.macroFlags(pkg)...)
	tokens = append(tokens, m.includeFlags(pkgIndex)...)
	tokens = append(tokens, m.Compiler.ModuleOutputFlag(m.packageOutputDir(pkg.Name))...)
	return strings.Join(tokens, " ")
}

// cObjectFlags assembles the compile flag string for a C or C++ object.
func (m *BuildModel) cObjectFlags(pkgIndex int, kind TargetKind) string {
	global := m.CFlags
	if kind == TargetCppObject {
		global = m.CxxFlags
	}
	var tokens []string
	tokens = append(tokens, strings.Fields(global)...)
	tokens = append(tokens, m.macroFlags(&m.Packages[pkgIndex])...)
	tokens = append(tokens, m.includeFlags(pkgIndex)...)
	return strings.Join(tokens, " ")
}

// featureFlags maps the package's Fortran features onto vendor flags.
func (m *BuildModel) featureFlags(pkg *Package) []string {
	var tokens []string
	switch pkg.Features.SourceForm {
	case "free":
		tokens = append(tokens, m.Compiler.FeatureFlag(compiler.FeatureFreeForm)...)
	case "fixed":
		tokens = append(tokens, m.Compiler.FeatureFlag(compiler.FeatureFixedForm)...)
	}
	if !pkg.Features.ImplicitTyping {
		tokens = append(tokens, m.Compiler.FeatureFlag(compiler.FeatureImplicitNone)...)
	}
	if !pkg.Features.ImplicitExternal {
		tokens = append(tokens, m.Compiler.FeatureFlag(compiler.FeatureImplicitExternalNone)...)
	}
	if _, ok := pkg.Preprocess["cpp"]; ok {
		tokens = append(tokens, m.Compiler.FeatureFlag(compiler.FeatureCPreprocess)...)
	}
	return tokens
}

// macroFlags renders the package's preprocessor macros as -D tokens.
func (m *BuildModel) macroFlags(pkg *Package) []string {
	var tokens []string
	if pre, ok := pkg.Preprocess["cpp"]; ok {
		for _, macro := range pre.Macros {
			tokens = append(tokens, "-D"+macro)
		}
	}
	return tokens
}

// includeFlags assembles the include search path for one package's
// objects: model-wide dirs, the package's own dirs, every other package's
// declared dirs and preprocessor dirs, and each package's module output
// directory under the build prefix.
func (m *BuildModel) includeFlags(pkgIndex int) []string {
	var dirs []string
	dirs = append(dirs, m.IncludeDirs...)
	dirs = append(dirs, m.Packages[pkgIndex].IncludeDirs...)
	for i := range m.Packages {
		if i != pkgIndex {
			dirs = append(dirs, m.Packages[i].IncludeDirs...)
		}
		if pre, ok := m.Packages[i].Preprocess["cpp"]; ok {
			for _, dir := range pre.Directories {
				dirs = append(dirs, filepath.Join(m.Packages[i].Dir, dir))
			}
		}
		dirs = append(dirs, m.packageOutputDir(m.Packages[i].Name))
	}

	var tokens []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		tokens = append(tokens, m.Compiler.IncludeFlag(dir)...)
	}
	return tokens
}

// executableLinkFlags assembles the link flag string for an executable
// built from sf: global link flags, then -l entries for the source's own
// libraries, each package's libraries in link order, and the model-wide
// libraries.
func (m *BuildModel) executableLinkFlags(sf *source.SourceFile, linkOrder []int, nonFortranMain bool) string {
	var tokens []string
	tokens = append(tokens, strings.Fields(m.LinkFlags)...)
	if nonFortranMain {
		tokens = append(tokens, m.Compiler.FeatureFlag(compiler.FeatureNoFortranMain)...)
	}
	seen := make(map[string]bool)
	addLibs := func(libs []string) {
		for _, lib := range libs {
			if seen[lib] {
				continue
			}
			seen[lib] = true
			tokens = append(tokens, "-l"+lib)
		}
	}
	addLibs(sf.LinkLibraries)
	for _, pi := range linkOrder {
		addLibs(m.Packages[pi].LinkLibraries)
	}
	addLibs(m.LinkLibraries)
	return strings.Join(tokens, " ")
}

// packageOutputDir is where a package's objects, archive, and module files
// land.
func (m *BuildModel) packageOutputDir(pkg string) string {
	return filepath.Join(m.BuildPrefix, pkg)
}
