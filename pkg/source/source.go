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

// Package source discovers and parses Fortran, C, and C++ sources.
//
// The package implements the front half of the build pipeline: scanning
// project trees for candidate files, lightly parsing each source to extract
// the module-provided / module-used / include edges, and fingerprinting file
// contents for incremental rebuilds. Fortran sources are parsed with a
// declaration-level line scanner; C and C++ sources are parsed with
// Tree-sitter.
package source

import (
	"path/filepath"
	"sort"
	"strings"
)

// UnitKind classifies what a source file contains at the top level.
type UnitKind int

const (
	// UnitUnknown is a file whose top-level content could not be classified.
	UnitUnknown UnitKind = iota

	// UnitProgram is a Fortran file declaring a program entry point.
	UnitProgram

	// UnitModule is a Fortran file containing only module definitions.
	// The kind does not affect which files are built: no tree shaking is
	// done, and every buildable module file gets an object target.
	UnitModule

	// UnitSubmodule is a Fortran file declaring a submodule.
	UnitSubmodule

	// UnitSubprogram is a Fortran file with top-level executable content
	// (bare subroutines/functions) outside any module.
	UnitSubprogram

	// UnitCSource is a C translation unit.
	UnitCSource

	// UnitCHeader is a C/C++ header.
	UnitCHeader

	// UnitCppSource is a C++ translation unit.
	UnitCppSource
)

// String returns a short lowercase name for the unit kind.
func (k UnitKind) String() string {
	switch k {
	case UnitProgram:
		return "program"
	case UnitModule:
		return "module"
	case UnitSubmodule:
		return "submodule"
	case UnitSubprogram:
		return "subprogram"
	case UnitCSource:
		return "c-source"
	case UnitCHeader:
		return "c-header"
	case UnitCppSource:
		return "cpp-source"
	}
	return "unknown"
}

// Scope records which part of a package a source file belongs to.
type Scope int

const (
	// ScopeUnknown is a file whose owning directory was not classified.
	ScopeUnknown Scope = iota

	// ScopeLib marks library sources of any package.
	ScopeLib

	// ScopeDep marks non-library sources of dependency packages.
	// Dep-scope files are parsed but never built.
	ScopeDep

	// ScopeApp marks app/ sources of the root package.
	ScopeApp

	// ScopeTest marks test/ sources of the root package.
	ScopeTest

	// ScopeExample marks example/ sources of the root package.
	ScopeExample
)

// String returns a short lowercase name for the scope.
func (s Scope) String() string {
	switch s {
	case ScopeLib:
		return "lib"
	case ScopeDep:
		return "dep"
	case ScopeApp:
		return "app"
	case ScopeTest:
		return "test"
	case ScopeExample:
		return "example"
	}
	return "unknown"
}

// SourceFile is one parsed source on disk.
//
// Module name sets are stored as sorted, deduplicated, lowercase slices so
// two parses of the same content compare equal and downstream digests are
// deterministic.
type SourceFile struct {
	// Path is the canonical absolute path of the file.
	Path string

	// UnitKind classifies the top-level content.
	UnitKind UnitKind

	// Scope records the owning source directory category.
	Scope Scope

	// ProvidedModules lists the modules (and submodules) this file defines.
	ProvidedModules []string

	// UsedModules lists the non-intrinsic modules this file uses.
	UsedModules []string

	// ParentModules lists the parent chain of a submodule declaration,
	// outermost first.
	ParentModules []string

	// IncludeDeps lists the quoted-include file names this file depends on.
	IncludeDeps []string

	// ExeName is the executable name for UnitProgram files. For manifest
	// declared executables the manifest name overrides the program name.
	ExeName string

	// LinkLibraries lists native libraries to link when this unit becomes
	// an executable target.
	LinkLibraries []string

	// Digest is the 64-bit FNV-1a fingerprint of the normalized file
	// contents.
	Digest uint64
}

// Basename returns the file name without directory or extension,
// used for progress display.
func (s *SourceFile) Basename() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsFortran reports whether the file is a Fortran unit.
func (s *SourceFile) IsFortran() bool {
	switch s.UnitKind {
	case UnitProgram, UnitModule, UnitSubmodule, UnitSubprogram, UnitUnknown:
		return true
	}
	return false
}

// intrinsicModules are Fortran standard (and OpenMP) modules that never
// participate in dependency tracking.
var intrinsicModules = map[string]bool{
	"iso_c_binding":   true,
	"iso_fortran_env": true,
	"ieee_arithmetic": true,
	"ieee_exceptions": true,
	"ieee_features":   true,
	"omp_lib":         true,
	"omp_lib_kinds":   true,
}

// IsIntrinsicModule reports whether name (case-insensitive) is an intrinsic
// module excluded from use tracking.
func IsIntrinsicModule(name string) bool {
	return intrinsicModules[strings.ToLower(name)]
}

// sortedSet turns a membership map into a sorted slice. Returns nil for an
// empty set so untouched SourceFile fields compare equal to parsed ones.
func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
