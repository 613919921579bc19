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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"log/slog"

	"golang.org/x/sync/errgroup"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/pkg/manifest"
	"github.com/kraklabs/fbuild/pkg/source"
)

// AssemblePackages scans and parses every resolved package into Package
// records: library sources for all packages, app/test/example sources for
// the root, and dep-scope sources for dependency executables (parsed but
// never built).
//
// Files are discovered sequentially for deterministic ordering, then parsed
// concurrently; parsing one file never depends on another.
func AssemblePackages(resolved []manifest.Resolved, logger *slog.Logger) ([]Package, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := source.NewScanner(logger)
	parser := source.NewParser(logger)

	packages := make([]Package, len(resolved))
	for i, res := range resolved {
		pkg, err := assembleOne(res, i == 0, scanner, parser, logger)
		if err != nil {
			return nil, err
		}
		packages[i] = *pkg
	}

	if err := validateModuleNames(packages, logger); err != nil {
		return nil, err
	}
	return packages, nil
}

// discovered pairs a path with the scope its directory implies.
type discovered struct {
	path  string
	scope source.Scope
}

// assembleOne builds one Package record from its manifest.
func assembleOne(res manifest.Resolved, isRoot bool, scanner *source.Scanner, parser *source.Parser, logger *slog.Logger) (*Package, error) {
	m := res.Manifest
	pkg := &Package{
		Name:               m.Name,
		Version:            m.Version,
		Dir:                m.Dir,
		Features:           m.Fortran,
		Preprocess:         m.Preprocess,
		EnforceModuleNames: m.Build.ModuleNaming.Enforce,
		ModulePrefix:       m.ModulePrefix(),
		LinkLibraries:      m.Build.Link,
		Dependencies:       res.Dependencies,
	}

	suffixes := sourceSuffixes(m)
	seen := make(map[string]bool)
	var files []discovered

	addDir := func(dir string, scope source.Scope, required bool) error {
		root := filepath.Join(m.Dir, dir)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			if required {
				return fberrors.NewFileNotFoundError(
					"Missing source directory",
					fmt.Sprintf("package %s declares %s but it does not exist", m.Name, root),
					"Create the directory or fix the manifest",
				)
			}
			return nil
		}
		found, err := scanner.Find(root, true, suffixes, seen)
		if err != nil {
			return fmt.Errorf("scan %s: %w", root, err)
		}
		for _, path := range found {
			files = append(files, discovered{path: path, scope: scope})
		}
		return nil
	}

	if m.Library != nil {
		pkg.SharedLib = m.Library.Shared
		if err := addDir(m.Library.SourceDir, source.ScopeLib, true); err != nil {
			return nil, err
		}
		for _, inc := range m.Library.IncludeDir {
			pkg.IncludeDirs = append(pkg.IncludeDirs, filepath.Join(m.Dir, inc))
		}
	}

	// Executable source directories. Dependency packages keep their
	// non-library sources at dep scope so they parse but never build.
	scopeFor := func(s source.Scope) source.Scope {
		if isRoot {
			return s
		}
		return source.ScopeDep
	}
	execDirs := make(map[string]source.Scope)
	for _, exe := range m.Executables {
		execDirs[exe.SourceDir] = scopeFor(source.ScopeApp)
	}
	for _, exe := range m.Examples {
		execDirs[exe.SourceDir] = scopeFor(source.ScopeExample)
	}
	for _, exe := range m.Tests {
		execDirs[exe.SourceDir] = scopeFor(source.ScopeTest)
	}
	if m.AutoExecutables() {
		execDirs["app"] = scopeFor(source.ScopeApp)
	}
	if m.AutoExamples() {
		execDirs["example"] = scopeFor(source.ScopeExample)
	}
	if m.AutoTests() {
		execDirs["test"] = scopeFor(source.ScopeTest)
	}
	for _, entry := range sortedDirList(execDirs) {
		if err := addDir(entry.dir, entry.scope, false); err != nil {
			return nil, err
		}
	}

	pkg.Sources = make([]source.SourceFile, len(files))
	group := errgroup.Group{}
	group.SetLimit(runtime.NumCPU())
	for i := range files {
		i := i
		group.Go(func() error {
			sf, err := parser.ParseFile(files[i].path)
			if err != nil {
				return err
			}
			sf.Scope = files[i].scope
			pkg.Sources[i] = *sf
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, wrapParseError(err)
	}

	if err := applyExecutableEntries(pkg, m, isRoot); err != nil {
		return nil, err
	}

	logger.Info("assemble.package", "package", pkg.Name, "sources", len(pkg.Sources))
	return pkg, nil
}

type dirEntry struct {
	dir   string
	scope source.Scope
}

// sortedDirList orders executable directories for deterministic scanning.
func sortedDirList(dirs map[string]source.Scope) []dirEntry {
	out := make([]dirEntry, 0, len(dirs))
	for dir, scope := range dirs {
		out = append(out, dirEntry{dir: dir, scope: scope})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dir < out[j].dir })
	return out
}

// sourceSuffixes returns the suffix set the package's sources may carry:
// plain Fortran, C/C++, and any preprocessor suffixes from the manifest.
func sourceSuffixes(m *manifest.Manifest) []string {
	suffixes := append([]string{}, source.FortranSuffixes...)
	suffixes = append(suffixes, source.CSuffixes...)
	if pre, ok := m.Preprocess["cpp"]; ok {
		if len(pre.Suffixes) > 0 {
			suffixes = append(suffixes, pre.Suffixes...)
		} else {
			suffixes = append(suffixes, source.FortranPreprocessedSuffixes...)
		}
	}
	return suffixes
}

// applyExecutableEntries binds manifest [[executable]]/[[example]]/[[test]]
// entries to their parsed main files: the manifest name and link libraries
// override whatever the parser extracted.
func applyExecutableEntries(pkg *Package, m *manifest.Manifest, isRoot bool) error {
	if !isRoot {
		return nil
	}
	groups := []struct {
		entries []manifest.Executable
		scope   source.Scope
	}{
		{m.Executables, source.ScopeApp},
		{m.Examples, source.ScopeExample},
		{m.Tests, source.ScopeTest},
	}
	for _, group := range groups {
		for _, exe := range group.entries {
			mainPath, err := source.Canonical(filepath.Join(m.Dir, exe.SourceDir, exe.Main))
			if err != nil {
				return err
			}
			idx := pkg.sourceIndexByPath(mainPath)
			if idx < 0 {
				return fberrors.NewFileNotFoundError(
					"Missing executable main file",
					fmt.Sprintf("package %s declares %s with main %s, but the file was not found", m.Name, exe.Name, mainPath),
					"Fix the main key or create the file",
				)
			}
			sf := &pkg.Sources[idx]
			if sf.IsFortran() {
				sf.UnitKind = source.UnitProgram
			}
			sf.Scope = group.scope
			sf.ExeName = exe.Name
			sf.LinkLibraries = append(sf.LinkLibraries, exe.Link...)
		}
	}
	return nil
}

// sourceIndexByPath finds a parsed source by canonical path.
func (p *Package) sourceIndexByPath(path string) int {
	for i := range p.Sources {
		if p.Sources[i].Path == path {
			return i
		}
	}
	return -1
}

// validateModuleNames enforces per-package module prefixes and warns on
// modules provided by more than one package. Duplicates stay a warning
// unless the providing package enforces module naming.
func validateModuleNames(packages []Package, logger *slog.Logger) error {
	providers := make(map[string]string)
	for pi := range packages {
		pkg := &packages[pi]
		for si := range pkg.Sources {
			sf := &pkg.Sources[si]
			for _, mod := range sf.ProvidedModules {
				if pkg.EnforceModuleNames && !hasModulePrefix(mod, pkg.ModulePrefix) {
					return fberrors.NewManifestError(
						"Module name violates the package prefix",
						fmt.Sprintf("package %s enforces prefix %q, but %s provides module %q", pkg.Name, pkg.ModulePrefix, sf.Path, mod),
						fmt.Sprintf("Rename the module to %s_%s or disable module-naming", pkg.ModulePrefix, mod),
						nil,
					)
				}
				if prev, dup := providers[mod]; dup && prev != pkg.Name {
					logger.Warn("assemble.duplicate_module",
						"module", mod,
						"packages", prev+","+pkg.Name,
					)
					continue
				}
				providers[mod] = pkg.Name
			}
		}
	}
	return nil
}

// hasModulePrefix accepts the prefix itself or prefix_suffix names.
func hasModulePrefix(module, prefix string) bool {
	return module == prefix || strings.HasPrefix(module, prefix+"_")
}

// wrapParseError normalizes parser failures into the build error taxonomy.
func wrapParseError(err error) error {
	var parseErr *source.ParseError
	if errors.As(err, &parseErr) {
		return fberrors.NewParseError(
			"Cannot parse source file",
			parseErr.Error(),
			"Fix the flagged declaration",
			parseErr,
		)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fberrors.NewFileNotFoundError("Missing source file", err.Error(), "")
	}
	return err
}
