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
	"fmt"
	"path/filepath"
	"sort"

	"log/slog"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
)

// Resolved is one package of the closed dependency world: the root package
// followed by its transitive path dependencies in resolution order.
type Resolved struct {
	// Name is the package name from its manifest.
	Name string

	// Manifest is the loaded manifest.
	Manifest *Manifest

	// Dependencies lists the names of the package's direct dependencies
	// (dev dependencies included for the root package only).
	Dependencies []string
}

// Resolve loads the root manifest in rootDir and walks its path
// dependencies breadth-first, deduplicating by package name (first
// encounter wins, matching the shallowest declaration). Dev dependencies
// are honored only for the root package.
//
// The returned slice starts with the root package. Cycles in the package
// graph are legal here and detected later during model construction, where
// link-order flattening needs them to be fatal.
func Resolve(rootDir string, logger *slog.Logger) ([]Resolved, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root, err := Load(rootDir)
	if err != nil {
		return nil, err
	}

	resolved := []Resolved{{
		Name:         root.Name,
		Manifest:     root,
		Dependencies: dependencyNames(root, true),
	}}
	index := map[string]int{root.Name: 0}

	queue := dependencyQueue(root, true)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		depDir, err := filepath.Abs(filepath.Join(next.fromDir, next.path))
		if err != nil {
			return nil, fmt.Errorf("resolve dependency path %s: %w", next.path, err)
		}
		m, err := Load(depDir)
		if err != nil {
			return nil, err
		}
		if m.Name != next.name {
			return nil, fberrors.NewManifestError(
				"Dependency name mismatch",
				fmt.Sprintf("dependency %q points at %s, which declares package %q", next.name, depDir, m.Name),
				"Match the dependency key to the package's manifest name",
				nil,
			)
		}
		if i, ok := index[m.Name]; ok {
			if resolved[i].Manifest.Dir != m.Dir {
				logger.Warn("resolve.duplicate_package",
					"package", m.Name,
					"kept", resolved[i].Manifest.Dir,
					"ignored", m.Dir,
				)
			}
			continue
		}

		index[m.Name] = len(resolved)
		resolved = append(resolved, Resolved{
			Name:         m.Name,
			Manifest:     m,
			Dependencies: dependencyNames(m, false),
		})
		queue = append(queue, dependencyQueue(m, false)...)
	}

	logger.Info("resolve.done", "root", root.Name, "packages", len(resolved))
	return resolved, nil
}

type queued struct {
	name    string
	path    string
	fromDir string
}

// dependencyQueue returns the direct dependencies of m in deterministic
// (sorted-name) order for the breadth-first walk.
func dependencyQueue(m *Manifest, includeDev bool) []queued {
	names := dependencyNames(m, includeDev)
	out := make([]queued, 0, len(names))
	for _, name := range names {
		dep, ok := m.Dependencies[name]
		if !ok && includeDev {
			dep = m.DevDependencies[name]
		}
		out = append(out, queued{name: name, path: dep.Path, fromDir: m.Dir})
	}
	return out
}

// dependencyNames returns the sorted direct dependency names of m.
func dependencyNames(m *Manifest, includeDev bool) []string {
	var names []string
	for name := range m.Dependencies {
		names = append(names, name)
	}
	if includeDev {
		for name := range m.DevDependencies {
			if _, dup := m.Dependencies[name]; !dup {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
