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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePackage creates <root>/<dir>/fpm.toml.
func writePackage(t *testing.T, root, dir, content string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(full, ManifestFile), []byte(content), 0644))
}

func TestResolve_PathDependencyChain(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "main", `
name = "main"
[dependencies]
midlib = { path = "../midlib" }
`)
	writePackage(t, root, "midlib", `
name = "midlib"
[dependencies]
baselib = { path = "../baselib" }
`)
	writePackage(t, root, "baselib", "name = \"baselib\"\n")

	resolved, err := Resolve(filepath.Join(root, "main"), nil)
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, "main", resolved[0].Name)
	assert.Equal(t, "midlib", resolved[1].Name)
	assert.Equal(t, "baselib", resolved[2].Name)
	assert.Equal(t, []string{"midlib"}, resolved[0].Dependencies)
	assert.Equal(t, []string{"baselib"}, resolved[1].Dependencies)
}

func TestResolve_DiamondDeduplicates(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "main", `
name = "main"
[dependencies]
left = { path = "../left" }
right = { path = "../right" }
`)
	writePackage(t, root, "left", `
name = "left"
[dependencies]
common = { path = "../common" }
`)
	writePackage(t, root, "right", `
name = "right"
[dependencies]
common = { path = "../common" }
`)
	writePackage(t, root, "common", "name = \"common\"\n")

	resolved, err := Resolve(filepath.Join(root, "main"), nil)
	require.NoError(t, err)
	require.Len(t, resolved, 4)

	names := make(map[string]int)
	for _, r := range resolved {
		names[r.Name]++
	}
	assert.Equal(t, 1, names["common"], "diamond dependency must resolve once")
}

func TestResolve_DevDependenciesRootOnly(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "main", `
name = "main"
[dev-dependencies]
checker = { path = "../checker" }
`)
	writePackage(t, root, "checker", `
name = "checker"
[dev-dependencies]
hidden = { path = "../hidden" }
`)
	writePackage(t, root, "hidden", "name = \"hidden\"\n")

	resolved, err := Resolve(filepath.Join(root, "main"), nil)
	require.NoError(t, err)
	require.Len(t, resolved, 2, "dev dependencies of dependencies must not resolve")
	assert.Equal(t, "checker", resolved[1].Name)
}

func TestResolve_NameMismatch(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "main", `
name = "main"
[dependencies]
expected = { path = "../other" }
`)
	writePackage(t, root, "other", "name = \"actual\"\n")

	_, err := Resolve(filepath.Join(root, "main"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestResolve_MissingDependencyDir(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "main", `
name = "main"
[dependencies]
ghost = { path = "../ghost" }
`)

	_, err := Resolve(filepath.Join(root, "main"), nil)
	require.Error(t, err)
}
