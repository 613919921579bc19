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

func TestLoadSettings_Missing(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &Settings{}, s)
}

func TestLoadSettings_Full(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fbuild"), 0755))
	content := `
compiler: ifx
archiver: llvm-ar
profile: debug
jobs: 4
flags: -fopenmp
external-modules:
  - mpi
  - petsc
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte(content), 0644))

	s, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "ifx", s.Compiler)
	assert.Equal(t, "llvm-ar", s.Archiver)
	assert.Equal(t, "debug", s.Profile)
	assert.Equal(t, 4, s.Jobs)
	assert.Equal(t, "-fopenmp", s.Flags)
	assert.Equal(t, []string{"mpi", "petsc"}, s.ExternalModules)
}

func TestLoadSettings_UnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fbuild"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("compilerr: typo\n"), 0644))

	_, err := LoadSettings(dir)
	require.Error(t, err)
}

func TestLoadSettings_BadProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fbuild"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("profile: fastest\n"), 0644))

	_, err := LoadSettings(dir)
	require.Error(t, err)
}
