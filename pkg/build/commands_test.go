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

package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTable_RoundTrip(t *testing.T) {
	table := NewCommandTable()
	table.Append("/build", "/src/a.f90", []string{"gfortran", "-O3", "-c", "/src/a.f90", "-o", "/build/a.o"})
	table.Append("/build", "/src/b.f90", []string{"gfortran", "-O3", "-c", "/src/b.f90", "-o", "/build/b.o"})

	path := filepath.Join(t.TempDir(), "compile_commands.json")
	require.NoError(t, table.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed []CompileCommand
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, table.Entries(), parsed)

	// Re-emitting the parsed content is byte-identical.
	reemitted, err := json.MarshalIndent(parsed, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, string(data), string(reemitted)+"\n")
}

func TestCommandTable_EmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compile_commands.json")
	require.NoError(t, NewCommandTable().WriteFile(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty table must not create the file")
}

func TestCommandTable_ConcurrentAppend(t *testing.T) {
	table := NewCommandTable()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Append("/build", "x.f90", []string{"gfortran"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, table.Len())
}

func TestReadWriteDigest_RoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "m.f90.o")
	require.NoError(t, writeDigest(out, 0xfeedface))

	got, ok := readCachedDigest(out)
	require.True(t, ok)
	assert.Equal(t, uint64(0xfeedface), got)
}

func TestReadCachedDigest_MissOnAbsenceAndGarbage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "m.f90.o")
	if _, ok := readCachedDigest(out); ok {
		t.Fatal("absent sidecar read as a hit")
	}

	require.NoError(t, os.WriteFile(out+DigestSuffix, []byte("zz-not-hex\n"), 0644))
	if _, ok := readCachedDigest(out); ok {
		t.Fatal("garbage sidecar read as a hit")
	}
}
