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

package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_FullLayout(t *testing.T) {
	dir := t.TempDir()
	info, err := New(ProjectConfig{
		Name: "fast-solver", Dir: dir,
		WithLib: true, WithApp: true, WithTest: true,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, rel := range []string{"fpm.toml", ".gitignore",
		filepath.Join("src", "fast-solver.f90"),
		filepath.Join("app", "main.f90"),
		filepath.Join("test", "check.f90"),
	} {
		if _, err := os.Stat(filepath.Join(info.Root, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	// The library module name is a valid Fortran identifier.
	lib, err := os.ReadFile(filepath.Join(info.Root, "src", "fast-solver.f90"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(lib), "module fast_solver") {
		t.Errorf("library module not normalized: %s", lib)
	}
}

func TestNew_RefusesExistingManifest(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "p")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "fpm.toml"), []byte("name = \"p\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(ProjectConfig{Name: "p", Dir: dir, WithLib: true}, nil); err == nil {
		t.Fatal("New overwrote an existing package")
	}
}

func TestNew_RequiresName(t *testing.T) {
	if _, err := New(ProjectConfig{Dir: t.TempDir()}, nil); err == nil {
		t.Fatal("New accepted an empty name")
	}
}
