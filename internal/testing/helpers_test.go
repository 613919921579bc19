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

package testing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteProject(t *testing.T) {
	root := WriteProject(t, map[string]string{
		"fpm.toml":  "name = \"p\"\n",
		"src/m.f90": "module m\nend module m\n",
	})

	data, err := os.ReadFile(filepath.Join(root, "src", "m.f90"))
	if err != nil {
		t.Fatalf("nested file not created: %v", err)
	}
	if string(data) != "module m\nend module m\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestTouch(t *testing.T) {
	root := WriteProject(t, map[string]string{"a.f90": "old\n"})
	path := filepath.Join(root, "a.f90")

	Touch(t, path, "new\n")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new\n" {
		t.Errorf("Touch did not replace content: %q", data)
	}
}
