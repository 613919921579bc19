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

package source

import (
	"reflect"
	"testing"
)

func TestParseC_QuotedIncludesOnly(t *testing.T) {
	sf := parseSource(t, "kernel.c", `
#include <stdio.h>
#include "defs.h"
#include "util/helpers.h"

int kernel_init(void) { return 0; }
`)

	if sf.UnitKind != UnitCSource {
		t.Errorf("UnitKind = %v, want c-source", sf.UnitKind)
	}
	if !reflect.DeepEqual(sf.IncludeDeps, []string{"defs.h", "util/helpers.h"}) {
		t.Errorf("IncludeDeps = %v; angle-bracket includes must be ignored", sf.IncludeDeps)
	}
}

func TestParseC_HeaderAndCppKinds(t *testing.T) {
	tests := []struct {
		name string
		kind UnitKind
	}{
		{"defs.h", UnitCHeader},
		{"wrap.hpp", UnitCHeader},
		{"sim.cpp", UnitCppSource},
		{"main.c", UnitCSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf := parseSource(t, tt.name, "#include \"common.h\"\n")
			if sf.UnitKind != tt.kind {
				t.Errorf("UnitKind = %v, want %v", sf.UnitKind, tt.kind)
			}
			if !reflect.DeepEqual(sf.IncludeDeps, []string{"common.h"}) {
				t.Errorf("IncludeDeps = %v", sf.IncludeDeps)
			}
		})
	}
}

func TestParseC_ToleratesBrokenSource(t *testing.T) {
	// Tree-sitter is error tolerant; an unparseable tail must not lose the
	// includes above it.
	sf := parseSource(t, "broken.c", `
#include "defs.h"
int f( { ;;; @@@
`)

	if !reflect.DeepEqual(sf.IncludeDeps, []string{"defs.h"}) {
		t.Errorf("IncludeDeps = %v", sf.IncludeDeps)
	}
}

func TestScanQuotedIncludes_Fallback(t *testing.T) {
	includes := make(map[string]bool)
	scanQuotedIncludes([]byte("#include \"a.h\"\n# include \"b.h\"\n#include <sys.h>\n"), includes)

	if !includes["a.h"] || !includes["b.h"] {
		t.Errorf("fallback scanner missed quoted includes: %v", includes)
	}
	if includes["sys.h"] {
		t.Errorf("fallback scanner picked up an angle-bracket include")
	}
}

func TestParseC_DigestSet(t *testing.T) {
	content := "#include \"defs.h\"\n"
	sf := parseSource(t, "d.c", content)
	if sf.Digest != Digest([]byte(content)) {
		t.Errorf("Digest does not match content digest")
	}
}
