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
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestConsole_PlainMode(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false, 2)

	c.TargetStarted("/b/a.o", "p.a")
	c.TargetFinished("/b/a.o", "p.a", true)
	c.TargetStarted("/b/b.o", "p.b")
	c.TargetFinished("/b/b.o", "p.b", false)
	c.Close()

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("plain mode emitted ANSI sequences:\n%q", out)
	}
	for _, want := range []string{"p.a compiling [1/2]", "p.a done [1/2]", "p.b failed [2/2]"} {
		if !strings.Contains(out, want) {
			t.Errorf("plain output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_PrettyModeRewritesLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true, 2)

	c.TargetStarted("/b/a.o", "p.a")
	c.TargetStarted("/b/b.o", "p.b")
	c.TargetFinished("/b/a.o", "p.a", true)
	c.TargetFinished("/b/b.o", "p.b", true)
	c.Close()

	out := buf.String()
	// The first finish happens two lines above the cursor, the second one.
	if !strings.Contains(out, "\x1b[2A") || !strings.Contains(out, "\x1b[1A") {
		t.Errorf("pretty mode did not move the cursor to sticky lines:\n%q", out)
	}
	if !strings.Contains(out, "\x1b[2K") {
		t.Errorf("pretty mode did not erase lines before rewriting:\n%q", out)
	}
}

func TestConsole_ConcurrentEvents(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true, 16)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := strings.Repeat("x", n+1)
			c.TargetStarted(key, key)
			c.TargetFinished(key, key, true)
		}(i)
	}
	wg.Wait()
	c.Close()
	// The point is the race detector: concurrent events must serialize.
}
