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
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// ANSI control sequences for the pretty renderer.
const (
	ansiEraseLine = "\x1b[2K"
)

// Console renders build progress. In pretty mode every target owns a
// sticky line, recolored in place when the target completes, with an
// overall percentage bar pinned at the bottom; plain mode prints one line
// per event with no colors or cursor movement.
//
// All writes go through one mutex: cursor movement is only valid while
// nothing else touches the stream.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	pretty bool

	total int
	done  int

	// line numbers: lines printed so far, and each target's own line,
	// keyed by output path.
	lineCount int
	lineOf    map[string]int

	bar *progressbar.ProgressBar
}

// NewConsole creates a console for total queued targets. Pretty mode
// requires an interactive TTY; the caller decides via TTY detection.
func NewConsole(out io.Writer, pretty bool, total int) *Console {
	c := &Console{
		out:    out,
		pretty: pretty,
		total:  total,
		lineOf: make(map[string]int),
	}
	if pretty && total > 0 {
		c.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("building"),
			progressbar.OptionSetWriter(out),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return c
}

// TargetStarted renders a yellow in-progress line for the target. The key
// (the target's output path) identifies the sticky line; name is what the
// line shows.
func (c *Console) TargetStarted(key, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pretty {
		fmt.Fprintf(c.out, "%s compiling [%d/%d]\n", name, c.done+1, c.total)
		return
	}

	c.clearBar()
	c.lineOf[key] = c.lineCount
	c.lineCount++
	fmt.Fprintf(c.out, "  %s [%d/%d]\n", color.YellowString(name), c.done+1, c.total)
	c.renderBar()
}

// TargetFinished recolors the target's sticky line green or red and
// advances the overall percentage.
func (c *Console) TargetFinished(key, name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++

	if !c.pretty {
		status := "done"
		if !ok {
			status = "failed"
		}
		fmt.Fprintf(c.out, "%s %s [%d/%d]\n", name, status, c.done, c.total)
		return
	}

	c.clearBar()
	if line, tracked := c.lineOf[key]; tracked {
		up := c.lineCount - line
		colored := color.GreenString(name)
		status := "done"
		if !ok {
			colored = color.RedString(name)
			status = "failed"
		}
		fmt.Fprintf(c.out, "\x1b[%dA\r%s  %s %s [%d/%d]\x1b[%dB\r", up, ansiEraseLine, colored, status, c.done, c.total, up)
	}
	if c.bar != nil {
		_ = c.bar.Add(1)
	}
}

// TargetUpToDate reports a skipped target in plain mode; pretty mode stays
// silent about work it does not do.
func (c *Console) TargetUpToDate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pretty {
		fmt.Fprintf(c.out, "%s up to date\n", name)
	}
}

// Println writes an ordinary line under the console lock, keeping it off
// the progress bar's row.
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearBar()
	fmt.Fprintln(c.out, a...)
	c.renderBar()
}

// Printf writes a formatted line under the console lock.
func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearBar()
	fmt.Fprintf(c.out, format, a...)
	c.renderBar()
}

// Close clears the progress bar at build end.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearBar()
	c.bar = nil
}

func (c *Console) clearBar() {
	if c.bar != nil {
		_ = c.bar.Clear()
	}
}

func (c *Console) renderBar() {
	if c.bar != nil {
		_ = c.bar.RenderBlank()
	}
}
