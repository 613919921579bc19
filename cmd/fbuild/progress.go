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

package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ProgressConfig determines if and how build progress is displayed.
type ProgressConfig struct {
	// Pretty selects the sticky-line renderer with in-place updates.
	// Disabled when --json, -q, or --verbose is set, or when stdout is not
	// an interactive terminal.
	Pretty bool

	// Writer is where progress output goes.
	Writer io.Writer

	// NoColor disables colored output.
	NoColor bool
}

// NewProgressConfig creates a progress configuration based on global flags
// and TTY detection.
//
// Pretty progress requires an interactive terminal. IsTerminal covers
// ordinary ttys; IsCygwinTerminal recognizes the MSYS/Cygwin pseudo
// terminals on Windows, whose descriptors are named pipes matching
// \cygwin-...-pty<N>-{from,to}-master or \msys-...-pty<N>-... rather than
// console handles.
func NewProgressConfig(globals GlobalFlags, verbose bool) ProgressConfig {
	fd := os.Stdout.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	return ProgressConfig{
		Pretty:  interactive && !globals.Quiet && !globals.JSON && !verbose,
		Writer:  os.Stdout,
		NoColor: globals.NoColor,
	}
}
