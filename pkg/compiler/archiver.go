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

package compiler

import (
	"fmt"
	"os"
	"strings"

	"log/slog"
)

// Archiver wraps the static archiver.
type Archiver struct {
	command string
	runner  Runner
	logger  *slog.Logger
}

// NewArchiver creates an archiver wrapper. Empty command defaults to "ar";
// nil runner uses ExecRunner.
func NewArchiver(command string, runner Runner, logger *slog.Logger) *Archiver {
	if command == "" {
		command = "ar"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{command: command, runner: runner, logger: logger}
}

// Command returns the archiver executable name.
func (a *Archiver) Command() string { return a.command }

// ArchiveCommand builds the argv for archiving objs into out. When
// useResponseFile is requested the object list is written to a temporary
// response file and referenced as @file, keeping long command lines under
// platform limits; the response file path is returned for cleanup.
func (a *Archiver) ArchiveCommand(objs []string, out string, useResponseFile bool) (argv []string, responseFile string, err error) {
	argv = []string{a.command, "-rcs", out}
	if !useResponseFile {
		return append(argv, objs...), "", nil
	}

	tmp, err := os.CreateTemp("", "fbuild-ar-*.rsp")
	if err != nil {
		return nil, "", fmt.Errorf("create response file: %w", err)
	}
	if _, err := tmp.WriteString(strings.Join(objs, "\n") + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("write response file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("close response file: %w", err)
	}
	return append(argv, "@"+tmp.Name()), tmp.Name(), nil
}

// Archive removes any stale archive and writes a fresh one from objs,
// appending tool output to logPath.
func (a *Archiver) Archive(objs []string, out string, useResponseFile bool, logPath string) (int, error) {
	// ar appends into existing archives; a stale member from a deleted
	// source must not survive.
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("remove stale archive %s: %w", out, err)
	}

	argv, responseFile, err := a.ArchiveCommand(objs, out, useResponseFile)
	if err != nil {
		return 0, err
	}
	if responseFile != "" {
		defer os.Remove(responseFile)
	}

	a.logger.Debug("archive.run", "out", out, "objects", len(objs))
	return a.runner.Run(argv, logPath)
}
