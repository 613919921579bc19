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
	"fmt"
	"sync"

	"github.com/google/renameio"
)

// CompileCommand is one entry of compile_commands.json in the standard
// arguments form: a flat token list beginning with the tool executable.
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// CommandTable accumulates the compile commands of one build. Workers
// append concurrently; the table is written once at build end.
type CommandTable struct {
	mu      sync.Mutex
	entries []CompileCommand
}

// NewCommandTable creates an empty table.
func NewCommandTable() *CommandTable {
	return &CommandTable{}
}

// Append records one compile command.
func (t *CommandTable) Append(directory, file string, arguments []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, CompileCommand{
		Directory: directory,
		File:      file,
		Arguments: arguments,
	})
}

// Entries returns a copy of the recorded commands.
func (t *CommandTable) Entries() []CompileCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CompileCommand, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of recorded commands.
func (t *CommandTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// WriteFile serializes the table to path atomically. Nothing is written
// when no command was recorded.
func (t *CommandTable) WriteFile(path string) error {
	entries := t.Entries()
	if len(entries) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal compile commands: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
