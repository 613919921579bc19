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
	"sync"

	"log/slog"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
)

// BuildSession scopes the per-invocation shared state the executor's
// workers touch: the console, the compile-command table, and the failure
// list. Passing it explicitly keeps the pipeline free of module-level
// singletons.
type BuildSession struct {
	Console  *Console
	Commands *CommandTable
	Logger   *slog.Logger

	mu       sync.Mutex
	failures []*fberrors.BuildError
}

// NewSession creates a session around a console.
func NewSession(console *Console, logger *slog.Logger) *BuildSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildSession{
		Console:  console,
		Commands: NewCommandTable(),
		Logger:   logger,
	}
}

// AddFailure records one per-target failure.
func (s *BuildSession) AddFailure(err *fberrors.BuildError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

// Failures returns the accumulated per-target failures in record order.
func (s *BuildSession) Failures() []*fberrors.BuildError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fberrors.BuildError, len(s.failures))
	copy(out, s.failures)
	return out
}

// FirstFailure returns the first recorded failure, or nil.
func (s *BuildSession) FirstFailure() *fberrors.BuildError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return nil
	}
	return s.failures[0]
}
