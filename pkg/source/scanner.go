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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"log/slog"
)

// Default suffix sets recognized by the scanner. Manifest [preprocess]
// tables may extend the Fortran set with preprocessed suffixes.
var (
	// FortranSuffixes are the plain Fortran source extensions.
	FortranSuffixes = []string{".f90", ".f"}

	// FortranPreprocessedSuffixes are the conventional cpp-preprocessed
	// Fortran extensions, enabled when the manifest requests a preprocessor.
	FortranPreprocessedSuffixes = []string{".F90", ".F", ".fpp"}

	// CSuffixes are the C/C++ source and header extensions.
	CSuffixes = []string{".c", ".h", ".cpp", ".hpp"}
)

// Scanner enumerates candidate source files under project directories.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a scanner. A nil logger falls back to slog.Default.
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Find enumerates files under root whose extension matches one of the given
// suffixes (compared case-insensitively). Hidden files and directories
// (leading '.') are skipped. When recursive is false only the immediate
// directory is listed.
//
// Each discovered path is canonicalized, and paths already present in the
// caller-supplied seen set are dropped; accepted paths are added to it. The
// returned slice is sorted for deterministic downstream processing.
func (sc *Scanner) Find(root string, recursive bool, suffixes []string, seen map[string]bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source dir %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source dir %s is not a directory", root)
	}

	var found []string
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesSuffix(name, suffixes) {
			return nil
		}
		canonical, err := Canonical(path)
		if err != nil {
			return err
		}
		if seen[canonical] {
			return nil
		}
		seen[canonical] = true
		found = append(found, canonical)
		return nil
	}

	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, fmt.Errorf("walk source dir %s: %w", root, err)
	}

	sort.Strings(found)
	sc.logger.Debug("scan.dir", "root", root, "recursive", recursive, "files", len(found))
	return found, nil
}

// matchesSuffix reports whether the file name carries one of the suffixes,
// compared case-insensitively.
func matchesSuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// Canonical returns the canonical absolute form of a path: absolute,
// cleaned, and with symlinks resolved when the target exists.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Outputs that do not exist yet still need a canonical form.
		return filepath.Clean(abs), nil
	}
	return resolved, nil
}
