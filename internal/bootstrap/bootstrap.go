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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"
)

// ProjectConfig holds configuration for scaffolding a new package.
type ProjectConfig struct {
	// Name is the package name; it becomes the directory name and the
	// module prefix of the generated library source.
	Name string

	// Dir is the parent directory the package is created under.
	// Defaults to the current directory.
	Dir string

	// WithLib, WithApp, and WithTest select the generated layout.
	WithLib  bool
	WithApp  bool
	WithTest bool
}

// ProjectInfo holds information about a scaffolded package.
type ProjectInfo struct {
	Name string
	Root string
}

// New scaffolds a fresh package tree: an fpm.toml manifest plus the
// conventional src/, app/, and test/ directories with compilable starter
// sources. It refuses to touch a directory that already contains a
// manifest.
func New(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Name == "" {
		return nil, fmt.Errorf("package name is required")
	}
	if config.Dir == "" {
		config.Dir = "."
	}

	root, err := filepath.Abs(filepath.Join(config.Dir, config.Name))
	if err != nil {
		return nil, fmt.Errorf("resolve package dir: %w", err)
	}
	if _, err := os.Stat(filepath.Join(root, "fpm.toml")); err == nil {
		return nil, fmt.Errorf("%s already contains a package manifest", root)
	}

	files := map[string]string{
		"fpm.toml":   manifestTemplate(config.Name),
		".gitignore": "build/\n",
	}
	prefix := modulePrefix(config.Name)
	if config.WithLib {
		files[filepath.Join("src", config.Name+".f90")] = libTemplate(prefix)
	}
	if config.WithApp {
		files[filepath.Join("app", "main.f90")] = appTemplate(config.Name, prefix, config.WithLib)
	}
	if config.WithTest {
		files[filepath.Join("test", "check.f90")] = testTemplate(prefix, config.WithLib)
	}

	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}

	logger.Info("bootstrap.new", "package", config.Name, "root", root)
	return &ProjectInfo{Name: config.Name, Root: root}, nil
}

// modulePrefix normalizes a package name into a Fortran identifier.
func modulePrefix(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

func manifestTemplate(name string) string {
	return fmt.Sprintf(`name = %q
version = "0.1.0"
`, name)
}

func libTemplate(prefix string) string {
	return fmt.Sprintf(`module %s
  implicit none
  private

  public :: say_hello
contains
  subroutine say_hello
    print *, "Hello, %s!"
  end subroutine say_hello
end module %s
`, prefix, prefix, prefix)
}

func appTemplate(name, prefix string, withLib bool) string {
	if !withLib {
		return fmt.Sprintf("program main\n  implicit none\n  print *, %q\nend program main\n", name)
	}
	return fmt.Sprintf(`program main
  use %s, only: say_hello
  implicit none

  call say_hello()
end program main
`, prefix)
}

func testTemplate(prefix string, withLib bool) string {
	if !withLib {
		return "program check\n  implicit none\n  print *, \"Put your tests in here!\"\nend program check\n"
	}
	return fmt.Sprintf(`program check
  use %s, only: say_hello
  implicit none

  call say_hello()
  print *, "Put your tests in here!"
end program check
`, prefix)
}
