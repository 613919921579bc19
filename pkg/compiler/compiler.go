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

// Package compiler wraps the external Fortran/C/C++ compilers and the
// static archiver behind a small command-building and command-running
// surface.
//
// Vendor-specific knowledge (module output flags, default profiles,
// feature flags) is resolved once when the compiler is constructed, by
// invoking the compiler with version flags and matching the output; the
// executor never switches on vendors.
package compiler

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"log/slog"
)

// Runner abstracts subprocess invocation so tests can substitute a fake
// toolchain.
type Runner interface {
	// Run executes argv, appending combined stdout+stderr to logPath.
	// The returned exit code is 0 on success; a non-zero code is not an
	// error at this layer.
	Run(argv []string, logPath string) (int, error)

	// Output executes argv and captures combined output, used for version
	// probing.
	Output(argv []string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(argv []string, logPath string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open log %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return 0, nil
}

// Output implements Runner.
func (ExecRunner) Output(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		// Some compilers print the version banner and still exit non-zero
		// for unknown probe flags; the banner is what matters.
		if len(out) > 0 {
			return string(out), nil
		}
		return "", fmt.Errorf("run %s: %w", argv[0], err)
	}
	return string(out), nil
}

// Profile selects a default flag set.
type Profile int

const (
	// ProfileRelease optimizes for speed.
	ProfileRelease Profile = iota

	// ProfileDebug enables runtime checking and debug info.
	ProfileDebug
)

// ParseProfile maps the CLI spelling to a Profile. Empty means release.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "release":
		return ProfileRelease, nil
	case "debug":
		return ProfileDebug, nil
	}
	return ProfileRelease, fmt.Errorf("unknown profile %q", s)
}

// Compiler drives one toolchain: a Fortran compiler plus its C/C++
// siblings, with vendor-specific flag tables resolved at construction.
type Compiler struct {
	fc     string
	cc     string
	cxx    string
	vendor Vendor
	runner Runner
	logger *slog.Logger
}

// New probes fc's vendor and returns a ready compiler. Empty cc/cxx default
// to the vendor's C and C++ siblings. A nil runner uses ExecRunner.
func New(fc, cc, cxx string, runner Runner, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if fc == "" {
		fc = "gfortran"
	}
	vendor := identifyVendor(fc, runner, logger)
	if cc == "" {
		cc = vendor.cCompanion()
	}
	if cxx == "" {
		cxx = vendor.cxxCompanion()
	}
	logger.Info("compiler.identify", "fc", fc, "vendor", vendor.String())
	return &Compiler{fc: fc, cc: cc, cxx: cxx, vendor: vendor, runner: runner, logger: logger}
}

// Vendor returns the identified toolchain vendor.
func (c *Compiler) Vendor() Vendor { return c.vendor }

// IsGNU reports whether the toolchain is GCC-based.
func (c *Compiler) IsGNU() bool { return c.vendor == VendorGCC }

// IsIntel reports whether the toolchain is one of the Intel compilers.
func (c *Compiler) IsIntel() bool {
	return c.vendor == VendorIntelClassic || c.vendor == VendorIntelLLVM
}

// FC returns the Fortran compiler executable.
func (c *Compiler) FC() string { return c.fc }

// CC returns the C compiler executable.
func (c *Compiler) CC() string { return c.cc }

// CXX returns the C++ compiler executable.
func (c *Compiler) CXX() string { return c.cxx }

// FortranCompileCommand builds the argv for compiling one Fortran source.
func (c *Compiler) FortranCompileCommand(src, obj, flags string) []string {
	return appendTokens([]string{c.fc}, flags, "-c", src, "-o", obj)
}

// CCompileCommand builds the argv for compiling one C source.
func (c *Compiler) CCompileCommand(src, obj, flags string) []string {
	return appendTokens([]string{c.cc}, flags, "-c", src, "-o", obj)
}

// CxxCompileCommand builds the argv for compiling one C++ source.
func (c *Compiler) CxxCompileCommand(src, obj, flags string) []string {
	return appendTokens([]string{c.cxx}, flags, "-c", src, "-o", obj)
}

// LinkCommand builds the argv for linking an executable. Objects and
// archives appear before the flag string so -l libraries resolve in link
// order.
func (c *Compiler) LinkCommand(out string, inputs []string, flags string) []string {
	argv := []string{c.fc}
	argv = append(argv, inputs...)
	argv = appendTokens(argv, flags)
	return append(argv, "-o", out)
}

// SharedLinkCommand builds the argv for linking a shared library.
func (c *Compiler) SharedLinkCommand(out string, inputs []string, flags string) []string {
	argv := []string{c.fc, "-shared"}
	argv = append(argv, inputs...)
	argv = appendTokens(argv, flags)
	return append(argv, "-o", out)
}

// CompileFortran compiles one Fortran source, appending tool output to
// logPath, and returns the exit code.
func (c *Compiler) CompileFortran(src, obj, flags, logPath string) (int, error) {
	return c.runner.Run(c.FortranCompileCommand(src, obj, flags), logPath)
}

// CompileC compiles one C source.
func (c *Compiler) CompileC(src, obj, flags, logPath string) (int, error) {
	return c.runner.Run(c.CCompileCommand(src, obj, flags), logPath)
}

// CompileCxx compiles one C++ source.
func (c *Compiler) CompileCxx(src, obj, flags, logPath string) (int, error) {
	return c.runner.Run(c.CxxCompileCommand(src, obj, flags), logPath)
}

// LinkExecutable links objects and archives into an executable.
func (c *Compiler) LinkExecutable(inputs []string, out, flags, logPath string) (int, error) {
	return c.runner.Run(c.LinkCommand(out, inputs, flags), logPath)
}

// LinkShared links objects into a shared library.
func (c *Compiler) LinkShared(inputs []string, out, flags, logPath string) (int, error) {
	return c.runner.Run(c.SharedLinkCommand(out, inputs, flags), logPath)
}

// Run executes a previously built argv, appending output to logPath.
func (c *Compiler) Run(argv []string, logPath string) (int, error) {
	return c.runner.Run(argv, logPath)
}

// ModuleOutputFlag returns the tokens directing compiled .mod files to dir.
func (c *Compiler) ModuleOutputFlag(dir string) []string {
	return c.vendor.moduleOutputFlag(dir)
}

// IncludeFlag returns the tokens adding dir to the include/module search
// path.
func (c *Compiler) IncludeFlag(dir string) []string {
	return c.vendor.includeFlag(dir)
}

// FeatureFlag returns the tokens enabling one language feature, or nil when
// the vendor needs none.
func (c *Compiler) FeatureFlag(feature Feature) []string {
	return c.vendor.featureFlag(feature)
}

// DefaultFlags returns the vendor's default flag set for the profile.
func (c *Compiler) DefaultFlags(profile Profile) []string {
	return c.vendor.defaultFlags(profile)
}

// CheckFlagsSupported probes whether the compiler accepts the given flags
// by compiling an empty program with them.
func (c *Compiler) CheckFlagsSupported(tokens []string) bool {
	tmp, err := os.CreateTemp("", "fbuild-probe-*.f90")
	if err != nil {
		return false
	}
	defer os.Remove(tmp.Name())
	obj := tmp.Name() + ".o"
	defer os.Remove(obj)
	if _, err := tmp.WriteString("end\n"); err != nil {
		tmp.Close()
		return false
	}
	tmp.Close()

	argv := append([]string{c.fc}, tokens...)
	argv = append(argv, "-c", tmp.Name(), "-o", obj)
	code, err := c.runner.Run(argv, os.DevNull)
	return err == nil && code == 0
}

// appendTokens splits a flag string on blanks and appends it plus any
// trailing fixed arguments.
func appendTokens(argv []string, flags string, rest ...string) []string {
	argv = append(argv, strings.Fields(flags)...)
	return append(argv, rest...)
}
