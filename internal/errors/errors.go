// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the fbuild CLI.
//
// This package defines BuildError, a type that carries structured error
// information including what went wrong, why it happened, and how to fix it.
// It also defines consistent exit codes for the different failure categories
// of a build run.
//
// # Usage Example
//
// Creating and displaying errors:
//
//	err := errors.NewManifestError(
//	    "Cannot load package manifest",
//	    "fpm.toml declares two executables named 'demo'",
//	    "Rename one of the [[executable]] entries",
//	    underlyingErr,
//	)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//
// # Formatted Output
//
// The Format() method provides colored terminal output:
//
//	Error: Cannot load package manifest
//	Cause: fpm.toml declares two executables named 'demo'
//	Fix:   Rename one of the [[executable]] entries
//
// # Exit Codes
//
// The package defines semantic exit codes following Unix conventions:
//   - ExitSuccess (0): Successful build
//   - ExitManifest (1): Manifest errors (missing/invalid fpm.toml)
//   - ExitParse (2): Source parse errors
//   - ExitGraph (3): Graph errors (cycles, missing module providers)
//   - ExitInput (4): Invalid user input (bad arguments, unknown targets)
//   - ExitBuild (5): Compile/archive/link failures
//   - ExitNotFound (6): Resource not found (file, directory, target)
//   - ExitInternal (10): Internal errors (bugs, panics)
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitManifest indicates manifest errors (missing or invalid fpm.toml,
	// conflicting declarations).
	ExitManifest = 1

	// ExitParse indicates source parse errors (unreadable or unrecognizable
	// source files).
	ExitParse = 2

	// ExitGraph indicates dependency graph errors: cycles in the module,
	// target, or package graph, or a used module with no provider.
	ExitGraph = 3

	// ExitInput indicates invalid user input (bad arguments, unknown target
	// names, validation errors).
	ExitInput = 4

	// ExitBuild indicates that one or more compile, archive, or link
	// commands failed.
	ExitBuild = 5

	// ExitNotFound indicates resource not found errors (file, directory).
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected panics).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10
)

// Kind classifies a BuildError. The classification mirrors the failure
// taxonomy of the build pipeline: fatal kinds abort the run immediately,
// per-target kinds accumulate and stop scheduling after their region.
type Kind string

const (
	// KindFileNotFound marks a missing file or directory. Fatal.
	KindFileNotFound Kind = "file_not_found"

	// KindParse marks an unreadable or unrecognizable source file. Fatal.
	KindParse Kind = "parse"

	// KindManifest marks an invalid or conflicting manifest declaration. Fatal.
	KindManifest Kind = "manifest"

	// KindCycle marks a cycle in the module, target, or package graph. Fatal.
	KindCycle Kind = "cycle"

	// KindMissingModule marks a used module with no provider in the model
	// that is not listed as external. Fatal.
	KindMissingModule Kind = "missing_module"

	// KindCompileFailed marks a failed compile command. Per-target.
	KindCompileFailed Kind = "compile_failed"

	// KindLinkFailed marks a failed link command. Per-target.
	KindLinkFailed Kind = "link_failed"

	// KindArchiveFailed marks a failed archive command. Per-target.
	KindArchiveFailed Kind = "archive_failed"

	// KindIO marks a failed digest or log write. Treated as a compile
	// failure for the affected target.
	KindIO Kind = "io"

	// KindInput marks invalid user input. Fatal.
	KindInput Kind = "input"

	// KindInternal marks a bug in fbuild itself.
	KindInternal Kind = "internal"
)

// Fatal reports whether an error of this kind aborts the build run
// immediately. Non-fatal kinds accumulate per target and stop scheduling
// after the failing region completes.
func (k Kind) Fatal() bool {
	switch k {
	case KindCompileFailed, KindLinkFailed, KindArchiveFailed, KindIO:
		return false
	}
	return true
}

// BuildError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
//
// BuildError also carries a Kind for failure classification, an exit code
// for consistent CLI exit behavior, and optionally wraps an underlying
// error for error chain compatibility.
type BuildError struct {
	// Kind classifies the failure.
	Kind Kind

	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	// This enables error wrapping and compatibility with errors.Is/As.
	Err error
}

// Error implements the error interface.
//
// It returns a simple error message string. If an underlying error is present,
// it appends that error's message for context.
func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is and errors.As.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// NewFileNotFoundError creates a missing-file error with exit code ExitNotFound.
func NewFileNotFoundError(msg, cause, fix string) *BuildError {
	return &BuildError{
		Kind:     KindFileNotFound,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitNotFound,
	}
}

// NewParseError creates a source parse error with exit code ExitParse.
//
// The file/line/column position belongs in the cause:
//
//	return NewParseError(
//	    "Cannot parse Fortran source",
//	    "src/solver.f90:41:8: malformed submodule declaration",
//	    "Check the submodule parent list",
//	    nil,
//	)
func NewParseError(msg, cause, fix string, err error) *BuildError {
	return &BuildError{
		Kind:     KindParse,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitParse,
		Err:      err,
	}
}

// NewManifestError creates a manifest error with exit code ExitManifest.
//
// Use this for errors related to missing, invalid, or conflicting manifest
// declarations.
func NewManifestError(msg, cause, fix string, err error) *BuildError {
	return &BuildError{
		Kind:     KindManifest,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitManifest,
		Err:      err,
	}
}

// NewCycleError creates a dependency cycle error with exit code ExitGraph.
//
// The members argument names the participants of the cycle in traversal
// order; it is rendered in the cause so the user can see the full loop.
func NewCycleError(msg string, members []string) *BuildError {
	return &BuildError{
		Kind:     KindCycle,
		Message:  msg,
		Cause:    "cycle: " + strings.Join(members, " -> "),
		Fix:      "Break the cycle by removing one of the dependencies",
		ExitCode: ExitGraph,
	}
}

// NewMissingModuleError creates an unresolved-module error with exit code
// ExitGraph. The consumer is the source file that used the module.
func NewMissingModuleError(module, consumer string) *BuildError {
	return &BuildError{
		Kind:     KindMissingModule,
		Message:  fmt.Sprintf("No provider for module '%s'", module),
		Cause:    fmt.Sprintf("'%s' is used by %s but no source in the build provides it", module, consumer),
		Fix:      "Add the providing package as a dependency, or list the module under [build] external-modules",
		ExitCode: ExitGraph,
	}
}

// NewInputError creates an input validation error with exit code ExitInput.
//
// Input errors typically do not wrap an underlying error.
func NewInputError(msg, cause, fix string) *BuildError {
	return &BuildError{
		Kind:     KindInput,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitInput,
	}
}

// NewCommandError creates a per-target tool failure of the given kind
// (KindCompileFailed, KindLinkFailed, or KindArchiveFailed) with exit code
// ExitBuild. The output argument is the path of the target that failed.
func NewCommandError(kind Kind, output string, exitCode int, logFile string) *BuildError {
	return &BuildError{
		Kind:     kind,
		Message:  fmt.Sprintf("Compilation failed for %s", output),
		Cause:    fmt.Sprintf("the tool exited with status %d", exitCode),
		Fix:      fmt.Sprintf("See %s for the full tool output", logFile),
		ExitCode: ExitBuild,
	}
}

// NewIOError creates an artifact write error with exit code ExitBuild.
// IO errors are treated like compile failures for the affected target.
func NewIOError(msg string, err error) *BuildError {
	return &BuildError{
		Kind:     KindIO,
		Message:  msg,
		ExitCode: ExitBuild,
		Err:      err,
	}
}

// NewInternalError creates an internal error with exit code ExitInternal.
//
// Use this for unexpected errors that indicate bugs in the program.
// Internal errors should be reported to the maintainers.
func NewInternalError(msg, cause string, err error) *BuildError {
	return &BuildError{
		Kind:     KindInternal,
		Message:  msg,
		Cause:    cause,
		Fix:      "This is a bug. Please report it at github.com/kraklabs/fbuild/issues",
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause (yellow),
// and Fix (green). Color output respects the NO_COLOR environment variable
// and can be explicitly disabled with the noColor parameter.
//
// Empty Cause or Fix fields are omitted from the output.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *BuildError) Format(noColor bool) string {
	// Save and restore global color state to avoid side effects
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
//
// This structure is suitable for machine consumption and integrates with
// CLI commands that support --json output mode.
type ErrorJSON struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the BuildError to a JSON-serializable structure.
//
// Fields with empty values (Cause, Fix) are omitted from JSON output
// using the omitempty tag.
func (e *BuildError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Kind:     string(e.Kind),
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// If the error is a BuildError, it uses Format() for colored output or
// ToJSON() for JSON mode. For non-BuildError types, it prints a simple
// error message and exits with ExitInternal.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	var be *BuildError
	if e, ok := err.(*BuildError); ok {
		be = e
	} else {
		be = NewInternalError("Unexpected error", err.Error(), err)
	}

	if jsonOutput {
		_ = json.NewEncoder(os.Stderr).Encode(be.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, be.Format(false))
	}
	os.Exit(be.ExitCode)
}
