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
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"log/slog"

	flag "github.com/spf13/pflag"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/internal/output"
	"github.com/kraklabs/fbuild/internal/ui"
	"github.com/kraklabs/fbuild/pkg/build"
	"github.com/kraklabs/fbuild/pkg/compiler"
	"github.com/kraklabs/fbuild/pkg/manifest"
	"github.com/kraklabs/fbuild/pkg/model"
)

// buildOptions are the knobs shared by build, run, test, and install.
type buildOptions struct {
	profile   string
	jobs      int
	tests     bool
	dryRun    bool
	verbose   bool
	flags     string
	cFlags    string
	cxxFlags  string
	linkFlags string
	fc        string
	archiver  string
}

// addBuildFlags registers the common build flags on a subcommand flag set.
func addBuildFlags(fs *flag.FlagSet, opts *buildOptions) {
	fs.StringVar(&opts.profile, "profile", "", "Build profile: release or debug")
	fs.IntVar(&opts.jobs, "jobs", 0, "Maximum parallel tool invocations (0 = all CPUs)")
	fs.BoolVar(&opts.tests, "tests", false, "Also build test targets")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Record commands without executing them")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Plain per-event output and debug logging")
	fs.StringVar(&opts.flags, "flag", "", "Extra Fortran compile flags")
	fs.StringVar(&opts.cFlags, "c-flag", "", "Extra C compile flags")
	fs.StringVar(&opts.cxxFlags, "cxx-flag", "", "Extra C++ compile flags")
	fs.StringVar(&opts.linkFlags, "link-flag", "", "Extra link flags")
	fs.StringVar(&opts.fc, "compiler", "", "Fortran compiler command")
	fs.StringVar(&opts.archiver, "archiver", "", "Static archiver command")
}

// buildSummary is the --json result of a build invocation.
type buildSummary struct {
	Profile  string `json:"profile"`
	Compiler string `json:"compiler"`
	Targets  int    `json:"targets"`
	Built    int    `json:"built"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// runBuild implements 'fbuild build'.
func runBuild(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var opts buildOptions
	addBuildFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		fberrors.FatalError(fberrors.NewInputError("Cannot parse build flags", err.Error(), ""), globals.JSON)
	}

	if _, _, err := executeBuild(".", opts, globals); err != nil {
		fberrors.FatalError(err, globals.JSON)
	}
}

// executeBuild runs the whole pipeline for the package rooted at dir:
// resolve, assemble, expand targets, plan, execute. It returns the model
// so callers can locate built executables.
func executeBuild(dir string, opts buildOptions, globals GlobalFlags) (*model.BuildModel, *build.Schedule, error) {
	logger := newLogger(opts.verbose, globals.Quiet)

	settings, err := manifest.LoadSettings(dir)
	if err != nil {
		return nil, nil, err
	}
	mergeSettings(&opts, settings)

	profile, err := compiler.ParseProfile(opts.profile)
	if err != nil {
		return nil, nil, fberrors.NewInputError("Invalid profile", err.Error(), "Use --profile release or --profile debug")
	}

	resolved, err := manifest.Resolve(dir, logger)
	if err != nil {
		return nil, nil, err
	}
	packages, err := model.AssemblePackages(resolved, logger)
	if err != nil {
		return nil, nil, err
	}

	comp := compiler.New(opts.fc, settings.CCompiler, settings.CxxCompiler, nil, logger)
	arch := compiler.NewArchiver(opts.archiver, nil, logger)

	rootDir := resolved[0].Manifest.Dir
	prefix := filepath.Join(rootDir, "build", fmt.Sprintf("%s_%s", comp.Vendor().String(), profileName(profile)))

	m := &model.BuildModel{
		RootPackageName: resolved[0].Name,
		Packages:        packages,
		Compiler:        comp,
		Archiver:        arch,
		FortranFlags:    joinFlags(comp.DefaultFlags(profile), opts.flags),
		CFlags:          joinFlags(cDefaultFlags(profile), opts.cFlags),
		CxxFlags:        joinFlags(cDefaultFlags(profile), opts.cxxFlags),
		LinkFlags:       strings.TrimSpace(opts.linkFlags),
		BuildPrefix:     prefix,
		ExternalModules: settings.ExternalModules,
		IncludeTests:    opts.tests,
	}
	if err := m.BuildTargets(logger); err != nil {
		return nil, nil, err
	}

	sched, err := build.Plan(m, logger)
	if err != nil {
		return nil, nil, err
	}

	progress := NewProgressConfig(globals, opts.verbose)
	console := build.NewConsole(progress.Writer, progress.Pretty, len(sched.Queue))
	defer console.Close()
	session := build.NewSession(console, logger)
	executor := build.NewExecutor(m, session, opts.jobs, opts.dryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	execErr := executor.Execute(ctx, sched)
	console.Close()

	summary := buildSummary{
		Profile:  profileName(profile),
		Compiler: comp.FC(),
		Targets:  len(sched.Queue) + sched.Skipped,
		Built:    len(sched.Queue) - len(session.Failures()),
		Skipped:  sched.Skipped,
		Failed:   len(session.Failures()),
		DryRun:   opts.dryRun,
	}
	if globals.JSON {
		_ = output.JSON(summary)
	} else if execErr == nil && !globals.Quiet {
		if len(sched.Queue) == 0 {
			ui.Info("Nothing to do, all targets up to date")
		} else if opts.dryRun {
			ui.Infof("Dry run: %d targets planned, %d up to date", len(sched.Queue), sched.Skipped)
		} else {
			ui.Successf("Built %d targets (%d up to date)", summary.Built, summary.Skipped)
		}
	}

	if execErr != nil {
		return m, sched, execErr
	}
	return m, sched, nil
}

// mergeSettings fills unset options from the workspace settings file.
func mergeSettings(opts *buildOptions, settings *manifest.Settings) {
	if opts.fc == "" {
		opts.fc = settings.Compiler
	}
	if opts.archiver == "" {
		opts.archiver = settings.Archiver
	}
	if opts.profile == "" {
		opts.profile = settings.Profile
	}
	if opts.jobs == 0 {
		opts.jobs = settings.Jobs
	}
	if opts.flags == "" {
		opts.flags = settings.Flags
	}
	if opts.cFlags == "" {
		opts.cFlags = settings.CFlags
	}
	if opts.cxxFlags == "" {
		opts.cxxFlags = settings.CxxFlags
	}
	if opts.linkFlags == "" {
		opts.linkFlags = settings.LinkFlags
	}
}

// newLogger builds the slog default for this invocation and installs it.
func newLogger(verbose, quiet bool) *slog.Logger {
	// Structured logs sit under the progress renderer: warnings only by
	// default, everything with --verbose.
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// cDefaultFlags are the profile defaults for C and C++ objects.
func cDefaultFlags(profile compiler.Profile) []string {
	if profile == compiler.ProfileDebug {
		return []string{"-Wall", "-g"}
	}
	return []string{"-O2"}
}

// joinFlags joins default tokens and the user's extra flag string.
func joinFlags(defaults []string, extra string) string {
	joined := strings.Join(defaults, " ")
	if extra = strings.TrimSpace(extra); extra != "" {
		if joined == "" {
			return extra
		}
		return joined + " " + extra
	}
	return joined
}

// profileName is the directory-name spelling of a profile.
func profileName(p compiler.Profile) string {
	if p == compiler.ProfileDebug {
		return "debug"
	}
	return "release"
}
