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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/pkg/model"
)

// responseFileThreshold is the command-line length past which the archiver
// switches to a response file.
const responseFileThreshold = 30000

// Executor walks the schedule region by region, invoking the external
// tools for each non-skip target.
type Executor struct {
	model   *model.BuildModel
	session *BuildSession

	// jobs bounds in-region parallelism; at most jobs workers run at once.
	jobs int

	// dryRun records commands without executing them or writing digests.
	dryRun bool
}

// NewExecutor creates an executor. jobs <= 0 uses all CPUs.
func NewExecutor(m *model.BuildModel, session *BuildSession, jobs int, dryRun bool) *Executor {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	return &Executor{model: m, session: session, jobs: jobs, dryRun: dryRun}
}

// Execute runs the schedule. Within a region up to jobs targets run
// concurrently; no region k target starts until every region <k target has
// completed. On the first failure in a region, in-flight work finishes but
// no later region is scheduled. Cancelling ctx stops scheduling the same
// way without killing running tools.
//
// The compile-command table is flushed to <build_prefix>/compile_commands.json
// at the end whenever at least one compile command was recorded, success or
// not.
func (e *Executor) Execute(ctx context.Context, sched *Schedule) error {
	start := time.Now()
	defer func() { recordBuildTotal(time.Since(start).Seconds()) }()

	var failed atomic.Bool
	for k, region := range sched.Regions() {
		group := errgroup.Group{}
		group.SetLimit(e.jobs)
		for _, id := range region {
			if ctx.Err() != nil || failed.Load() {
				break
			}
			id := id
			group.Go(func() error {
				e.runTarget(id, &failed)
				return nil
			})
		}
		_ = group.Wait()

		if failed.Load() {
			e.session.Logger.Warn("exec.region.failed", "region", k)
			break
		}
		if ctx.Err() != nil {
			e.session.Logger.Warn("exec.interrupted", "region", k)
			break
		}
		e.session.Logger.Debug("exec.region.done", "region", k, "targets", len(region))
	}

	if e.session.Commands.Len() > 0 {
		// A dry run records commands without ever creating the prefix.
		if err := os.MkdirAll(e.model.BuildPrefix, 0755); err != nil {
			e.session.Logger.Warn("exec.compile_commands.error", "err", err)
		} else if err := e.session.Commands.WriteFile(filepath.Join(e.model.BuildPrefix, "compile_commands.json")); err != nil {
			e.session.Logger.Warn("exec.compile_commands.error", "err", err)
		}
	}

	if first := e.session.FirstFailure(); first != nil {
		return first
	}
	if err := ctx.Err(); err != nil {
		return fberrors.NewInputError("Build interrupted", err.Error(), "")
	}
	return nil
}

// runTarget builds one target: ensure the output directory, assemble the
// command, invoke the tool with output captured to the sidecar log, then
// write the digest and record the compile command.
func (e *Executor) runTarget(id model.TargetID, failed *atomic.Bool) {
	m := e.model
	t := &m.Targets[id]
	logPath := t.OutputFile + LogSuffix

	e.session.Console.TargetStarted(t.OutputFile, t.DisplayName)

	argv := e.commandFor(t)
	recordCommand := func() {
		if t.Kind.IsObject() {
			src := &m.Packages[t.PackageIndex].Sources[t.SourceIndex]
			e.session.Commands.Append(m.BuildPrefix, src.Path, argv)
		}
	}

	if e.dryRun {
		recordCommand()
		e.session.Console.TargetFinished(t.OutputFile, t.DisplayName, true)
		return
	}

	if err := os.MkdirAll(filepath.Dir(t.OutputFile), 0755); err != nil {
		e.fail(t, fberrors.NewIOError(fmt.Sprintf("Cannot create output directory for %s", t.OutputFile), err), failed)
		return
	}
	// Fresh log per attempt; the runner appends.
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		e.fail(t, fberrors.NewIOError(fmt.Sprintf("Cannot reset log %s", logPath), err), failed)
		return
	}

	started := time.Now()
	exit, err := e.invoke(t, argv, logPath)
	seconds := time.Since(started).Seconds()
	e.observe(t, seconds)

	if err != nil {
		e.fail(t, fberrors.NewIOError(fmt.Sprintf("Cannot run tool for %s", t.OutputFile), err), failed)
		return
	}
	if exit != 0 {
		e.printLog(logPath)
		e.fail(t, fberrors.NewCommandError(failureKind(t.Kind), t.OutputFile, exit, logPath), failed)
		return
	}

	if err := writeDigest(t.OutputFile, t.DigestExpected); err != nil {
		e.fail(t, fberrors.NewIOError(fmt.Sprintf("Cannot write digest for %s", t.OutputFile), err), failed)
		return
	}
	recordCommand()

	recordTargetBuilt()
	e.session.Console.TargetFinished(t.OutputFile, t.DisplayName, true)
	e.session.Logger.Debug("exec.target.done", "output", t.OutputFile, "seconds", seconds)
}

// commandFor assembles the tool argv for a target; the executor is the one
// place that dispatches on target kind.
func (e *Executor) commandFor(t *model.Target) []string {
	m := e.model
	switch t.Kind {
	case model.TargetFortranObject:
		src := m.Packages[t.PackageIndex].Sources[t.SourceIndex]
		return m.Compiler.FortranCompileCommand(src.Path, t.OutputFile, t.CompileFlags)
	case model.TargetCObject:
		src := m.Packages[t.PackageIndex].Sources[t.SourceIndex]
		return m.Compiler.CCompileCommand(src.Path, t.OutputFile, t.CompileFlags)
	case model.TargetCppObject:
		src := m.Packages[t.PackageIndex].Sources[t.SourceIndex]
		return m.Compiler.CxxCompileCommand(src.Path, t.OutputFile, t.CompileFlags)
	case model.TargetExecutable:
		return m.Compiler.LinkCommand(t.OutputFile, t.LinkObjects, t.LinkFlags)
	case model.TargetSharedLib:
		flags := t.LinkFlags
		if t.ImportLib != "" {
			flags += " -Wl,--out-implib," + t.ImportLib
		}
		return m.Compiler.SharedLinkCommand(t.OutputFile, t.LinkObjects, flags)
	case model.TargetArchive:
		// Assembled by the archiver itself (response file handling);
		// shown here only for the dry-run record.
		argv, _, _ := m.Archiver.ArchiveCommand(t.LinkObjects, t.OutputFile, false)
		return argv
	}
	return nil
}

// invoke runs the assembled command; archives go through the archiver so
// long member lists spill into a response file.
func (e *Executor) invoke(t *model.Target, argv []string, logPath string) (int, error) {
	if t.Kind == model.TargetArchive {
		useResponseFile := runtime.GOOS == "windows" || commandLength(t.LinkObjects) > responseFileThreshold
		return e.model.Archiver.Archive(t.LinkObjects, t.OutputFile, useResponseFile, logPath)
	}
	return e.model.Compiler.Run(argv, logPath)
}

// observe feeds the per-kind duration metrics.
func (e *Executor) observe(t *model.Target, seconds float64) {
	switch t.Kind {
	case model.TargetArchive:
		recordArchive(seconds)
	case model.TargetExecutable, model.TargetSharedLib:
		recordLink(seconds)
	default:
		recordCompile(seconds)
	}
}

// fail records a per-target failure and raises the region flag. Scheduling
// stops after the current region; in-flight workers finish.
func (e *Executor) fail(t *model.Target, buildErr *fberrors.BuildError, failed *atomic.Bool) {
	recordTargetFailed()
	failed.Store(true)
	e.session.AddFailure(buildErr)
	e.session.Console.TargetFinished(t.OutputFile, t.DisplayName, false)
	e.session.Logger.Error("exec.target.failed", "output", t.OutputFile, "err", buildErr.Error())
}

// printLog dumps the failing tool's captured output to the console.
func (e *Executor) printLog(logPath string) {
	data, err := os.ReadFile(logPath)
	if err != nil || len(data) == 0 {
		return
	}
	e.session.Console.Printf("%s", string(data))
}

// failureKind maps a target kind to its failure classification.
func failureKind(kind model.TargetKind) fberrors.Kind {
	switch kind {
	case model.TargetArchive:
		return fberrors.KindArchiveFailed
	case model.TargetExecutable, model.TargetSharedLib:
		return fberrors.KindLinkFailed
	}
	return fberrors.KindCompileFailed
}

// commandLength estimates the joined command-line length.
func commandLength(inputs []string) int {
	n := 0
	for _, input := range inputs {
		n += len(input) + 1
	}
	return n
}
