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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fbtest "github.com/kraklabs/fbuild/internal/testing"
	"github.com/kraklabs/fbuild/pkg/compiler"
	"github.com/kraklabs/fbuild/pkg/manifest"
	"github.com/kraklabs/fbuild/pkg/model"
)

// fakeRunner stands in for the whole toolchain: it records every command,
// creates the requested output file, and can be told to fail for outputs
// matching a substring.
type fakeRunner struct {
	mu       sync.Mutex
	commands [][]string
	failOn   string

	delay         time.Duration
	concurrent    int32
	maxConcurrent int32
}

func (r *fakeRunner) Run(argv []string, logPath string) (int, error) {
	cur := atomic.AddInt32(&r.concurrent, 1)
	defer atomic.AddInt32(&r.concurrent, -1)
	for {
		max := atomic.LoadInt32(&r.maxConcurrent)
		if cur <= max || atomic.CompareAndSwapInt32(&r.maxConcurrent, max, cur) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.commands = append(r.commands, argv)
	r.mu.Unlock()

	out := outputOf(argv)
	if r.failOn != "" && strings.Contains(out, r.failOn) {
		_ = os.WriteFile(logPath, []byte("Error: mock tool failure\n"), 0644)
		return 1, nil
	}
	if out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(out, []byte("artifact"), 0644); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

func (r *fakeRunner) Output(argv []string) (string, error) {
	return "GNU Fortran 13.2.0", nil
}

// count returns how many recorded commands produced outputs matching the
// substring ("" counts all).
func (r *fakeRunner) count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, argv := range r.commands {
		if substr == "" || strings.Contains(outputOf(argv), substr) {
			n++
		}
	}
	return n
}

// outputOf extracts the output path of a recorded command.
func outputOf(argv []string) string {
	for i, arg := range argv {
		if arg == "-o" && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	// ar -rcs <out> <objs...>
	if len(argv) > 2 && strings.HasSuffix(argv[0], "ar") {
		return argv[2]
	}
	return ""
}

// buildOnce assembles a model for the project at root and runs one full
// build, returning the model, the schedule, and the execute error.
func buildOnce(t *testing.T, root string, runner *fakeRunner, jobs int, dryRun bool) (*model.BuildModel, *Schedule, error) {
	t.Helper()

	resolved, err := manifest.Resolve(root, nil)
	require.NoError(t, err)
	packages, err := model.AssemblePackages(resolved, nil)
	require.NoError(t, err)

	m := &model.BuildModel{
		RootPackageName: resolved[0].Name,
		Packages:        packages,
		Compiler:        compiler.New("gfortran", "", "", runner, nil),
		Archiver:        compiler.NewArchiver("ar", runner, nil),
		FortranFlags:    "-O3",
		BuildPrefix:     filepath.Join(resolved[0].Manifest.Dir, "build", "gcc_release"),
	}
	require.NoError(t, m.BuildTargets(nil))

	sched, err := Plan(m, nil)
	require.NoError(t, err)

	console := NewConsole(io.Discard, false, len(sched.Queue))
	session := NewSession(console, nil)
	executor := NewExecutor(m, session, jobs, dryRun)
	return m, sched, executor.Execute(context.Background(), sched)
}

func TestExecute_SingleModule(t *testing.T) {
	// One module: first build compiles and archives, second does nothing.
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":  "name = \"single\"\n",
		"src/m.f90": "module m\nend module m\n",
	})

	runner := &fakeRunner{}
	_, sched, err := buildOnce(t, root, runner, 1, false)
	require.NoError(t, err)
	assert.Len(t, sched.Queue, 2)
	assert.Equal(t, 1, runner.count("m.f90.o"))
	assert.Equal(t, 1, runner.count("libsingle.a"))

	digest := filepath.Join(root, "build", "gcc_release", "single", "src", "m.f90.o"+DigestSuffix)
	if _, err := os.Stat(digest); err != nil {
		t.Fatalf("digest sidecar not written: %v", err)
	}

	second := &fakeRunner{}
	_, sched2, err := buildOnce(t, root, second, 1, false)
	require.NoError(t, err)
	assert.Empty(t, sched2.Queue, "second build must skip everything")
	assert.Equal(t, 0, second.count(""), "second build must run zero commands")
}

func TestExecute_TouchedSourceRebuildsDependents(t *testing.T) {
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":     "name = \"chain\"\n",
		"src/a.f90":    "module a\nend module a\n",
		"src/b.f90":    "module b\nuse a\nend module b\n",
		"src/c.f90":    "module c\nend module c\n",
		"app/main.f90": "program main\nuse b\nend program main\n",
	})

	_, _, err := buildOnce(t, root, &fakeRunner{}, 2, false)
	require.NoError(t, err)

	// Touch a.f90: a.o rebuilds, b.o reads a's module, and main.o reads
	// b's module, which was regenerated. The independent c.o stays fresh.
	fbtest.Touch(t, filepath.Join(root, "src", "a.f90"), "module a\ninteger :: changed\nend module a\n")

	runner := &fakeRunner{}
	_, _, err = buildOnce(t, root, runner, 2, false)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.count("a.f90.o"))
	assert.Equal(t, 1, runner.count("b.f90.o"))
	assert.Equal(t, 0, runner.count("c.f90.o"), "untouched independent module must not rebuild")
	assert.Equal(t, 1, runner.count("main.f90.o"), "main reads b's regenerated module")
	assert.Equal(t, 1, runner.count("libchain.a"))
	assert.Equal(t, 1, runner.count(filepath.Join("app", "chain", "main")))
}

func TestExecute_HeaderChangeRebuildsCObject(t *testing.T) {
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":     "name = \"mixed\"\n",
		"src/m.f90":    "module m\nend module m\n",
		"src/kern.c":   "#include \"defs.h\"\nint kern(void) { return ORDER; }\n",
		"src/defs.h":   "#define ORDER 4\n",
	})

	_, _, err := buildOnce(t, root, &fakeRunner{}, 2, false)
	require.NoError(t, err)

	fbtest.Touch(t, filepath.Join(root, "src", "defs.h"), "#define ORDER 8\n")

	runner := &fakeRunner{}
	_, _, err = buildOnce(t, root, runner, 2, false)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.count("kern.c.o"), "C object must rebuild after header change")
	assert.Equal(t, 0, runner.count("m.f90.o"), "unrelated Fortran object must not rebuild")
}

func TestExecute_RegionParallelism(t *testing.T) {
	// Four independent modules compile concurrently in region 0; the
	// executable links alone afterwards.
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":     "name = \"par\"\n",
		"src/m1.f90":   "module m1\nend module m1\n",
		"src/m2.f90":   "module m2\nend module m2\n",
		"src/m3.f90":   "module m3\nend module m3\n",
		"src/m4.f90":   "module m4\nend module m4\n",
		"app/main.f90": "program main\nuse m1\nuse m2\nuse m3\nuse m4\nend program main\n",
	})

	runner := &fakeRunner{delay: 50 * time.Millisecond}
	m, sched, err := buildOnce(t, root, runner, 4, false)
	require.NoError(t, err)

	regions := sched.Regions()
	require.NotEmpty(t, regions)
	assert.Len(t, regions[0], 4, "the four independent objects share region 0")
	assert.Equal(t, int32(4), atomic.LoadInt32(&runner.maxConcurrent),
		"all four region-0 compiles must run concurrently")

	// No two same-region targets are connected (schedule property).
	for _, region := range regions {
		for _, a := range region {
			for _, dep := range m.Targets[a].Dependencies {
				for _, b := range region {
					assert.NotEqual(t, dep.Target, b, "dependency within one region")
				}
			}
		}
	}
}

func TestExecute_FailureStopsLaterRegions(t *testing.T) {
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":     "name = \"chain\"\n",
		"src/a.f90":    "module a\nend module a\n",
		"src/b.f90":    "module b\nuse a\nend module b\n",
		"app/main.f90": "program main\nuse b\nend program main\n",
	})

	runner := &fakeRunner{failOn: "b.f90.o"}
	_, _, err := buildOnce(t, root, runner, 2, false)
	require.Error(t, err)

	assert.Equal(t, 1, runner.count("a.f90.o"), "region 0 ran")
	assert.Equal(t, 1, runner.count("b.f90.o"), "failing target was attempted")
	assert.Equal(t, 0, runner.count("main.f90.o"), "no region after the failure may start")
	assert.Equal(t, 0, runner.count("libchain.a"))

	// The failing target must not leave a digest behind.
	digests, _ := filepath.Glob(filepath.Join(root, "build", "gcc_release", "chain", "src", "b.f90.o"+DigestSuffix))
	assert.Empty(t, digests)
}

func TestExecute_DryRun(t *testing.T) {
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":  "name = \"dry\"\n",
		"src/m.f90": "module m\nend module m\n",
	})

	runner := &fakeRunner{}
	m, _, err := buildOnce(t, root, runner, 1, true)
	require.NoError(t, err)

	assert.Equal(t, 0, runner.count(""), "dry run must not execute tools")

	// Compile commands are still recorded and emitted.
	data, err := os.ReadFile(filepath.Join(m.BuildPrefix, "compile_commands.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "m.f90")

	// And no digests appear, so a later real build does the work.
	matches, _ := filepath.Glob(filepath.Join(m.BuildPrefix, "dry", "src", "*"+DigestSuffix))
	assert.Empty(t, matches)
}

func TestExecute_CompileCommandsWritten(t *testing.T) {
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":  "name = \"cc\"\n",
		"src/m.f90": "module m\nend module m\n",
	})

	runner := &fakeRunner{}
	m, _, err := buildOnce(t, root, runner, 1, false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(m.BuildPrefix, "compile_commands.json"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "\"directory\"")
	assert.Contains(t, text, "\"arguments\"")
	assert.Contains(t, text, "gfortran")

	// Only compiles are recorded; the archive command is not a compile.
	assert.NotContains(t, text, "libcc.a")
}

func TestExecute_InterruptStopsScheduling(t *testing.T) {
	root := fbtest.WriteProject(t, map[string]string{
		"fpm.toml":     "name = \"intr\"\n",
		"src/a.f90":    "module a\nend module a\n",
		"app/main.f90": "program main\nuse a\nend program main\n",
	})

	resolved, err := manifest.Resolve(root, nil)
	require.NoError(t, err)
	packages, err := model.AssemblePackages(resolved, nil)
	require.NoError(t, err)

	runner := &fakeRunner{}
	m := &model.BuildModel{
		RootPackageName: "intr",
		Packages:        packages,
		Compiler:        compiler.New("gfortran", "", "", runner, nil),
		Archiver:        compiler.NewArchiver("ar", runner, nil),
		BuildPrefix:     filepath.Join(resolved[0].Manifest.Dir, "build", "gcc_release"),
	}
	require.NoError(t, m.BuildTargets(nil))
	sched, err := Plan(m, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the first region

	session := NewSession(NewConsole(io.Discard, false, len(sched.Queue)), nil)
	err = NewExecutor(m, session, 1, false).Execute(ctx, sched)
	require.Error(t, err)
	assert.Equal(t, 0, runner.count(""), "no work may start after cancellation")
}
