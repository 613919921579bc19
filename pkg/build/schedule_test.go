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
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	fbtest "github.com/kraklabs/fbuild/internal/testing"
	"github.com/kraklabs/fbuild/pkg/compiler"
	"github.com/kraklabs/fbuild/pkg/manifest"
	"github.com/kraklabs/fbuild/pkg/model"
)

// planProject assembles and plans a project without executing it.
func planProject(t *testing.T, files map[string]string) (*model.BuildModel, *Schedule, error) {
	t.Helper()
	root := fbtest.WriteProject(t, files)

	resolved, err := manifest.Resolve(root, nil)
	require.NoError(t, err)
	packages, err := model.AssemblePackages(resolved, nil)
	require.NoError(t, err)

	m := &model.BuildModel{
		RootPackageName: resolved[0].Name,
		Packages:        packages,
		Compiler:        compiler.New("gfortran", "", "", &fakeRunner{}, nil),
		Archiver:        compiler.NewArchiver("ar", &fakeRunner{}, nil),
		BuildPrefix:     filepath.Join(resolved[0].Manifest.Dir, "build", "gcc_release"),
	}
	require.NoError(t, m.BuildTargets(nil))

	sched, err := Plan(m, nil)
	return m, sched, err
}

// regionOf returns the schedule region of the target with the given output
// suffix.
func regionOf(t *testing.T, m *model.BuildModel, suffix string) int {
	t.Helper()
	for i := range m.Targets {
		if strings.HasSuffix(m.Targets[i].OutputFile, suffix) {
			return m.Targets[i].ScheduleRegion
		}
	}
	t.Fatalf("no target with suffix %q", suffix)
	return -1
}

func TestPlan_ModuleChainRegions(t *testing.T) {
	m, sched, err := planProject(t, map[string]string{
		"fpm.toml":     "name = \"chain\"\n",
		"src/a.f90":    "module a\nend module a\n",
		"src/b.f90":    "module b\nuse a\nend module b\n",
		"app/main.f90": "program main\nuse b\nend program main\n",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, regionOf(t, m, "a.f90.o"))
	assert.Equal(t, 1, regionOf(t, m, "b.f90.o"))
	assert.Equal(t, 2, regionOf(t, m, "main.f90.o"))
	assert.Equal(t, 3, regionOf(t, m, filepath.Join("app", "chain", "main")))

	// The queue is ordered by increasing region.
	last := -1
	for _, id := range sched.Queue {
		r := m.Targets[id].ScheduleRegion
		assert.GreaterOrEqual(t, r, last)
		last = r
	}
	assert.Equal(t, 4, len(sched.RegionBounds)-1)
}

func TestPlan_QueueStableWithinRegion(t *testing.T) {
	m, sched, err := planProject(t, map[string]string{
		"fpm.toml":   "name = \"p\"\n",
		"src/z.f90":  "module z\nend module z\n",
		"src/a.f90":  "module a\nend module a\n",
		"src/m.f90":  "module m\nend module m\n",
	})
	require.NoError(t, err)

	region0 := sched.Regions()[0]
	for i := 1; i < len(region0); i++ {
		assert.Less(t, m.Targets[region0[i-1]].OutputFile, m.Targets[region0[i]].OutputFile,
			"in-region order must be stable by output path")
	}
}

func TestPlan_ModuleCycleFatal(t *testing.T) {
	_, _, err := planProject(t, map[string]string{
		"fpm.toml":  "name = \"cyc\"\n",
		"src/a.f90": "module a\nuse b\nend module a\n",
		"src/b.f90": "module b\nuse a\nend module b\n",
	})

	require.Error(t, err)
	var be *fberrors.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, fberrors.KindCycle, be.Kind)
	assert.Contains(t, be.Cause, "a.f90.o")
	assert.Contains(t, be.Cause, "b.f90.o")
}

func TestPlan_NoSameRegionDependencies(t *testing.T) {
	m, sched, err := planProject(t, map[string]string{
		"fpm.toml":     "name = \"p\"\n",
		"src/a.f90":    "module a\nend module a\n",
		"src/b.f90":    "module b\nuse a\nend module b\n",
		"src/c.f90":    "module c\nuse a\nend module c\n",
		"app/main.f90": "program main\nuse b\nuse c\nend program main\n",
	})
	require.NoError(t, err)

	for _, region := range sched.Regions() {
		members := make(map[model.TargetID]bool)
		for _, id := range region {
			members[id] = true
		}
		for _, id := range region {
			for _, dep := range m.Targets[id].Dependencies {
				assert.False(t, members[dep.Target],
					"%s depends on a target in its own region", m.Targets[id].OutputFile)
			}
		}
	}
}

func TestPlan_StaleDigestForcesRebuild(t *testing.T) {
	files := map[string]string{
		"fpm.toml":  "name = \"p\"\n",
		"src/m.f90": "module m\nend module m\n",
	}

	// Full build writes digests.
	root := fbtest.WriteProject(t, files)
	runner := &fakeRunner{}
	_, _, execErr := buildAt(t, root, runner)
	require.NoError(t, execErr)

	// Unchanged: everything skips.
	m, sched, err := planAt(t, root)
	require.NoError(t, err)
	assert.Empty(t, sched.Queue)
	assert.Equal(t, len(m.Targets), sched.Skipped)

	// Changed source: the object and archive queue again.
	fbtest.Touch(t, filepath.Join(root, "src", "m.f90"), "module m\ninteger :: v\nend module m\n")
	_, sched, err = planAt(t, root)
	require.NoError(t, err)
	assert.Len(t, sched.Queue, 2)
}

// planAt plans the project already on disk at root.
func planAt(t *testing.T, root string) (*model.BuildModel, *Schedule, error) {
	t.Helper()
	resolved, err := manifest.Resolve(root, nil)
	require.NoError(t, err)
	packages, err := model.AssemblePackages(resolved, nil)
	require.NoError(t, err)
	m := &model.BuildModel{
		RootPackageName: resolved[0].Name,
		Packages:        packages,
		Compiler:        compiler.New("gfortran", "", "", &fakeRunner{}, nil),
		Archiver:        compiler.NewArchiver("ar", &fakeRunner{}, nil),
		FortranFlags:    "-O3", // must match buildAt for digests to agree
		BuildPrefix:     filepath.Join(resolved[0].Manifest.Dir, "build", "gcc_release"),
	}
	require.NoError(t, m.BuildTargets(nil))
	sched, err := Plan(m, nil)
	return m, sched, err
}

// buildAt plans and executes the project at root.
func buildAt(t *testing.T, root string, runner *fakeRunner) (*model.BuildModel, *Schedule, error) {
	t.Helper()
	return buildOnce(t, root, runner, 2, false)
}
