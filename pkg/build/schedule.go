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
	"os"
	"sort"

	"log/slog"

	fberrors "github.com/kraklabs/fbuild/internal/errors"
	"github.com/kraklabs/fbuild/pkg/model"
)

// Schedule is the executor's work order: the non-skip targets in
// topological queue order, partitioned into parallel-safe regions.
type Schedule struct {
	// Queue lists the non-skip targets in increasing region order; ties
	// break on output path, so the order is stable across runs.
	Queue []model.TargetID

	// RegionBounds partitions Queue: region k is
	// Queue[RegionBounds[k]:RegionBounds[k+1]].
	RegionBounds []int

	// Skipped counts the targets proven current by the digest cache.
	Skipped int
}

// Regions returns the queue split per region.
func (s *Schedule) Regions() [][]model.TargetID {
	out := make([][]model.TargetID, 0, len(s.RegionBounds))
	for k := 0; k+1 < len(s.RegionBounds); k++ {
		out = append(out, s.Queue[s.RegionBounds[k]:s.RegionBounds[k+1]])
	}
	return out
}

// Plan topologically sorts the target DAG from its roots, marks up-to-date
// targets as skipped using the sidecar digest cache, and assigns schedule
// regions.
//
// A target is skipped only when its output and sidecar digest exist, the
// cached digest equals the expected one, and every dependency target is
// itself skipped; otherwise it rebuilds. A dependency cycle is fatal and
// names the participating outputs.
func Plan(m *model.BuildModel, logger *slog.Logger) (*Schedule, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stack []model.TargetID
	var order []model.TargetID

	var visit func(id model.TargetID) error
	visit = func(id model.TargetID) error {
		t := &m.Targets[id]
		if t.Sorted {
			return nil
		}
		if t.Visiting {
			return cycleError(m, stack, id)
		}
		t.Visiting = true
		stack = append(stack, id)

		depsSkip := true
		for _, dep := range t.Dependencies {
			if err := visit(dep.Target); err != nil {
				return err
			}
			if !m.Targets[dep.Target].Skip {
				depsSkip = false
			}
		}

		if cached, ok := readCachedDigest(t.OutputFile); ok {
			t.DigestCached = cached
			t.Skip = depsSkip && cached == t.DigestExpected && outputExists(t.OutputFile)
		}

		stack = stack[:len(stack)-1]
		t.Visiting = false
		t.Sorted = true
		order = append(order, id)
		return nil
	}

	for _, root := range m.Roots() {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	// Region assignment: one more than the deepest non-skip dependency.
	region := make([]int, len(m.Targets))
	for _, id := range order {
		t := &m.Targets[id]
		r := 0
		for _, dep := range t.Dependencies {
			if m.Targets[dep.Target].Skip {
				continue
			}
			if dr := region[dep.Target] + 1; dr > r {
				r = dr
			}
		}
		region[id] = r
		t.ScheduleRegion = r
	}

	sched := &Schedule{}
	for _, id := range order {
		if m.Targets[id].Skip {
			sched.Skipped++
			continue
		}
		sched.Queue = append(sched.Queue, id)
	}
	sort.Slice(sched.Queue, func(i, j int) bool {
		a, b := &m.Targets[sched.Queue[i]], &m.Targets[sched.Queue[j]]
		if a.ScheduleRegion != b.ScheduleRegion {
			return a.ScheduleRegion < b.ScheduleRegion
		}
		return a.OutputFile < b.OutputFile
	})

	for i, id := range sched.Queue {
		for len(sched.RegionBounds) <= m.Targets[id].ScheduleRegion {
			sched.RegionBounds = append(sched.RegionBounds, i)
		}
	}
	sched.RegionBounds = append(sched.RegionBounds, len(sched.Queue))

	recordTargetSkipped(sched.Skipped)
	logger.Info("plan.done",
		"queued", len(sched.Queue),
		"skipped", sched.Skipped,
		"regions", len(sched.RegionBounds)-1,
	)
	return sched, nil
}

// cycleError names the targets on the DFS stack from the first occurrence
// of the revisited node.
func cycleError(m *model.BuildModel, stack []model.TargetID, repeat model.TargetID) error {
	var members []string
	collecting := false
	for _, id := range stack {
		if id == repeat {
			collecting = true
		}
		if collecting {
			members = append(members, m.Targets[id].OutputFile)
		}
	}
	members = append(members, m.Targets[repeat].OutputFile)
	return fberrors.NewCycleError("Target dependency cycle", members)
}

// outputExists reports whether the target's artifact is still on disk; a
// deleted artifact always rebuilds, digest match or not.
func outputExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
