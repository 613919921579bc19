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

	"github.com/prometheus/client_golang/prometheus"
)

// metricsBuild holds Prometheus metrics for the build executor.
type metricsBuild struct {
	once sync.Once

	// Targets
	targetsBuilt   prometheus.Counter
	targetsSkipped prometheus.Counter
	targetsFailed  prometheus.Counter

	// Commands
	compilesRun prometheus.Counter
	linksRun    prometheus.Counter
	archivesRun prometheus.Counter

	// Durations
	compileDuration prometheus.Histogram
	linkDuration    prometheus.Histogram
	totalDuration   prometheus.Histogram
}

var buildMetrics metricsBuild

func (m *metricsBuild) init() {
	m.once.Do(func() {
		m.targetsBuilt = prometheus.NewCounter(prometheus.CounterOpts{Name: "fbuild_targets_built_total", Help: "Targets rebuilt"})
		m.targetsSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "fbuild_targets_skipped_total", Help: "Targets skipped as up to date"})
		m.targetsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "fbuild_targets_failed_total", Help: "Targets whose tool invocation failed"})

		m.compilesRun = prometheus.NewCounter(prometheus.CounterOpts{Name: "fbuild_compiles_total", Help: "Compile commands run"})
		m.linksRun = prometheus.NewCounter(prometheus.CounterOpts{Name: "fbuild_links_total", Help: "Link commands run"})
		m.archivesRun = prometheus.NewCounter(prometheus.CounterOpts{Name: "fbuild_archives_total", Help: "Archive commands run"})

		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
		m.compileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "fbuild_compile_seconds", Help: "Duration of compile commands", Buckets: buckets})
		m.linkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "fbuild_link_seconds", Help: "Duration of link and archive commands", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "fbuild_total_seconds", Help: "Duration of whole build invocations", Buckets: buckets})

		prometheus.MustRegister(
			m.targetsBuilt, m.targetsSkipped, m.targetsFailed,
			m.compilesRun, m.linksRun, m.archivesRun,
			m.compileDuration, m.linkDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the executor for metrics tracking
func recordTargetBuilt()              { buildMetrics.init(); buildMetrics.targetsBuilt.Inc() }
func recordTargetSkipped(n int)       { buildMetrics.init(); buildMetrics.targetsSkipped.Add(float64(n)) }
func recordTargetFailed()             { buildMetrics.init(); buildMetrics.targetsFailed.Inc() }
func recordCompile(seconds float64)   { buildMetrics.init(); buildMetrics.compilesRun.Inc(); buildMetrics.compileDuration.Observe(seconds) }
func recordLink(seconds float64)      { buildMetrics.init(); buildMetrics.linksRun.Inc(); buildMetrics.linkDuration.Observe(seconds) }
func recordArchive(seconds float64)   { buildMetrics.init(); buildMetrics.archivesRun.Inc(); buildMetrics.linkDuration.Observe(seconds) }
func recordBuildTotal(seconds float64) { buildMetrics.init(); buildMetrics.totalDuration.Observe(seconds) }
