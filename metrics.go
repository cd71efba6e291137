// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package warden

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the supervisor's Prometheus collectors.
type metrics struct {
	starts       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	restarts     *prometheus.CounterVec
	live         prometheus.Gauge
	reloads      *prometheus.CounterVec
	drainSkipped *prometheus.CounterVec
	tendTime     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, name string) *metrics {
	labels := prometheus.Labels{"supervisor": name}
	m := &metrics{
		starts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "warden_worker_starts_total",
				Help:        "Workers successfully started, by type",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "warden_worker_start_failures_total",
				Help:        "Worker start attempts that failed, by type",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "warden_worker_restarts_total",
				Help:        "Workers found dead and replaced, by type",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		live: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "warden_workers_live",
				Help:        "Workers currently in the live set",
				ConstLabels: labels,
			},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "warden_reloads_total",
				Help:        "Configuration reloads, by result",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		drainSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "warden_drain_skipped_total",
				Help:        "Workers not drained at shutdown, by reason",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		tendTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "warden_tend_duration_seconds",
				Help:        "Time spent in each tend pass",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.starts, m.failures, m.restarts, m.live,
			m.reloads, m.drainSkipped, m.tendTime)
	}
	return m
}
