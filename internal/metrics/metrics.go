// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus instruments shared by the clip
// pipeline. All instruments are registered on the default registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clippy_jobs_total",
		Help: "Jobs by terminal state (completed, failed)",
	}, []string{"state"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clippy_stage_duration_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})

	RegenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clippy_regen_total",
		Help: "Caption regeneration outcomes by result",
	}, []string{"result"})

	FetchCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clippy_fetch_cache_total",
		Help: "Source cache lookups by outcome (hit, miss, stale)",
	}, []string{"outcome"})

	FetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clippy_fetch_retries_total",
		Help: "Download attempts beyond the first",
	})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clippy_bus_dropped_total",
		Help: "In-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})

	RegistrySweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clippy_registry_swept_total",
		Help: "Expired anonymous clip records removed by the sweeper",
	})

	PromotedClipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clippy_promoted_clips_total",
		Help: "Anonymous clip records promoted to an authenticated owner",
	})
)

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncJobTerminal records a job reaching a terminal state.
func IncJobTerminal(state string) {
	JobsTotal.WithLabelValues(state).Inc()
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
