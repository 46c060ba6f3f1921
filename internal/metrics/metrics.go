package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "appperms"

// Refresh metrics
var (
	// RefreshesTotal tracks refreshes by result: "ok", "removed", "failed" or "panic"
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of permission group refreshes by result",
		},
		[]string{"result"},
	)

	// RefreshDuration tracks how long a single refresh takes
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Permission group refresh duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// PackagesRemovedTotal tracks refreshes that found the package uninstalled
	PackagesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_removed_total",
			Help:      "Total number of refreshes that found the package no longer installed",
		},
	)
)

// Tracker metrics
var (
	// TrackedEntries tracks the number of live aggregators
	TrackedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_entries",
			Help:      "Number of permission group aggregators held by the tracker",
		},
	)

	// DroppedEntriesTotal tracks aggregators evicted or forgotten by the tracker
	DroppedEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_entries_total",
			Help:      "Total number of aggregators dropped by eviction or Forget",
		},
	)

	// GroupsPerSnapshot tracks the group count of served snapshots
	GroupsPerSnapshot = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "groups_per_snapshot",
			Help:      "Number of permission groups in a served snapshot",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	// WatchEventsTotal tracks manifest changes detected on disk
	WatchEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Total number of manifest changes detected by the watcher",
		},
	)
)
