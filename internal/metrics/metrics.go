// Package metrics provides Prometheus metrics for the explorer engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingsComposed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_listings_composed_total",
			Help: "Directory listings composed",
		},
	)

	listingsStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_listings_stale_total",
			Help: "Listings discarded because the current directory moved on",
		},
	)

	listingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "explorer_listing_compose_duration_seconds",
			Help:    "Time to read, compose and match one directory",
			Buckets: prometheus.DefBuckets,
		},
	)

	readErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_read_errors_total",
			Help: "Unreadable directories recovered as empty listings",
		},
	)

	// SearchJobs counts scans started, by mode ("flat" or "recursive").
	SearchJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_search_jobs_total",
			Help: "Search scans started",
		},
		[]string{"mode"},
	)

	searchCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_search_jobs_cancelled_total",
			Help: "Search scans cancelled before completion",
		},
	)

	searchMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_search_matches_total",
			Help: "Entries published by search scans",
		},
	)

	selectionSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_selection_size",
			Help: "Entries in the most recently published selection",
		},
	)

	registryApps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_registry_apps",
			Help: "Records in the latest application registry snapshot",
		},
	)

	registrySnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "explorer_registry_snapshots_total",
			Help: "Application registry snapshots published",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordListing records one composed listing and how long it took.
func RecordListing(duration time.Duration) {
	listingsComposed.Inc()
	listingDuration.Observe(duration.Seconds())
}

// RecordStaleListing records a listing discarded before publication.
func RecordStaleListing() {
	listingsStale.Inc()
}

// RecordReadError records a directory read failure.
func RecordReadError() {
	readErrors.Inc()
}

// RecordSearchStarted records a new scan.
func RecordSearchStarted(recursive bool) {
	mode := "flat"
	if recursive {
		mode = "recursive"
	}
	SearchJobs.WithLabelValues(mode).Inc()
}

// RecordSearchCancelled records a scan cancelled while running.
func RecordSearchCancelled() {
	searchCancelled.Inc()
}

// RecordSearchMatch records one published search result.
func RecordSearchMatch() {
	searchMatches.Inc()
}

// SetSelectionSize records the size of the selection.
func SetSelectionSize(n int) {
	selectionSize.Set(float64(n))
}

// RecordRegistrySnapshot records a published registry snapshot.
func RecordRegistrySnapshot(apps int) {
	registrySnapshots.Inc()
	registryApps.Set(float64(apps))
}
