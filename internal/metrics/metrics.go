// Package metrics exposes prometheus counters for catalog ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesParsed counts records that survived normalization, by kind
	// (playlist, epg, live, vod, series, episode).
	EntriesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_entries_parsed_total",
		Help: "Entries successfully parsed into catalog records.",
	}, []string{"kind"})

	// EntriesSkipped counts records dropped by the skip-and-continue
	// policy (malformed timestamps, missing required fields).
	EntriesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_entries_skipped_total",
		Help: "Entries skipped during parsing.",
	}, []string{"kind"})

	// FetchFailures counts per-kind category fetches that failed and
	// degraded that kind to an empty result set.
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_fetch_failures_total",
		Help: "Category fetches that failed closed.",
	}, []string{"kind"})
)
