// Package services – domain metrics
//
// Prometheus counters for the voting and engagement paths. These complement
// the HTTP-level metrics emitted by the middleware layer: they track business
// outcomes (votes recorded, duplicates rejected, best-effort engagement
// failures) rather than transport traffic.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// votesCast counts successfully persisted votes.
	votesCast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "votes_cast_total",
		Help: "Total number of votes durably recorded.",
	})

	// votesDuplicate counts vote attempts rejected by the one-vote-per-email
	// invariant (fast path and constraint violations alike).
	votesDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "votes_duplicate_total",
		Help: "Total number of vote attempts rejected as duplicates.",
	})

	// engagementFailures counts best-effort engagement recordings that failed
	// after their triggering action had already committed. A non-zero rate
	// here means member scores are lagging behind the vote/idea tables.
	engagementFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engagement_record_failures_total",
		Help: "Total number of post-commit engagement recordings that failed.",
	})
)

func init() {
	prometheus.MustRegister(votesCast, votesDuplicate, engagementFailures)
}
