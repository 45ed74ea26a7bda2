// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Agora/internal/core/votes"
)

// Vote Recorder Metrics
var (
	// VotesRecordedTotal tracks committed votes by transition (created/changed/unchanged)
	VotesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_votes_recorded_total",
			Help: "Votes recorded by transition",
		},
		[]string{"transition"},
	)

	// VoteDuration tracks end-to-end vote recording latency, retries included
	VoteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agora_vote_duration_seconds",
			Help:    "Vote recording duration in seconds, including retries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// VoteRetriesTotal tracks retried vote attempts by reason (conflict/transient)
	VoteRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_vote_retries_total",
			Help: "Retried vote attempts by reason",
		},
		[]string{"reason"},
	)

	// VoteFailuresTotal tracks votes that were not recorded, by reason
	VoteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_vote_failures_total",
			Help: "Votes not recorded by reason",
		},
		[]string{"reason"},
	)
)

// Stats Cache Metrics
var (
	// StatsCacheResultsTotal tracks cache operations by result (hit/miss/stale/error/skipped)
	StatsCacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_stats_cache_results_total",
			Help: "Stats cache operations by result",
		},
		[]string{"result"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agora_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)

// HTTP Metrics
var (
	// RateLimitedTotal tracks requests rejected by a rate limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_rate_limited_total",
			Help: "Requests rejected by rate limiting, by limiter",
		},
		[]string{"limiter"},
	)

	// FeedPageSize tracks how many items feed pages return
	FeedPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agora_feed_page_size",
			Help:    "Number of statements returned per feed page",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)
)

// Recorder adapts the package collectors to the observer interfaces of the core services
type Recorder struct{}

var _ votes.Observer = Recorder{}

// ObserveVote records a committed vote
func (Recorder) ObserveVote(t votes.Transition, d time.Duration) {
	VotesRecordedTotal.WithLabelValues(string(t)).Inc()
	VoteDuration.Observe(d.Seconds())
}

// ObserveRetry records a retried attempt
func (Recorder) ObserveRetry(reason string) {
	VoteRetriesTotal.WithLabelValues(reason).Inc()
}

// ObserveFailure records a vote that was not recorded
func (Recorder) ObserveFailure(reason string) {
	VoteFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveCacheResult records a stats cache outcome
func (Recorder) ObserveCacheResult(result string) {
	StatsCacheResultsTotal.WithLabelValues(result).Inc()
}

// ObserveBreakerState records a circuit breaker transition
func (Recorder) ObserveBreakerState(name, state string) {
	CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(state))
}

// ObserveRateLimited records a rejected request
func (Recorder) ObserveRateLimited(limiter string) {
	RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// ObserveFeedPage records the size of a served feed page
func (Recorder) ObserveFeedPage(items int) {
	FeedPageSize.Observe(float64(items))
}

func stateToFloat(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
