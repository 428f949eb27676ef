package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Authentication

	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinidesk_auth_attempts_total",
			Help: "Total number of sign-in and sign-up attempts",
		},
		[]string{"method", "status"},
	)

	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinidesk_guard_decisions_total",
			Help: "Access guard decisions by outcome",
		},
		[]string{"decision"},
	)

	// Allocation

	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinidesk_allocations_total",
			Help: "Subscription allocations by outcome",
		},
		[]string{"status"},
	)

	AllocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dinidesk_allocation_duration_seconds",
			Help:    "Subscription allocation transaction latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	SubscriptionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinidesk_subscription_transitions_total",
			Help: "Subscription status transitions",
		},
		[]string{"to"},
	)

	// Sales

	SalesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinidesk_sales_total",
			Help: "Recorded sales by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	StockConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dinidesk_stock_conflicts_total",
			Help: "Sales rejected because a product ran out of stock",
		},
	)

	// Jobs

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinidesk_job_runs_total",
			Help: "Scheduled job runs by job and outcome",
		},
		[]string{"job", "status"},
	)
)

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Outcome turns an error into a low-cardinality status label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
