package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange outcomes.
const (
	OutcomeCreated           = "created"
	OutcomeReconciled        = "reconciled"
	OutcomeMissingCredential = "missing_credential"
	OutcomeInvalidToken      = "invalid_token"
	OutcomePersistenceError  = "persistence_error"
	OutcomeSigningError      = "signing_error"
	OutcomeError             = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	exchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_exchanges_total",
			Help: "Token exchanges by outcome",
		},
		[]string{"outcome"},
	)

	walletChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_changes_total",
			Help: "Wallet rows inserted or deleted by reconciliation",
		},
		[]string{"op"},
	)
)

// ObserveExchange counts one exchange attempt.
func ObserveExchange(outcome string) {
	exchangesTotal.WithLabelValues(outcome).Inc()
}

// AddWalletChanges counts applied wallet inserts and deletes.
func AddWalletChanges(inserted, deleted int) {
	if inserted > 0 {
		walletChangesTotal.WithLabelValues("insert").Add(float64(inserted))
	}
	if deleted > 0 {
		walletChangesTotal.WithLabelValues("delete").Add(float64(deleted))
	}
}

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := c.Route().Path
		httpRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
