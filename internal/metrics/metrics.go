// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "auction-house/internal/models"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	bidsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auction_house",
			Subsystem: "bids",
			Name:      "accepted_total",
			Help:      "Total number of bids admitted.",
		},
	)

	bidsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction_house",
			Subsystem: "bids",
			Name:      "rejected_total",
			Help:      "Total number of bids rejected, by reason.",
		},
		[]string{"reason"},
	)

	bidAdmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "auction_house",
			Subsystem: "bids",
			Name:      "admission_duration_seconds",
			Help:      "Duration of bid admission attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	auctionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auction_house",
			Subsystem: "auctions",
			Name:      "created_total",
			Help:      "Total number of auctions created.",
		},
	)

	auctionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction_house",
			Subsystem: "auctions",
			Name:      "transitions_total",
			Help:      "Total number of auction status transitions, by target status.",
		},
		[]string{"to"},
	)

	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "auction_house",
			Subsystem: "reconcile",
			Name:      "tick_duration_seconds",
			Help:      "Duration of reconciliation ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auction_house",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		bidsAccepted,
		bidsRejected,
		bidAdmissionDuration,
		auctionsCreated,
		auctionTransitions,
		reconcileDuration,
		httpRequests,
	)
}

// BidAccepted increments the accepted-bid counter.
func BidAccepted() { bidsAccepted.Inc() }

// BidRejected increments the rejected-bid counter for a reason label.
func BidRejected(reason string) { bidsRejected.WithLabelValues(reason).Inc() }

// ObserveBidAdmission records the duration of one admission attempt.
func ObserveBidAdmission(d time.Duration) { bidAdmissionDuration.Observe(d.Seconds()) }

// AuctionCreated increments the created-auction counter.
func AuctionCreated() { auctionsCreated.Inc() }

// AuctionTransition counts a lifecycle transition into the given status.
func AuctionTransition(to model.AuctionStatus) { auctionTransitions.WithLabelValues(string(to)).Inc() }

// ObserveReconcileTick records the duration of one reconciliation tick.
func ObserveReconcileTick(d time.Duration) { reconcileDuration.Observe(d.Seconds()) }

// Handler returns the /metrics endpoint for the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware counts requests by method, route template and status.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
