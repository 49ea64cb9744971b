package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|throttled).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairprice_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// MembershipTransitions counts group membership changes (create|request|accept|reject|promote|remove|leave|invite).
	MembershipTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairprice_membership_transitions_total",
			Help: "Group membership state transitions",
		},
		[]string{"transition"},
	)

	// TradesmenPropagated counts tradesman links added to groups automatically.
	TradesmenPropagated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairprice_tradesmen_propagated_total",
			Help: "Tradesmen linked to groups through membership propagation",
		},
	)

	// InvitationsSent records invitation e-mail outcomes (sent|failed|unconfigured).
	InvitationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairprice_invitations_sent_total",
			Help: "Invitation e-mails by delivery outcome",
		},
		[]string{"result"},
	)

	// QuoteOutcomes counts quote transitions (converted|declined).
	QuoteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairprice_quote_outcomes_total",
			Help: "Quotes converted to jobs or declined",
		},
		[]string{"outcome"},
	)

	// HTTPRequests counts handled requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairprice_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "path", "status"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairprice_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
