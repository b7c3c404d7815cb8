package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_ai_requests_total",
		Help: "AI provider calls by provider and outcome.",
	}, []string{"provider", "status"})

	metricTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_ai_tokens_total",
		Help: "Tokens consumed per provider.",
	}, []string{"provider"})

	metricCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_ai_cost_dollars_total",
		Help: "Estimated AI spend in dollars per provider.",
	}, []string{"provider"})
)

func recordMetrics(providerName, status string, tokens int, cost float64) {
	metricRequests.WithLabelValues(providerName, status).Inc()
	if tokens > 0 {
		metricTokens.WithLabelValues(providerName).Add(float64(tokens))
	}
	if cost > 0 {
		metricCost.WithLabelValues(providerName).Add(cost)
	}
}
