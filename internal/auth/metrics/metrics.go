package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the authorization server.
type Metrics struct {
	TokensIssued            *prometheus.CounterVec
	AuthFailures            *prometheus.CounterVec
	TokenRevocations        *prometheus.CounterVec
	AuthorizeDurationMs     prometheus.Histogram
	TokenExchangeDurationMs *prometheus.HistogramVec

	RefreshTokenReuseDetections prometheus.Counter
}

// New registers auth collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_tokens_issued_total",
			Help: "Access tokens issued, by grant type",
		}, []string{"grant_type"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_auth_failures_total",
			Help: "Authorization server failures, by reason",
		}, []string{"reason"}),
		TokenRevocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_token_revocations_total",
			Help: "Revoked tokens, by token type",
		}, []string{"token_type"}),
		AuthorizeDurationMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitgate_authorize_duration_ms",
			Help:    "Duration of authorization requests in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		TokenExchangeDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitgate_token_duration_ms",
			Help:    "Duration of token endpoint requests in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"grant_type"}),
		RefreshTokenReuseDetections: f.NewCounter(prometheus.CounterOpts{
			Name: "fitgate_refresh_token_reuse_total",
			Help: "Presentations of an already rotated refresh token",
		}),
	}
}

func (m *Metrics) IncrementTokensIssued(grant string) {
	m.TokensIssued.WithLabelValues(grant).Inc()
}

func (m *Metrics) IncrementAuthFailures(reason string) {
	m.AuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRevocations(tokenType string) {
	m.TokenRevocations.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) ObserveAuthorizeDuration(durationMs float64) {
	m.AuthorizeDurationMs.Observe(durationMs)
}

func (m *Metrics) ObserveTokenDuration(grant string, durationMs float64) {
	m.TokenExchangeDurationMs.WithLabelValues(grant).Observe(durationMs)
}

func (m *Metrics) IncrementRefreshReuse() {
	m.RefreshTokenReuseDetections.Inc()
}
