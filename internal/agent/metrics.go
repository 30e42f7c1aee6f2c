package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records outbound calls to the model and image services.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

// NewMetrics registers the client metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepbook",
				Name:      "external_requests_total",
				Help:      "Total number of requests to the model and image services.",
			},
			[]string{"service", "model", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "deepbook",
				Name:      "external_request_duration_seconds",
				Help:      "Histogram of model and image request durations.",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"service", "model"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deepbook",
				Name:      "model_tokens_total",
				Help:      "Tokens reported by the model, by kind.",
			},
			[]string{"model", "kind"},
		),
	}
}

func (m *Metrics) observe(service, model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, model, status).Inc()
	m.duration.WithLabelValues(service, model).Observe(d.Seconds())
}

func (m *Metrics) addTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	m.tokens.WithLabelValues(model, "completion").Add(float64(completion))
}
