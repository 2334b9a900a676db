package license

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded by the Authority.
const (
	OutcomeGranted    = "granted"
	OutcomeBadRequest = "bad_request"
	OutcomeDenied     = "denied"
	OutcomeMACChanged = "mac_changed"
)

// Metrics holds the Authority collectors.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics creates the Authority collectors and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelseal_license_requests_total",
				Help: "License key requests handled by the authority, by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		if err := reg.Register(metrics.requests); err != nil {
			return nil, fmt.Errorf("registering license metrics: %w", err)
		}
	}

	return metrics, nil
}

// Observe counts one request with the given outcome.
func (m *Metrics) Observe(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}
