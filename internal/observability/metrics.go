package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yegors/co-wx/internal/metar"
)

// Decode outcomes used as the "outcome" label of DecodeTotal
const (
	OutcomeOK             = "ok"
	OutcomeMalformed      = "malformed_input"
	OutcomeMissingElement = "missing_element"
	OutcomeDecodeError    = "decode_error"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the METAR service.
type Metrics struct {
	DecodeTotal     *prometheus.CounterVec // labels: outcome={ok,malformed_input,missing_element,decode_error}
	FetchTotal      *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration   prometheus.Histogram
	StationsTracked prometheus.Gauge
	WSClients       prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DecodeTotal,
		m.FetchTotal,
		m.FetchDuration,
		m.StationsTracked,
		m.WSClients,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DecodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar",
			Name:      "decode_total",
			Help:      "METAR decode attempts by outcome.",
		}, []string{"outcome"}),
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metar",
			Name:      "fetch_total",
			Help:      "Upstream METAR fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metar",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of an upstream METAR fetch including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StationsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "metar",
			Name:      "stations_tracked",
			Help:      "Number of stations refreshed by the background loop.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "metar",
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}),
	}
}

// DecodeOutcome classifies a metar.Decode error into an outcome label
func DecodeOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, metar.ErrMalformedInput):
		return OutcomeMalformed
	case errors.Is(err, metar.ErrMissingElement):
		return OutcomeMissingElement
	default:
		return OutcomeDecodeError
	}
}

// ObserveDecode records the outcome of one decode
func (m *Metrics) ObserveDecode(err error) {
	if m == nil {
		return
	}
	m.DecodeTotal.WithLabelValues(DecodeOutcome(err)).Inc()
}

// ObserveFetch records one upstream fetch and its duration
func (m *Metrics) ObserveFetch(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// SetStationsTracked sets the tracked station gauge
func (m *Metrics) SetStationsTracked(n int) {
	if m == nil {
		return
	}
	m.StationsTracked.Set(float64(n))
}

// SetWSClients sets the connected websocket client gauge
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}
