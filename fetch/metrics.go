package fetch

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records page fetch activity. A nil *Metrics records nothing.
type Metrics struct {
	pages    *prometheus.CounterVec   // restport_pages_total
	rows     *prometheus.CounterVec   // restport_rows_total
	duration *prometheus.HistogramVec // restport_request_duration_seconds
}

// NewMetrics creates the collectors and registers them on reg. Collectors
// already registered by an earlier call are reused. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restport_pages_total",
				Help: "Page requests issued, partitioned by table and status (ok, error).",
			},
			[]string{"table", "status"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restport_rows_total",
				Help: "Flattened rows yielded to the query engine, partitioned by table.",
			},
			[]string{"table"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restport_request_duration_seconds",
				Help:    "Duration of page requests including address fallback.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.pages, err = register(reg, m.pages); err != nil {
		return nil, fmt.Errorf("register pages counter: %w", err)
	}
	if m.rows, err = register(reg, m.rows); err != nil {
		return nil, fmt.Errorf("register rows counter: %w", err)
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) page(table string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.pages.WithLabelValues(table, status).Inc()
	m.duration.WithLabelValues(table).Observe(d.Seconds())
}

func (m *Metrics) addRows(table string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rows.WithLabelValues(table).Add(float64(n))
}
