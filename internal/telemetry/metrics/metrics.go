// Package metrics exposes a small Provider seam over Prometheus, so code
// that records metrics can depend on an interface rather than the
// prometheus client_golang API directly. No worker, coordinator, or bus code
// in this repository records metrics through it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider constructs named instruments bound to a registry.
type Provider interface {
	Counter(name, help string, labels ...string) Counter
	Gauge(name, help string, labels ...string) Gauge
	Histogram(name, help string, buckets []float64, labels ...string) Histogram
}

// Counter is a monotonically increasing instrument.
type Counter interface {
	Inc(labelValues ...string)
	Add(v float64, labelValues ...string)
}

// Gauge is a point-in-time instrument.
type Gauge interface {
	Set(v float64, labelValues ...string)
}

// Histogram records a distribution of observed values.
type Histogram interface {
	Observe(v float64, labelValues ...string)
}

// PrometheusProvider implements Provider backed by a prometheus.Registerer.
type PrometheusProvider struct {
	namespace string
	reg       prometheus.Registerer
}

// NewPrometheusProvider constructs a Provider that registers every
// instrument it creates against reg, prefixed with namespace.
func NewPrometheusProvider(namespace string, reg prometheus.Registerer) *PrometheusProvider {
	return &PrometheusProvider{namespace: namespace, reg: reg}
}

func (p *PrometheusProvider) Counter(name, help string, labels ...string) Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace, Name: name, Help: help,
	}, labels)
	p.reg.MustRegister(vec)
	return counterAdapter{vec}
}

func (p *PrometheusProvider) Gauge(name, help string, labels ...string) Gauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace, Name: name, Help: help,
	}, labels)
	p.reg.MustRegister(vec)
	return gaugeAdapter{vec}
}

func (p *PrometheusProvider) Histogram(name, help string, buckets []float64, labels ...string) Histogram {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
	p.reg.MustRegister(vec)
	return histogramAdapter{vec}
}

type counterAdapter struct{ vec *prometheus.CounterVec }

func (c counterAdapter) Inc(labelValues ...string)          { c.vec.WithLabelValues(labelValues...).Inc() }
func (c counterAdapter) Add(v float64, labelValues ...string) { c.vec.WithLabelValues(labelValues...).Add(v) }

type gaugeAdapter struct{ vec *prometheus.GaugeVec }

func (g gaugeAdapter) Set(v float64, labelValues ...string) { g.vec.WithLabelValues(labelValues...).Set(v) }

type histogramAdapter struct{ vec *prometheus.HistogramVec }

func (h histogramAdapter) Observe(v float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(v)
}

// noopProvider discards everything; used by tests and by components run
// without a metrics backend configured.
type noopProvider struct{}

// NewNoopProvider returns a Provider whose instruments do nothing.
func NewNoopProvider() Provider { return noopProvider{} }

func (noopProvider) Counter(string, string, ...string) Counter     { return noopInstrument{} }
func (noopProvider) Gauge(string, string, ...string) Gauge         { return noopInstrument{} }
func (noopProvider) Histogram(string, string, []float64, ...string) Histogram { return noopInstrument{} }

type noopInstrument struct{}

func (noopInstrument) Inc(...string)            {}
func (noopInstrument) Add(float64, ...string)   {}
func (noopInstrument) Set(float64, ...string)   {}
func (noopInstrument) Observe(float64, ...string) {}
