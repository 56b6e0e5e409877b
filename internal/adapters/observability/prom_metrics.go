package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rwiren/securingskies-platform/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	return newPromObs(prometheus.DefaultRegisterer)
}

// NewPromObsWithRegistry exists so tests can use an isolated registry.
func NewPromObsWithRegistry(reg prometheus.Registerer) *PromObs {
	return newPromObs(reg)
}

func newPromObs(reg prometheus.Registerer) *PromObs {
	classified := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_records_classified_total",
		Help: "Normalized records successfully extracted from the bus.",
	})
	unrecognized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_messages_unrecognized_total",
		Help: "Raw messages no classifier could parse; dropped.",
	})
	fused := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_records_fused_total",
		Help: "Records merged into the telemetry store.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_queue_dropped_total",
		Help: "Messages lost to queue backpressure policy.",
	})
	ambiguous := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_ambiguous_bindings_total",
		Help: "Controller/vehicle bindings decided by the recency tie-break.",
	})
	malformedTS := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_malformed_timestamps_total",
		Help: "Records whose embedded device time failed to parse.",
	})
	clockSkew := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skies_clock_skew_total",
		Help: "Network KPIs clamped to zero because the device clock ran ahead.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skies_queue_length",
		Help: "Raw messages buffered ahead of the fusion writer.",
	})
	assetsGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skies_tracked_assets",
		Help: "Assets currently in the telemetry store.",
	})
	staleGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skies_stale_assets",
		Help: "Tracked assets past their freshness threshold.",
	})
	fusionLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skies_fusion_latency_seconds",
		Help:    "Time from dequeue to store commit for one message.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	networkKPI := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skies_network_kpi_seconds",
		Help:    "Glass-to-glass latency distribution across sources.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	reg.MustRegister(classified, unrecognized, fused, queueDrops, ambiguous,
		malformedTS, clockSkew, queueGauge, assetsGauge, staleGauge,
		fusionLatency, networkKPI)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"skies_records_classified_total":    classified,
			"skies_messages_unrecognized_total": unrecognized,
			"skies_records_fused_total":         fused,
			"skies_queue_dropped_total":         queueDrops,
			"skies_ambiguous_bindings_total":    ambiguous,
			"skies_malformed_timestamps_total":  malformedTS,
			"skies_clock_skew_total":            clockSkew,
		},
		gauges: map[string]prometheus.Gauge{
			"skies_queue_length":   queueGauge,
			"skies_tracked_assets": assetsGauge,
			"skies_stale_assets":   staleGauge,
		},
		histos: map[string]prometheus.Observer{
			"skies_fusion_latency_seconds": fusionLatency,
			"skies_network_kpi_seconds":    networkKPI,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}
