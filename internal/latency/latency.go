// Package latency derives the per-asset link-quality KPIs from mismatched
// timestamp semantics: sources that embed a device clock get a
// glass-to-glass figure, the control link gets a cadence figure because its
// family embeds no usable timestamp at all.
package latency

import (
	"sync"
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

type Calculator struct {
	mu            sync.Mutex
	lastHeartbeat map[string]time.Time
}

func NewCalculator() *Calculator {
	return &Calculator{lastHeartbeat: make(map[string]time.Time)}
}

// Compute returns every KPI derivable from the record. Records lacking the
// prerequisite field produce no KPI — absent, never zero.
func (c *Calculator) Compute(rec *domain.NormalizedRecord) []domain.LatencyKPI {
	var out []domain.LatencyKPI
	if kpi, ok := c.Network(rec); ok {
		out = append(out, kpi)
	}
	if kpi, ok := c.Link(rec); ok {
		out = append(out, kpi)
	}
	return out
}

// Network is the glass-to-glass KPI: receipt time minus the embedded device
// timestamp. Clock skew can drive the raw delta negative; such values are
// clamped to zero and flagged low-confidence rather than reported as
// negative latency.
func (c *Calculator) Network(rec *domain.NormalizedRecord) (domain.LatencyKPI, bool) {
	if rec.DeviceTime == nil {
		return domain.LatencyKPI{}, false
	}
	delta := rec.ReceiptTime.Sub(*rec.DeviceTime).Seconds()
	kpi := domain.LatencyKPI{
		Kind:       domain.KPINetwork,
		Seconds:    delta,
		ComputedAt: rec.ReceiptTime,
	}
	if delta < 0 {
		kpi.Seconds = 0
		kpi.LowConfidence = true
	}
	return kpi, true
}

// Link is the C2 KPI: the inter-arrival interval of control-link heartbeats,
// keyed by the source identity so unrelated controllers never share a
// cadence. The first heartbeat of a session seeds the clock and produces no
// KPI; duplicate delivery (identical receipt time) produces none either, so
// resolving a record twice never double-counts.
func (c *Calculator) Link(rec *domain.NormalizedRecord) (domain.LatencyKPI, bool) {
	if !rec.Heartbeat || rec.AssetHint == "" {
		return domain.LatencyKPI{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, seen := c.lastHeartbeat[rec.AssetHint]
	if !seen || rec.ReceiptTime.After(last) {
		c.lastHeartbeat[rec.AssetHint] = rec.ReceiptTime
	}
	if !seen {
		return domain.LatencyKPI{}, false
	}

	interval := rec.ReceiptTime.Sub(last).Seconds()
	if interval <= 0 {
		return domain.LatencyKPI{}, false
	}
	return domain.LatencyKPI{
		Kind:       domain.KPILink,
		Seconds:    interval,
		ComputedAt: rec.ReceiptTime,
	}, true
}
