package domain

import "time"

// AssetID is the engine-assigned identity of a fused asset. It is stable for
// the lifetime of the vehicle's session and is never taken from the wire.
type AssetID string

// KPIKind names one latency metric family.
type KPIKind string

const (
	// KPINetwork is glass-to-glass latency: embedded device timestamp to
	// receipt by the fusion engine.
	KPINetwork KPIKind = "NETWORK"
	// KPILink is C2 latency inferred from control-link heartbeat cadence.
	KPILink KPIKind = "LINK"
)

// LatencyKPI is one computed latency value, owned by the asset it was
// computed for and overwritten on each recomputation.
type LatencyKPI struct {
	Kind       KPIKind
	Seconds    float64
	ComputedAt time.Time
	// LowConfidence flags clock-skew cases where the raw delta was
	// negative and got clamped to zero.
	LowConfidence bool
}

// Asset is the fused, addressable representation of one physical vehicle,
// controller/vehicle pair, or ground unit.
type Asset struct {
	ID     AssetID
	Kind   AssetKind
	Family SourceFamily

	// Identities collects every wire-level hint bound to this asset. A
	// vehicle and its controller carry different hints; once correlated
	// both live here so later records resolve exactly.
	Identities []string

	Latitude         *float64
	Longitude        *float64
	AltitudeMSLM     *float64
	SpeedMPS         *float64
	HeadingDeg       *float64
	BatteryPct       *float64
	VerticalSpeedMPS *float64
	AccuracyM        *float64
	// HomeDistanceM is the vehicle's distance to its home point: taken from
	// the wire when the vendor reports it, otherwise derived once at pair
	// binding from the controller position.
	HomeDistanceM *float64
	Satellites    *int
	LinkQuality   LinkQuality

	ContributingSources map[string]bool
	ControllerBound     bool

	LastUpdate time.Time
	KPIs       map[KPIKind]LatencyKPI

	// Stale is derived at snapshot time, never stored.
	Stale bool
}

// HasIdentity reports whether hint is already bound to this asset.
func (a *Asset) HasIdentity(hint string) bool {
	for _, id := range a.Identities {
		if id == hint {
			return true
		}
	}
	return false
}

// HasPosition reports whether the asset currently holds a valid fix.
func (a *Asset) HasPosition() bool {
	return ValidCoords(a.Latitude, a.Longitude)
}

// Clone returns a deep copy safe to hand to consumers.
func (a *Asset) Clone() Asset {
	out := *a
	out.Identities = append([]string(nil), a.Identities...)
	out.Latitude = cloneFloat(a.Latitude)
	out.Longitude = cloneFloat(a.Longitude)
	out.AltitudeMSLM = cloneFloat(a.AltitudeMSLM)
	out.SpeedMPS = cloneFloat(a.SpeedMPS)
	out.HeadingDeg = cloneFloat(a.HeadingDeg)
	out.BatteryPct = cloneFloat(a.BatteryPct)
	out.VerticalSpeedMPS = cloneFloat(a.VerticalSpeedMPS)
	out.AccuracyM = cloneFloat(a.AccuracyM)
	out.HomeDistanceM = cloneFloat(a.HomeDistanceM)
	if a.Satellites != nil {
		v := *a.Satellites
		out.Satellites = &v
	}
	out.ContributingSources = make(map[string]bool, len(a.ContributingSources))
	for k, v := range a.ContributingSources {
		out.ContributingSources[k] = v
	}
	out.KPIs = make(map[KPIKind]LatencyKPI, len(a.KPIs))
	for k, v := range a.KPIs {
		out.KPIs[k] = v
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
