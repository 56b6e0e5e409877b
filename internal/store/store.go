// Package store holds the authoritative in-memory world state: the mapping
// from engine-assigned asset identity to fused telemetry. All mutation goes
// through Upsert on the single fusion writer; consumers only ever see deep
// copies.
package store

import (
	"sync"
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

// DefaultStaleAfter is the watchdog freshness threshold applied to families
// without an explicit override.
const DefaultStaleAfter = 60 * time.Second

type TelemetryStore struct {
	mu     sync.RWMutex
	assets map[domain.AssetID]*domain.Asset

	staleAfter        map[domain.SourceFamily]time.Duration
	defaultStaleAfter time.Duration
}

func New(staleAfter map[domain.SourceFamily]time.Duration, defaultStaleAfter time.Duration) *TelemetryStore {
	if defaultStaleAfter <= 0 {
		defaultStaleAfter = DefaultStaleAfter
	}
	return &TelemetryStore{
		assets:            make(map[domain.AssetID]*domain.Asset),
		staleAfter:        staleAfter,
		defaultStaleAfter: defaultStaleAfter,
	}
}

// Upsert merges rec into the asset with the given ID, creating it on first
// sight. Merge is field-level last-write-wins: a non-nil incoming field
// overwrites, a nil field leaves the previous value untouched, so a later
// message omitting position never reverts a known fix to unknown. The
// mutated asset is returned as a deep copy.
func (s *TelemetryStore) Upsert(id domain.AssetID, rec *domain.NormalizedRecord) domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		a = &domain.Asset{
			ID:                  id,
			Kind:                rec.Kind,
			Family:              rec.Family,
			ContributingSources: make(map[string]bool),
			KPIs:                make(map[domain.KPIKind]domain.LatencyKPI),
		}
		s.assets[id] = a
	}

	mergeKind(a, rec.Kind)

	if rec.AssetHint != "" && !a.HasIdentity(rec.AssetHint) {
		a.Identities = append(a.Identities, rec.AssetHint)
	}
	if rec.Source != "" {
		a.ContributingSources[rec.Source] = true
	}

	if rec.HasPosition() {
		lat, lon := *rec.Latitude, *rec.Longitude
		a.Latitude, a.Longitude = &lat, &lon
	}
	mergeFloat(&a.AltitudeMSLM, rec.AltitudeMSLM)
	mergeFloat(&a.SpeedMPS, rec.SpeedMPS)
	mergeFloat(&a.HeadingDeg, rec.HeadingDeg)
	mergeFloat(&a.BatteryPct, rec.BatteryPct)
	mergeFloat(&a.VerticalSpeedMPS, rec.VerticalSpeedMPS)
	mergeFloat(&a.AccuracyM, rec.AccuracyM)
	mergeFloat(&a.HomeDistanceM, rec.HomeDistanceM)
	if rec.Satellites != nil {
		v := *rec.Satellites
		a.Satellites = &v
	}
	if rec.LinkQuality != domain.LinkUnknown {
		a.LinkQuality = rec.LinkQuality
	}

	if rec.ReceiptTime.After(a.LastUpdate) {
		a.LastUpdate = rec.ReceiptTime
	}

	return a.Clone()
}

// AttachKPI overwrites one latency KPI on the asset. KPIs are per-asset;
// they are never averaged across assets.
func (s *TelemetryStore) AttachKPI(id domain.AssetID, kpi domain.LatencyKPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return
	}
	a.KPIs[kpi.Kind] = kpi
}

// BindIdentity adds a wire hint to an existing asset and marks the
// controller/vehicle pair as bound so the resolver stops offering it as a
// correlation candidate.
func (s *TelemetryStore) BindIdentity(id domain.AssetID, hint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return
	}
	if hint != "" && !a.HasIdentity(hint) {
		a.Identities = append(a.Identities, hint)
	}
	a.ControllerBound = true
}

// SetHomeDistance records the controller-to-vehicle distance derived at pair
// binding. It never overwrites a value already present: a wire-reported
// home distance is more trustworthy than the binding-time estimate.
func (s *TelemetryStore) SetHomeDistance(id domain.AssetID, meters float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return
	}
	if a.HomeDistanceM == nil {
		a.HomeDistanceM = &meters
	}
}

// Snapshot returns a deep copy of the full asset mapping with staleness
// derived against now. Staleness is computed at read time, never stored, so
// there is no sweep racing concurrent upserts.
func (s *TelemetryStore) Snapshot(now time.Time) map[domain.AssetID]domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.AssetID]domain.Asset, len(s.assets))
	for id, a := range s.assets {
		c := a.Clone()
		c.Stale = now.Sub(a.LastUpdate) > s.threshold(a.Family)
		out[id] = c
	}
	return out
}

// Get returns a deep copy of one asset.
func (s *TelemetryStore) Get(id domain.AssetID, now time.Time) (domain.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return domain.Asset{}, false
	}
	c := a.Clone()
	c.Stale = now.Sub(a.LastUpdate) > s.threshold(a.Family)
	return c, true
}

// Len reports the number of tracked assets.
func (s *TelemetryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// StaleCount reports how many assets are stale as of now.
func (s *TelemetryStore) StaleCount(now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assets {
		if now.Sub(a.LastUpdate) > s.threshold(a.Family) {
			n++
		}
	}
	return n
}

// Evict removes assets idle longer than olderThan and returns how many were
// dropped. Eviction is an explicit store policy invoked by the operator;
// fusion itself never deletes, it only lets assets go stale.
func (s *TelemetryStore) Evict(now time.Time, olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, a := range s.assets {
		if now.Sub(a.LastUpdate) > olderThan {
			delete(s.assets, id)
			n++
		}
	}
	return n
}

func (s *TelemetryStore) threshold(fam domain.SourceFamily) time.Duration {
	if d, ok := s.staleAfter[fam]; ok && d > 0 {
		return d
	}
	return s.defaultStaleAfter
}

func mergeFloat(dst **float64, src *float64) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// mergeKind upgrades the asset role without ever downgrading it: UNKNOWN
// never overwrites anything, and once a vehicle record lands on a pair the
// asset stays an air vehicle even while its controller keeps reporting.
func mergeKind(a *domain.Asset, incoming domain.AssetKind) {
	switch {
	case incoming == domain.KindUnknown || incoming == "":
		return
	case a.Kind == domain.KindUnknown || a.Kind == "":
		a.Kind = incoming
	case a.Kind == domain.KindGroundController && incoming == domain.KindAirVehicle:
		a.Kind = domain.KindAirVehicle
	case a.Kind == domain.KindAirVehicle && incoming == domain.KindGroundController:
		// keep vehicle
	default:
		a.Kind = incoming
	}
}
