package resolve

import (
	"testing"
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

var t0 = time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func controllerRec(at time.Time) *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		AssetHint:   "CTRL-1479",
		Family:      domain.FamilyAutel,
		Source:      "autel-controller",
		Kind:        domain.KindGroundController,
		Heartbeat:   true,
		ReceiptTime: at,
	}
}

func vehicleRec(at time.Time) *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		AssetHint:   "UAV-9999",
		Family:      domain.FamilyAutel,
		Source:      "autel-vehicle",
		Kind:        domain.KindAirVehicle,
		Latitude:    f(60.3201),
		Longitude:   f(24.8322),
		ReceiptTime: at,
	}
}

func asset(id string, kind domain.AssetKind, hint string, last time.Time) domain.Asset {
	return domain.Asset{
		ID:         domain.AssetID(id),
		Kind:       kind,
		Family:     domain.FamilyAutel,
		Identities: []string{hint},
		LastUpdate: last,
	}
}

func snapOf(assets ...domain.Asset) map[domain.AssetID]domain.Asset {
	m := make(map[domain.AssetID]domain.Asset, len(assets))
	for _, a := range assets {
		m[a.ID] = a
	}
	return m
}

func TestExactIdentityMatch(t *testing.T) {
	r := New(0, 0, nil)
	snap := snapOf(asset("a1", domain.KindAirVehicle, "UAV-9999", t0))

	d := r.Resolve(vehicleRec(t0.Add(time.Second)), snap)
	if d.ID != "a1" || d.Created || d.Bound {
		t.Fatalf("hint already bound should match exactly: %+v", d)
	}
}

func TestNewAssetWhenNothingMatches(t *testing.T) {
	r := New(0, 0, nil)

	d := r.Resolve(vehicleRec(t0), nil)
	if !d.Created || d.ID == "" {
		t.Fatalf("unknown identity should create: %+v", d)
	}

	d2 := r.Resolve(vehicleRec(t0), map[domain.AssetID]domain.Asset{})
	if d.ID == d2.ID {
		t.Fatalf("fresh assets must get distinct engine-assigned IDs")
	}
}

func TestControllerBindsToLoneVehicle(t *testing.T) {
	r := New(0, 0, nil)
	snap := snapOf(asset("uav", domain.KindAirVehicle, "UAV-9999", t0))

	d := r.Resolve(controllerRec(t0.Add(2*time.Second)), snap)
	if d.ID != "uav" || !d.Bound || d.Created {
		t.Fatalf("controller should bind to the lone unbound vehicle: %+v", d)
	}
	if d.Ambiguous {
		t.Fatalf("a single candidate is not ambiguous")
	}
}

func TestVehicleBindsToLoneController(t *testing.T) {
	r := New(0, 0, nil)
	snap := snapOf(asset("ctrl", domain.KindGroundController, "CTRL-1479", t0))

	d := r.Resolve(vehicleRec(t0.Add(2*time.Second)), snap)
	if d.ID != "ctrl" || !d.Bound {
		t.Fatalf("vehicle should bind to the waiting controller: %+v", d)
	}
}

func TestNoBindOutsideTimeWindow(t *testing.T) {
	r := New(5*time.Second, 0, nil)
	snap := snapOf(asset("uav", domain.KindAirVehicle, "UAV-9999", t0))

	d := r.Resolve(controllerRec(t0.Add(time.Minute)), snap)
	if !d.Created {
		t.Fatalf("candidate outside the time window must not bind: %+v", d)
	}
}

func TestNoBindToAlreadyBoundPair(t *testing.T) {
	r := New(0, 0, nil)
	bound := asset("uav", domain.KindAirVehicle, "UAV-9999", t0)
	bound.ControllerBound = true

	d := r.Resolve(controllerRec(t0.Add(time.Second)), snapOf(bound))
	if !d.Created {
		t.Fatalf("a bound pair is not a candidate: %+v", d)
	}
}

func TestNoBindAcrossFamilies(t *testing.T) {
	r := New(0, 0, nil)
	foreign := asset("uav", domain.KindAirVehicle, "TAG-0042", t0)
	foreign.Family = domain.FamilyDronetag

	d := r.Resolve(controllerRec(t0.Add(time.Second)), snapOf(foreign))
	if !d.Created {
		t.Fatalf("correlation never crosses vendor families: %+v", d)
	}
}

func TestNoBindOutsideSpaceWindow(t *testing.T) {
	r := New(0, 100, nil)
	far := asset("uav", domain.KindAirVehicle, "UAV-9999", t0)
	far.Latitude, far.Longitude = f(61.0), f(25.0) // ~75 km away

	d := r.Resolve(vehicleRecWithPos(t0.Add(time.Second), 60.3201, 24.8322, "CTRL-1479", domain.KindGroundController), snapOf(far))
	if !d.Created {
		t.Fatalf("candidate outside the space window must not bind: %+v", d)
	}
}

func TestRecencyTieBreak(t *testing.T) {
	r := New(0, 0, nil)
	older := asset("old", domain.KindAirVehicle, "UAV-1111", t0)
	newer := asset("new", domain.KindAirVehicle, "UAV-2222", t0.Add(3*time.Second))

	d := r.Resolve(controllerRec(t0.Add(4*time.Second)), snapOf(older, newer))
	if d.ID != "new" {
		t.Fatalf("tie-break should prefer the most recently updated candidate, got %s", d.ID)
	}
	if !d.Ambiguous {
		t.Fatalf("multi-candidate binding must be flagged ambiguous for audit")
	}
}

func TestGroundAssetNeverBinds(t *testing.T) {
	r := New(0, 0, nil)
	snap := snapOf(asset("uav", domain.KindAirVehicle, "UAV-9999", t0))

	rec := &domain.NormalizedRecord{
		AssetHint:   "RW",
		Family:      domain.FamilyAutel,
		Source:      "owntracks",
		Kind:        domain.KindGroundAsset,
		ReceiptTime: t0.Add(time.Second),
	}
	if d := r.Resolve(rec, snap); !d.Created {
		t.Fatalf("ground assets do not participate in pair correlation: %+v", d)
	}
}

func TestResolveIdempotentAfterBinding(t *testing.T) {
	r := New(0, 0, nil)

	// After the first controller record bound, the snapshot carries both
	// identities; the duplicate must resolve by exact match, not create.
	fused := asset("pair", domain.KindAirVehicle, "UAV-9999", t0)
	fused.Identities = append(fused.Identities, "CTRL-1479")
	fused.ControllerBound = true

	d := r.Resolve(controllerRec(t0.Add(time.Second)), snapOf(fused))
	if d.ID != "pair" || d.Created || d.Bound {
		t.Fatalf("duplicate delivery must resolve exactly: %+v", d)
	}
}

func vehicleRecWithPos(at time.Time, lat, lon float64, hint string, kind domain.AssetKind) *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		AssetHint:   hint,
		Family:      domain.FamilyAutel,
		Kind:        kind,
		Latitude:    f(lat),
		Longitude:   f(lon),
		ReceiptTime: at,
	}
}
