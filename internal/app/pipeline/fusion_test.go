package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/rwiren/securingskies-platform/internal/app/config"
	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/latency"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/resolve"
	"github.com/rwiren/securingskies-platform/internal/store"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

type countingObs struct {
	nopObs
	counters map[string]float64
}

func newCountingObs() *countingObs {
	return &countingObs{counters: make(map[string]float64)}
}

func (c *countingObs) IncCounter(name string, v float64) { c.counters[name] += v }

func defaultSources() config.SourcesConfig {
	var cfg config.Config
	cfg.ApplyDefaults()
	return cfg.Sources
}

func newTestEngine(obs ports.Observability) (*Engine, *store.TelemetryStore) {
	st := store.New(nil, time.Minute)
	e := NewEngine(Deps{
		Registry: NewDefaultRegistry(defaultSources()),
		Resolver: resolve.New(10*time.Second, 500, obs),
		Store:    st,
		Latency:  latency.NewCalculator(),
		Obs:      obs,
	})
	return e, st
}

func msg(topic, payload string, at time.Time) domain.RawMessage {
	return domain.RawMessage{Topic: topic, Payload: []byte(payload), ReceiptTime: at}
}

// The canonical mission open: the controller heartbeats with its drone list,
// the vehicle reports a position two seconds later through the same family,
// and an unrelated phone fix arrives from a third source. The pair must fuse
// into one asset, the phone into another.
func TestControllerVehicleFusionScenario(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	controllerOSD := `{
		"data": {
			"capacity_percent": 87,
			"latitude": 60.1700, "longitude": 24.9380,
			"drone_list": [
				{"sn": "AUTELMAX49999", "latitude": 60.1702, "longitude": 24.9385,
				 "height": 92.0, "horizontal_speed": 12.0}
			]
		}
	}`
	e.Process(msg("thing/product/SCTRL331479/osd", controllerOSD, t0))

	vehicleOSD := `{
		"data": {
			"height": 95.0, "horizontal_speed": 14.0,
			"latitude": 60.1704, "longitude": 24.9390,
			"battery": {"capacity_percent": 64}
		}
	}`
	e.Process(msg("thing/product/AUTELMAX49999/osd", vehicleOSD, t0.Add(2*time.Second)))

	phone := fmt.Sprintf(`{"_type":"location","tid":"7A","lat":60.20,"lon":24.95,"vel":18,"tst":%d}`,
		t0.Add(2*time.Second).Unix())
	e.Process(msg("owntracks/rw/phone", phone, t0.Add(3*time.Second)))

	snap := st.Snapshot(t0.Add(4 * time.Second))
	if len(snap) != 2 {
		t.Fatalf("expected 2 assets (fused pair + phone), got %d", len(snap))
	}

	var pair, ground *domain.Asset
	for _, a := range snap {
		c := a
		switch a.Family {
		case domain.FamilyAutel:
			pair = &c
		case domain.FamilyOwnTracks:
			ground = &c
		}
	}
	if pair == nil || ground == nil {
		t.Fatalf("missing expected assets: %+v", snap)
	}

	if pair.Kind != domain.KindAirVehicle {
		t.Fatalf("fused pair kind = %s, want AIR_VEHICLE", pair.Kind)
	}
	if !pair.ControllerBound {
		t.Fatalf("pair not marked controller-bound")
	}
	if !pair.HasIdentity("CTRL-1479") || !pair.HasIdentity("UAV-9999") {
		t.Fatalf("pair identities incomplete: %v", pair.Identities)
	}
	if !pair.ContributingSources["autel-controller"] || !pair.ContributingSources["autel-vehicle"] {
		t.Fatalf("contributing sources incomplete: %v", pair.ContributingSources)
	}
	// The vehicle's later fix wins the position merge.
	if pair.Latitude == nil || *pair.Latitude != 60.1704 {
		t.Fatalf("pair latitude = %v, want 60.1704", pair.Latitude)
	}
	// horizontal_speed is m/s on the wire and fuses unscaled.
	if pair.SpeedMPS == nil || *pair.SpeedMPS < 13.99 || *pair.SpeedMPS > 14.01 {
		t.Fatalf("pair speed = %v, want 14", pair.SpeedMPS)
	}

	if ground.Kind != domain.KindGroundAsset {
		t.Fatalf("phone kind = %s", ground.Kind)
	}
	kpi, ok := ground.KPIs[domain.KPINetwork]
	if !ok {
		t.Fatalf("phone should carry a network KPI")
	}
	if kpi.Seconds < 0.99 || kpi.Seconds > 1.01 {
		t.Fatalf("network KPI = %f, want ~1s (tst to receipt)", kpi.Seconds)
	}
}

// Variant with no controller position: the pair must still bind on the time
// window alone, and a null-position packet from a third source neither
// crashes the engine nor pollutes the pair.
func TestPairBindsWithoutControllerPosition(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	e.Process(msg("thing/product/SCTRL331479/osd",
		`{"data":{"capacity_percent": 87, "drone_list": []}}`, t0))

	e.Process(msg("thing/product/AUTELMAX49999/osd",
		`{"data":{"height": 95.0, "latitude": 60.1704, "longitude": 24.9390}}`,
		t0.Add(2*time.Second)))

	e.Process(msg("dronetag/device/abc",
		`{"sensor_id":"DT990042","location":{"latitude":0,"longitude":0},"altitude":30}`,
		t0.Add(3*time.Second)))

	snap := st.Snapshot(t0.Add(4 * time.Second))
	if len(snap) != 2 {
		t.Fatalf("expected 2 assets (fused pair + remote id), got %d", len(snap))
	}
	for _, a := range snap {
		switch a.Family {
		case domain.FamilyAutel:
			if a.Kind != domain.KindAirVehicle || !a.ControllerBound {
				t.Fatalf("pair not fused: kind=%s bound=%v", a.Kind, a.ControllerBound)
			}
			if a.Latitude == nil || *a.Latitude != 60.1704 {
				t.Fatalf("pair position missing: %v", a.Latitude)
			}
		case domain.FamilyDronetag:
			if a.HasPosition() {
				t.Fatalf("null island leaked into the remote id asset")
			}
		}
	}
}

// A vehicle fix fed through the full path keeps its wire speed: 10.0 on the
// wire is 10.0 m/s on the fused asset, never 2.78.
func TestAutelSpeedFusesUnscaled(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	e.Process(msg("thing/product/AUTELMAX49999/osd",
		`{"data":{"height": 40.0, "horizontal_speed": 10.0}}`, t0))

	snap := st.Snapshot(t0.Add(time.Second))
	if len(snap) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(snap))
	}
	for _, a := range snap {
		if a.SpeedMPS == nil || *a.SpeedMPS < 9.999 || *a.SpeedMPS > 10.001 {
			t.Fatalf("speed = %v, want 10 m/s", a.SpeedMPS)
		}
	}
}

// When the wire never reports a home distance, binding the pair derives one
// from the controller and vehicle positions: same coordinates, vehicle 100 m
// up, distance 100 m.
func TestPairBindDerivesHomeDistance(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	e.Process(msg("thing/product/SCTRL331479/osd",
		`{"data":{"capacity_percent": 90, "latitude": 60.0, "longitude": 25.0, "drone_list": []}}`, t0))
	e.Process(msg("thing/product/AUTELMAX49999/osd",
		`{"data":{"height": 100.0, "latitude": 60.0, "longitude": 25.0}}`,
		t0.Add(2*time.Second)))

	snap := st.Snapshot(t0.Add(3 * time.Second))
	if len(snap) != 1 {
		t.Fatalf("expected the pair to fuse into 1 asset, got %d", len(snap))
	}
	for _, a := range snap {
		if !a.ControllerBound {
			t.Fatalf("pair not bound")
		}
		if a.HomeDistanceM == nil || *a.HomeDistanceM < 99.9 || *a.HomeDistanceM > 100.1 {
			t.Fatalf("home distance = %v, want ~100 m", a.HomeDistanceM)
		}
	}
}

func TestLinkKPIFromHeartbeatCadence(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	osd := `{"data":{"capacity_percent": 87, "drone_list": []}}`
	e.Process(msg("thing/product/SCTRL331479/osd", osd, t0))
	e.Process(msg("thing/product/SCTRL331479/osd", osd, t0.Add(1500*time.Millisecond)))

	snap := st.Snapshot(t0.Add(2 * time.Second))
	if len(snap) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(snap))
	}
	for _, a := range snap {
		kpi, ok := a.KPIs[domain.KPILink]
		if !ok {
			t.Fatalf("controller should carry a link KPI after the second heartbeat")
		}
		if kpi.Seconds < 1.49 || kpi.Seconds > 1.51 {
			t.Fatalf("link KPI = %f, want 1.5", kpi.Seconds)
		}
	}
}

func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	m := msg("dronetag/device/abc", fmt.Sprintf(
		`{"sensor_id":"DT990042","location":{"latitude":60.17,"longitude":24.93},"time":%d}`,
		t0.Add(-time.Second).Unix()), t0)

	e.Process(m)
	first := st.Snapshot(t0)

	e.Process(m)
	second := st.Snapshot(t0)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("duplicate delivery created an asset: %d then %d", len(first), len(second))
	}
	for id, a := range first {
		b := second[id]
		if b.LastUpdate != a.LastUpdate {
			t.Fatalf("duplicate delivery advanced LastUpdate")
		}
		if len(b.Identities) != len(a.Identities) {
			t.Fatalf("duplicate delivery grew identities: %v vs %v", a.Identities, b.Identities)
		}
		if b.KPIs[domain.KPINetwork] != a.KPIs[domain.KPINetwork] {
			t.Fatalf("duplicate delivery changed the network KPI")
		}
	}
}

func TestUnrecognizedMessageCountedAndDropped(t *testing.T) {
	obs := newCountingObs()
	e, st := newTestEngine(obs)

	e.Process(msg("some/random/topic", `{"x":1}`, time.Now()))
	e.Process(msg("owntracks/rw/phone", `not json`, time.Now()))
	e.Process(msg("owntracks/rw/phone", `{"_type":"lwt"}`, time.Now()))

	if st.Len() != 0 {
		t.Fatalf("unrecognized messages must not create assets, got %d", st.Len())
	}
	if obs.counters["skies_messages_unrecognized_total"] != 3 {
		t.Fatalf("unrecognized counter = %f, want 3",
			obs.counters["skies_messages_unrecognized_total"])
	}
}

func TestNullIslandNeverFused(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	e.Process(msg("dronetag/device/abc",
		`{"sensor_id":"DT990042","location":{"latitude":60.17,"longitude":24.93}}`, t0))
	e.Process(msg("dronetag/device/abc",
		`{"sensor_id":"DT990042","location":{"latitude":0,"longitude":0},"altitude":55}`,
		t0.Add(time.Second)))

	snap := st.Snapshot(t0.Add(2 * time.Second))
	for _, a := range snap {
		if a.Latitude == nil || *a.Latitude != 60.17 {
			t.Fatalf("null island overwrote a valid fix: %v", a.Latitude)
		}
		// The non-position fields of the second message still fuse.
		if a.AltitudeMSLM == nil || *a.AltitudeMSLM != 55 {
			t.Fatalf("altitude from the rejected-position message should fuse: %v", a.AltitudeMSLM)
		}
	}
}

func TestFusionLoopDrainsQueueOnStop(t *testing.T) {
	e, st := newTestEngine(nopObs{})
	q := newFakeQueue()
	t0 := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		q.Enqueue(msg("owntracks/rw/phone",
			fmt.Sprintf(`{"_type":"location","tid":"7A","lat":60.2,"lon":24.9,"tst":%d}`,
				t0.Add(time.Duration(i)*time.Second).Unix()),
			t0.Add(time.Duration(i)*time.Second)))
	}

	stop := make(chan struct{})
	close(stop) // already stopped: the loop must still drain before exiting

	done := make(chan struct{})
	go func() {
		RunFusion(e, q, ports.Policy{MaxBatchSize: 3, IdleSleep: time.Millisecond}, nopObs{}, stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("fusion loop did not exit")
	}

	if q.Len() != 0 {
		t.Fatalf("queue not drained: %d left", q.Len())
	}
	if st.Len() != 1 {
		t.Fatalf("expected the drained messages to fuse into one asset, got %d", st.Len())
	}
}

// The delivery goroutine must exit once stop closes, after first enqueueing
// everything the collector handed over.
func TestCollectLoopDrainsAndExitsOnStop(t *testing.T) {
	q := newFakeQueue()
	col := &inlineCollector{n: 5}

	stop := make(chan struct{})
	done, err := RunCollect(col, q, ports.Policy{MaxQueueLen: 16, OnQueueFull: "drop"}, nopObs{}, stop)
	if err != nil {
		t.Fatalf("run collect: %v", err)
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("delivery goroutine did not exit after stop")
	}
	if q.Len() != 5 {
		t.Fatalf("messages delivered before the stop were lost: %d of 5", q.Len())
	}
}

// inlineCollector delivers its whole script synchronously from Start, so the
// messages sit in the delivery channel before the pump ever runs.
type inlineCollector struct{ n int }

func (c *inlineCollector) Start(out chan<- domain.RawMessage) error {
	for i := 0; i < c.n; i++ {
		out <- domain.RawMessage{Topic: "owntracks/rw/phone", Payload: []byte(`{}`)}
	}
	return nil
}

func (c *inlineCollector) Stop() error { return nil }

type fakeQueue struct {
	items []domain.RawMessage
}

func newFakeQueue() *fakeQueue { return &fakeQueue{} }

func (f *fakeQueue) Enqueue(m domain.RawMessage) bool {
	f.items = append(f.items, m)
	return true
}

func (f *fakeQueue) DequeueBatch(max int) []domain.RawMessage {
	if len(f.items) == 0 {
		return nil
	}
	if max > len(f.items) {
		max = len(f.items)
	}
	out := f.items[:max]
	f.items = f.items[max:]
	return out
}

func (f *fakeQueue) Len() int { return len(f.items) }
