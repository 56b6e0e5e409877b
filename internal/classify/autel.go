package classify

import (
	"strings"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/units"
)

// Autel decodes the Smart Controller V3 / Evo Max OSD stream on
// thing/product/+/osd. One OSD message can describe the controller itself
// plus every drone in its drone_list; the controller half carries no serial
// shared with its vehicle, only the structural cue of owning a drone_list.
type Autel struct{}

func NewAutel() *Autel { return &Autel{} }

func (a *Autel) Family() domain.SourceFamily { return domain.FamilyAutel }

func (a *Autel) Classify(msg domain.RawMessage) ([]*domain.NormalizedRecord, error) {
	root, ok := parseObject(msg.Payload)
	if !ok {
		return nil, ports.ErrUnrecognized
	}
	if !strings.Contains(msg.Topic, "/osd") {
		// state/events/sn traffic carries vision results and liveness
		// pings, neither of which maps to an asset update.
		return nil, ports.ErrUnrecognized
	}

	data := root
	if d, ok := getObject(root, "data"); ok {
		data = d
	}

	sn := serialFromTopic(msg.Topic)
	var out []*domain.NormalizedRecord

	droneList, hasList := data["drone_list"].([]any)

	// The controller is recognized structurally: it owns a drone_list and
	// reports its own capacity_percent at the root. There is no shared key
	// linking it to its vehicle; the resolver correlates them later.
	if capacity, ok := getFloat(data, "capacity_percent"); ok && capacity > 0 && hasList {
		lat, lon := coords(data, "latitude", "longitude")
		rec := &domain.NormalizedRecord{
			AssetHint:   "CTRL-" + tail(sn),
			Family:      domain.FamilyAutel,
			Source:      "autel-controller",
			Kind:        domain.KindGroundController,
			Latitude:    lat,
			Longitude:   lon,
			BatteryPct:  floatPtr(units.BatteryPct(capacity)),
			Heartbeat:   true,
			ReceiptTime: msg.ReceiptTime,
			RawTopic:    msg.Topic,
		}
		out = append(out, rec)
	}

	if hasList {
		for _, entry := range droneList {
			raw, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			merged := mergeSiblings(raw, data)
			if rec := a.normalizeVehicle(merged, sn, msg); rec != nil {
				out = append(out, rec)
			}
		}
	} else if _, hasHeight := data["height"]; hasHeight || hasAnyKey(data, "battery", "horizontal_speed") {
		// Direct drone OSD: the vehicle publishes under its own serial.
		if rec := a.normalizeVehicle(data, sn, msg); rec != nil {
			out = append(out, rec)
		}
	}

	if len(out) == 0 {
		return nil, ports.ErrUnrecognized
	}
	return out, nil
}

func (a *Autel) normalizeVehicle(raw map[string]any, topicSN string, msg domain.RawMessage) *domain.NormalizedRecord {
	sn, _ := getString(raw, "sn")
	if sn == "" {
		sn = topicSN
	}
	if sn == "" {
		return nil
	}

	rec := &domain.NormalizedRecord{
		AssetHint:   "UAV-" + tail(sn),
		Family:      domain.FamilyAutel,
		Source:      "autel-vehicle",
		Kind:        domain.KindAirVehicle,
		ReceiptTime: msg.ReceiptTime,
		RawTopic:    msg.Topic,
	}

	rec.Latitude, rec.Longitude = coords(raw, "latitude", "longitude")
	if h, ok := getFloat(raw, "height"); ok {
		rec.AltitudeMSLM = floatPtr(h)
	}
	if v, ok := getFloat(raw, "horizontal_speed"); ok {
		// horizontal_speed is already m/s on the wire.
		rec.SpeedMPS = floatPtr(v)
	}
	if v, ok := getFloat(raw, "home_distance"); ok {
		rec.HomeDistanceM = floatPtr(v)
	}
	if v, ok := getFloat(raw, "vertical_speed"); ok {
		rec.VerticalSpeedMPS = floatPtr(v)
	}
	if v, ok := getFloat(raw, "attitude_head"); ok {
		rec.HeadingDeg = floatPtr(v)
	}

	if batt, ok := getObject(raw, "battery"); ok {
		if pct, ok := getFloat(batt, "capacity_percent"); ok {
			rec.BatteryPct = floatPtr(units.BatteryPct(pct))
		}
	} else if pct, ok := getFloat(raw, "capacity_percent"); ok {
		rec.BatteryPct = floatPtr(units.BatteryPct(pct))
	}

	a.decodeFix(raw, rec)

	if rec.Latitude == nil && rec.AltitudeMSLM == nil && rec.SpeedMPS == nil && rec.BatteryPct == nil {
		return nil
	}
	return rec
}

// decodeFix maps the position_state block onto link quality and an accuracy
// estimate. RTK fixed is centimeter class, RTK float decimeter, a 3D GPS
// solution with a healthy constellation ~3 m, plain GPS ~10 m.
func (a *Autel) decodeFix(raw map[string]any, rec *domain.NormalizedRecord) {
	rec.LinkQuality = domain.LinkGPS
	rec.AccuracyM = floatPtr(10.0)

	pos, ok := getObject(raw, "position_state")
	if !ok {
		return
	}
	sats := 0
	if v, ok := getFloat(pos, "gps_number"); ok {
		sats = int(v)
		rec.Satellites = intPtr(sats)
	}
	rtkUsed, _ := getFloat(pos, "rtk_used")
	isFixed, _ := getFloat(pos, "is_fixed")

	switch {
	case rtkUsed == 1 && isFixed == 3:
		rec.LinkQuality = domain.LinkRTKFixed
		rec.AccuracyM = floatPtr(0.1)
	case rtkUsed == 1 && isFixed == 2:
		rec.LinkQuality = domain.LinkRTKFloat
		rec.AccuracyM = floatPtr(0.5)
	case rtkUsed == 1:
		rec.LinkQuality = domain.LinkRTK
		rec.AccuracyM = floatPtr(1.0)
	case sats > 12:
		rec.LinkQuality = domain.LinkGPS3D
		rec.AccuracyM = floatPtr(3.0)
	}
}

// mergeSiblings folds gimbal/battery blocks scattered at the OSD root into
// the drone entry, which only sometimes carries them inline.
func mergeSiblings(entry, osdRoot map[string]any) map[string]any {
	merged := make(map[string]any, len(entry)+2)
	for k, v := range entry {
		merged[k] = v
	}
	if _, ok := merged["battery"]; !ok {
		if batt, ok := findKey(osdRoot, "battery"); ok {
			merged["battery"] = batt
		}
	}
	if _, ok := merged["position_state"]; !ok {
		if ps, ok := findKey(osdRoot, "position_state"); ok {
			merged["position_state"] = ps
		}
	}
	return merged
}

func serialFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 2 {
		return parts[2]
	}
	return ""
}

// tail returns the last four characters of a serial, the convention the
// whole platform uses for human-readable asset hints.
func tail(sn string) string {
	if len(sn) <= 4 {
		return sn
	}
	return sn[len(sn)-4:]
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

var _ ports.Classifier = (*Autel)(nil)
