package classify

import (
	"math"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/units"
)

// Pixhawk decodes autopilot telemetry relayed by the MAVLink bridge on
// pixhawk/telemetry. Well-behaved bridges pre-scale GLOBAL_POSITION_INT;
// raw bridges forward the integer fields as-is (degE7 coordinates, mm
// altitude, centi-degree heading), so both encodings are accepted.
type Pixhawk struct{}

func NewPixhawk() *Pixhawk { return &Pixhawk{} }

func (p *Pixhawk) Family() domain.SourceFamily { return domain.FamilyPixhawk }

func (p *Pixhawk) Classify(msg domain.RawMessage) ([]*domain.NormalizedRecord, error) {
	root, ok := parseObject(msg.Payload)
	if !ok {
		return nil, ports.ErrUnrecognized
	}

	tid, _ := getString(root, "tid")
	if tid == "" {
		return nil, ports.ErrUnrecognized
	}

	rec := &domain.NormalizedRecord{
		AssetHint:   tid,
		Family:      domain.FamilyPixhawk,
		Source:      "pixhawk",
		Kind:        domain.KindAirVehicle,
		LinkQuality: domain.LinkGPS,
		ReceiptTime: msg.ReceiptTime,
		RawTopic:    msg.Topic,
	}

	lat, okLat := getFloat(root, "lat")
	lon, okLon := getFloat(root, "lon")
	if okLat && okLon {
		if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
			lat = units.DegE7ToDeg(int64(lat))
			lon = units.DegE7ToDeg(int64(lon))
		}
		latP, lonP := &lat, &lon
		if domain.ValidCoords(latP, lonP) {
			rec.Latitude, rec.Longitude = latP, lonP
		}
	}

	if alt, ok := getFloat(root, "alt"); ok {
		if math.Abs(alt) > 20000 { // raw mm from GLOBAL_POSITION_INT
			alt = units.MillimetersToMeters(int64(alt))
		}
		rec.AltitudeMSLM = floatPtr(alt)
	}
	if hdg, ok := getFloat(root, "heading"); ok {
		if hdg > 360 { // raw cdeg
			hdg = units.CentidegToDeg(int64(hdg))
		}
		rec.HeadingDeg = floatPtr(hdg)
	}
	if batt, ok := getFloat(root, "batt"); ok && batt >= 0 {
		rec.BatteryPct = floatPtr(units.BatteryPct(batt))
	}

	if rec.Latitude == nil && rec.AltitudeMSLM == nil && rec.HeadingDeg == nil {
		return nil, ports.ErrUnrecognized
	}
	return []*domain.NormalizedRecord{rec}, nil
}

var _ ports.Classifier = (*Pixhawk)(nil)
