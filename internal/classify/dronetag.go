package classify

import (
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/units"
)

// Dronetag decodes Remote ID broadcasts (ASTM F3411 JSON plus the vendor's
// legacy flat shape) relayed over dronetag/# topics.
type Dronetag struct{}

func NewDronetag() *Dronetag { return &Dronetag{} }

func (d *Dronetag) Family() domain.SourceFamily { return domain.FamilyDronetag }

func (d *Dronetag) Classify(msg domain.RawMessage) ([]*domain.NormalizedRecord, error) {
	root, ok := parseObject(msg.Payload)
	if !ok {
		return nil, ports.ErrUnrecognized
	}

	rawID, _ := getString(root, "sensor_id")
	if rawID == "" {
		rawID, _ = getString(root, "uas_id")
	}
	if rawID == "" {
		return nil, ports.ErrUnrecognized
	}

	rec := &domain.NormalizedRecord{
		AssetHint:   "TAG-" + tail(rawID),
		Family:      domain.FamilyDronetag,
		Source:      "dronetag",
		Kind:        domain.KindAirVehicle,
		LinkQuality: domain.LinkRemoteID,
		ReceiptTime: msg.ReceiptTime,
		RawTopic:    msg.Topic,
	}

	// Position nests under location{} in F3411 shape, flat in legacy.
	rec.Latitude, rec.Longitude = coords(root, "latitude", "longitude")
	if rec.Latitude == nil {
		rec.Latitude, rec.Longitude = coords(root, "lat", "lon")
	}

	rec.AltitudeMSLM = d.altitude(root)
	d.velocity(root, rec)

	if acc, ok := findFloat(root, "horizontal_accuracy"); ok {
		rec.AccuracyM = floatPtr(acc)
	} else if acc, ok := findFloat(root, "accuracy"); ok {
		rec.AccuracyM = floatPtr(acc)
	}

	d.deviceTime(root, rec)

	if rec.Latitude == nil && rec.AltitudeMSLM == nil && rec.SpeedMPS == nil && rec.DeviceTime == nil {
		return nil, ports.ErrUnrecognized
	}
	return []*domain.NormalizedRecord{rec}, nil
}

// altitude applies the aviation priority order: MSL first, then whatever the
// altitudes list leads with (HAE/baro), then the legacy flat field.
func (d *Dronetag) altitude(root map[string]any) *float64 {
	if alts, ok := root["altitudes"].([]any); ok && len(alts) > 0 {
		var first *float64
		for _, a := range alts {
			entry, ok := a.(map[string]any)
			if !ok {
				continue
			}
			val, okVal := getFloat(entry, "value")
			if !okVal {
				continue
			}
			if typ, _ := getString(entry, "type"); typ == "MSL" {
				return floatPtr(val)
			}
			if first == nil {
				first = floatPtr(val)
			}
		}
		return first
	}
	if alt, ok := getFloat(root, "altitude"); ok {
		return floatPtr(alt)
	}
	return nil
}

func (d *Dronetag) velocity(root map[string]any, rec *domain.NormalizedRecord) {
	vel, ok := getObject(root, "velocity")
	if !ok {
		return
	}
	if hs, ok := getFloat(vel, "horizontal_speed"); ok {
		rec.SpeedMPS = floatPtr(hs)
	} else if x, okX := getFloat(vel, "x"); okX {
		if y, okY := getFloat(vel, "y"); okY {
			rec.SpeedMPS = floatPtr(units.SpeedFromVector(x, y))
		}
	}
	if vs, ok := getFloat(vel, "vertical_speed"); ok {
		rec.VerticalSpeedMPS = floatPtr(vs)
	}
}

// deviceTime parses the embedded sensor timestamp: RFC 3339 string, unix
// seconds, or unix milliseconds. An unparsable value is flagged so the
// network KPI is omitted while the record still fuses.
func (d *Dronetag) deviceTime(root map[string]any, rec *domain.NormalizedRecord) {
	v, ok := root["time"]
	if !ok {
		v, ok = root["timestamp"]
	}
	if !ok {
		return
	}

	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			rec.TimestampMalformed = true
			return
		}
		rec.DeviceTime = &parsed
	case float64:
		if t <= 0 {
			rec.TimestampMalformed = true
			return
		}
		var parsed time.Time
		if t > 1e12 { // milliseconds
			parsed = time.UnixMilli(int64(t)).UTC()
		} else {
			sec := int64(t)
			nsec := int64((t - float64(sec)) * 1e9)
			parsed = time.Unix(sec, nsec).UTC()
		}
		rec.DeviceTime = &parsed
	default:
		rec.TimestampMalformed = true
	}
}

var _ ports.Classifier = (*Dronetag)(nil)
