package classify

import (
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/units"
)

// OwnTracks decodes the mobile ground-asset tracker: standard OwnTracks
// location JSON on owntracks/# topics. Phones provide operator positions
// and the proximity ground truth for the airborne sensors.
type OwnTracks struct{}

func NewOwnTracks() *OwnTracks { return &OwnTracks{} }

func (o *OwnTracks) Family() domain.SourceFamily { return domain.FamilyOwnTracks }

func (o *OwnTracks) Classify(msg domain.RawMessage) ([]*domain.NormalizedRecord, error) {
	root, ok := parseObject(msg.Payload)
	if !ok {
		return nil, ports.ErrUnrecognized
	}
	// Only location updates carry telemetry; lwt/cmd/waypoint traffic on
	// the same topic family is dropped.
	if typ, _ := getString(root, "_type"); typ != "location" {
		return nil, ports.ErrUnrecognized
	}

	tid, _ := getString(root, "tid")
	if tid == "" {
		tid = "RW"
	}

	rec := &domain.NormalizedRecord{
		AssetHint:   tid,
		Family:      domain.FamilyOwnTracks,
		Source:      "owntracks",
		Kind:        domain.KindGroundAsset,
		LinkQuality: domain.LinkGPS,
		ReceiptTime: msg.ReceiptTime,
		RawTopic:    msg.Topic,
	}

	rec.Latitude, rec.Longitude = coords(root, "lat", "lon")
	if alt, ok := getFloat(root, "alt"); ok {
		rec.AltitudeMSLM = floatPtr(alt)
	}
	// vel is km/h on the wire.
	if vel, ok := getFloat(root, "vel"); ok {
		rec.SpeedMPS = floatPtr(units.KmhToMps(vel))
	}
	if cog, ok := getFloat(root, "cog"); ok {
		rec.HeadingDeg = floatPtr(cog)
	}
	// batt is 0-100; some clients send -1 for "unknown".
	if batt, ok := getFloat(root, "batt"); ok && batt >= 0 {
		rec.BatteryPct = floatPtr(units.BatteryPct(batt))
	}
	if acc, ok := getFloat(root, "acc"); ok && acc > 0 {
		rec.AccuracyM = floatPtr(acc)
	}
	if tst, ok := getFloat(root, "tst"); ok {
		if tst > 0 {
			t := time.Unix(int64(tst), 0).UTC()
			rec.DeviceTime = &t
		} else {
			rec.TimestampMalformed = true
		}
	}

	if rec.Latitude == nil && rec.BatteryPct == nil && rec.SpeedMPS == nil && rec.DeviceTime == nil {
		return nil, ports.ErrUnrecognized
	}
	return []*domain.NormalizedRecord{rec}, nil
}

var _ ports.Classifier = (*OwnTracks)(nil)
