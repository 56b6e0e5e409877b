package classify

import (
	"math"
	"testing"
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

func owntracksMsg(payload string) domain.RawMessage {
	return domain.RawMessage{
		Topic:       "owntracks/rw/phone",
		Payload:     []byte(payload),
		ReceiptTime: time.Date(2026, 1, 27, 17, 25, 4, 0, time.UTC),
	}
}

func TestOwnTracksLocation(t *testing.T) {
	payload := `{"_type":"location","tid":"RW","lat":60.3190,"lon":24.8305,"alt":42,"vel":14.4,"cog":270,"batt":77,"acc":8,"tst":1769534700}`
	recs, err := NewOwnTracks().Classify(owntracksMsg(payload))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	rec := recs[0]
	if rec.Kind != domain.KindGroundAsset {
		t.Fatalf("owntracks assets are ground assets, got %s", rec.Kind)
	}
	// 14.4 km/h = 4 m/s.
	if rec.SpeedMPS == nil || math.Abs(*rec.SpeedMPS-4.0) > 1e-9 {
		t.Fatalf("vel must convert km/h to m/s, got %v", rec.SpeedMPS)
	}
	if rec.BatteryPct == nil || *rec.BatteryPct != 77 {
		t.Fatalf("battery lost: %v", rec.BatteryPct)
	}
	if rec.DeviceTime == nil || rec.DeviceTime.Unix() != 1769534700 {
		t.Fatalf("tst not parsed: %v", rec.DeviceTime)
	}
	if rec.HeadingDeg == nil || *rec.HeadingDeg != 270 {
		t.Fatalf("cog lost: %v", rec.HeadingDeg)
	}
}

func TestOwnTracksNonLocationDropped(t *testing.T) {
	if _, err := NewOwnTracks().Classify(owntracksMsg(`{"_type":"lwt"}`)); err != ports.ErrUnrecognized {
		t.Fatalf("non-location updates are unrecognized, got %v", err)
	}
}

func TestOwnTracksUnknownBattery(t *testing.T) {
	payload := `{"_type":"location","tid":"RW","lat":60.0,"lon":24.0,"batt":-1}`
	recs, err := NewOwnTracks().Classify(owntracksMsg(payload))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if recs[0].BatteryPct != nil {
		t.Fatalf("batt=-1 means not reported, must stay absent")
	}
}

func TestOwnTracksDefaultTID(t *testing.T) {
	payload := `{"_type":"location","lat":60.0,"lon":24.0}`
	recs, err := NewOwnTracks().Classify(owntracksMsg(payload))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if recs[0].AssetHint != "RW" {
		t.Fatalf("missing tid should default to RW, got %s", recs[0].AssetHint)
	}
}
