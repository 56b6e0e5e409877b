package forensic

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestPostgresSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "telemetry_records")
	receipt := time.Date(2026, 1, 27, 17, 25, 0, 0, time.UTC)
	device := receipt.Add(-200 * time.Millisecond)

	records := []*domain.NormalizedRecord{
		{
			AssetHint:    "UAV-9999",
			Family:       domain.FamilyAutel,
			Source:       "autel-vehicle",
			Kind:         domain.KindAirVehicle,
			Latitude:     f64(60.1699),
			Longitude:    f64(24.9384),
			AltitudeMSLM: f64(120.5),
			SpeedMPS:     f64(12.3),
			DeviceTime:   &device,
			ReceiptTime:  receipt,
			RawTopic:     "thing/product/UAV9999/osd",
		},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO telemetry_records (asset_hint, family, source, kind, receipt_ts, raw_topic, lat, lon, alt_msl_m, speed_mps, heading_deg, battery_pct, device_ts) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) ON CONFLICT (asset_hint, receipt_ts, raw_topic) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs("UAV-9999", "autel", "autel-vehicle", "AIR_VEHICLE", receipt,
			"thing/product/UAV9999/osd", 60.1699, 24.9384, 120.5, 12.3,
			nil, nil, device).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := sink.WriteBatch(records); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkEmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "telemetry_records")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewPostgresSink(db, "telemetry_records")
	if sink.Name() != "postgres" {
		t.Fatalf("expected sink name postgres, got %s", sink.Name())
	}
}
