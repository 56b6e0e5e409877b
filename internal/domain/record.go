package domain

import "time"

// SourceFamily identifies one vendor wire-shape family on the bus.
type SourceFamily string

const (
	FamilyAutel     SourceFamily = "autel"
	FamilyDronetag  SourceFamily = "dronetag"
	FamilyOwnTracks SourceFamily = "owntracks"
	FamilyPixhawk   SourceFamily = "pixhawk"
)

// AssetKind classifies the physical role behind a telemetry stream.
type AssetKind string

const (
	KindAirVehicle       AssetKind = "AIR_VEHICLE"
	KindGroundController AssetKind = "GROUND_CONTROLLER"
	KindGroundAsset      AssetKind = "GROUND_ASSET"
	KindUnknown          AssetKind = "UNKNOWN"
)

// LinkQuality grades the navigation/link fix reported by a source.
type LinkQuality string

const (
	LinkRTKFixed LinkQuality = "RTK_FIXED"
	LinkRTKFloat LinkQuality = "RTK_FLOAT"
	LinkRTK      LinkQuality = "RTK"
	LinkGPS3D    LinkQuality = "GPS_3D"
	LinkGPS      LinkQuality = "GPS"
	LinkRemoteID LinkQuality = "REMOTE_ID"
	LinkUnknown  LinkQuality = ""
)

// RawMessage is one delivered transport message, consumed exactly once.
type RawMessage struct {
	Topic       string
	Payload     []byte
	ReceiptTime time.Time
}

// NormalizedRecord is the canonical per-update shape produced by a classifier.
// All physical quantities are SI: meters, m/s, degrees, percent. Pointer
// fields are nil when the source did not report them; absent is never zero.
type NormalizedRecord struct {
	AssetHint string
	Family    SourceFamily
	// Source names the sub-role within a family, e.g. "autel-controller"
	// versus "autel-vehicle". Controller and vehicle halves of one pair
	// report through different sub-roles of the same family.
	Source string
	Kind   AssetKind

	Latitude         *float64
	Longitude        *float64
	AltitudeMSLM     *float64
	SpeedMPS         *float64
	HeadingDeg       *float64
	BatteryPct       *float64
	VerticalSpeedMPS *float64
	AccuracyM        *float64
	// HomeDistanceM is the vehicle-to-home distance when the vendor reports
	// one on the wire.
	HomeDistanceM *float64
	Satellites    *int
	LinkQuality   LinkQuality

	// DeviceTime is the timestamp embedded by the sensor, when one exists
	// and parses. TimestampMalformed marks the case where the wire carried
	// something unparsable; the record still fuses, the network KPI is
	// simply omitted.
	DeviceTime         *time.Time
	TimestampMalformed bool

	// Heartbeat marks control-link cadence messages; their inter-arrival
	// interval drives the link KPI because the family embeds no usable
	// device timestamp.
	Heartbeat bool

	ReceiptTime time.Time
	RawTopic    string
}

// HasPosition reports whether the record carries a usable coordinate pair.
// A lone latitude or longitude is position-absent, and exactly (0,0) is
// rejected as the null-island artifact some vendors emit on cold start.
func (r *NormalizedRecord) HasPosition() bool {
	return ValidCoords(r.Latitude, r.Longitude)
}

// ValidCoords applies the null-safety and null-island rules to a pair.
func ValidCoords(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	if *lat == 0 && *lon == 0 {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lon >= -180 && *lon <= 180
}
