package geo

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	if d := HaversineM(60.3195, 24.8310, 60.3195, 24.8310); d != 0 {
		t.Fatalf("identical points should be 0 m apart, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude is ~111.2 km.
	d := HaversineM(60.0, 24.0, 61.0, 24.0)
	if math.Abs(d-111200) > 1000 {
		t.Fatalf("1 deg latitude should be ~111.2 km, got %f m", d)
	}
}

func TestDistance3D(t *testing.T) {
	// Pure vertical separation.
	d := Distance3DM(60.0, 24.0, 0, 60.0, 24.0, 120)
	if math.Abs(d-120) > 1e-6 {
		t.Fatalf("pure vertical separation should be 120 m, got %f", d)
	}
}
