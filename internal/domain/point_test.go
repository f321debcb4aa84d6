package domain

import (
	"math"
	"testing"
)

func TestDistanceMetersIdentity(t *testing.T) {
	points := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 52.52, Lng: 13.405},
		{Lat: -33.8688, Lng: 151.2093},
	}
	for _, p := range points {
		if d := DistanceMeters(p, p); d != 0 {
			t.Errorf("DistanceMeters(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	a := Point{Lat: 40.7128, Lng: -74.0060}
	b := Point{Lat: 34.0522, Lng: -118.2437}

	ab := DistanceMeters(a, b)
	ba := DistanceMeters(b, a)
	if ab != ba {
		t.Errorf("DistanceMeters not symmetric: %v vs %v", ab, ba)
	}
}

func TestDistanceMetersOneDegreeLatitude(t *testing.T) {
	// One degree of latitude is roughly 111,195 m on a 6371 km sphere.
	a := Point{Lat: 10, Lng: 20}
	b := Point{Lat: 11, Lng: 20}

	d := DistanceMeters(a, b)
	want := 111195.0
	if math.Abs(d-want)/want > 0.01 {
		t.Errorf("DistanceMeters 1 degree lat = %v, want within 1%% of %v", d, want)
	}
}

func TestPointIsZero(t *testing.T) {
	if !(Point{}).IsZero() {
		t.Error("zero point should report IsZero")
	}
	if (Point{Lat: 0, Lng: 0.5}).IsZero() {
		t.Error("(0, 0.5) is a real position, not a missing fix")
	}
}
