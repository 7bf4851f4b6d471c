package geo

import (
	"math"
	"testing"
)

func TestDecode_ScalesByMillionths(t *testing.T) {
	lon, lat := Decode(14366570, 37589851)
	if math.Abs(lon-14.366570) > 1e-9 {
		t.Fatalf("lon=%v want 14.366570", lon)
	}
	if math.Abs(lat-37.589851) > 1e-9 {
		t.Fatalf("lat=%v want 37.589851", lat)
	}
}

func TestEncode_RoundTripsDecode(t *testing.T) {
	cases := []struct{ x, y int64 }{
		{0, 0},
		{14366570, 37589851},
		{-74012345, 40678901},
		{180000000, -90000000},
	}
	for _, c := range cases {
		lon, lat := Decode(c.x, c.y)
		x, y := Encode(lon, lat)
		if x != c.x || y != c.y {
			t.Fatalf("round trip (%d,%d) got (%d,%d)", c.x, c.y, x, y)
		}
	}
}
