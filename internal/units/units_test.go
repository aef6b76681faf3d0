package units

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestPolarToCartesian(t *testing.T) {
	tests := []struct {
		name    string
		r       float64
		azimuth float64
		wantX   float64
		wantY   float64
	}{
		{"boresight", 2.0, 0, 0, 2.0},
		{"full right angle", 1.0, math.Pi / 2, -1.0, 0},
		{"full left angle", 1.0, -math.Pi / 2, 1.0, 0},
		{"45 degrees", math.Sqrt2, math.Pi / 4, -1.0, 1.0},
		{"zero range", 0, 1.0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := PolarToCartesian(tt.r, tt.azimuth)
			if !almostEqual(x, tt.wantX, 1e-9) || !almostEqual(y, tt.wantY, 1e-9) {
				t.Errorf("PolarToCartesian(%f, %f) = (%f, %f), want (%f, %f)",
					tt.r, tt.azimuth, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestRangeBinToMeters(t *testing.T) {
	if got := RangeBinToMeters(10, 0.063188); !almostEqual(got, 0.63188, 1e-9) {
		t.Errorf("RangeBinToMeters(10, 0.063188) = %f", got)
	}
}

func TestDopplerBinToMps(t *testing.T) {
	tests := []struct {
		name       string
		bin        float64
		numBins    float64
		resolution float64
		want       float64
	}{
		{"positive bin", 3, 16, 0.1, 0.3},
		{"wrapped negative bin", 14, 16, 0.1, -0.2},
		{"half boundary stays positive", 8, 16, 0.1, 0.8},
		{"no bin count", 3, 0, 0.1, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DopplerBinToMps(tt.bin, tt.numBins, tt.resolution)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("DopplerBinToMps(%f, %f, %f) = %f, want %f",
					tt.bin, tt.numBins, tt.resolution, got, tt.want)
			}
		})
	}
}
