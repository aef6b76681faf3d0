// Package units converts sensor-native measurements into metric quantities.
//
// The radar reports point detections in polar form (range in metres, azimuth
// in radians) and some firmware builds report range and doppler as bin
// indices that must be scaled by the resolution derived from the chirp
// configuration.
package units

import "math"

// PolarToCartesian converts a range/azimuth detection into sensor-frame
// cartesian coordinates. Azimuth is measured from boresight, positive
// clockwise, so x is negated to keep +x on the sensor's left.
func PolarToCartesian(rangeMeters, azimuthRadians float64) (x, y float64) {
	x = -rangeMeters * math.Sin(azimuthRadians)
	y = rangeMeters * math.Cos(azimuthRadians)
	return x, y
}

// RangeBinToMeters scales a range bin index by the range conversion factor.
func RangeBinToMeters(bin float64, rangeIdxToMeters float64) float64 {
	return bin * rangeIdxToMeters
}

// DopplerBinToMps scales a doppler bin index by the doppler resolution.
// Doppler bins are signed: indices above half the bin count wrap to negative
// velocities.
func DopplerBinToMps(bin float64, numDopplerBins float64, dopplerResolutionMps float64) float64 {
	if numDopplerBins > 0 && bin > numDopplerBins/2 {
		bin -= numDopplerBins
	}
	return bin * dopplerResolutionMps
}
