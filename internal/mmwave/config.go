package mmwave

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Antenna configuration of the people-counting board. Fixed by the firmware
// build rather than the chirp configuration file.
const (
	numRxAntennas = 4
	numTxAntennas = 2
)

// DeviceParams holds the physical scaling factors derived from the chirp
// configuration. They are advisory metadata for downstream annotation and
// are never consulted by the frame decoder itself.
type DeviceParams struct {
	NumDopplerBins        float64
	NumRangeBins          int
	RangeResolutionMeters float64
	RangeIdxToMeters      float64
	DopplerResolutionMps  float64
	MaxRange              float64
	MaxVelocity           float64
}

// ParseConfigFile reads a sensor chirp configuration file and derives the
// device parameters from its profileCfg and frameCfg lines.
func ParseConfigFile(path string) (*DeviceParams, error) {
	lines, err := ConfigCommands(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(lines)
}

// ConfigCommands reads the configuration file and returns the command lines
// to be sent to the sensor CLI port, with comments and blank lines removed.
func ConfigCommands(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var commands []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%") {
			continue
		}
		commands = append(commands, line)
	}
	return commands, nil
}

// ParseConfig derives device parameters from configuration command lines.
func ParseConfig(lines []string) (*DeviceParams, error) {
	var (
		haveProfile, haveFrame bool

		startFreq        float64 // GHz, truncated to a whole number
		idleTime         float64 // microseconds
		rampEndTime      float64 // microseconds
		freqSlopeConst   float64 // MHz/microsecond
		numADCSamples    int
		digOutSampleRate float64 // ksps

		chirpStartIdx int
		chirpEndIdx   int
		numLoops      int
	)

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "profileCfg":
			if len(fields) < 12 {
				return nil, fmt.Errorf("profileCfg at line %d: expected at least 12 fields, got %d", i+1, len(fields))
			}
			v, err := parseFloats(fields, 2, 3, 5, 8, 10, 11)
			if err != nil {
				return nil, fmt.Errorf("profileCfg at line %d: %w", i+1, err)
			}
			startFreq = float64(int(v[0]))
			idleTime = v[1]
			rampEndTime = v[2]
			freqSlopeConst = v[3]
			numADCSamples = int(v[4])
			digOutSampleRate = v[5]
			haveProfile = true

		case "frameCfg":
			if len(fields) < 6 {
				return nil, fmt.Errorf("frameCfg at line %d: expected at least 6 fields, got %d", i+1, len(fields))
			}
			v, err := parseFloats(fields, 1, 2, 3)
			if err != nil {
				return nil, fmt.Errorf("frameCfg at line %d: %w", i+1, err)
			}
			chirpStartIdx = int(v[0])
			chirpEndIdx = int(v[1])
			numLoops = int(v[2])
			haveFrame = true
		}
	}

	if !haveProfile {
		return nil, fmt.Errorf("config is missing a profileCfg line")
	}
	if !haveFrame {
		return nil, fmt.Errorf("config is missing a frameCfg line")
	}
	if numADCSamples <= 0 || freqSlopeConst == 0 || startFreq == 0 {
		return nil, fmt.Errorf("profileCfg yields degenerate parameters")
	}

	// Round ADC sample count up to the next power of two for the range FFT.
	numRangeBins := 1
	for numADCSamples > numRangeBins {
		numRangeBins *= 2
	}

	numChirpsPerFrame := float64(chirpEndIdx-chirpStartIdx+1) * float64(numLoops)
	numDopplerBins := numChirpsPerFrame / numTxAntennas
	if numDopplerBins == 0 {
		return nil, fmt.Errorf("frameCfg yields zero doppler bins")
	}

	chirpInterval := (idleTime + rampEndTime) * 1e-6 // seconds

	params := &DeviceParams{
		NumDopplerBins: numDopplerBins,
		NumRangeBins:   numRangeBins,
		RangeResolutionMeters: (3e8 * digOutSampleRate * 1e3) /
			(2 * freqSlopeConst * 1e12 * float64(numADCSamples)),
		RangeIdxToMeters: (3e8 * digOutSampleRate * 1e3) /
			(2 * freqSlopeConst * 1e12 * float64(numRangeBins)),
		DopplerResolutionMps: 3e8 /
			(2 * startFreq * 1e9 * chirpInterval * numDopplerBins * numTxAntennas),
		MaxRange:    (300 * 0.9 * digOutSampleRate) / (2 * freqSlopeConst * 1e3),
		MaxVelocity: 3e8 / (4 * startFreq * 1e9 * chirpInterval * numTxAntennas),
	}

	return params, nil
}

// parseFloats parses the fields at the given indices as float64s.
func parseFloats(fields []string, indices ...int) ([]float64, error) {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return nil, fmt.Errorf("field %d %q: %w", idx, fields[idx], err)
		}
		out[i] = v
	}
	return out, nil
}
