// Package config loads the occupancy tuning parameters from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig represents the runtime tuning parameters for the occupancy
// pipeline. The schema matches the /api/params endpoint so the same JSON can
// be used for both startup configuration and runtime inspection.
//
// Fields are pointers so a partial config file only overrides what it names;
// the Get* methods supply defaults for everything else.
type TuningConfig struct {
	// Occupancy counting params
	BandHalfWidth *float64 `json:"band_half_width,omitempty"` // metres either side of the boundary
	WindowFrames  *int     `json:"window_frames,omitempty"`   // frames per evaluation window

	// Device identity recorded with every database row
	DeviceID *string `json:"device_id,omitempty"`

	// Chirp configuration file sent to the sensor CLI port on startup
	ChirpConfigPath *string `json:"chirp_config_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultTuningConfig returns a TuningConfig populated with the default
// values for every field.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		BandHalfWidth: ptrFloat64(0.5),
		WindowFrames:  ptrInt(20),
		DeviceID:      ptrString("mmwave-0"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON file fall back to defaults, so partial
// configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.BandHalfWidth != nil {
		if *c.BandHalfWidth <= 0 {
			return fmt.Errorf("band_half_width must be positive, got %f", *c.BandHalfWidth)
		}
	}

	if c.WindowFrames != nil {
		if *c.WindowFrames < 1 {
			return fmt.Errorf("window_frames must be at least 1, got %d", *c.WindowFrames)
		}
	}

	if c.DeviceID != nil && *c.DeviceID == "" {
		return fmt.Errorf("device_id must not be empty when set")
	}

	return nil
}

// GetBandHalfWidth returns the band_half_width value or the default.
func (c *TuningConfig) GetBandHalfWidth() float64 {
	if c.BandHalfWidth == nil {
		return 0.5 // default
	}
	return *c.BandHalfWidth
}

// GetWindowFrames returns the window_frames value or the default.
func (c *TuningConfig) GetWindowFrames() int {
	if c.WindowFrames == nil {
		return 20 // default
	}
	return *c.WindowFrames
}

// GetDeviceID returns the device_id value or the default.
func (c *TuningConfig) GetDeviceID() string {
	if c.DeviceID == nil || *c.DeviceID == "" {
		return "mmwave-0" // default
	}
	return *c.DeviceID
}

// GetChirpConfigPath returns the chirp_config_path value, or empty when no
// chirp configuration should be sent.
func (c *TuningConfig) GetChirpConfigPath() string {
	if c.ChirpConfigPath == nil {
		return ""
	}
	return *c.ChirpConfigPath
}
