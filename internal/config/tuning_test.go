package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.BandHalfWidth == nil || *cfg.BandHalfWidth != 0.5 {
		t.Errorf("Expected BandHalfWidth 0.5, got %v", cfg.BandHalfWidth)
	}
	if cfg.WindowFrames == nil || *cfg.WindowFrames != 20 {
		t.Errorf("Expected WindowFrames 20, got %v", cfg.WindowFrames)
	}
	if cfg.DeviceID == nil || *cfg.DeviceID != "mmwave-0" {
		t.Errorf("Expected DeviceID mmwave-0, got %v", cfg.DeviceID)
	}
}

func TestGettersUseDefaultsForNilFields(t *testing.T) {
	cfg := &TuningConfig{}

	if got := cfg.GetBandHalfWidth(); got != 0.5 {
		t.Errorf("GetBandHalfWidth() = %f, want 0.5", got)
	}
	if got := cfg.GetWindowFrames(); got != 20 {
		t.Errorf("GetWindowFrames() = %d, want 20", got)
	}
	if got := cfg.GetDeviceID(); got != "mmwave-0" {
		t.Errorf("GetDeviceID() = %q, want mmwave-0", got)
	}
	if got := cfg.GetChirpConfigPath(); got != "" {
		t.Errorf("GetChirpConfigPath() = %q, want empty", got)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	content := `{"band_half_width": 0.75, "device_id": "lobby-sensor"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if got := cfg.GetBandHalfWidth(); got != 0.75 {
		t.Errorf("GetBandHalfWidth() = %f, want 0.75", got)
	}
	if got := cfg.GetDeviceID(); got != "lobby-sensor" {
		t.Errorf("GetDeviceID() = %q, want lobby-sensor", got)
	}
	// Omitted field keeps its default.
	if got := cfg.GetWindowFrames(); got != 20 {
		t.Errorf("GetWindowFrames() = %d, want default 20", got)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("tuning.yaml"); err == nil {
		t.Error("expected error for non-json extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  TuningConfig
	}{
		{"zero band", TuningConfig{BandHalfWidth: ptrFloat64(0)}},
		{"negative band", TuningConfig{BandHalfWidth: ptrFloat64(-0.5)}},
		{"zero window", TuningConfig{WindowFrames: ptrInt(0)}},
		{"empty device id", TuningConfig{DeviceID: ptrString("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Errorf("Validate(%+v) succeeded, want error", tt.cfg)
			}
		})
	}
}

func TestLoadTuningConfigInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"window_frames": -1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected validation error for negative window_frames")
	}
}
