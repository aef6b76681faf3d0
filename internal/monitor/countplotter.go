package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// CountPlotter records occupancy counts over time for visualization. It
// samples the tracker state once per decoded frame, accumulating time series
// data that can be plotted after a run.
type CountPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	deviceID  string

	samples   []CountSample
	startTime time.Time
}

// CountSample represents one snapshot of the occupancy state.
type CountSample struct {
	FrameNumber uint32
	Timestamp   time.Time
	TargetCount int
	Entered     uint64
	Exited      uint64
}

// NewCountPlotter creates a plotter for the given device.
func NewCountPlotter(deviceID string) *CountPlotter {
	return &CountPlotter{deviceID: deviceID}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/20260824_101500")
func (cp *CountPlotter) Start(outputDir string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	cp.outputDir = outputDir
	cp.enabled = true
	cp.startTime = time.Time{}
	cp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (cp *CountPlotter) Stop() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (cp *CountPlotter) IsEnabled() bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.enabled
}

// Sample captures one frame's occupancy state. Call once per decoded frame.
func (cp *CountPlotter) Sample(frameNumber uint32, targetCount int, entered, exited uint64) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if !cp.enabled {
		return
	}

	now := time.Now()
	if cp.startTime.IsZero() {
		cp.startTime = now
	}

	cp.samples = append(cp.samples, CountSample{
		FrameNumber: frameNumber,
		Timestamp:   now,
		TargetCount: targetCount,
		Entered:     entered,
		Exited:      exited,
	})
}

// GetSampleCount returns the number of samples collected.
func (cp *CountPlotter) GetSampleCount() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.samples)
}

// GetOutputDir returns the current output directory for plots.
func (cp *CountPlotter) GetOutputDir() string {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.outputDir
}

// GeneratePlots creates PNG files for the count history: cumulative
// entry/exit counts and per-frame target counts. Returns the number of plots
// generated and any error.
func (cp *CountPlotter) GeneratePlots() (int, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	if len(cp.samples) == 0 {
		return 0, nil
	}

	if err := cp.generateCountPlot(); err != nil {
		return 0, err
	}
	if err := cp.generateTargetPlot(); err != nil {
		return 1, err
	}

	return 2, nil
}

func (cp *CountPlotter) generateCountPlot() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Cumulative Entry/Exit Counts", cp.deviceID)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Count"

	enteredPts := make(plotter.XYs, 0, len(cp.samples))
	exitedPts := make(plotter.XYs, 0, len(cp.samples))
	for _, s := range cp.samples {
		enteredPts = append(enteredPts, plotter.XY{X: float64(s.FrameNumber), Y: float64(s.Entered)})
		exitedPts = append(exitedPts, plotter.XY{X: float64(s.FrameNumber), Y: float64(s.Exited)})
	}

	enteredLine, err := plotter.NewLine(enteredPts)
	if err != nil {
		return err
	}
	enteredLine.Color = color.RGBA{R: 53, G: 183, B: 121, A: 255}
	enteredLine.Width = vg.Points(1)
	p.Add(enteredLine)
	p.Legend.Add("entered", enteredLine)

	exitedLine, err := plotter.NewLine(exitedPts)
	if err != nil {
		return err
	}
	exitedLine.Color = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	exitedLine.Width = vg.Points(1)
	p.Add(exitedLine)
	p.Legend.Add("exited", exitedLine)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	outFile := filepath.Join(cp.outputDir, "occupancy_counts.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, outFile); err != nil {
		return fmt.Errorf("save counts plot: %w", err)
	}
	return nil
}

func (cp *CountPlotter) generateTargetPlot() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Targets per Frame", cp.deviceID)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Targets"

	pts := make(plotter.XYs, 0, len(cp.samples))
	for _, s := range cp.samples {
		pts = append(pts, plotter.XY{X: float64(s.FrameNumber), Y: float64(s.TargetCount)})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("targets", line)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	outFile := filepath.Join(cp.outputDir, "targets_per_frame.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, outFile); err != nil {
		return fmt.Errorf("save targets plot: %w", err)
	}
	return nil
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for plots.
func MakePlotOutputDir(baseDir string) string {
	return filepath.Join(baseDir, FormatTimestamp(time.Now()))
}
