package mmwave

// Occupancy tracking defaults. The central band straddles the doorway the
// sensor watches; a target's x-position crossing zero inside the band is an
// entry or exit depending on direction.
const (
	// DefaultBandHalfWidth bounds the |x| band (metres) inside which target
	// positions are accumulated.
	DefaultBandHalfWidth = 0.5

	// DefaultWindowFrames is the evaluation cadence: histories are scanned
	// for crossings whenever the frame number is a multiple of this.
	DefaultWindowFrames = 20
)

// OccupancyTracker derives monotonically increasing entered/exited counters
// from decoded target trajectories. It holds no I/O and is driven purely by
// Observe calls; it is not safe for concurrent use.
type OccupancyTracker struct {
	bandHalfWidth float32
	windowFrames  uint32

	// history holds recent banded x-samples per target id.
	history map[uint32][]float32

	entered uint64
	exited  uint64
}

// NewOccupancyTracker returns a tracker with the default band and window.
func NewOccupancyTracker() *OccupancyTracker {
	return NewOccupancyTrackerWith(DefaultBandHalfWidth, DefaultWindowFrames)
}

// NewOccupancyTrackerWith returns a tracker with an explicit band half-width
// and evaluation window. Non-positive arguments fall back to the defaults.
func NewOccupancyTrackerWith(bandHalfWidth float64, windowFrames int) *OccupancyTracker {
	if bandHalfWidth <= 0 {
		bandHalfWidth = DefaultBandHalfWidth
	}
	if windowFrames <= 0 {
		windowFrames = DefaultWindowFrames
	}
	return &OccupancyTracker{
		bandHalfWidth: float32(bandHalfWidth),
		windowFrames:  uint32(windowFrames),
		history:       make(map[uint32][]float32),
	}
}

// Counts returns the current entered and exited totals.
func (ot *OccupancyTracker) Counts() (entered, exited uint64) {
	return ot.entered, ot.exited
}

// Observe feeds one frame's target list into the tracker. Banded x-samples
// are appended to each target's history; on a window boundary every target
// with accumulated samples is evaluated and its history cleared.
//
// Evaluating all qualifying targets per window (rather than stopping at the
// first crossing) means simultaneous crossings by different targets are all
// counted.
func (ot *OccupancyTracker) Observe(frameNumber uint32, targets []Target) {
	for _, t := range targets {
		if t.PosX < -ot.bandHalfWidth || t.PosX > ot.bandHalfWidth {
			continue
		}
		ot.history[t.ID] = append(ot.history[t.ID], t.PosX)
	}

	if frameNumber%ot.windowFrames != 0 {
		return
	}

	for id, samples := range ot.history {
		ot.evaluate(samples)
		delete(ot.history, id)
	}
}

// evaluate scans a sample sequence for the first sign change between
// consecutive samples. The sample before the crossing classifies the
// direction: negative means the target moved inward (entered), nonnegative
// means it moved outward (exited).
func (ot *OccupancyTracker) evaluate(samples []float32) {
	for i := 0; i+1 < len(samples); i++ {
		if (samples[i] >= 0) == (samples[i+1] >= 0) {
			continue
		}
		if samples[i] < 0 {
			ot.entered++
		} else {
			ot.exited++
		}
		return
	}
}
