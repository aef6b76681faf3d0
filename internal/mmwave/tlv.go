package mmwave

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// TLV type tags used by the people-counting firmware.
const (
	TypePointCloud  = 6 // 2D point cloud: range/azimuth/doppler/snr per point
	TypeTargetList  = 7 // tracked target list with kinematics and covariance
	TypeTargetIndex = 8 // per-point target assignment indices
)

// ErrMalformedRecord indicates a TLV whose declared length is not an exact
// multiple of its fixed element size. The record is skipped by its declared
// length so subsequent records stay aligned; its payload is unusable.
var ErrMalformedRecord = errors.New("mmwave: malformed TLV record")

// PointCloud holds the detected points of one frame as parallel columns,
// matching the wire layout of TLV type 6.
type PointCloud struct {
	Range   []float32 // radial distance, device units
	Azimuth []float32 // azimuth angle, radians
	Doppler []float32 // radial velocity, device units
	SNR     []float32 // detection signal-to-noise ratio
}

// NumPoints returns the number of decoded points.
func (pc *PointCloud) NumPoints() int { return len(pc.Range) }

// Target is one tracked object from a TLV type 7 record.
type Target struct {
	ID   uint32
	PosX float32
	PosY float32
	VelX float32
	VelY float32
	AccX float32
	AccY float32
	// EC holds the 3×3 error covariance matrix in row-major order.
	EC [9]float32
	// Gain is the tracker gain for this target.
	Gain float32
}

// ErrorCovariance returns the target's 3×3 error covariance matrix.
func (t Target) ErrorCovariance() *mat.Dense {
	data := make([]float64, len(t.EC))
	for i, v := range t.EC {
		data[i] = float64(v)
	}
	return mat.NewDense(3, 3, data)
}

// decodePointCloud decodes a TLV type 6 payload into parallel float columns.
// The payload must be an exact multiple of PointLength.
func decodePointCloud(payload []byte) (*PointCloud, error) {
	if len(payload)%PointLength != 0 {
		return nil, fmt.Errorf("%w: point cloud payload %d bytes is not a multiple of %d",
			ErrMalformedRecord, len(payload), PointLength)
	}

	n := len(payload) / PointLength
	pc := &PointCloud{
		Range:   make([]float32, n),
		Azimuth: make([]float32, n),
		Doppler: make([]float32, n),
		SNR:     make([]float32, n),
	}
	for i := 0; i < n; i++ {
		off := i * PointLength
		pc.Range[i] = float32At(payload, off)
		pc.Azimuth[i] = float32At(payload, off+4)
		pc.Doppler[i] = float32At(payload, off+8)
		pc.SNR[i] = float32At(payload, off+12)
	}
	return pc, nil
}

// decodeTargetList decodes a TLV type 7 payload into target records. The
// payload must be an exact multiple of TargetLength.
func decodeTargetList(payload []byte) ([]Target, error) {
	if len(payload)%TargetLength != 0 {
		return nil, fmt.Errorf("%w: target list payload %d bytes is not a multiple of %d",
			ErrMalformedRecord, len(payload), TargetLength)
	}

	n := len(payload) / TargetLength
	targets := make([]Target, n)
	for i := 0; i < n; i++ {
		off := i * TargetLength
		t := Target{
			ID:   binary.LittleEndian.Uint32(payload[off : off+4]),
			PosX: float32At(payload, off+4),
			PosY: float32At(payload, off+8),
			VelX: float32At(payload, off+12),
			VelY: float32At(payload, off+16),
			AccX: float32At(payload, off+20),
			AccY: float32At(payload, off+24),
		}
		for j := 0; j < 9; j++ {
			t.EC[j] = float32At(payload, off+28+j*4)
		}
		t.Gain = float32At(payload, off+64)
		targets[i] = t
	}
	return targets, nil
}

// decodeTargetIndex copies a TLV type 8 payload: one byte per point mapping
// it to the target it was associated with.
func decodeTargetIndex(payload []byte) []uint8 {
	indices := make([]uint8, len(payload))
	copy(indices, payload)
	return indices
}

// float32At reads a little-endian IEEE-754 32-bit float at offset off.
func float32At(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
}
