package mmwave

import (
	"encoding/binary"
	"errors"
)

// ErrIncompleteHeader indicates fewer than HeaderLength bytes were
// available. This is a wait-for-more-input condition, not a decode failure.
var ErrIncompleteHeader = errors.New("mmwave: incomplete frame header")

// FrameHeader is the fixed 52-byte header at the start of every frame.
// All multi-byte fields are little-endian.
type FrameHeader struct {
	Magic             [8]byte
	Version           uint32
	Platform          uint32
	Timestamp         uint32
	TotalPacketLength uint32
	FrameNumber       uint32
	SubFrameNumber    uint32
	ChirpMargin       uint32
	FrameMargin       uint32
	UARTSentTime      uint32
	TrackProcessTime  uint32
	NumTLVs           uint16
	Checksum          uint16
}

// decodeHeader parses the fixed header fields at their fixed byte offsets.
// The caller is expected to have verified the magic word prefix.
func decodeHeader(data []byte) (FrameHeader, error) {
	var h FrameHeader
	if len(data) < HeaderLength {
		return h, ErrIncompleteHeader
	}

	copy(h.Magic[:], data[0:8])
	h.Version = binary.LittleEndian.Uint32(data[8:12])
	h.Platform = binary.LittleEndian.Uint32(data[12:16])
	h.Timestamp = binary.LittleEndian.Uint32(data[16:20])
	h.TotalPacketLength = binary.LittleEndian.Uint32(data[20:24])
	h.FrameNumber = binary.LittleEndian.Uint32(data[24:28])
	h.SubFrameNumber = binary.LittleEndian.Uint32(data[28:32])
	h.ChirpMargin = binary.LittleEndian.Uint32(data[32:36])
	h.FrameMargin = binary.LittleEndian.Uint32(data[36:40])
	h.UARTSentTime = binary.LittleEndian.Uint32(data[40:44])
	h.TrackProcessTime = binary.LittleEndian.Uint32(data[44:48])
	h.NumTLVs = binary.LittleEndian.Uint16(data[48:50])
	h.Checksum = binary.LittleEndian.Uint16(data[50:52])

	return h, nil
}
