package mmwave

import (
	"encoding/binary"
	"math"
)

// Test helpers for constructing synthetic frames byte-for-byte as the
// sensor firmware would emit them.

func putF32(dst []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(v))
}

// buildTLV wraps a payload in a type/length sub-header. The declared length
// includes the 8-byte sub-header itself.
func buildTLV(tlvType uint32, payload []byte) []byte {
	tlv := make([]byte, TLVHeaderLength+len(payload))
	binary.LittleEndian.PutUint32(tlv[0:4], tlvType)
	binary.LittleEndian.PutUint32(tlv[4:8], uint32(TLVHeaderLength+len(payload)))
	copy(tlv[TLVHeaderLength:], payload)
	return tlv
}

// buildPointCloudTLV encodes points as [range, azimuth, doppler, snr] rows.
func buildPointCloudTLV(points [][4]float32) []byte {
	payload := make([]byte, len(points)*PointLength)
	for i, p := range points {
		off := i * PointLength
		for j, v := range p {
			putF32(payload, off+j*4, v)
		}
	}
	return buildTLV(TypePointCloud, payload)
}

// buildTargetListTLV encodes targets in the 68-byte wire layout.
func buildTargetListTLV(targets []Target) []byte {
	payload := make([]byte, len(targets)*TargetLength)
	for i, tgt := range targets {
		off := i * TargetLength
		binary.LittleEndian.PutUint32(payload[off:off+4], tgt.ID)
		putF32(payload, off+4, tgt.PosX)
		putF32(payload, off+8, tgt.PosY)
		putF32(payload, off+12, tgt.VelX)
		putF32(payload, off+16, tgt.VelY)
		putF32(payload, off+20, tgt.AccX)
		putF32(payload, off+24, tgt.AccY)
		for j, v := range tgt.EC {
			putF32(payload, off+28+j*4, v)
		}
		putF32(payload, off+64, tgt.Gain)
	}
	return buildTLV(TypeTargetList, payload)
}

func buildTargetIndexTLV(indices []uint8) []byte {
	return buildTLV(TypeTargetIndex, indices)
}

// buildFrame assembles a complete frame: magic word, header with the
// computed total packet length, and the given TLVs.
func buildFrame(frameNumber uint32, tlvs ...[]byte) []byte {
	total := HeaderLength
	for _, tlv := range tlvs {
		total += len(tlv)
	}

	frame := make([]byte, 0, total)
	header := make([]byte, HeaderLength)
	copy(header[0:8], magicWord[:])
	binary.LittleEndian.PutUint32(header[8:12], 1)                    // version
	binary.LittleEndian.PutUint32(header[12:16], 0xA6843)             // platform
	binary.LittleEndian.PutUint32(header[16:20], frameNumber*33)      // timestamp
	binary.LittleEndian.PutUint32(header[20:24], uint32(total))       // totalPacketLength
	binary.LittleEndian.PutUint32(header[24:28], frameNumber)         // frameNumber
	binary.LittleEndian.PutUint16(header[48:50], uint16(len(tlvs)))   // numTLVs
	binary.LittleEndian.PutUint16(header[50:52], 0)                   // checksum

	frame = append(frame, header...)
	for _, tlv := range tlvs {
		frame = append(frame, tlv...)
	}
	return frame
}
