package mmwave

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ingestAll(t *testing.T, p *FrameProcessor, chunks [][]byte) []Result {
	t.Helper()
	results := make([]Result, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, p.Ingest(chunk))
	}
	return results
}

func frameResults(results []Result) []*Frame {
	var frames []*Frame
	for _, r := range results {
		if r.Status == StatusFrame {
			frames = append(frames, r.Frame)
		}
	}
	return frames
}

// splitBytes splits data into chunks of at most size bytes.
func splitBytes(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

func TestIngestEndToEnd(t *testing.T) {
	frame := buildFrame(5, buildPointCloudTLV([][4]float32{
		{1.0, 0.1, 0.0, 10.0},
		{2.5, -0.1, 0.0, 12.0},
	}))

	p := NewFrameProcessor()
	res := p.Ingest(frame)

	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want frame", res.Status)
	}
	if res.Frame.Header.Version != 1 {
		t.Errorf("version = %d, want 1", res.Frame.Header.Version)
	}
	if res.Frame.Header.FrameNumber != 5 {
		t.Errorf("frameNumber = %d, want 5", res.Frame.Header.FrameNumber)
	}
	if res.Frame.Header.NumTLVs != 1 {
		t.Errorf("numTLVs = %d, want 1", res.Frame.Header.NumTLVs)
	}

	pc := res.Frame.Points
	if pc == nil || pc.NumPoints() != 2 {
		t.Fatalf("points = %+v, want 2 points", pc)
	}
	const eps = 1e-6
	checks := []struct {
		name      string
		got, want float32
	}{
		{"range[0]", pc.Range[0], 1.0},
		{"range[1]", pc.Range[1], 2.5},
		{"azimuth[0]", pc.Azimuth[0], 0.1},
		{"azimuth[1]", pc.Azimuth[1], -0.1},
		{"snr[0]", pc.SNR[0], 10.0},
		{"snr[1]", pc.SNR[1], 12.0},
	}
	for _, c := range checks {
		if diff := c.got - c.want; diff > eps || diff < -eps {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if res.Frame.Targets != nil || res.Frame.Indices != nil {
		t.Error("absent TLVs should decode to nil fields")
	}
	if p.Buffered() != 0 {
		t.Errorf("buffered = %d after full frame consumed, want 0", p.Buffered())
	}
}

func TestFragmentationInvariance(t *testing.T) {
	frame := buildFrame(7,
		buildPointCloudTLV([][4]float32{{3.2, 0.4, -0.1, 21.0}}),
		buildTargetListTLV([]Target{{ID: 1, PosX: 0.2, PosY: 1.5}}),
		buildTargetIndexTLV([]uint8{0}),
	)

	whole := NewFrameProcessor().Ingest(frame)
	if whole.Status != StatusFrame {
		t.Fatalf("whole-frame ingest status = %v, want frame", whole.Status)
	}

	for _, chunkSize := range []int{1, 2, 3, 7, 51, 52, 53, len(frame) - 1} {
		p := NewFrameProcessor()
		results := ingestAll(t, p, splitBytes(frame, chunkSize))
		frames := frameResults(results)

		if len(frames) != 1 {
			t.Fatalf("chunk size %d: decoded %d frames, want exactly 1", chunkSize, len(frames))
		}
		if diff := cmp.Diff(whole.Frame, frames[0]); diff != "" {
			t.Errorf("chunk size %d: frame mismatch (-whole +chunked):\n%s", chunkSize, diff)
		}
		// Every non-frame outcome along the way must be NoData.
		for i, r := range results {
			if r.Status != StatusFrame && r.Status != StatusNoData {
				t.Errorf("chunk size %d: result %d status = %v", chunkSize, i, r.Status)
			}
		}
	}
}

func TestSyncRecovery(t *testing.T) {
	garbage := []byte{0xde, 0xad, 2, 1, 4, 0xbe, 0xef, 2} // includes a false partial marker
	frame := buildFrame(20, buildTargetListTLV([]Target{{ID: 2, PosX: -0.3}}))

	p := NewFrameProcessor()
	res := p.Ingest(append(garbage, frame...))

	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want frame", res.Status)
	}
	if res.Frame.Header.FrameNumber != 20 {
		t.Errorf("frameNumber = %d, want 20", res.Frame.Header.FrameNumber)
	}
	if len(res.Frame.Targets) != 1 || res.Frame.Targets[0].ID != 2 {
		t.Fatalf("targets = %+v, want the single valid frame's target", res.Frame.Targets)
	}
}

func TestBufferOverflowDropsChunkOnly(t *testing.T) {
	p := NewFrameProcessor()

	partial := buildFrame(3, buildPointCloudTLV([][4]float32{{1, 0, 0, 5}}))
	head, tail := partial[:10], partial[10:]

	if res := p.Ingest(head); res.Status != StatusNoData {
		t.Fatalf("partial ingest status = %v, want no_data", res.Status)
	}

	res := p.Ingest(make([]byte, BufferCapacity))
	if res.Status != StatusBufferOverflow {
		t.Fatalf("status = %v, want buffer_overflow", res.Status)
	}
	if res.DroppedBytes != BufferCapacity {
		t.Errorf("DroppedBytes = %d, want %d", res.DroppedBytes, BufferCapacity)
	}

	// The buffered prefix survived the drop; completing it decodes a frame.
	if res := p.Ingest(tail); res.Status != StatusFrame {
		t.Fatalf("post-overflow ingest status = %v, want frame", res.Status)
	}
}

func TestTruncatedTLVDiscardsBuffer(t *testing.T) {
	frame := buildFrame(4, buildPointCloudTLV([][4]float32{{1, 0, 0, 5}}))
	// Corrupt the TLV's declared length so the payload overruns the packet.
	binary.LittleEndian.PutUint32(frame[HeaderLength+4:HeaderLength+8], 4096)

	p := NewFrameProcessor()
	res := p.Ingest(frame)

	if res.Status != StatusTruncated {
		t.Fatalf("status = %v, want truncated", res.Status)
	}
	if res.DroppedBytes == 0 {
		t.Error("truncated result should report dropped bytes")
	}
	if p.Buffered() != 0 {
		t.Fatalf("buffered = %d after truncation, want 0", p.Buffered())
	}

	// Decoder resynchronizes on the next valid frame.
	valid := buildFrame(5, buildTargetListTLV([]Target{{ID: 1, PosX: 0.1}}))
	if res := p.Ingest(valid); res.Status != StatusFrame {
		t.Fatalf("post-truncation status = %v, want frame", res.Status)
	}
}

func TestOversizedDeclaredLengthFlushesBuffer(t *testing.T) {
	frame := buildFrame(11, buildPointCloudTLV([][4]float32{{1, 0, 0, 5}}))
	// Corrupt the declared total so no buffer could ever hold the frame.
	binary.LittleEndian.PutUint32(frame[20:24], uint32(BufferCapacity+1000))

	p := NewFrameProcessor()
	res := p.Ingest(frame)

	if res.Status != StatusTruncated {
		t.Fatalf("status = %v, want truncated", res.Status)
	}
	if p.Buffered() != 0 {
		t.Fatalf("buffered = %d after oversized declared length, want 0", p.Buffered())
	}

	// The stream must keep decoding: a wedged processor would defer forever
	// and drop everything after it as overflow.
	for frameNumber := uint32(12); frameNumber < 16; frameNumber++ {
		valid := buildFrame(frameNumber, buildTargetListTLV([]Target{{ID: 1, PosX: 0.1}}))
		res := p.Ingest(valid)
		if res.Status != StatusFrame {
			t.Fatalf("frame %d status = %v, want frame", frameNumber, res.Status)
		}
		if res.Frame.Header.FrameNumber != frameNumber {
			t.Fatalf("decoded frame %d, want %d", res.Frame.Header.FrameNumber, frameNumber)
		}
	}
}

func TestTruncatedFrameDoesNotUpdateTracker(t *testing.T) {
	frame := buildFrame(20,
		buildTargetListTLV([]Target{{ID: 1, PosX: -0.2}}),
		buildPointCloudTLV([][4]float32{{1, 0, 0, 5}}),
	)
	// Corrupt the second TLV so decoding fails after the target list was read.
	off := HeaderLength + TLVHeaderLength + TargetLength
	binary.LittleEndian.PutUint32(frame[off+4:off+8], 4096)

	p := NewFrameProcessor()
	if res := p.Ingest(frame); res.Status != StatusTruncated {
		t.Fatalf("status = %v, want truncated", res.Status)
	}

	entered, exited := p.Tracker().Counts()
	if entered != 0 || exited != 0 {
		t.Fatalf("counters = %d/%d after failed decode, want 0/0", entered, exited)
	}
	if len(p.Tracker().history) != 0 {
		t.Fatal("tracker history populated by a frame that failed to decode")
	}
}

func TestUnknownTLVPayloadSkipped(t *testing.T) {
	unknown := buildTLV(99, make([]byte, 13)) // odd size, unknown type
	points := buildPointCloudTLV([][4]float32{{2.0, 0.3, 0.1, 15.0}})
	frame := buildFrame(6, unknown, points)

	res := NewFrameProcessor().Ingest(frame)
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want frame", res.Status)
	}
	// The record after the unknown TLV must still be aligned and decodable.
	if res.Frame.Points == nil || res.Frame.Points.NumPoints() != 1 {
		t.Fatalf("points = %+v, want 1 point after skipped unknown TLV", res.Frame.Points)
	}
	if res.Frame.Points.Range[0] != 2.0 {
		t.Errorf("range[0] = %v, want 2.0", res.Frame.Points.Range[0])
	}
}

func TestMalformedRecordSkippedAndDecodeContinues(t *testing.T) {
	badPoints := buildTLV(TypePointCloud, make([]byte, 10)) // not a multiple of 16
	targets := buildTargetListTLV([]Target{{ID: 4, PosX: 0.4, PosY: 3.0}})
	frame := buildFrame(8, badPoints, targets)

	res := NewFrameProcessor().Ingest(frame)
	if res.Status != StatusFrame {
		t.Fatalf("status = %v, want frame", res.Status)
	}
	if res.MalformedTLVs != 1 {
		t.Errorf("MalformedTLVs = %d, want 1", res.MalformedTLVs)
	}
	if res.Frame.Points != nil {
		t.Error("malformed point cloud should decode to an absent payload")
	}
	if len(res.Frame.Targets) != 1 || res.Frame.Targets[0].ID != 4 {
		t.Fatalf("targets = %+v, want the record after the malformed one", res.Frame.Targets)
	}
}

func TestOneFramePerCall(t *testing.T) {
	a := buildFrame(1, buildPointCloudTLV([][4]float32{{1, 0, 0, 5}}))
	b := buildFrame(2, buildPointCloudTLV([][4]float32{{2, 0, 0, 6}}))

	p := NewFrameProcessor()
	res := p.Ingest(append(a, b...))
	if res.Status != StatusFrame || res.Frame.Header.FrameNumber != 1 {
		t.Fatalf("first call = %+v, want frame 1", res)
	}

	res = p.Ingest(nil)
	if res.Status != StatusFrame || res.Frame.Header.FrameNumber != 2 {
		t.Fatalf("second call = %+v, want frame 2", res)
	}

	if res := p.Ingest(nil); res.Status != StatusNoData {
		t.Fatalf("third call status = %v, want no_data", res.Status)
	}
}

func TestTargetListUpdatesTracker(t *testing.T) {
	p := NewFrameProcessor()

	// Entry trajectory across one evaluation window.
	for i, x := range []float32{-0.3, -0.1, 0.2} {
		frameNumber := uint32(18 + i) // evaluation lands on frame 20
		frame := buildFrame(frameNumber, buildTargetListTLV([]Target{{ID: 1, PosX: x}}))
		if res := p.Ingest(frame); res.Status != StatusFrame {
			t.Fatalf("frame %d status = %v", frameNumber, res.Status)
		}
	}

	entered, exited := p.Tracker().Counts()
	if entered != 1 || exited != 0 {
		t.Fatalf("counters = %d/%d, want 1 entered, 0 exited", entered, exited)
	}
}

func TestDeclaredLengthShorterThanHeader(t *testing.T) {
	frame := buildFrame(9)
	binary.LittleEndian.PutUint32(frame[20:24], 12) // bogus total shorter than header

	p := NewFrameProcessor()
	if res := p.Ingest(frame); res.Status != StatusTruncated {
		t.Fatalf("status = %v, want truncated", res.Status)
	}
}
