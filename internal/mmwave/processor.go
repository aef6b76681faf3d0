package mmwave

import (
	"encoding/binary"
	"errors"

	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

// ErrTruncatedFrame indicates a TLV sub-header or payload claimed more bytes
// than the declared packet contains. The frame is unrecoverable because the
// overrun makes every following record offset untrustworthy.
var ErrTruncatedFrame = errors.New("mmwave: truncated frame")

// Status tags the outcome of one Ingest call.
type Status int

const (
	// StatusNoData means insufficient bytes are buffered for a header or a
	// complete frame. Not an error; call again when more bytes arrive.
	StatusNoData Status = iota

	// StatusFrame means exactly one complete frame was decoded.
	StatusFrame

	// StatusTruncated means the buffered frame was corrupt. All buffered
	// bytes were discarded; the next call re-seeks the magic word.
	StatusTruncated

	// StatusBufferOverflow means the incoming chunk would have exceeded the
	// buffer capacity and was dropped. Existing buffered bytes are intact.
	StatusBufferOverflow
)

func (s Status) String() string {
	switch s {
	case StatusNoData:
		return "no_data"
	case StatusFrame:
		return "frame"
	case StatusTruncated:
		return "truncated"
	case StatusBufferOverflow:
		return "buffer_overflow"
	default:
		return "unknown"
	}
}

// Frame is one fully decoded frame. Sub-record fields are nil when the
// corresponding TLV was absent (or malformed and skipped).
type Frame struct {
	Header  FrameHeader
	Points  *PointCloud
	Targets []Target
	Indices []uint8
}

// Result is the outcome of one Ingest call.
type Result struct {
	Status Status

	// Frame is set only when Status is StatusFrame.
	Frame *Frame

	// MalformedTLVs counts records inside the decoded frame whose payloads
	// were skipped because their length was not a multiple of the record's
	// element size.
	MalformedTLVs int

	// DroppedBytes counts bytes discarded by this call: the rejected chunk
	// on overflow, or the flushed buffer on truncation.
	DroppedBytes int
}

// FrameProcessor owns the accumulation buffer and the occupancy tracker.
// All state is explicit and per-instance; callers with multiple ingestion
// sources must serialize their Ingest calls.
type FrameProcessor struct {
	buf     FrameBuffer
	tracker *OccupancyTracker
}

// NewFrameProcessor returns a processor with default occupancy tuning.
func NewFrameProcessor() *FrameProcessor {
	return &FrameProcessor{tracker: NewOccupancyTracker()}
}

// NewFrameProcessorWith returns a processor using the provided tracker.
func NewFrameProcessorWith(tracker *OccupancyTracker) *FrameProcessor {
	if tracker == nil {
		tracker = NewOccupancyTracker()
	}
	return &FrameProcessor{tracker: tracker}
}

// Tracker exposes the occupancy tracker for count queries.
func (p *FrameProcessor) Tracker() *OccupancyTracker { return p.tracker }

// Buffered returns the number of bytes currently accumulated.
func (p *FrameProcessor) Buffered() int { return p.buf.Len() }

// Ingest appends newly read bytes and attempts to decode one frame. Chunks
// may split frames at any byte boundary; the decoder is invariant to
// fragmentation. At most one frame is returned per call even when several
// complete frames are buffered; the remainder is decoded by later calls.
//
// The occupancy tracker is updated only when a frame decodes fully and
// carries a target list, so a failed decode never half-applies counters.
func (p *FrameProcessor) Ingest(chunk []byte) Result {
	if !p.buf.Append(chunk) {
		return Result{Status: StatusBufferOverflow, DroppedBytes: len(chunk)}
	}

	if p.buf.Len() < HeaderLength {
		return Result{Status: StatusNoData}
	}

	syncs := p.buf.FindSync()
	if len(syncs) == 0 {
		return Result{Status: StatusNoData}
	}
	if syncs[0] > 0 {
		p.buf.DiscardBefore(syncs[0])
	}

	header, err := decodeHeader(p.buf.Bytes())
	if err != nil {
		return Result{Status: StatusNoData}
	}

	// A declared length the buffer can never hold would defer forever while
	// every later chunk is dropped as overflow. Flush and resync instead of
	// wedging on the corrupt length.
	if header.TotalPacketLength > BufferCapacity {
		dropped := p.buf.Len()
		p.buf.Reset()
		return Result{Status: StatusTruncated, DroppedBytes: dropped}
	}

	if !p.buf.ReadyForDecode(header.TotalPacketLength) {
		return Result{Status: StatusNoData}
	}

	// A declared length shorter than the header itself cannot be a real
	// frame; treat it like any other corrupt frame.
	if header.TotalPacketLength < HeaderLength {
		dropped := p.buf.Len()
		p.buf.Reset()
		return Result{Status: StatusTruncated, DroppedBytes: dropped}
	}

	frame, malformed, err := decodeFrame(p.buf.Bytes()[:header.TotalPacketLength], header)
	if err != nil {
		// The overrunning record's true extent is unknown, so discarding up
		// to "end of frame" is impossible. Flush everything and re-seek the
		// next magic word on the following call instead of looping on the
		// same corrupt bytes.
		dropped := p.buf.Len()
		p.buf.Reset()
		return Result{Status: StatusTruncated, DroppedBytes: dropped}
	}

	if frame.Targets != nil {
		p.tracker.Observe(header.FrameNumber, frame.Targets)
	}
	p.buf.Consume(int(header.TotalPacketLength))

	return Result{Status: StatusFrame, Frame: frame, MalformedTLVs: malformed}
}

// decodeFrame parses the TLV records of a fully buffered frame. data spans
// exactly the declared packet, header included. It returns the number of
// malformed (skipped) records alongside the frame.
func decodeFrame(data []byte, header FrameHeader) (*Frame, int, error) {
	frame := &Frame{Header: header}
	cursor := HeaderLength
	total := len(data)
	malformed := 0

	for i := 0; i < int(header.NumTLVs); i++ {
		if cursor+TLVHeaderLength > total {
			return nil, 0, ErrTruncatedFrame
		}
		tlvType := binary.LittleEndian.Uint32(data[cursor : cursor+4])
		tlvLength := binary.LittleEndian.Uint32(data[cursor+4 : cursor+8])
		cursor += TLVHeaderLength

		// The declared length includes the 8-byte sub-header.
		if tlvLength < TLVHeaderLength {
			return nil, 0, ErrTruncatedFrame
		}
		payloadLen := int(tlvLength) - TLVHeaderLength
		if cursor+payloadLen > total {
			return nil, 0, ErrTruncatedFrame
		}
		payload := data[cursor : cursor+payloadLen]

		switch tlvType {
		case TypePointCloud:
			pc, err := decodePointCloud(payload)
			if err != nil {
				malformed++
			} else {
				frame.Points = pc
			}
		case TypeTargetList:
			targets, err := decodeTargetList(payload)
			if err != nil {
				malformed++
			} else {
				frame.Targets = targets
			}
		case TypeTargetIndex:
			frame.Indices = decodeTargetIndex(payload)
		default:
			// Unknown type: the payload is still skipped by its declared
			// length so every following record stays aligned.
		}
		cursor += payloadLen
	}

	if cursor != total {
		// Firmware pads some frames past the last record; tolerated, the
		// buffer is consumed by the declared total either way.
		monitoring.Logf("mmwave: frame %d consumed %d of %d declared bytes",
			header.FrameNumber, cursor, total)
	}

	return frame, malformed, nil
}
