package mmwave

// mmWave UART frame geometry constants. These define the fixed wire format
// of the people-counting demo firmware's data-port output.
const (
	// BufferCapacity is the fixed size of the frame accumulation buffer.
	// Matches the device-side UART output buffer so a well-formed frame
	// always fits.
	BufferCapacity = 1 << 15 // 32768 bytes

	// HeaderLength is the fixed frame header size including the magic word.
	HeaderLength = 52

	// TLVHeaderLength is the size of each sub-record's type+length prefix.
	TLVHeaderLength = 8

	// PointLength is the wire size of one detected point (4 × float32).
	PointLength = 16

	// TargetLength is the wire size of one tracked target record:
	// id(4) + kinematics(24) + 3×3 covariance(36) + gain(4).
	TargetLength = 68
)

// magicWord marks the start of every frame in the byte stream.
var magicWord = [8]byte{2, 1, 4, 3, 6, 5, 8, 7}

// FrameBuffer is a fixed-capacity byte accumulator with magic-word
// synchronization. It is owned by a single FrameProcessor and is not safe
// for concurrent use.
type FrameBuffer struct {
	buf    [BufferCapacity]byte
	length int
}

// Len returns the number of buffered bytes.
func (b *FrameBuffer) Len() int { return b.length }

// Bytes returns a view of the buffered bytes. The returned slice aliases
// the internal buffer and is invalidated by the next mutation.
func (b *FrameBuffer) Bytes() []byte { return b.buf[:b.length] }

// Append adds chunk to the buffer. If the chunk would exceed capacity it is
// dropped in its entirety and Append returns false: existing unconsumed
// bytes are never overwritten.
func (b *FrameBuffer) Append(chunk []byte) bool {
	if b.length+len(chunk) > BufferCapacity {
		return false
	}
	copy(b.buf[b.length:], chunk)
	b.length += len(chunk)
	return true
}

// FindSync returns every offset at which the full 8-byte magic word is
// present, in ascending order. Candidate offsets are bounds-checked against
// the current length.
func (b *FrameBuffer) FindSync() []int {
	var offsets []int
	for i := 0; i+len(magicWord) <= b.length; i++ {
		if b.buf[i] != magicWord[0] {
			continue
		}
		match := true
		for j := 1; j < len(magicWord); j++ {
			if b.buf[i+j] != magicWord[j] {
				match = false
				break
			}
		}
		if match {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// DiscardBefore drops the first offset bytes, shifting the remainder to the
// front and zero-filling the vacated tail. Used to remove leading garbage
// once a sync offset is known.
func (b *FrameBuffer) DiscardBefore(offset int) {
	b.Consume(offset)
}

// Consume removes the first n bytes after a frame has been decoded,
// preserving any bytes of the following frame already buffered.
func (b *FrameBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= b.length {
		b.Reset()
		return
	}
	copy(b.buf[:], b.buf[n:b.length])
	remaining := b.length - n
	for i := remaining; i < b.length; i++ {
		b.buf[i] = 0
	}
	b.length = remaining
}

// ReadyForDecode reports whether a frame of the declared total length is
// fully buffered.
func (b *FrameBuffer) ReadyForDecode(totalPacketLength uint32) bool {
	return totalPacketLength > 0 && b.length >= int(totalPacketLength)
}

// Reset empties the buffer and zero-fills it.
func (b *FrameBuffer) Reset() {
	for i := 0; i < b.length; i++ {
		b.buf[i] = 0
	}
	b.length = 0
}
