package serialmux

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMockSerialMuxReplaysFrames(t *testing.T) {
	frame := []byte{2, 1, 4, 3, 6, 5, 8, 7, 0x10, 0x20}
	mux := NewMockSerialMux(frame)
	defer mux.Close()

	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	var got []byte
	deadline := time.After(3 * time.Second)
	for len(got) < len(frame) {
		select {
		case chunk := <-ch:
			got = append(got, chunk...)
		case <-deadline:
			t.Fatalf("timed out: received %d of %d bytes", len(got), len(frame))
		}
	}

	if !bytes.Equal(got[:len(frame)], frame) {
		t.Fatalf("replayed bytes = %x, want %x", got[:len(frame)], frame)
	}
}

func TestTestableSerialPortSetReadTimeout(t *testing.T) {
	port := NewTestableSerialPort()

	// The real data port satisfies TimeoutSerialPorter; the testable port
	// must too so timeout-aware callers can be exercised without hardware.
	var _ TimeoutSerialPorter = port

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		t.Fatalf("SetReadTimeout: %v", err)
	}
	if port.ReadTimeout != 100*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 100ms", port.ReadTimeout)
	}
}

func TestMockSerialPortCapturesWrites(t *testing.T) {
	mux := NewMockSerialMux([]byte{1})
	defer mux.Close()

	if err := mux.SendCommand("sensorStop"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
}
