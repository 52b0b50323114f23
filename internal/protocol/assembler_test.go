package protocol

import (
	"bytes"
	"testing"
)

func mustEncode(t *testing.T, opcode byte, payload []byte, mask bool) []byte {
	t.Helper()
	frame, err := EncodeFrame(opcode, payload, mask, 0)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	return frame
}

// TestAssembler_SplitDelivery cuts one relay frame at every possible byte
// boundary and checks that exactly one identical frame comes out regardless
// of where the split lands.
func TestAssembler_SplitDelivery(t *testing.T) {
	payload := []byte(`{"type":"data","payload":"{\"topic\":\"/controller/status\",\"value\":93}"}`)
	wire := mustEncode(t, OpcodeText, payload, false)

	for cut := 1; cut < len(wire); cut++ {
		asm := NewAssembler(400, 800)

		first := asm.Feed(wire[:cut])
		if len(first) != 0 {
			t.Fatalf("cut %d: got %d frames from partial feed, want 0", cut, len(first))
		}

		second := asm.Feed(wire[cut:])
		if len(second) != 1 {
			t.Fatalf("cut %d: got %d frames after completion, want 1", cut, len(second))
		}
		if !bytes.Equal(second[0].Payload, payload) {
			t.Fatalf("cut %d: payload does not match original", cut)
		}
		if asm.Buffered() != 0 {
			t.Fatalf("cut %d: %d bytes left buffered, want 0", cut, asm.Buffered())
		}
	}
}

// TestAssembler_ByteAtATime drips a frame in one byte per read.
func TestAssembler_ByteAtATime(t *testing.T) {
	payload := []byte("heartbeat")
	wire := mustEncode(t, OpcodeText, payload, false)
	asm := NewAssembler(400, 800)

	var total int
	for i := range wire {
		frames := asm.Feed(wire[i : i+1])
		total += len(frames)
		if i < len(wire)-1 && total != 0 {
			t.Fatalf("frame emitted after %d of %d bytes", i+1, len(wire))
		}
	}
	if total != 1 {
		t.Fatalf("got %d frames, want 1", total)
	}
}

// TestAssembler_PingsAndDataInOneRead packs three pings around one data
// frame the way a busy relay does: one read buffer in, one topic frame out,
// three pongs queued for write.
func TestAssembler_PingsAndDataInOneRead(t *testing.T) {
	var buf []byte
	buf = append(buf, mustEncode(t, OpcodePing, []byte("a"), false)...)
	buf = append(buf, mustEncode(t, OpcodePing, []byte("b"), false)...)
	data := mustEncode(t, OpcodeText, []byte(`{"type":"welcome"}`), false)
	buf = append(buf, data...)
	buf = append(buf, mustEncode(t, OpcodePing, []byte("c"), false)...)

	asm := NewAssembler(400, 800)
	frames := asm.Feed(buf)

	if len(frames) != 1 {
		t.Fatalf("got %d data frames, want 1", len(frames))
	}
	if frames[0].Opcode != OpcodeText {
		t.Errorf("opcode = 0x%x, want text", frames[0].Opcode)
	}

	pongs := asm.PendingPongs()
	if len(pongs) != 3 {
		t.Fatalf("got %d queued pongs, want 3", len(pongs))
	}
	for i, want := range []string{"a", "b", "c"} {
		frame, _, status := DecodeFrame(pongs[i], 400)
		if status != DecodeComplete {
			t.Fatalf("pong %d does not decode: %v", i, status)
		}
		if frame.Opcode != OpcodePong {
			t.Errorf("pong %d opcode = 0x%x, want pong", i, frame.Opcode)
		}
		if !frame.Masked {
			t.Errorf("pong %d must be masked for client-to-relay write", i)
		}
		if string(frame.Payload) != want {
			t.Errorf("pong %d payload = %q, want %q", i, frame.Payload, want)
		}
	}

	// Queue drains once
	if again := asm.PendingPongs(); len(again) != 0 {
		t.Errorf("second drain returned %d pongs, want 0", len(again))
	}
}

// TestAssembler_CloseAfterData checks that a Close frame sharing a read
// buffer with a data frame does not swallow the data.
func TestAssembler_CloseAfterData(t *testing.T) {
	var buf []byte
	data := []byte(`{"type":"data","payload":"{}"}`)
	buf = append(buf, mustEncode(t, OpcodeText, data, false)...)
	buf = append(buf, mustEncode(t, OpcodeClose, nil, false)...)

	asm := NewAssembler(400, 800)
	frames := asm.Feed(buf)

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 delivered before close", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, data) {
		t.Error("data frame payload lost")
	}
	if !asm.CloseReceived() {
		t.Error("CloseReceived() = false after close frame")
	}
}

// TestAssembler_InvalidResynchronizes verifies that junk clears the
// accumulator and a later well-formed frame still gets through.
func TestAssembler_InvalidResynchronizes(t *testing.T) {
	asm := NewAssembler(400, 800)

	// RSV bits set: unparseable, accumulator dropped
	frames := asm.Feed([]byte{0xF1, 0x05, 0x01, 0x02})
	if len(frames) != 0 {
		t.Fatalf("got %d frames from junk, want 0", len(frames))
	}
	if asm.Buffered() != 0 {
		t.Fatalf("accumulator holds %d bytes after invalid input, want 0", asm.Buffered())
	}

	frames = asm.Feed(mustEncode(t, OpcodeText, []byte("ok"), false))
	if len(frames) != 1 || string(frames[0].Payload) != "ok" {
		t.Fatalf("stream did not resynchronize after junk: %v", frames)
	}
}

// TestAssembler_OverflowDropsOldest stalls a frame larger than the
// accumulator cap and checks the bounded-memory policy: the buffer never
// exceeds the cap and the newest bytes are the ones kept.
func TestAssembler_OverflowDropsOldest(t *testing.T) {
	asm := NewAssembler(400, 64)

	// Advertise a 300-byte payload, then trickle bytes without finishing it
	header := []byte{0x81, 126, 0x01, 0x2C}
	if frames := asm.Feed(header); len(frames) != 0 {
		t.Fatal("header alone should not produce frames")
	}

	chunk := make([]byte, 20)
	for i := 0; i < 10; i++ {
		frames := asm.Feed(chunk)
		if len(frames) != 0 {
			t.Fatalf("stalled frame produced %d frames", len(frames))
		}
		if asm.Buffered() > 64 {
			t.Fatalf("accumulator grew to %d bytes, cap is 64", asm.Buffered())
		}
	}

	// The sacrificed frame is gone; the stream recovers on the next clean one
	asm.Reset()
	frames := asm.Feed(mustEncode(t, OpcodeText, []byte("after"), false))
	if len(frames) != 1 || string(frames[0].Payload) != "after" {
		t.Fatalf("assembler unusable after overflow: %v", frames)
	}
}

// TestAssembler_ContinuationSkipped: the relay never fragments, so a stray
// continuation frame is dropped rather than delivered.
func TestAssembler_ContinuationSkipped(t *testing.T) {
	asm := NewAssembler(400, 800)
	frames := asm.Feed(mustEncode(t, OpcodeContinuation, []byte("tail"), false))
	if len(frames) != 0 {
		t.Fatalf("continuation frame delivered: %v", frames)
	}
	if len(asm.PendingPongs()) != 0 {
		t.Error("continuation frame queued a pong")
	}
}

// TestAssembler_PongFromRelayIgnored: a relay pong is consumed silently.
func TestAssembler_PongFromRelayIgnored(t *testing.T) {
	asm := NewAssembler(400, 800)
	frames := asm.Feed(mustEncode(t, OpcodePong, []byte("k"), false))
	if len(frames) != 0 {
		t.Fatalf("pong delivered as data: %v", frames)
	}
	if asm.CloseReceived() {
		t.Error("pong set the close flag")
	}
}

func TestAssembler_Reset(t *testing.T) {
	asm := NewAssembler(400, 800)

	asm.Feed(mustEncode(t, OpcodePing, []byte("x"), false))
	asm.Feed(mustEncode(t, OpcodeClose, nil, false))
	asm.Feed([]byte{0x81, 0x7D}) // dangling header

	asm.Reset()

	if asm.Buffered() != 0 {
		t.Errorf("Buffered() = %d after reset, want 0", asm.Buffered())
	}
	if asm.CloseReceived() {
		t.Error("CloseReceived() = true after reset")
	}
	if len(asm.PendingPongs()) != 0 {
		t.Error("pending pongs survived reset")
	}
}

func BenchmarkAssemblerFeed(b *testing.B) {
	wire := append([]byte{}, 0x81, 0x29)
	wire = append(wire, []byte(`{"topic":"/controller/status","value":93}`)...)

	asm := NewAssembler(400, 800)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asm.Feed(wire)
	}
}
