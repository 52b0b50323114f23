package protocol

import (
	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/logging"
)

// maxFrameOverhead is the largest possible frame header: 2 header bytes,
// 8 extended-length bytes, 4 mask-key bytes
const maxFrameOverhead = 14

// Assembler turns arbitrary socket read chunks back into whole frames. The
// relay is free to pack several frames into one TCP segment or split one
// frame across many, so the accumulator grows until DecodeFrame can consume
// from its front.
//
// Control frames never reach the caller: a Ping is answered by queueing a
// ready-to-write Pong with the same payload, and a Close raises a flag the
// supervisor polls. Frames already assembled from the same read are still
// returned even when a Close follows them.
type Assembler struct {
	buf       []byte
	maxFrame  int
	maxBuffer int
	pongs     [][]byte
	closeSeen bool
}

// NewAssembler creates an assembler with the given frame and accumulator
// caps. A buffer smaller than one maximal frame still works: frames that
// outgrow it are sacrificed to the cap and the stream resynchronizes on
// later bytes.
func NewAssembler(maxFrame, maxBuffer int) *Assembler {
	if maxBuffer < 2*maxFrameOverhead {
		maxBuffer = 2 * maxFrameOverhead
	}
	return &Assembler{
		maxFrame:  maxFrame,
		maxBuffer: maxBuffer,
	}
}

// Feed appends p to the accumulator and returns every frame that is now
// complete, in arrival order. On an unparseable header the whole accumulator
// is discarded so the stream can resynchronize on later bytes.
func (a *Assembler) Feed(p []byte) []Frame {
	a.buf = append(a.buf, p...)

	var out []Frame
	for len(a.buf) > 0 {
		frame, consumed, status := DecodeFrame(a.buf, a.maxFrame)
		switch status {
		case DecodeComplete:
			a.buf = a.buf[consumed:]
			a.dispatch(frame, &out)

		case DecodeIncomplete:
			a.enforceCap()
			return out

		case DecodeInvalid:
			logging.Warn("Discarding unparseable accumulator",
				zap.Int("bytes", len(a.buf)),
			)
			a.buf = nil
			return out
		}
	}
	return out
}

// dispatch routes one decoded frame: control frames are handled here, data
// frames are appended to out
func (a *Assembler) dispatch(frame Frame, out *[]Frame) {
	logging.LogFrame("received", frame.Opcode, frame.Payload)

	switch frame.Opcode {
	case OpcodePing:
		pong, err := EncodeFrame(OpcodePong, frame.Payload, true, a.maxFrame)
		if err != nil {
			logging.Warn("Failed to encode pong", zap.Error(err))
			return
		}
		a.pongs = append(a.pongs, pong)

	case OpcodePong:
		// Nothing to deliver; the relay answered a keepalive

	case OpcodeClose:
		a.closeSeen = true

	case OpcodeContinuation:
		// The channel relay sends whole logical messages only
		logging.Warn("Ignoring continuation frame",
			zap.Int("length", len(frame.Payload)),
		)

	default:
		*out = append(*out, frame)
	}
}

// enforceCap drops the oldest accumulated bytes once the buffer exceeds its
// cap without containing a complete frame. Newer bytes are kept: they are
// the ones most likely to hold the tail of the still-incoming frame.
func (a *Assembler) enforceCap() {
	if len(a.buf) <= a.maxBuffer {
		return
	}
	keep := a.maxBuffer / 2
	dropped := len(a.buf) - keep
	a.buf = append([]byte(nil), a.buf[len(a.buf)-keep:]...)
	logging.Warn("Accumulator over cap, dropping oldest bytes",
		zap.Int("dropped", dropped),
		zap.Int("kept", keep),
	)
}

// PendingPongs drains the queue of encoded pong frames awaiting write
func (a *Assembler) PendingPongs() [][]byte {
	pongs := a.pongs
	a.pongs = nil
	return pongs
}

// CloseReceived reports whether the relay has sent a Close frame
func (a *Assembler) CloseReceived() bool {
	return a.closeSeen
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// Reset clears all per-connection state; called on disconnect so a new
// connection starts from a clean stream
func (a *Assembler) Reset() {
	a.buf = nil
	a.pongs = nil
	a.closeSeen = false
}
