package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// WebSocket frame opcodes
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

// Frame represents a single WebSocket frame after decoding
type Frame struct {
	FIN     bool
	Opcode  byte
	Masked  bool
	Payload []byte
}

// DecodeStatus is the outcome of a decode attempt against a byte buffer
type DecodeStatus int

const (
	// DecodeComplete means a full frame was decoded and bytes were consumed
	DecodeComplete DecodeStatus = iota
	// DecodeIncomplete means the buffer does not yet hold the whole frame.
	// This is not an error; the caller waits for more bytes.
	DecodeIncomplete
	// DecodeInvalid means the buffer does not start with a parseable frame
	// and the caller should discard its accumulator
	DecodeInvalid
)

// String returns a human-readable name for the decode status
func (s DecodeStatus) String() string {
	switch s {
	case DecodeComplete:
		return "complete"
	case DecodeIncomplete:
		return "incomplete"
	case DecodeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("DecodeStatus(%d)", int(s))
	}
}

// EncodeFrame builds a single WebSocket frame with FIN set. Fragmented sends
// are never produced. When mask is true (mandatory for client-to-relay
// traffic) a random 4-byte key is generated and the payload is XOR-masked.
// Returns an error if the payload exceeds maxSize.
func EncodeFrame(opcode byte, payload []byte, mask bool, maxSize int) ([]byte, error) {
	if maxSize > 0 && len(payload) > maxSize {
		return nil, NewProtocolViolation(fmt.Sprintf("payload length %d exceeds maximum frame size %d", len(payload), maxSize))
	}

	// Header: FIN + opcode, then mask bit + payload length encoding
	frame := make([]byte, 0, 2+8+4+len(payload))
	frame = append(frame, 0x80|opcode)

	maskBit := byte(0)
	if mask {
		maskBit = 0x80
	}

	switch {
	case len(payload) < 126:
		frame = append(frame, maskBit|byte(len(payload)))
	case len(payload) <= 0xFFFF:
		frame = append(frame, maskBit|126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(len(payload)))
	default:
		frame = append(frame, maskBit|127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(len(payload)))
	}

	if !mask {
		return append(frame, payload...), nil
	}

	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate mask key: %w", err)
	}
	frame = append(frame, key[:]...)
	for i := 0; i < len(payload); i++ {
		frame = append(frame, payload[i]^key[i%4])
	}
	return frame, nil
}

// DecodeFrame attempts to decode one frame from the front of buf. On
// DecodeComplete it returns the frame and the number of bytes consumed; the
// payload is copied so the caller may discard consumed bytes. maxSize bounds
// the advertised payload length; anything larger is DecodeInvalid because no
// buffer this engine manages could ever complete it.
func DecodeFrame(buf []byte, maxSize int) (Frame, int, DecodeStatus) {
	var frame Frame

	if len(buf) < 2 {
		return frame, 0, DecodeIncomplete
	}

	// First byte: FIN, RSV1-3, opcode
	frame.FIN = (buf[0] & 0x80) != 0
	if buf[0]&0x70 != 0 {
		// RSV bits require a negotiated extension; none are
		return frame, 0, DecodeInvalid
	}
	frame.Opcode = buf[0] & 0x0F
	if !knownOpcode(frame.Opcode) {
		return frame, 0, DecodeInvalid
	}

	// Second byte: mask bit, 7-bit length
	frame.Masked = (buf[1] & 0x80) != 0
	payloadLen := uint64(buf[1] & 0x7F)
	offset := 2

	// Extended payload length
	if payloadLen == 126 {
		if len(buf) < offset+2 {
			return frame, 0, DecodeIncomplete
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
	} else if payloadLen == 127 {
		if len(buf) < offset+8 {
			return frame, 0, DecodeIncomplete
		}
		payloadLen = binary.BigEndian.Uint64(buf[offset : offset+8])
		if payloadLen&(1<<63) != 0 {
			return frame, 0, DecodeInvalid
		}
		offset += 8
	}

	if maxSize > 0 && payloadLen > uint64(maxSize) {
		return frame, 0, DecodeInvalid
	}
	if isControlOpcode(frame.Opcode) && (payloadLen > 125 || !frame.FIN) {
		return frame, 0, DecodeInvalid
	}

	// Mask key (client-to-server frames must be masked; relay frames are not)
	var maskKey [4]byte
	if frame.Masked {
		if len(buf) < offset+4 {
			return frame, 0, DecodeIncomplete
		}
		copy(maskKey[:], buf[offset:offset+4])
		offset += 4
	}

	total := offset + int(payloadLen)
	if len(buf) < total {
		return frame, 0, DecodeIncomplete
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[offset:total])
	if frame.Masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}
	frame.Payload = payload

	return frame, total, DecodeComplete
}

func knownOpcode(opcode byte) bool {
	switch opcode {
	case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

func isControlOpcode(opcode byte) bool {
	return opcode >= OpcodeClose
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	switch f.Opcode {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", f.Opcode)
	}
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, len(f.Payload))
}
