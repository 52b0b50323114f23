// Package protocol implements the WebSocket client engine the SmartMotor
// agent speaks to a channel relay.
//
// This package handles the HTTP Upgrade handshake, RFC 6455 frame encoding
// and decoding with client-side masking, and reassembly of frames from the
// arbitrary chunk boundaries a TCP stream produces. It deliberately covers
// only what a constrained client needs: no extensions, no subprotocols, no
// fragmented sends.
//
// # Frame Format
//
// Frames use the standard RFC 6455 layout:
//   - FIN bit: always 1 on send (single frame messages)
//   - Opcode: 0x1 text for channel traffic, 0x9/0xA ping/pong, 0x8 close
//   - Mask bit: 1 on every client-to-relay frame, 0 on relay-to-client
//   - Payload length: 7-bit, 16-bit extended, or 64-bit extended
//   - Mask key: 4 random bytes, payload XOR-masked with key[i%4]
//
// # Decode Outcomes
//
// DecodeFrame never blocks and never errors on a short buffer. It reports
// one of three outcomes:
//   - DecodeComplete: a frame and its consumed byte count
//   - DecodeIncomplete: wait for more bytes, not an error
//   - DecodeInvalid: unparseable header, discard the accumulator
//
// # Usage Example - Connecting
//
//	conn, leftover, err := protocol.Handshake(ctx, protocol.DialConfig{
//	    Host: "relay.local", Port: 8080, Path: "/api/channels/hackathon",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	asm := protocol.NewAssembler(maxFrame, maxBuffer)
//	frames := asm.Feed(leftover)
//
// The leftover bytes matter: a relay may pack its first frame into the same
// TCP segment as the 101 response, and dropping them loses the welcome.
//
// # Usage Example - Reading and Writing
//
//	frames = asm.Feed(chunk)
//	for _, f := range frames {
//	    handle(f)
//	}
//	for _, pong := range asm.PendingPongs() {
//	    conn.Write(pong)
//	}
//	if asm.CloseReceived() {
//	    teardown()
//	}
//
//	out, _ := protocol.EncodeFrame(protocol.OpcodeText, payload, true, maxFrame)
//	conn.Write(out)
//
// # Error Handling
//
// The package distinguishes between:
//   - Transient I/O: poll deadlines expiring, retried silently
//   - Protocol violations: malformed headers, accumulator reset
//   - Handshake failures: DNS, TLS, timeout, or a non-101 response,
//     classified into typed subtypes for the supervisor's backoff loop
//   - Reconnect exhaustion: the fatal give-up after the attempt budget
//
// All errors are *LinkError values with a Retryable flag.
//
// # Thread Safety
//
// EncodeFrame and DecodeFrame are stateless and safe for concurrent use.
// An Assembler belongs to a single connection and must only be fed from one
// goroutine.
package protocol
