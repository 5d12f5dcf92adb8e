// Package engineio implements the Engine.IO v3 long-polling frame codec
// used by the Helki cloud service.
//
// The codec handles:
//   - Decoding polling response bodies into individual packets
//   - Encoding packets as length-prefixed frames for POST requests
//   - Packet classification (open, close, ping, pong, event, noop)
//
// # Wire Format
//
// A polling response body concatenates one or more frames. Two framings
// appear in practice:
//
//	┌──────┬─────────────┬──────┬──────────────┐
//	│ 0x00 │ digits...   │ 0xFF │ UTF-8 text   │   binary-flagged frame
//	└──────┴─────────────┴──────┴──────────────┘
//	┌──────────────────────────┬───────────────┐
//	│ UTF-8 text               │ 0x00 or 0x1E  │   plain text frame
//	└──────────────────────────┴───────────────┘
//
// Frames sent to the server are length-prefixed with the character
// count of the payload:
//
//	<runeCount>:<payload>
//
// The server counts characters, not bytes, so multi-byte runes must be
// counted once.
//
// # Packet Classification
//
// Packets are classified by their leading token:
//
//   - "0"  open (handshake JSON follows)
//   - "1"  close
//   - "2"  ping (client must reply with pong)
//   - "3"  pong
//   - "40" namespace connect acknowledgement
//   - "42" Socket.IO event (JSON array [name, payload])
//   - "6"  noop
//
// Decoding is best-effort: malformed trailing bytes are dropped and
// invalid UTF-8 is replaced, never rejected. The vendor server is the
// only peer this codec needs to interoperate with.
package engineio
