package engineio

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Frame delimiter bytes.
const (
	// binaryMarker flags the start of a binary-framed packet.
	binaryMarker = 0x00

	// binaryDelimiter separates the length digits from the payload.
	binaryDelimiter = 0xFF

	// recordSeparator terminates a plain text frame.
	recordSeparator = 0x1E
)

// DecodePayload decodes a polling response body into packets.
//
// Decoding is pure and best-effort: a truncated trailing frame is
// dropped silently and empty input yields an empty slice. It never
// fails; the vendor server occasionally pads responses with garbage
// that must not take the poll loop down.
func DecodePayload(data []byte) []Packet {
	var packets []Packet

	i := 0
	for i < len(data) {
		if data[i] == binaryMarker {
			// Binary-flagged frame: skip the length digits up to the
			// 0xFF delimiter, then read text until 0x00 or end.
			j := i + 1
			for j < len(data) && data[j] != binaryDelimiter {
				j++
			}
			if j >= len(data) {
				// No delimiter before end of buffer: truncated frame.
				break
			}

			i = j + 1
			end := i
			for end < len(data) && data[end] != binaryMarker {
				end++
			}
			packets = append(packets, Packet{Raw: sanitize(data[i:end])})
			i = end
			continue
		}

		// Plain text frame, terminated by 0x00, 0x1E, or end of buffer.
		end := i
		for end < len(data) && data[end] != binaryMarker && data[end] != recordSeparator {
			end++
		}
		if end > i {
			packets = append(packets, Packet{Raw: sanitize(data[i:end])})
		}
		if end < len(data) {
			i = end + 1
		} else {
			i = end
		}
	}

	return packets
}

// EncodePacket frames a packet for transmission in a POST body.
// The length prefix is the character count of the payload, matching
// the server's rune-based accounting.
func EncodePacket(payload string) []byte {
	return []byte(fmt.Sprintf("%d:%s", utf8.RuneCountInString(payload), payload))
}

// sanitize converts frame bytes to a string, replacing invalid UTF-8
// sequences rather than rejecting the frame.
func sanitize(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
