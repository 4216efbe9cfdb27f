// Package codec implements the Source-RCON-derived binary frame format used to talk
// to the Squad dedicated server, including its documented broken-packet variant.
//
// Frame layout, little-endian throughout:
//
//	Size (u32) | ID-low (u8) | ID-high=0 (u8) | Count (u16) | Type (u32) | Body (UTF-8, NUL-padded) | 0x00 0x00
//
// Size counts every byte following itself.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Packet type values.
const (
	TypeAuth         uint32 = 3
	TypeExec         uint32 = 2
	TypeResponse     uint32 = 0
	TypeAuthResponse uint32 = 2
	TypeChat         uint32 = 1
)

// Packet ID values used by the codec.
const (
	IDMid        uint8 = 0x00
	IDEnd        uint8 = 0x01
	IDAuthFailed uint8 = 0xFF
)

// minimum frame: Size(4) is not itself counted; after Size, the minimum body the
// spec allows is 10 bytes (ID-low, ID-high, Count x2, Type x4, trailing 0x00 0x00),
// so the minimum complete frame on the wire is 4 + 10 = 14 bytes.
const (
	minFrameBody  = 10
	minFrameTotal = 14
)

// brokenPacketSignature is the documented literal tail that follows a frame
// reporting Size=10 on the broken-packet variant of the protocol.
var brokenPacketSignature = [7]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}

// Packet is a fully decoded RCON frame.
type Packet struct {
	ID   uint8
	Type uint32
	Body string
}

// DecodeStatus classifies a non-fatal decode outcome.
type DecodeStatus int

const (
	// StatusOK means a frame was fully decoded.
	StatusOK DecodeStatus = iota
	// StatusIncomplete means the buffer does not yet hold a full frame.
	StatusIncomplete
	// StatusInvalidSize means the frame's declared Size is below the legal minimum.
	StatusInvalidSize
	// StatusMalformed means the buffer cannot be interpreted as a frame at all.
	StatusMalformed
	// StatusBrokenPacket means the buffer matched the documented broken-packet
	// variant and was discarded; it does not represent a real frame.
	StatusBrokenPacket
)

// DecodeResult is the outcome of a single Decode call.
type DecodeResult struct {
	Status    DecodeStatus
	Packet    Packet
	Consumed  int // bytes consumed from buf; only meaningful when Status == StatusOK
	Required  int // bytes still required; only meaningful when Status == StatusIncomplete
	Available int // bytes currently available; only meaningful when Status == StatusIncomplete
	Size      uint32
	Reason    string
}

// Encode builds a single RCON frame for the given type, ID, and body.
func Encode(typ uint32, id uint8, body string) []byte {
	bodyBytes := append([]byte(body), 0x00)
	// Size covers: ID-low + ID-high + Count(2) + Type(4) + body(+NUL) + trailing 0x00.
	size := uint32(1 + 1 + 2 + 4 + len(bodyBytes) + 1)

	buf := make([]byte, 4+int(size))
	binary.LittleEndian.PutUint32(buf[0:4], size)
	buf[4] = id
	buf[5] = 0
	binary.LittleEndian.PutUint16(buf[6:8], nextCount())
	binary.LittleEndian.PutUint32(buf[8:12], typ)
	copy(buf[12:12+len(bodyBytes)], bodyBytes)
	buf[len(buf)-1] = 0x00
	return buf
}

// count is the monotonically increasing 16-bit sequence attached to outgoing frames
// for log correlation/debug purposes only: the server does not reliably echo it, so
// the command queue never relies on it for response correlation.
var count uint16

func nextCount() uint16 {
	count++
	return count
}

// Decode attempts to decode a single frame (or recognize the broken-packet variant)
// from the front of buf. It never panics and never consumes more than len(buf).
func Decode(buf []byte) DecodeResult {
	if len(buf) < 4 {
		return DecodeResult{Status: StatusIncomplete, Required: 4, Available: len(buf)}
	}

	size := binary.LittleEndian.Uint32(buf[0:4])
	if size < minFrameBody {
		return DecodeResult{Status: StatusInvalidSize, Size: size, Reason: fmt.Sprintf("size %d below minimum %d", size, minFrameBody)}
	}

	total := 4 + int(size)
	if total < minFrameTotal {
		return DecodeResult{Status: StatusInvalidSize, Size: size, Reason: "size yields frame shorter than minimum total"}
	}

	if len(buf) < total {
		return DecodeResult{Status: StatusIncomplete, Required: total, Available: len(buf)}
	}

	// Broken-packet probe: a frame reporting Size=10 may be the malformed variant
	// rather than a real 14-byte frame. Look ahead a further 11 bytes; if the
	// leading 7 of those equal the literal signature, the whole 21-byte span is
	// the broken-packet quirk, not a real frame, and is discarded wholesale.
	if size == minFrameBody {
		const lookahead = 11
		probeEnd := total + lookahead
		if len(buf) < probeEnd {
			// Not enough bytes yet to rule the probe in or out; wait for more data
			// rather than risk misclassifying a genuine 14-byte frame as broken.
			return DecodeResult{Status: StatusIncomplete, Required: probeEnd, Available: len(buf)}
		}
		if matchesSignature(buf[total : total+len(brokenPacketSignature)]) {
			return DecodeResult{
				Status:   StatusBrokenPacket,
				Consumed: total + len(brokenPacketSignature),
				Size:     size,
			}
		}
	}

	id := buf[4]
	// buf[5] is ID-high, documented as always 0; not validated strictly since the
	// server is the sole producer and a mismatch there is not actionable.
	typ := binary.LittleEndian.Uint32(buf[8:12])
	bodyBytes := buf[12 : total-2]
	body := trimNulPadding(bodyBytes)

	return DecodeResult{
		Status:   StatusOK,
		Packet:   Packet{ID: id, Type: typ, Body: body},
		Consumed: total,
		Size:     size,
	}
}

func matchesSignature(b []byte) bool {
	for i, want := range brokenPacketSignature {
		if b[i] != want {
			return false
		}
	}
	return true
}

func trimNulPadding(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0x00 {
		end--
	}
	return string(b[:end])
}

// DecodeStream decodes every complete frame at the front of buf, stopping when the
// remaining bytes are incomplete, invalid, or malformed. It returns the decoded
// packets, the total bytes consumed, and — if decoding stopped early because of an
// error rather than running out of data — that error's DecodeResult.
func DecodeStream(buf []byte) (packets []Packet, consumed int, incomplete *DecodeResult) {
	for {
		remaining := buf[consumed:]
		if len(remaining) == 0 {
			return packets, consumed, nil
		}
		res := Decode(remaining)
		switch res.Status {
		case StatusOK:
			packets = append(packets, res.Packet)
			consumed += res.Consumed
		case StatusBrokenPacket:
			// Discarded wholesale: does not count as a decoded frame.
			consumed += res.Consumed
		case StatusIncomplete:
			r := res
			return packets, consumed, &r
		default:
			r := res
			return packets, consumed, &r
		}
	}
}
