// Package rtpcodec classifies and parses the RTP and RTCP datagrams received
// by the router. All functions are stateless and never panic; malformed input
// yields an error wrapping ErrShortPacket or ErrBadVersion.
package rtpcodec

import "encoding/binary"

// Kind is the classification of a raw datagram.
type Kind int

const (
	KindUnknown Kind = iota
	KindRTP
	KindRTCP
)

const (
	rtpVersion    = 2
	versionShift  = 6
	versionMask   = 0x3
	versionBits   = 0xC0
	versionTwo    = 0x80
	rtcpTypeFirst = 200
	rtcpTypeLast  = 204
)

func (k Kind) String() string {
	switch k {
	case KindRTP:
		return "rtp"
	case KindRTCP:
		return "rtcp"
	default:
		return "unknown"
	}
}

// Classify decides whether b is RTP, RTCP or neither. Both protocols carry
// version 2 in the first byte, so the RTCP packet type range is checked
// first and the version check only applies to what is left.
func Classify(b []byte) Kind {
	if len(b) >= 2 && b[1] >= rtcpTypeFirst && b[1] <= rtcpTypeLast {
		return KindRTCP
	}
	if len(b) >= 1 && b[0]&versionBits == versionTwo {
		return KindRTP
	}
	return KindUnknown
}

// SSRCOf returns the SSRC of a datagram of the given kind without parsing
// it, or 0 when b is too short to carry one.
func SSRCOf(kind Kind, b []byte) uint32 {
	off := ssrcOffset
	if kind == KindRTCP {
		off = rtcpSSRCOffset
	}
	if len(b) < off+4 {
		return 0
	}
	return binary.BigEndian.Uint32(b[off : off+4])
}
