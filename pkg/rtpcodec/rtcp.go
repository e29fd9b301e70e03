package rtpcodec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	rtcpHeaderLength = 8
	rtcpTypeOffset   = 1
	rtcpSSRCOffset   = 4
)

// RTCPPacket is the common prefix of an RTCP datagram. Only the packet type
// and the first SSRC are decoded; the report body is left in Payload.
type RTCPPacket struct {
	Type    uint8
	SSRC    uint32
	Payload []byte
	Raw     []byte
}

// ParseRTCP decodes the type and sender SSRC of b. The length field is not
// validated; the returned packet aliases b.
func ParseRTCP(b []byte) (*RTCPPacket, error) {
	if len(b) < rtcpHeaderLength {
		return nil, errors.Wrapf(ErrShortPacket, "rtcp header %d < %d", len(b), rtcpHeaderLength)
	}
	return &RTCPPacket{
		Type:    b[rtcpTypeOffset],
		SSRC:    binary.BigEndian.Uint32(b[rtcpSSRCOffset:]),
		Payload: b[rtcpHeaderLength:],
		Raw:     b,
	}, nil
}
