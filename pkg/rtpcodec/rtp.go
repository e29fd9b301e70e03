package rtpcodec

import (
	"encoding/binary"

	"github.com/pion/rtp"
	"github.com/pkg/errors"
)

/*
 *  0                   1                   2                   3
 *  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
 * +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
 * |V=2|P|X|  CC   |M|     PT      |       sequence number         |
 * +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
 * |                           timestamp                           |
 * +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
 * |           synchronization source (SSRC) identifier            |
 * +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
 * |            contributing source (CSRC) identifiers             |
 * |                             ....                              |
 * +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
 */

const (
	headerLength          = 12
	csrcLength            = 4
	extensionHeaderLength = 4

	paddingShift   = 5
	extensionShift = 4
	ccMask         = 0x0F
	markerShift    = 7
	ptMask         = 0x7F

	seqNumOffset    = 2
	timestampOffset = 4
	ssrcOffset      = 8
)

// RTPPacket is a parsed RTP datagram. Header carries the decoded fixed header
// and CSRC list; the extension block is kept undecoded in ExtensionPayload.
// Payload is every byte after the header, padding included.
type RTPPacket struct {
	rtp.Header
	ExtensionPayload []byte
	Payload          []byte
	Raw              []byte
}

// ParseRTP decodes b as an RTP packet. The returned packet aliases b.
func ParseRTP(b []byte) (*RTPPacket, error) {
	if len(b) < headerLength {
		return nil, errors.Wrapf(ErrShortPacket, "rtp header %d < %d", len(b), headerLength)
	}

	version := b[0] >> versionShift & versionMask
	if version != rtpVersion {
		return nil, errors.Wrapf(ErrBadVersion, "got %d", version)
	}

	p := &RTPPacket{Raw: b}
	h := &p.Header
	h.Version = version
	h.Padding = (b[0]>>paddingShift)&0x1 > 0
	h.Extension = (b[0]>>extensionShift)&0x1 > 0
	h.Marker = (b[1] >> markerShift) > 0
	h.PayloadType = b[1] & ptMask
	h.SequenceNumber = binary.BigEndian.Uint16(b[seqNumOffset:])
	h.Timestamp = binary.BigEndian.Uint32(b[timestampOffset:])
	h.SSRC = binary.BigEndian.Uint32(b[ssrcOffset:])

	cc := int(b[0] & ccMask)
	offset := headerLength + cc*csrcLength
	if len(b) < offset {
		return nil, errors.Wrapf(ErrShortPacket, "rtp csrc list %d < %d", len(b), offset)
	}
	if cc > 0 {
		h.CSRC = make([]uint32, cc)
		for i := range h.CSRC {
			h.CSRC[i] = binary.BigEndian.Uint32(b[headerLength+i*csrcLength:])
		}
	}

	if h.Extension {
		if len(b) < offset+extensionHeaderLength {
			return nil, errors.Wrapf(ErrShortPacket, "rtp extension header %d < %d", len(b), offset+extensionHeaderLength)
		}
		h.ExtensionProfile = binary.BigEndian.Uint16(b[offset:])
		extLen := int(binary.BigEndian.Uint16(b[offset+2:])) * 4
		offset += extensionHeaderLength
		if len(b) < offset+extLen {
			return nil, errors.Wrapf(ErrShortPacket, "rtp extension %d < %d", len(b), offset+extLen)
		}
		p.ExtensionPayload = b[offset : offset+extLen]
		offset += extLen
	}

	p.Payload = b[offset:]
	return p, nil
}

// CSRCCount returns the number of contributing sources in the header.
func (p *RTPPacket) CSRCCount() int {
	return len(p.CSRC)
}

// MarshalSize returns the size of the datagram the packet was parsed from.
func (p *RTPPacket) MarshalSize() int {
	return len(p.Raw)
}
