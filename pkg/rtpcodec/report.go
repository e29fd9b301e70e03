package rtpcodec

import (
	"encoding/binary"

	"github.com/pion/rtcp"
	"github.com/pkg/errors"
)

// Packet type codes interpreted by the router.
const (
	TypeSenderReport   = uint8(rtcp.TypeSenderReport)
	TypeReceiverReport = uint8(rtcp.TypeReceiverReport)
	// TypeApplication is the code the router decodes as an application-defined
	// report.
	TypeApplication uint8 = 205
)

const (
	srLength      = 16
	rrLength      = 20
	appNameLength = 4
)

// SenderReport holds the sender statistics carried in a type 200 payload.
// NTPTime is the 32-bit word at the start of the payload.
type SenderReport struct {
	SSRC        uint32
	NTPTime     uint32
	RTPTime     uint32
	PacketCount uint32
	OctetCount  uint32
}

// ReceiverReport holds a single reception report block of a type 201 payload.
type ReceiverReport struct {
	SSRC               uint32
	FractionLost       uint8
	TotalLost          uint32
	LastSequenceNumber uint32
	Jitter             uint32
	LastSenderReport   uint32
	Delay              uint32
}

// Application is an application-defined report: a four character name
// followed by opaque data.
type Application struct {
	SSRC uint32
	Name string
	Data []byte
}

// DecodeSenderReport reads the sender report fields from p.Payload.
func DecodeSenderReport(p *RTCPPacket) (*SenderReport, error) {
	pl := p.Payload
	if len(pl) < srLength {
		return nil, errors.Wrapf(ErrShortPacket, "sender report %d < %d", len(pl), srLength)
	}
	return &SenderReport{
		SSRC:        p.SSRC,
		NTPTime:     binary.BigEndian.Uint32(pl[0:]),
		RTPTime:     binary.BigEndian.Uint32(pl[4:]),
		PacketCount: binary.BigEndian.Uint32(pl[8:]),
		OctetCount:  binary.BigEndian.Uint32(pl[12:]),
	}, nil
}

// DecodeReceiverReport reads the reception report fields from p.Payload.
func DecodeReceiverReport(p *RTCPPacket) (*ReceiverReport, error) {
	pl := p.Payload
	if len(pl) < rrLength {
		return nil, errors.Wrapf(ErrShortPacket, "receiver report %d < %d", len(pl), rrLength)
	}
	return &ReceiverReport{
		SSRC:               p.SSRC,
		FractionLost:       pl[0],
		TotalLost:          uint32(pl[1])<<16 | uint32(pl[2])<<8 | uint32(pl[3]),
		LastSequenceNumber: binary.BigEndian.Uint32(pl[4:]),
		Jitter:             binary.BigEndian.Uint32(pl[8:]),
		LastSenderReport:   binary.BigEndian.Uint32(pl[12:]),
		Delay:              binary.BigEndian.Uint32(pl[16:]),
	}, nil
}

// DecodeApplication reads the name and data of an application-defined report.
func DecodeApplication(p *RTCPPacket) (*Application, error) {
	pl := p.Payload
	if len(pl) < appNameLength {
		return nil, errors.Wrapf(ErrShortPacket, "application report %d < %d", len(pl), appNameLength)
	}
	return &Application{
		SSRC: p.SSRC,
		Name: string(pl[:appNameLength]),
		Data: pl[appNameLength:],
	}, nil
}
