package rtpcodec

import "github.com/pkg/errors"

var (
	// ErrShortPacket is returned when a buffer ends before a field it must contain.
	ErrShortPacket = errors.New("packet is not large enough")
	// ErrBadVersion is returned for RTP headers whose version is not 2.
	ErrBadVersion = errors.New("unsupported rtp version")
)
