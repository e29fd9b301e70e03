package buffer

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
)

// DefaultHistorySize is the number of packets kept per track when no size is
// configured.
const DefaultHistorySize = 100

// History is a bounded FIFO of the latest RTP packets of one track. Once full,
// every push evicts the oldest packet.
type History struct {
	mu   sync.RWMutex
	size int
	pkts deque.Deque[*rtpcodec.RTPPacket]
}

// NewHistory creates a history holding at most size packets.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Push appends p, evicting the oldest packet if the history is full.
func (h *History) Push(p *rtpcodec.RTPPacket) {
	h.mu.Lock()
	for h.pkts.Len() >= h.size {
		h.pkts.PopFront()
	}
	h.pkts.PushBack(p)
	h.mu.Unlock()
}

// Len returns the number of buffered packets.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pkts.Len()
}

// Size returns the capacity of the history.
func (h *History) Size() int {
	return h.size
}

// Packets returns the buffered packets oldest first.
func (h *History) Packets() []*rtpcodec.RTPPacket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*rtpcodec.RTPPacket, h.pkts.Len())
	for i := range out {
		out[i] = h.pkts.At(i)
	}
	return out
}

// Get returns the most recent packet with sequence number sn.
func (h *History) Get(sn uint16) (*rtpcodec.RTPPacket, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := h.pkts.Len() - 1; i >= 0; i-- {
		if p := h.pkts.At(i); p.SequenceNumber == sn {
			return p, nil
		}
	}
	return nil, ErrPacketNotFound
}
