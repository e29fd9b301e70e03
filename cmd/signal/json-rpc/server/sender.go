package server

import (
	"net"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/ion-rtp-sfu/pkg/sfu"
)

// Writer sends a datagram from the media socket.
type Writer interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Sender delivers forward intents and rtcp relays to the media endpoints
// registered by joined participants.
type Sender struct {
	w      Writer
	logger logr.Logger

	mu        sync.RWMutex
	endpoints map[string]*net.UDPAddr
}

func NewSender(w Writer, logger logr.Logger) *Sender {
	return &Sender{
		w:         w,
		logger:    logger,
		endpoints: make(map[string]*net.UDPAddr),
	}
}

// Join registers the media endpoint of participantID, replacing a previous one.
func (s *Sender) Join(participantID string, addr *net.UDPAddr) {
	s.mu.Lock()
	s.endpoints[participantID] = addr
	s.mu.Unlock()
}

func (s *Sender) Leave(participantID string) {
	s.mu.Lock()
	delete(s.endpoints, participantID)
	s.mu.Unlock()
}

// Endpoint returns the media endpoint of participantID.
func (s *Sender) Endpoint(participantID string) (*net.UDPAddr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.endpoints[participantID]
	return addr, ok
}

// HandleEvent is registered with sfu.SFU.OnEvent.
func (s *Sender) HandleEvent(ev sfu.Event) {
	switch e := ev.(type) {
	case *sfu.ForwardIntent:
		addr, ok := s.Endpoint(e.DestinationParticipantID)
		if !ok {
			return
		}
		s.write(e.Packet.Raw, addr)
	case *sfu.RTCPRelay:
		src := ""
		if e.Source != nil {
			src = e.Source.String()
		}
		s.mu.RLock()
		targets := make([]*net.UDPAddr, 0, len(s.endpoints))
		for _, addr := range s.endpoints {
			if addr.String() != src {
				targets = append(targets, addr)
			}
		}
		s.mu.RUnlock()
		for _, addr := range targets {
			s.write(e.Packet.Raw, addr)
		}
	}
}

func (s *Sender) write(b []byte, addr *net.UDPAddr) {
	if _, err := s.w.WriteTo(b, addr); err != nil {
		s.logger.V(1).Info("write media failed", "addr", addr.String(), "err", err.Error())
	}
}
