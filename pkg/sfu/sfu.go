package sfu

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/ion-rtp-sfu/pkg/logger"
	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
)

// Logger is the logger of the package. Replace it before creating an SFU.
var Logger logr.Logger = logger.New()

const maxDatagramSize = 1500

// SFUConfig defines the media socket.
type SFUConfig struct {
	Addr string `mapstructure:"addr"`
	Port int    `mapstructure:"port"`
}

// Config for base SFU
type Config struct {
	SFU    SFUConfig    `mapstructure:"sfu"`
	Router RouterConfig `mapstructure:"router"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		SFU: SFUConfig{Port: 5000},
		Router: RouterConfig{
			Workers:     1,
			EventQueue:  DefaultEventQueue,
			HistorySize: 100,
			Admission:   DefaultAdmission,
		},
	}
}

// Validate reports the first out of range setting.
func (c Config) Validate() error {
	switch {
	case c.SFU.Port < 0 || c.SFU.Port > 65535:
		return fmt.Errorf("%w: sfu.port %d", ErrInvalidConfig, c.SFU.Port)
	case c.Router.Workers < 0:
		return fmt.Errorf("%w: router.workers %d", ErrInvalidConfig, c.Router.Workers)
	case c.Router.Admission.MaxVideoPacketLoss < 0 || c.Router.Admission.MaxVideoPacketLoss > 1:
		return fmt.Errorf("%w: router.admission.maxvideopacketloss %v", ErrInvalidConfig, c.Router.Admission.MaxVideoPacketLoss)
	}
	return nil
}

// SFU reads RTP and RTCP from one UDP socket and routes it with an Engine.
// Datagrams are processed on per-ssrc shards so packets of one stream keep
// their arrival order.
type SFU struct {
	*Engine
	config Config
	shards *shards
	logger logr.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	serving bool
	closed  bool
	wg      sync.WaitGroup
}

// NewSFU creates a new sfu instance
func NewSFU(c Config) *SFU {
	c.Router = c.Router.withDefaults()
	return &SFU{
		Engine: NewEngine(c.Router),
		config: c,
		shards: newShards(c.Router.Workers),
		logger: Logger.WithName("sfu"),
	}
}

// Listen binds the socket and emits Ready. It is a no-op once bound.
func (s *SFU) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listen()
}

func (s *SFU) listen() error {
	if s.closed {
		return ErrClosed
	}
	if s.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(s.config.SFU.Addr, strconv.Itoa(s.config.SFU.Port))
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.logger.Info("listening", "addr", conn.LocalAddr().String())
	s.bus.Emit(&Ready{Addr: conn.LocalAddr()})
	return nil
}

// Serve binds the socket if needed and reads datagrams until Close.
func (s *SFU) Serve() error {
	s.mu.Lock()
	if err := s.listen(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.serving {
		s.mu.Unlock()
		return ErrServing
	}
	s.serving = true
	s.wg.Add(1)
	conn := s.conn
	s.mu.Unlock()
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.bus.Emit(&ErrorEvent{Kind: ErrorTransport, Err: err})
			s.logger.Error(err, "read udp")
			continue
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		kind := rtpcodec.Classify(raw)
		s.shards.submit(rtpcodec.SSRCOf(kind, raw), func() {
			s.handle(kind, raw, addr)
		})
	}
}

func (s *SFU) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Addr returns the bound address, or nil before Listen.
func (s *SFU) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// WriteTo sends b to addr from the media socket.
func (s *SFU) WriteTo(b []byte, addr net.Addr) (int, error) {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()
	if closed || conn == nil {
		return 0, ErrClosed
	}
	return conn.WriteTo(b, addr)
}

// Close releases the socket, waits for queued packets to be processed,
// emits Closed and closes the event bus. Calling Close again is a no-op.
func (s *SFU) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.shards.stop()
	s.bus.Emit(&Closed{})
	s.bus.Close()
	s.logger.Info("closed")
	return err
}
