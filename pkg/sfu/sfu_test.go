package sfu

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/transport/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1024)}
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) waitFor(t *testing.T, typ EventType, n int) []Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r.mu.Lock()
		var got []Event
		for _, ev := range r.events {
			if ev.Type() == typ {
				got = append(got, ev)
			}
		}
		r.mu.Unlock()
		if len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events, got %d", n, typ, len(got))
		}
	}
}

func testConfig(workers int) Config {
	c := DefaultConfig()
	c.SFU.Addr = "127.0.0.1"
	c.SFU.Port = 0
	c.Router.Workers = workers
	return c
}

func TestSFUServe(t *testing.T) {
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	s := NewSFU(testConfig(4))
	rec := newRecorder()
	s.OnEvent(rec.handle)
	require.NoError(t, s.AddTrack(MediaTrack{ID: "cam", ParticipantID: "alice", Kind: KindVideo, SSRC: 1000}))
	s.Subscribe("bob", Subscription{TrackID: "cam"})

	require.NoError(t, s.Listen())
	ready := rec.waitFor(t, EventReady, 1)
	addr := ready[0].(*Ready).Addr
	assert.Equal(t, s.Addr(), addr)

	done := make(chan error)
	go func() {
		done <- s.Serve()
	}()

	client, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	const count = 50
	for sn := uint16(0); sn < count; sn++ {
		_, err = client.Write(rtpPacket(t, 1000, sn))
		require.NoError(t, err)
	}
	_, err = client.Write(rtcpRaw(203, 1000))
	require.NoError(t, err)

	fis := rec.waitFor(t, EventRTPForward, count)
	for i, ev := range fis {
		fi := ev.(*ForwardIntent)
		assert.Equal(t, "bob", fi.DestinationParticipantID)
		assert.Equal(t, uint16(i), fi.Packet.SequenceNumber)
		assert.Equal(t, client.LocalAddr().String(), fi.Source.String())
	}
	rec.waitFor(t, EventRTCPForward, 1)

	require.NoError(t, s.Close())
	require.NoError(t, <-done)
	rec.waitFor(t, EventClosed, 1)
	<-s.bus.Done()

	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.Serve(), ErrClosed)
	_, err = s.WriteTo([]byte{1}, addr)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSFUWriteTo(t *testing.T) {
	s := NewSFU(testConfig(1))
	defer s.Close()
	require.NoError(t, s.Listen())

	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peer.Close()

	raw := rtpPacket(t, 1, 1)
	_, err = s.WriteTo(raw, peer.LocalAddr())
	require.NoError(t, err)

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, maxDatagramSize)
	n, from, err := peer.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, raw, buf[:n])
	assert.Equal(t, s.Addr().String(), from.String())
}

func TestSFUCloseWithoutServe(t *testing.T) {
	s := NewSFU(testConfig(2))
	assert.Nil(t, s.Addr())
	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.Listen(), ErrClosed)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.SFU.Port = 70000
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = DefaultConfig()
	c.Router.Workers = -1
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = DefaultConfig()
	c.Router.Admission.MaxVideoPacketLoss = 1.5
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}

func TestRouterConfigDefaults(t *testing.T) {
	c := RouterConfig{}.withDefaults()
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, DefaultEventQueue, c.EventQueue)
	assert.Equal(t, 100, c.HistorySize)
}
