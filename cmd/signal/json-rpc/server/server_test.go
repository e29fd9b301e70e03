package server

import (
	"encoding/json"
	"net"
	"sync"
	"testing"

	log "github.com/pion/ion-rtp-sfu/pkg/logger"
	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
	"github.com/pion/ion-rtp-sfu/pkg/sfu"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type datagram struct {
	b    []byte
	addr string
}

type fakeWriter struct {
	mu   sync.Mutex
	sent []datagram
}

func (w *fakeWriter) WriteTo(b []byte, addr net.Addr) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, datagram{b: b, addr: addr.String()})
	return len(b), nil
}

func request(t *testing.T, method string, params interface{}) *jsonrpc2.Request {
	t.Helper()
	req := &jsonrpc2.Request{Method: method}
	if params != nil {
		require.NoError(t, req.SetParams(params))
	}
	return req
}

func udpAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return addr
}

func TestSenderForward(t *testing.T) {
	w := &fakeWriter{}
	s := NewSender(w, log.New())
	s.Join("bob", udpAddr(t, "127.0.0.1:6000"))

	s.HandleEvent(&sfu.ForwardIntent{
		DestinationParticipantID: "bob",
		Packet:                   &rtpcodec.RTPPacket{Raw: []byte{0x80, 96}},
	})
	s.HandleEvent(&sfu.ForwardIntent{
		DestinationParticipantID: "carol",
		Packet:                   &rtpcodec.RTPPacket{Raw: []byte{0x80, 97}},
	})

	require.Len(t, w.sent, 1)
	assert.Equal(t, "127.0.0.1:6000", w.sent[0].addr)
	assert.Equal(t, []byte{0x80, 96}, w.sent[0].b)

	s.Leave("bob")
	_, ok := s.Endpoint("bob")
	assert.False(t, ok)
}

func TestSenderRelaySkipsSource(t *testing.T) {
	w := &fakeWriter{}
	s := NewSender(w, log.New())
	s.Join("alice", udpAddr(t, "127.0.0.1:6000"))
	s.Join("bob", udpAddr(t, "127.0.0.1:6002"))

	s.HandleEvent(&sfu.RTCPRelay{
		Packet: &rtpcodec.RTCPPacket{Type: 201, Raw: []byte{0x80, 201}},
		Source: udpAddr(t, "127.0.0.1:6000"),
	})

	require.Len(t, w.sent, 1)
	assert.Equal(t, "127.0.0.1:6002", w.sent[0].addr)
}

func TestJSONSignalDispatch(t *testing.T) {
	e := sfu.NewEngine(sfu.RouterConfig{})
	sender := NewSender(&fakeWriter{}, log.New())
	p := NewJSONSignal(e, sender, log.New())
	assert.NotEmpty(t, p.ID())

	_, _, err := p.dispatch(request(t, "subscribe", sfu.Subscription{TrackID: "cam"}))
	assert.ErrorIs(t, err, errNotJoined)

	_, _, err = p.dispatch(request(t, "join", Join{ParticipantID: "alice", Addr: "127.0.0.1:6000"}))
	require.NoError(t, err)
	addr, ok := sender.Endpoint("alice")
	require.True(t, ok)
	assert.Equal(t, 6000, addr.Port)

	res, mutated, err := p.dispatch(request(t, "addTrack", sfu.MediaTrack{ID: "cam", Kind: sfu.KindVideo, SSRC: 1000}))
	require.NoError(t, err)
	assert.True(t, mutated)
	assert.Equal(t, "alice", res.(sfu.MediaTrack).ParticipantID)

	_, _, err = p.dispatch(request(t, "subscribe", sfu.Subscription{TrackID: "cam", MaxBitrate: 200}))
	require.NoError(t, err)

	res, _, err = p.dispatch(request(t, "getSubscriptions", nil))
	require.NoError(t, err)
	subs := res.([]sfu.Subscription)
	require.Len(t, subs, 1)
	assert.Equal(t, uint64(200), subs[0].MaxBitrate)

	res, _, err = p.dispatch(request(t, "getTrack", TrackRef{TrackID: "cam"}))
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), res.(sfu.MediaTrack).SSRC)

	_, _, err = p.dispatch(request(t, "getTrack", TrackRef{TrackID: "nope"}))
	assert.ErrorIs(t, err, errTrackNotFound)

	_, _, err = p.dispatch(request(t, "updateBandwidthEstimate", sfu.BandwidthEstimate{AvailableBandwidth: 100}))
	require.NoError(t, err)
	est, ok := e.GetBandwidthEstimate("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(100), est.AvailableBandwidth)

	_, _, err = p.dispatch(request(t, "updateQualityMetrics", json.RawMessage(`{"video":{"packetLoss":0.2}}`)))
	require.NoError(t, err)
	qm, ok := e.GetQualityMetrics("alice")
	require.True(t, ok)
	assert.Equal(t, 0.2, qm.Video.PacketLoss)
	assert.False(t, qm.Timestamp.IsZero())

	res, _, err = p.dispatch(request(t, "getStats", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, res.(sfu.Stats).Tracks)
	assert.Equal(t, 1, res.(sfu.Stats).Subscriptions)

	_, _, err = p.dispatch(request(t, "unsubscribe", Unsubscribe{TrackID: "cam"}))
	require.NoError(t, err)
	assert.Empty(t, e.GetSubscriptions("alice"))

	_, _, err = p.dispatch(request(t, "nope", nil))
	assert.Error(t, err)

	p.Close()
	_, ok = e.GetTrack("cam")
	assert.False(t, ok)
	_, ok = sender.Endpoint("alice")
	assert.False(t, ok)
}

func TestJSONSignalMissingParams(t *testing.T) {
	p := NewJSONSignal(sfu.NewEngine(sfu.RouterConfig{}), NewSender(&fakeWriter{}, log.New()), log.New())
	_, _, err := p.dispatch(request(t, "join", nil))
	assert.ErrorIs(t, err, errMissingParams)

	_, _, err = p.dispatch(request(t, "join", Join{Addr: "not an addr"}))
	assert.Error(t, err)
}
