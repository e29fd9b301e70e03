package sfu

import (
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
	"github.com/pion/ion-rtp-sfu/pkg/stats"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// Stats is a snapshot of the engine state.
type Stats struct {
	Tracks             int    `json:"tracks"`
	Participants       int    `json:"participants"`
	Subscriptions      int    `json:"subscriptions"`
	BandwidthEstimates int    `json:"bandwidthEstimates"`
	QualityMetrics     int    `json:"qualityMetrics"`
	Received           uint64 `json:"received"`
	Forwarded          uint64 `json:"forwarded"`
	Dropped            uint64 `json:"dropped"`
}

// Engine routes parsed packets to subscribers. It owns the track registry,
// the subscription table and the flow state, and reports through its Bus.
//
// Engine does no I/O: SFU feeds it datagrams read from the socket, tests and
// embedders may call HandleDatagram directly. Packets of one SSRC must be
// handed in order from a single goroutine at a time.
type Engine struct {
	tracks    *TrackRegistry
	subs      *SubscriptionTable
	flow      *FlowState
	bus       *Bus
	admission AdmissionConfig

	logger  logr.Logger
	limiter *rate.Limiter

	received  atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

// NewEngine creates an engine with empty state.
func NewEngine(c RouterConfig) *Engine {
	c = c.withDefaults()
	bus := NewBus(c.EventQueue)
	flow := NewFlowState(c.HistorySize, bus)
	return &Engine{
		tracks:    NewTrackRegistry(flow, bus),
		subs:      NewSubscriptionTable(bus),
		flow:      flow,
		bus:       bus,
		admission: c.Admission,
		logger:    Logger.WithName("engine"),
		limiter:   rate.NewLimiter(rate.Every(time.Second), 10),
	}
}

// HandleDatagram classifies raw and processes it as RTP or RTCP. raw is
// retained by the emitted events and must not be reused by the caller.
func (e *Engine) HandleDatagram(raw []byte, src net.Addr) {
	e.handle(rtpcodec.Classify(raw), raw, src)
}

func (e *Engine) handle(kind rtpcodec.Kind, raw []byte, src net.Addr) {
	e.received.Inc()
	stats.Packets.WithLabelValues(kind.String()).Inc()
	switch kind {
	case rtpcodec.KindRTP:
		e.HandleRTP(raw, src)
	case rtpcodec.KindRTCP:
		e.HandleRTCP(raw, src)
	default:
		e.drop(stats.ReasonUnknown)
	}
}

// HandleRTP buffers an RTP packet and emits a ForwardIntent for every
// subscriber that passes layer selection and admission.
func (e *Engine) HandleRTP(raw []byte, src net.Addr) {
	p, err := rtpcodec.ParseRTP(raw)
	if err != nil {
		e.drop(stats.ReasonMalformed)
		e.diagnose(&ErrorEvent{Kind: ErrorMalformed, Err: err, Source: src})
		return
	}

	track := e.tracks.lookup(p.SSRC)
	if track == nil {
		e.drop(stats.ReasonUnresolved)
		e.diagnose(&ErrorEvent{Kind: ErrorUnresolved, Err: ErrUnresolvedRoute, SSRC: p.SSRC, Source: src})
		return
	}

	if !e.flow.Push(track.ID, p) {
		e.drop(stats.ReasonUnresolved)
		e.diagnose(&ErrorEvent{Kind: ErrorUnresolved, Err: ErrUnresolvedRoute, SSRC: p.SSRC, Source: src})
		return
	}

	for _, s := range e.subs.SubscribersOf(track.ID) {
		sub := s.Subscription
		if sub.EncodingLayerID != "" {
			l, ok := track.Layer(sub.EncodingLayerID)
			if !ok || l.SSRC != p.SSRC {
				stats.Dropped.WithLabelValues(stats.ReasonLayer).Inc()
				continue
			}
		}
		est, qm := e.flow.lookup(s.ParticipantID)
		if !e.admission.Admit(&sub, est, qm) {
			stats.Dropped.WithLabelValues(stats.ReasonAdmission).Inc()
			continue
		}
		if e.bus.Emit(&ForwardIntent{DestinationParticipantID: s.ParticipantID, Packet: p, Source: src}) {
			e.forwarded.Inc()
			stats.Forwarded.Inc()
		}
	}
}

func (e *Engine) drop(reason string) {
	e.dropped.Inc()
	stats.Dropped.WithLabelValues(reason).Inc()
}

// diagnose emits ev and logs it, at most a few times per second.
func (e *Engine) diagnose(ev *ErrorEvent) {
	e.bus.Emit(ev)
	if e.limiter.Allow() {
		e.logger.V(1).Info("packet dropped", "kind", ev.Kind.String(), "ssrc", ev.SSRC, "src", ev.Source, "err", ev.Err.Error())
	}
}

// AddTrack registers or replaces a track.
func (e *Engine) AddTrack(t MediaTrack) error {
	return e.tracks.AddTrack(t)
}

// RemoveTrack unregisters a track and discards its history.
func (e *Engine) RemoveTrack(id string) {
	e.tracks.RemoveTrack(id)
	e.subs.forgetTrack(id)
}

// Subscribe stores or replaces a subscription of participantID.
func (e *Engine) Subscribe(participantID string, sub Subscription) {
	e.subs.Subscribe(participantID, sub)
}

// Unsubscribe removes a subscription. An empty encodingLayerID removes every
// layer of the track.
func (e *Engine) Unsubscribe(participantID, trackID, encodingLayerID string) {
	e.subs.Unsubscribe(participantID, trackID, encodingLayerID)
}

func (e *Engine) UpdateBandwidthEstimate(participantID string, est BandwidthEstimate) {
	e.flow.UpdateBandwidthEstimate(participantID, est)
}

func (e *Engine) UpdateQualityMetrics(participantID string, qm QualityMetrics) {
	e.flow.UpdateQualityMetrics(participantID, qm)
}

// RemoveParticipant drops everything a participant published, subscribed or
// reported.
func (e *Engine) RemoveParticipant(participantID string) {
	for _, t := range e.tracks.TracksOf(participantID) {
		e.RemoveTrack(t.ID)
	}
	e.subs.RemoveParticipant(participantID)
	e.flow.RemoveParticipant(participantID)
}

func (e *Engine) GetTrack(id string) (MediaTrack, bool) {
	return e.tracks.GetTrack(id)
}

func (e *Engine) GetTracks() []MediaTrack {
	return e.tracks.GetTracks()
}

func (e *Engine) GetSubscriptions(participantID string) []Subscription {
	return e.subs.GetSubscriptions(participantID)
}

func (e *Engine) GetBandwidthEstimate(participantID string) (BandwidthEstimate, bool) {
	return e.flow.BandwidthEstimate(participantID)
}

func (e *Engine) GetQualityMetrics(participantID string) (QualityMetrics, bool) {
	return e.flow.QualityMetrics(participantID)
}

// History returns the buffered packets of a track, oldest first.
func (e *Engine) History(trackID string) []*rtpcodec.RTPPacket {
	return e.flow.History(trackID)
}

// GetPacket returns a buffered packet of a track by sequence number.
func (e *Engine) GetPacket(trackID string, sn uint16) (*rtpcodec.RTPPacket, error) {
	return e.flow.Packet(trackID, sn)
}

// GetStats returns the current counts. It has no side effects.
func (e *Engine) GetStats() Stats {
	_, estimates, metrics := e.flow.Counts()
	return Stats{
		Tracks:             e.tracks.Len(),
		Participants:       e.subs.Participants(),
		Subscriptions:      e.subs.Len(),
		BandwidthEstimates: estimates,
		QualityMetrics:     metrics,
		Received:           e.received.Load(),
		Forwarded:          e.forwarded.Load(),
		Dropped:            e.dropped.Load(),
	}
}

// Events returns the event queue. See Bus.Events.
func (e *Engine) Events() <-chan Event {
	return e.bus.Events()
}

// OnEvent registers an event handler. See Bus.OnEvent.
func (e *Engine) OnEvent(fn func(Event)) {
	e.bus.OnEvent(fn)
}
