package sfu

import (
	"net"
	"sync"

	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
	"github.com/pion/ion-rtp-sfu/pkg/stats"
)

// EventType enumerates the notifications raised by the router.
type EventType int

const (
	EventReady EventType = iota
	EventClosed
	EventError
	EventTrackAdded
	EventTrackRemoved
	EventSubscriptionAdded
	EventSubscriptionRemoved
	EventRTPForward
	EventRTCPSenderReport
	EventRTCPReceiverReport
	EventRTCPApplication
	EventRTCPForward
	EventBandwidthUpdated
	EventQualityUpdated
)

var eventNames = map[EventType]string{
	EventReady:               "ready",
	EventClosed:              "closed",
	EventError:               "error",
	EventTrackAdded:          "track:added",
	EventTrackRemoved:        "track:removed",
	EventSubscriptionAdded:   "subscription:added",
	EventSubscriptionRemoved: "subscription:removed",
	EventRTPForward:          "rtp:forward",
	EventRTCPSenderReport:    "rtcp:sr",
	EventRTCPReceiverReport:  "rtcp:rr",
	EventRTCPApplication:     "rtcp:app",
	EventRTCPForward:         "rtcp:forward",
	EventBandwidthUpdated:    "bandwidth:updated",
	EventQualityUpdated:      "quality:updated",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// Event is implemented by every notification put on the Bus.
type Event interface {
	Type() EventType
}

// Ready is raised once the socket is bound.
type Ready struct {
	Addr net.Addr
}

// Closed is the last event of a router.
type Closed struct{}

// ErrorKind classifies ErrorEvent.
type ErrorKind int

const (
	// ErrorMalformed is a datagram that could not be decoded.
	ErrorMalformed ErrorKind = iota
	// ErrorUnresolved is a valid packet that matches no track.
	ErrorUnresolved
	// ErrorTransport is a socket failure.
	ErrorTransport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorMalformed:
		return "malformed"
	case ErrorUnresolved:
		return "unresolved"
	case ErrorTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// ErrorEvent reports a dropped unit of work. It is never fatal.
type ErrorEvent struct {
	Kind   ErrorKind
	Err    error
	SSRC   uint32
	Source net.Addr
}

type TrackAdded struct {
	Track MediaTrack
}

type TrackRemoved struct {
	Track MediaTrack
}

type SubscriptionAdded struct {
	ParticipantID string
	Subscription  Subscription
}

type SubscriptionRemoved struct {
	ParticipantID string
	Subscription  Subscription
}

// ForwardIntent asks the transport to deliver Packet to a participant.
// Packet is shared between intents and must not be modified.
type ForwardIntent struct {
	DestinationParticipantID string
	Packet                   *rtpcodec.RTPPacket
	Source                   net.Addr
}

type SenderReportEvent struct {
	Report rtpcodec.SenderReport
	Source net.Addr
}

type ReceiverReportEvent struct {
	Report rtpcodec.ReceiverReport
	Source net.Addr
}

type ApplicationEvent struct {
	Report rtpcodec.Application
	Source net.Addr
}

// RTCPRelay carries every inbound RTCP packet, interpreted or not.
type RTCPRelay struct {
	Packet *rtpcodec.RTCPPacket
	Source net.Addr
}

type BandwidthUpdated struct {
	ParticipantID string
	Estimate      BandwidthEstimate
}

type QualityUpdated struct {
	ParticipantID string
	Metrics       QualityMetrics
}

func (*Ready) Type() EventType               { return EventReady }
func (*Closed) Type() EventType              { return EventClosed }
func (*ErrorEvent) Type() EventType          { return EventError }
func (*TrackAdded) Type() EventType          { return EventTrackAdded }
func (*TrackRemoved) Type() EventType        { return EventTrackRemoved }
func (*SubscriptionAdded) Type() EventType   { return EventSubscriptionAdded }
func (*SubscriptionRemoved) Type() EventType { return EventSubscriptionRemoved }
func (*ForwardIntent) Type() EventType       { return EventRTPForward }
func (*SenderReportEvent) Type() EventType   { return EventRTCPSenderReport }
func (*ReceiverReportEvent) Type() EventType { return EventRTCPReceiverReport }
func (*ApplicationEvent) Type() EventType    { return EventRTCPApplication }
func (*RTCPRelay) Type() EventType           { return EventRTCPForward }
func (*BandwidthUpdated) Type() EventType    { return EventBandwidthUpdated }
func (*QualityUpdated) Type() EventType      { return EventQualityUpdated }

func (e *ErrorEvent) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *ErrorEvent) Unwrap() error {
	return e.Err
}

// DefaultEventQueue is the bus capacity used when none is configured.
const DefaultEventQueue = 1024

// Bus is a bounded event queue. Emit never blocks: when the queue is full
// the event is discarded and counted.
type Bus struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool

	handlersMu  sync.RWMutex
	handlers    []func(Event)
	dispatching bool
	done        chan struct{}
}

// NewBus creates a bus holding up to size undelivered events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultEventQueue
	}
	return &Bus{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Emit queues e and reports whether it was accepted.
func (b *Bus) Emit(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- e:
		return true
	default:
		stats.EventsDropped.Inc()
		return false
	}
}

// Events returns the queue. It is closed after Close. Do not read it when
// handlers are registered with OnEvent.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// OnEvent registers fn to be called for every event, in order, from a single
// dispatcher goroutine started on the first registration.
func (b *Bus) OnEvent(fn func(Event)) {
	b.handlersMu.Lock()
	b.handlers = append(b.handlers, fn)
	start := !b.dispatching
	b.dispatching = true
	b.handlersMu.Unlock()

	if start {
		go b.dispatch()
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.ch {
		b.handlersMu.RLock()
		handlers := b.handlers
		b.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(e)
		}
	}
}

// Done is closed once the dispatcher has delivered every event queued before
// Close. It never closes if no handler was registered.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Close stops accepting events. Queued events are still delivered.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
