// Package stats holds the prometheus collectors of the router.
package stats

import "github.com/prometheus/client_golang/prometheus"

const subsystem = "sfu"

var (
	// Packets counts inbound datagrams by classification.
	Packets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "packets_total",
		Help:      "Inbound datagrams by kind.",
	}, []string{"kind"})

	// Forwarded counts emitted rtp forward intents.
	Forwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "rtp_forwarded_total",
		Help:      "RTP forward intents emitted.",
	})

	// Dropped counts packets or per-subscriber deliveries that were not forwarded.
	Dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "packets_dropped_total",
		Help:      "Dropped packets and suppressed deliveries by reason.",
	}, []string{"reason"})

	// RTCPReports counts inbound rtcp packets by packet type code.
	RTCPReports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "rtcp_packets_total",
		Help:      "Inbound RTCP packets by type.",
	}, []string{"type"})

	// EventsDropped counts events discarded because the event queue was full.
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "events_dropped_total",
		Help:      "Events discarded on a full queue.",
	})

	// Tracks is the number of registered tracks.
	Tracks = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "tracks",
		Help:      "Registered tracks.",
	})

	// Subscriptions is the number of stored subscriptions.
	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "subscriptions",
		Help:      "Stored subscriptions.",
	})
)

// Drop reasons.
const (
	ReasonMalformed  = "malformed"
	ReasonUnresolved = "unresolved"
	ReasonLayer      = "layer"
	ReasonAdmission  = "admission"
	ReasonUnknown    = "unknown"
)

func init() {
	prometheus.MustRegister(Packets)
	prometheus.MustRegister(Forwarded)
	prometheus.MustRegister(Dropped)
	prometheus.MustRegister(RTCPReports)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(Tracks)
	prometheus.MustRegister(Subscriptions)
}
