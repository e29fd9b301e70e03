package sfu

import (
	"net"
	"strconv"

	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
	"github.com/pion/ion-rtp-sfu/pkg/stats"
)

// HandleRTCP interprets sender, receiver and application reports and relays
// every well-formed RTCP packet unchanged.
func (e *Engine) HandleRTCP(raw []byte, src net.Addr) {
	p, err := rtpcodec.ParseRTCP(raw)
	if err != nil {
		e.drop(stats.ReasonMalformed)
		e.diagnose(&ErrorEvent{Kind: ErrorMalformed, Err: err, Source: src})
		return
	}
	stats.RTCPReports.WithLabelValues(strconv.Itoa(int(p.Type))).Inc()

	if ev, err := interpret(p, src); err != nil {
		e.logger.V(1).Info("rtcp report not interpreted", "type", p.Type, "ssrc", p.SSRC, "err", err.Error())
	} else if ev != nil {
		e.bus.Emit(ev)
	}

	e.bus.Emit(&RTCPRelay{Packet: p, Source: src})
}

// interpret returns the report event for p, or nil for types that are relayed only.
func interpret(p *rtpcodec.RTCPPacket, src net.Addr) (Event, error) {
	switch p.Type {
	case rtpcodec.TypeSenderReport:
		sr, err := rtpcodec.DecodeSenderReport(p)
		if err != nil {
			return nil, err
		}
		return &SenderReportEvent{Report: *sr, Source: src}, nil
	case rtpcodec.TypeReceiverReport:
		rr, err := rtpcodec.DecodeReceiverReport(p)
		if err != nil {
			return nil, err
		}
		return &ReceiverReportEvent{Report: *rr, Source: src}, nil
	case rtpcodec.TypeApplication:
		app, err := rtpcodec.DecodeApplication(p)
		if err != nil {
			return nil, err
		}
		return &ApplicationEvent{Report: *app, Source: src}, nil
	}
	return nil, nil
}
