package sfu

import (
	"sync"
	"time"

	"github.com/pion/ion-rtp-sfu/pkg/buffer"
	"github.com/pion/ion-rtp-sfu/pkg/rtpcodec"
)

// BandwidthEstimate is the latest congestion-control view of a participant's
// downlink.
type BandwidthEstimate struct {
	ParticipantID      string  `json:"participantId"`
	AvailableBandwidth uint64  `json:"availableBandwidth"`
	EstimatedBandwidth uint64  `json:"estimatedBandwidth"`
	CongestionWindow   uint64  `json:"congestionWindow,omitempty"`
	RTT                float64 `json:"rtt"`
	PacketLoss         float64 `json:"packetLoss"`
}

type VideoQuality struct {
	Resolution Resolution `json:"resolution"`
	Framerate  float64    `json:"framerate"`
	Bitrate    uint64     `json:"bitrate"`
	PacketLoss float64    `json:"packetLoss"`
	Jitter     float64    `json:"jitter"`
}

type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

type AudioQuality struct {
	Bitrate    uint64  `json:"bitrate"`
	PacketLoss float64 `json:"packetLoss"`
	Jitter     float64 `json:"jitter"`
	AudioLevel float64 `json:"audioLevel"`
	EchoLevel  float64 `json:"echoLevel"`
	NoiseLevel float64 `json:"noiseLevel"`
}

// QualityMetrics is a participant's latest receive quality report. Video and
// Audio are nil when the participant did not report them.
type QualityMetrics struct {
	ParticipantID string        `json:"participantId"`
	Timestamp     time.Time     `json:"timestamp"`
	Video         *VideoQuality `json:"video,omitempty"`
	Audio         *AudioQuality `json:"audio,omitempty"`
}

func (q QualityMetrics) clone() QualityMetrics {
	if q.Video != nil {
		v := *q.Video
		q.Video = &v
	}
	if q.Audio != nil {
		a := *q.Audio
		q.Audio = &a
	}
	return q
}

// FlowState keeps the per-track packet histories and the latest bandwidth and
// quality report of every participant.
type FlowState struct {
	buffers *buffer.Factory
	bus     *Bus

	mu        sync.RWMutex
	bandwidth map[string]BandwidthEstimate
	quality   map[string]QualityMetrics
}

// NewFlowState creates an empty flow state whose histories hold historySize
// packets.
func NewFlowState(historySize int, bus *Bus) *FlowState {
	return &FlowState{
		buffers:   buffer.NewFactory(historySize),
		bus:       bus,
		bandwidth: make(map[string]BandwidthEstimate),
		quality:   make(map[string]QualityMetrics),
	}
}

// ensureHistory creates the history of trackID if it does not exist yet.
func (f *FlowState) ensureHistory(trackID string) {
	f.buffers.GetOrNew(trackID)
}

// Push appends p to the history of trackID. Packets for a track without a
// history, such as one removed while p was in flight, are discarded.
func (f *FlowState) Push(trackID string, p *rtpcodec.RTPPacket) bool {
	h := f.buffers.GetHistory(trackID)
	if h == nil {
		return false
	}
	h.Push(p)
	return true
}

// History returns the buffered packets of trackID, oldest first.
func (f *FlowState) History(trackID string) []*rtpcodec.RTPPacket {
	h := f.buffers.GetHistory(trackID)
	if h == nil {
		return nil
	}
	return h.Packets()
}

// Packet returns the buffered packet of trackID with sequence number sn.
func (f *FlowState) Packet(trackID string, sn uint16) (*rtpcodec.RTPPacket, error) {
	h := f.buffers.GetHistory(trackID)
	if h == nil {
		return nil, buffer.ErrPacketNotFound
	}
	return h.Get(sn)
}

func (f *FlowState) RemoveHistory(trackID string) {
	f.buffers.Remove(trackID)
}

// UpdateBandwidthEstimate replaces the estimate of participantID.
func (f *FlowState) UpdateBandwidthEstimate(participantID string, est BandwidthEstimate) {
	est.ParticipantID = participantID
	f.mu.Lock()
	f.bandwidth[participantID] = est
	f.mu.Unlock()
	f.bus.Emit(&BandwidthUpdated{ParticipantID: participantID, Estimate: est})
}

func (f *FlowState) BandwidthEstimate(participantID string) (BandwidthEstimate, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	est, ok := f.bandwidth[participantID]
	return est, ok
}

// UpdateQualityMetrics replaces the quality report of participantID.
func (f *FlowState) UpdateQualityMetrics(participantID string, qm QualityMetrics) {
	qm = qm.clone()
	qm.ParticipantID = participantID
	f.mu.Lock()
	f.quality[participantID] = qm
	f.mu.Unlock()
	f.bus.Emit(&QualityUpdated{ParticipantID: participantID, Metrics: qm.clone()})
}

func (f *FlowState) QualityMetrics(participantID string) (QualityMetrics, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	qm, ok := f.quality[participantID]
	if !ok {
		return QualityMetrics{}, false
	}
	return qm.clone(), true
}

// lookup returns the stored estimate and metrics of participantID without
// copying. Either may be nil.
func (f *FlowState) lookup(participantID string) (*BandwidthEstimate, *QualityMetrics) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var (
		est *BandwidthEstimate
		qm  *QualityMetrics
	)
	if e, ok := f.bandwidth[participantID]; ok {
		est = &e
	}
	if q, ok := f.quality[participantID]; ok {
		qm = &q
	}
	return est, qm
}

// RemoveParticipant forgets the estimate and metrics of participantID.
func (f *FlowState) RemoveParticipant(participantID string) {
	f.mu.Lock()
	delete(f.bandwidth, participantID)
	delete(f.quality, participantID)
	f.mu.Unlock()
}

// Counts returns the number of buffered tracks, estimates and quality reports.
func (f *FlowState) Counts() (histories, estimates, metrics int) {
	f.mu.RLock()
	estimates, metrics = len(f.bandwidth), len(f.quality)
	f.mu.RUnlock()
	return f.buffers.Len(), estimates, metrics
}
