package sfu

// AdmissionConfig tunes the per-subscriber forwarding filter.
type AdmissionConfig struct {
	// EnforceBandwidth rejects a subscriber whose available bandwidth is
	// below the subscription's MaxBitrate.
	EnforceBandwidth bool `mapstructure:"enforcebandwidth"`
	// MaxVideoPacketLoss is the video loss fraction above which a
	// subscriber is rejected.
	MaxVideoPacketLoss float64 `mapstructure:"maxvideopacketloss"`
}

// DefaultAdmission rejects on insufficient bandwidth or more than 10% video loss.
var DefaultAdmission = AdmissionConfig{
	EnforceBandwidth:   true,
	MaxVideoPacketLoss: 0.10,
}

// Admit reports whether a packet may be forwarded to the holder of sub given
// its latest estimate and quality metrics, either of which may be nil.
func (a AdmissionConfig) Admit(sub *Subscription, est *BandwidthEstimate, qm *QualityMetrics) bool {
	if a.EnforceBandwidth && est != nil && est.AvailableBandwidth < sub.MaxBitrate {
		return false
	}
	if qm != nil && qm.Video != nil && qm.Video.PacketLoss > a.MaxVideoPacketLoss {
		return false
	}
	return true
}
