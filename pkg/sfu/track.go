package sfu

import (
	"fmt"
	"sync"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/pion/ion-rtp-sfu/pkg/stats"
)

// MediaKind is the kind of media a track carries.
type MediaKind string

const (
	KindAudio  MediaKind = "audio"
	KindVideo  MediaKind = "video"
	KindScreen MediaKind = "screen"
)

// EncodingLayer is one simulcast encoding of a track.
type EncodingLayer struct {
	ID           string  `json:"id"`
	SSRC         uint32  `json:"ssrc"`
	RID          string  `json:"rid,omitempty"`
	MaxBitrate   uint64  `json:"maxBitrate,omitempty"`
	MaxFramerate float64 `json:"maxFramerate,omitempty"`
	MaxWidth     uint32  `json:"maxWidth,omitempty"`
	MaxHeight    uint32  `json:"maxHeight,omitempty"`
}

// MediaTrack is a published track and its simulcast layers.
type MediaTrack struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participantId"`
	Kind          MediaKind       `json:"kind"`
	SSRC          uint32          `json:"ssrc"`
	Layers        []EncodingLayer `json:"layers,omitempty"`
	Enabled       bool            `json:"enabled"`
}

// Layer returns the encoding layer with the given id.
func (t *MediaTrack) Layer(id string) (EncodingLayer, bool) {
	for _, l := range t.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return EncodingLayer{}, false
}

// LayerBySSRC returns the encoding layer sending with ssrc.
func (t *MediaTrack) LayerBySSRC(ssrc uint32) (EncodingLayer, bool) {
	for _, l := range t.Layers {
		if l.SSRC == ssrc {
			return l, true
		}
	}
	return EncodingLayer{}, false
}

func (t *MediaTrack) ssrcs() []uint32 {
	out := make([]uint32, 0, len(t.Layers)+1)
	out = append(out, t.SSRC)
	for _, l := range t.Layers {
		if l.SSRC != t.SSRC {
			out = append(out, l.SSRC)
		}
	}
	return out
}

func (t MediaTrack) clone() MediaTrack {
	if t.Layers != nil {
		t.Layers = append([]EncodingLayer(nil), t.Layers...)
	}
	return t
}

func (t *MediaTrack) validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTrack)
	}
	ids := make(map[string]struct{}, len(t.Layers))
	ssrcs := make(map[uint32]struct{}, len(t.Layers))
	for _, l := range t.Layers {
		if _, ok := ids[l.ID]; ok {
			return fmt.Errorf("%w: duplicate layer %q", ErrInvalidTrack, l.ID)
		}
		if _, ok := ssrcs[l.SSRC]; ok {
			return fmt.Errorf("%w: duplicate layer ssrc %d", ErrInvalidTrack, l.SSRC)
		}
		ids[l.ID] = struct{}{}
		ssrcs[l.SSRC] = struct{}{}
	}
	return nil
}

// TrackRegistry owns the published tracks and resolves inbound SSRCs to them.
type TrackRegistry struct {
	mu     sync.RWMutex
	tracks *orderedmap.OrderedMap[string, *MediaTrack]
	ssrcs  map[uint32]*MediaTrack
	flow   *FlowState
	bus    *Bus
}

// NewTrackRegistry creates an empty registry. The history of a track in flow
// exists exactly while the track is registered.
func NewTrackRegistry(flow *FlowState, bus *Bus) *TrackRegistry {
	return &TrackRegistry{
		tracks: orderedmap.NewOrderedMap[string, *MediaTrack](),
		ssrcs:  make(map[uint32]*MediaTrack),
		flow:   flow,
		bus:    bus,
	}
}

// AddTrack inserts t, or replaces the track with the same id.
func (r *TrackRegistry) AddTrack(t MediaTrack) error {
	if err := t.validate(); err != nil {
		return err
	}
	track := t.clone()

	r.mu.Lock()
	for _, ssrc := range track.ssrcs() {
		if owner, ok := r.ssrcs[ssrc]; ok && owner.ID != track.ID {
			r.mu.Unlock()
			return fmt.Errorf("%w: ssrc %d belongs to track %s", ErrSSRCConflict, ssrc, owner.ID)
		}
	}
	old, replaced := r.tracks.Get(track.ID)
	if replaced {
		for _, ssrc := range old.ssrcs() {
			delete(r.ssrcs, ssrc)
		}
	}
	r.tracks.Set(track.ID, &track)
	for _, ssrc := range track.ssrcs() {
		r.ssrcs[ssrc] = &track
	}
	r.flow.ensureHistory(track.ID)
	r.mu.Unlock()

	if !replaced {
		stats.Tracks.Inc()
	}
	r.bus.Emit(&TrackAdded{Track: track.clone()})
	return nil
}

// RemoveTrack removes the track and its buffered history. Unknown ids are ignored.
func (r *TrackRegistry) RemoveTrack(id string) {
	r.mu.Lock()
	track, ok := r.tracks.Get(id)
	if !ok {
		r.mu.Unlock()
		return
	}
	r.tracks.Delete(id)
	for _, ssrc := range track.ssrcs() {
		delete(r.ssrcs, ssrc)
	}
	r.flow.RemoveHistory(id)
	r.mu.Unlock()

	stats.Tracks.Dec()
	r.bus.Emit(&TrackRemoved{Track: track.clone()})
}

// ResolveBySSRC returns the id of the track owning ssrc as primary or layer SSRC.
func (r *TrackRegistry) ResolveBySSRC(ssrc uint32) (string, bool) {
	if t := r.lookup(ssrc); t != nil {
		return t.ID, true
	}
	return "", false
}

// lookup returns the stored track for ssrc. Stored tracks are never modified,
// the caller must not modify it either.
func (r *TrackRegistry) lookup(ssrc uint32) *MediaTrack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ssrcs[ssrc]
}

// GetTrack returns a copy of the track with the given id.
func (r *TrackRegistry) GetTrack(id string) (MediaTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks.Get(id)
	if !ok {
		return MediaTrack{}, false
	}
	return t.clone(), true
}

// GetTracks returns copies of all tracks in insertion order.
func (r *TrackRegistry) GetTracks() []MediaTrack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MediaTrack, 0, r.tracks.Len())
	for el := r.tracks.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.clone())
	}
	return out
}

// TracksOf returns the tracks published by a participant.
func (r *TrackRegistry) TracksOf(participantID string) []MediaTrack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []MediaTrack
	for el := r.tracks.Front(); el != nil; el = el.Next() {
		if el.Value.ParticipantID == participantID {
			out = append(out, el.Value.clone())
		}
	}
	return out
}

// Len returns the number of tracks.
func (r *TrackRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracks.Len()
}
