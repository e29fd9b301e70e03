package sfu

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/pion/ion-rtp-sfu/pkg/stats"
)

// Subscription is a participant's request to receive a track, or one
// encoding layer of it when EncodingLayerID is set.
type Subscription struct {
	ParticipantID   string  `json:"participantId"`
	TrackID         string  `json:"trackId"`
	EncodingLayerID string  `json:"encodingLayerId,omitempty"`
	MaxBitrate      uint64  `json:"maxBitrate,omitempty"`
	MaxFramerate    float64 `json:"maxFramerate,omitempty"`
	MaxWidth        uint32  `json:"maxWidth,omitempty"`
	MaxHeight       uint32  `json:"maxHeight,omitempty"`
}

func (s *Subscription) sameKey(o *Subscription) bool {
	return s.TrackID == o.TrackID && s.EncodingLayerID == o.EncodingLayerID
}

// Subscriber pairs a subscription with the participant holding it.
type Subscriber struct {
	ParticipantID string
	Subscription  Subscription
}

// SubscriptionTable holds the subscriptions of every participant. Tracks are
// referenced by id only and may no longer exist.
type SubscriptionTable struct {
	mu           sync.RWMutex
	participants *orderedmap.OrderedMap[string, []Subscription]
	// byTrack caches SubscribersOf results; entries are replaced, never modified.
	byTrack map[string][]Subscriber
	count   int
	bus     *Bus
}

// NewSubscriptionTable creates an empty table.
func NewSubscriptionTable(bus *Bus) *SubscriptionTable {
	return &SubscriptionTable{
		participants: orderedmap.NewOrderedMap[string, []Subscription](),
		byTrack:      make(map[string][]Subscriber),
		bus:          bus,
	}
}

// Subscribe stores sub for participantID, replacing a previous subscription
// to the same track and layer.
func (s *SubscriptionTable) Subscribe(participantID string, sub Subscription) {
	sub.ParticipantID = participantID

	s.mu.Lock()
	subs, _ := s.participants.Get(participantID)
	replaced := false
	for i := range subs {
		if subs[i].sameKey(&sub) {
			subs[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		subs = append(subs, sub)
		s.count++
		stats.Subscriptions.Inc()
	}
	s.participants.Set(participantID, subs)
	delete(s.byTrack, sub.TrackID)
	s.mu.Unlock()

	s.bus.Emit(&SubscriptionAdded{ParticipantID: participantID, Subscription: sub})
}

// Unsubscribe removes the subscription of participantID to one layer of
// trackID, or to every layer of it when encodingLayerID is empty.
func (s *SubscriptionTable) Unsubscribe(participantID, trackID, encodingLayerID string) {
	s.mu.Lock()
	subs, ok := s.participants.Get(participantID)
	if !ok {
		s.mu.Unlock()
		return
	}
	var removed []Subscription
	kept := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.TrackID == trackID && (encodingLayerID == "" || sub.EncodingLayerID == encodingLayerID) {
			removed = append(removed, sub)
			continue
		}
		kept = append(kept, sub)
	}
	if len(removed) > 0 {
		s.store(participantID, kept)
		s.count -= len(removed)
		stats.Subscriptions.Sub(float64(len(removed)))
		delete(s.byTrack, trackID)
	}
	s.mu.Unlock()

	for _, sub := range removed {
		s.bus.Emit(&SubscriptionRemoved{ParticipantID: participantID, Subscription: sub})
	}
}

// RemoveParticipant drops every subscription of participantID.
func (s *SubscriptionTable) RemoveParticipant(participantID string) {
	s.mu.Lock()
	subs, ok := s.participants.Get(participantID)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.participants.Delete(participantID)
	s.count -= len(subs)
	stats.Subscriptions.Sub(float64(len(subs)))
	for _, sub := range subs {
		delete(s.byTrack, sub.TrackID)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.bus.Emit(&SubscriptionRemoved{ParticipantID: participantID, Subscription: sub})
	}
}

// store must be called with mu held.
func (s *SubscriptionTable) store(participantID string, subs []Subscription) {
	if len(subs) == 0 {
		s.participants.Delete(participantID)
		return
	}
	s.participants.Set(participantID, subs)
}

// SubscribersOf returns the current subscribers of trackID, ordered by the
// time each participant first subscribed to anything. The returned slice is
// shared and must not be modified.
func (s *SubscriptionTable) SubscribersOf(trackID string) []Subscriber {
	s.mu.RLock()
	subs, ok := s.byTrack[trackID]
	s.mu.RUnlock()
	if ok {
		return subs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if subs, ok = s.byTrack[trackID]; ok {
		return subs
	}
	for el := s.participants.Front(); el != nil; el = el.Next() {
		for _, sub := range el.Value {
			if sub.TrackID == trackID {
				subs = append(subs, Subscriber{ParticipantID: el.Key, Subscription: sub})
			}
		}
	}
	if len(subs) > 0 {
		s.byTrack[trackID] = subs
	}
	return subs
}

// forgetTrack drops the cached subscribers of a removed track.
func (s *SubscriptionTable) forgetTrack(trackID string) {
	s.mu.Lock()
	delete(s.byTrack, trackID)
	s.mu.Unlock()
}

// GetSubscriptions returns a copy of the subscriptions of participantID.
func (s *SubscriptionTable) GetSubscriptions(participantID string) []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs, _ := s.participants.Get(participantID)
	return append([]Subscription(nil), subs...)
}

// Participants returns the number of participants holding a subscription.
func (s *SubscriptionTable) Participants() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participants.Len()
}

// Len returns the total number of subscriptions.
func (s *SubscriptionTable) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
