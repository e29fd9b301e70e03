package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/go-logr/logr"
	"github.com/lucsky/cuid"
	"github.com/pion/ion-rtp-sfu/pkg/sfu"
	"github.com/sourcegraph/jsonrpc2"
)

var (
	errNotJoined     = errors.New("participant has not joined")
	errMissingParams = errors.New("missing params")
	errTrackNotFound = errors.New("track not found")
)

// Join message sent to register a participant and its media endpoint
type Join struct {
	ParticipantID string `json:"participantId"`
	Addr          string `json:"addr"`
}

// TrackRef names a track
type TrackRef struct {
	TrackID string `json:"trackId"`
}

// Unsubscribe message removes a subscription, or every layer of it when
// EncodingLayerID is empty
type Unsubscribe struct {
	TrackID         string `json:"trackId"`
	EncodingLayerID string `json:"encodingLayerId"`
}

// ParticipantRef names a participant, the joined one when empty
type ParticipantRef struct {
	ParticipantID string `json:"participantId"`
}

// Router is the part of sfu.SFU used by the signal.
type Router interface {
	AddTrack(t sfu.MediaTrack) error
	RemoveTrack(id string)
	Subscribe(participantID string, sub sfu.Subscription)
	Unsubscribe(participantID, trackID, encodingLayerID string)
	UpdateBandwidthEstimate(participantID string, est sfu.BandwidthEstimate)
	UpdateQualityMetrics(participantID string, qm sfu.QualityMetrics)
	RemoveParticipant(participantID string)
	GetTrack(id string) (sfu.MediaTrack, bool)
	GetTracks() []sfu.MediaTrack
	GetSubscriptions(participantID string) []sfu.Subscription
	GetStats() sfu.Stats
}

// JSONSignal serves one websocket connection.
type JSONSignal struct {
	id     string
	router Router
	sender *Sender
	logger logr.Logger

	mu            sync.Mutex
	participantID string
	debounced     func(f func())
}

func NewJSONSignal(r Router, sender *Sender, logger logr.Logger) *JSONSignal {
	id := cuid.New()
	return &JSONSignal{
		id:        id,
		router:    r,
		sender:    sender,
		logger:    logger.WithValues("conn_id", id),
		debounced: debounce.New(100 * time.Millisecond),
	}
}

// ID returns the connection id.
func (p *JSONSignal) ID() string {
	return p.id
}

func (p *JSONSignal) participant() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.participantID == "" {
		return "", errNotJoined
	}
	return p.participantID, nil
}

func unmarshal(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return errMissingParams
	}
	return json.Unmarshal(*req.Params, v)
}

// Handle incoming RPC calls
func (p *JSONSignal) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	replyError := func(err error) {
		_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    500,
			Message: fmt.Sprintf("%s", err),
		})
	}

	result, mutated, err := p.dispatch(req)
	if err != nil {
		p.logger.V(1).Info("rpc failed", "method", req.Method, "err", err.Error())
		replyError(err)
		return
	}
	if !req.Notif {
		_ = conn.Reply(ctx, req.ID, result)
	}
	if mutated {
		p.debounced(func() {
			if err := conn.Notify(ctx, "stats", p.router.GetStats()); err != nil {
				p.logger.Error(err, "error sending stats")
			}
		})
	}
}

func (p *JSONSignal) dispatch(req *jsonrpc2.Request) (result interface{}, mutated bool, err error) {
	switch req.Method {
	case "join":
		var join Join
		if err = unmarshal(req, &join); err != nil {
			return nil, false, err
		}
		if join.ParticipantID == "" {
			join.ParticipantID = p.id
		}
		addr, err := net.ResolveUDPAddr("udp", join.Addr)
		if err != nil {
			return nil, false, err
		}
		p.mu.Lock()
		p.participantID = join.ParticipantID
		p.mu.Unlock()
		p.sender.Join(join.ParticipantID, addr)
		p.logger.Info("participant joined", "participant_id", join.ParticipantID, "addr", addr.String())
		return join, false, nil

	case "leave":
		pid, err := p.participant()
		if err != nil {
			return nil, false, err
		}
		p.leave(pid)
		return true, true, nil

	case "addTrack":
		pid, err := p.participant()
		if err != nil {
			return nil, false, err
		}
		var track sfu.MediaTrack
		if err = unmarshal(req, &track); err != nil {
			return nil, false, err
		}
		if track.ParticipantID == "" {
			track.ParticipantID = pid
		}
		if err = p.router.AddTrack(track); err != nil {
			return nil, false, err
		}
		return track, true, nil

	case "removeTrack":
		var ref TrackRef
		if err = unmarshal(req, &ref); err != nil {
			return nil, false, err
		}
		p.router.RemoveTrack(ref.TrackID)
		return true, true, nil

	case "subscribe":
		pid, err := p.participant()
		if err != nil {
			return nil, false, err
		}
		var sub sfu.Subscription
		if err = unmarshal(req, &sub); err != nil {
			return nil, false, err
		}
		p.router.Subscribe(pid, sub)
		return true, true, nil

	case "unsubscribe":
		pid, err := p.participant()
		if err != nil {
			return nil, false, err
		}
		var unsub Unsubscribe
		if err = unmarshal(req, &unsub); err != nil {
			return nil, false, err
		}
		p.router.Unsubscribe(pid, unsub.TrackID, unsub.EncodingLayerID)
		return true, true, nil

	case "updateBandwidthEstimate":
		pid, err := p.participant()
		if err != nil {
			return nil, false, err
		}
		var est sfu.BandwidthEstimate
		if err = unmarshal(req, &est); err != nil {
			return nil, false, err
		}
		p.router.UpdateBandwidthEstimate(pid, est)
		return true, true, nil

	case "updateQualityMetrics":
		pid, err := p.participant()
		if err != nil {
			return nil, false, err
		}
		var qm sfu.QualityMetrics
		if err = unmarshal(req, &qm); err != nil {
			return nil, false, err
		}
		if qm.Timestamp.IsZero() {
			qm.Timestamp = time.Now()
		}
		p.router.UpdateQualityMetrics(pid, qm)
		return true, true, nil

	case "getTrack":
		var ref TrackRef
		if err = unmarshal(req, &ref); err != nil {
			return nil, false, err
		}
		track, ok := p.router.GetTrack(ref.TrackID)
		if !ok {
			return nil, false, errTrackNotFound
		}
		return track, false, nil

	case "getTracks":
		return p.router.GetTracks(), false, nil

	case "getSubscriptions":
		var ref ParticipantRef
		if req.Params != nil {
			if err = unmarshal(req, &ref); err != nil {
				return nil, false, err
			}
		}
		if ref.ParticipantID == "" {
			if ref.ParticipantID, err = p.participant(); err != nil {
				return nil, false, err
			}
		}
		return p.router.GetSubscriptions(ref.ParticipantID), false, nil

	case "getStats":
		return p.router.GetStats(), false, nil
	}
	return nil, false, fmt.Errorf("unknown method %q", req.Method)
}

func (p *JSONSignal) leave(pid string) {
	p.router.RemoveParticipant(pid)
	p.sender.Leave(pid)
	p.mu.Lock()
	if p.participantID == pid {
		p.participantID = ""
	}
	p.mu.Unlock()
	p.logger.Info("participant left", "participant_id", pid)
}

// Close removes the joined participant, if any.
func (p *JSONSignal) Close() {
	if pid, err := p.participant(); err == nil {
		p.leave(pid)
	}
}
