package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultWebRTCConfig mirrors what the browser clients use.
func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// peerConn wraps one PeerConnection toward one remote participant.
// Candidates that arrive before the remote description are buffered and
// flushed once it is set; pion rejects them otherwise.
type peerConn struct {
	remote    string
	pc        *webrtc.PeerConnection
	initiator bool

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func newPeerConn(
	cfg webrtc.Configuration,
	remote string,
	initiator bool,
	tracks []webrtc.TrackLocal,
	onICE func(webrtc.ICECandidateInit),
	onTrack func(*webrtc.TrackRemote),
) (*peerConn, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &peerConn{remote: remote, pc: pc, initiator: initiator}

	// The local capture tracks are shared read-only across every peer
	// connection of the call.
	for _, t := range tracks {
		if _, err := pc.AddTrack(t); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			onICE(c.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "peer").
			Str("remote", remote).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		onTrack(track)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		// No ICE restart or renegotiation on failure: the entry stays until
		// peer-left or local leave removes it.
		log.Info().Str("module", "peer").Str("remote", remote).Str("state", s.String()).Msg("peer state")
	})

	return p, nil
}

// CreateOffer produces and applies the local offer for the initiator side.
func (p *peerConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

// AcceptOffer applies a remote offer and produces the local answer.
func (p *peerConn) AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.setRemote(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// AcceptAnswer applies the remote answer on the initiator side. Nothing is
// sent back for that exchange.
func (p *peerConn) AcceptAnswer(answer webrtc.SessionDescription) error {
	return p.setRemote(answer)
}

func (p *peerConn) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ci := range pending {
		if err := p.pc.AddICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "peer").Str("remote", p.remote).Msg("flush buffered candidate")
		}
	}
	return nil
}

// AddCandidate appends a trickled remote candidate, buffering it when the
// remote description has not been applied yet.
func (p *peerConn) AddCandidate(ci webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, ci)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.pc.AddICECandidate(ci)
}

func (p *peerConn) Close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", p.remote).Msg("close error")
	}
}
