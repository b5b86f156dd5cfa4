package peer

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
)

// RemoteTrackHandler fires when a remote participant's media track arrives.
type RemoteTrackHandler func(remote string, track *webrtc.TrackRemote)

// Manager implements the mesh: one peerConn per remote participant. The
// peers listed in the join reply are dialed as initiator; an unsolicited
// offer makes this side the answerer for that peer.
type Manager struct {
	sig    Signaler
	cfg    webrtc.Configuration
	tracks []webrtc.TrackLocal

	mu      sync.RWMutex
	userID  string
	roomID  string
	peers   map[string]*peerConn
	remotes map[string][]*webrtc.TrackRemote

	trackMu sync.RWMutex
	onTrack RemoteTrackHandler

	done chan struct{}
	stop sync.Once
}

// NewManager wires a Manager to sig and starts routing signaling envelopes.
// tracks are the local capture tracks attached to every peer connection.
func NewManager(sig Signaler, cfg webrtc.Configuration, tracks []webrtc.TrackLocal) *Manager {
	m := &Manager{
		sig:     sig,
		cfg:     cfg,
		tracks:  tracks,
		peers:   make(map[string]*peerConn),
		remotes: make(map[string][]*webrtc.TrackRemote),
		done:    make(chan struct{}),
	}
	go m.loop()
	return m
}

// OnRemoteTrack registers the UI-facing callback. The exposed remote map is
// updated only when a track event fires.
func (m *Manager) OnRemoteTrack(fn RemoteTrackHandler) {
	m.trackMu.Lock()
	m.onTrack = fn
	m.trackMu.Unlock()
}

// Join asks the hub for the room's current participants. Negotiation starts
// when the webrtc:peers reply arrives.
func (m *Manager) Join(roomID, userID string) error {
	m.mu.Lock()
	m.roomID = roomID
	m.userID = userID
	m.mu.Unlock()
	return m.sig.Send(core.EventCallJoin, map[string]string{
		"roomId": roomID,
		"userId": userID,
	})
}

// Leave tells the hub we are gone and tears down every peer connection.
func (m *Manager) Leave() error {
	m.mu.Lock()
	roomID := m.roomID
	peers := m.peers
	m.peers = make(map[string]*peerConn)
	m.remotes = make(map[string][]*webrtc.TrackRemote)
	m.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	if roomID == "" {
		return nil
	}
	return m.sig.Send(core.EventCallLeave, map[string]string{"roomId": roomID})
}

// Remotes returns a snapshot of the remote tracks per peer connection id.
// A failed peer stays listed until peer-left or Leave removes it.
func (m *Manager) Remotes() map[string][]*webrtc.TrackRemote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]*webrtc.TrackRemote, len(m.remotes))
	for id, tracks := range m.remotes {
		cp := make([]*webrtc.TrackRemote, len(tracks))
		copy(cp, tracks)
		out[id] = cp
	}
	return out
}

func (m *Manager) Close() {
	m.stop.Do(func() { close(m.done) })
	_ = m.Leave()
}

func (m *Manager) loop() {
	ch, cancel := m.sig.Subscribe()
	defer cancel()

	for {
		select {
		case <-m.done:
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			m.dispatch(env)
		}
	}
}

func (m *Manager) dispatch(env *core.Envelope) {
	switch env.Event {
	case core.EventCallPeers:
		var p struct {
			Peers []core.CallPeer `json:"peers"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Error().Err(err).Str("module", "peer").Msg("bad peers payload")
			return
		}
		for _, peer := range p.Peers {
			m.initiate(peer.SocketID)
		}
	case core.EventCallSignal:
		var sig core.Signal
		if err := json.Unmarshal(env.Data, &sig); err != nil {
			log.Error().Err(err).Str("module", "peer").Msg("bad signal payload")
			return
		}
		m.handleSignal(sig)
	case core.EventCallPeerLeft:
		var p struct {
			SocketID string `json:"socketId"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		m.dropPeer(p.SocketID)
	}
}

// initiate dials one pre-existing participant: this side creates the
// connection, the offer, and trickles candidates toward them.
func (m *Manager) initiate(remote string) {
	p, err := m.addPeer(remote, true)
	if err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", remote).Msg("initiate peer")
		return
	}
	if p == nil {
		return
	}

	offer, err := p.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", remote).Msg("create offer")
		return
	}
	m.sendDescription(remote, core.SignalOffer, offer)
}

func (m *Manager) handleSignal(sig core.Signal) {
	switch sig.Type {
	case core.SignalOffer:
		m.handleOffer(sig)
	case core.SignalAnswer:
		m.handleAnswer(sig)
	case core.SignalCandidate:
		m.handleCandidate(sig)
	default:
		log.Warn().Str("module", "peer").Str("type", sig.Type).Msg("unknown signal type")
	}
}

func (m *Manager) handleOffer(sig core.Signal) {
	m.mu.RLock()
	_, exists := m.peers[sig.From]
	m.mu.RUnlock()
	if exists {
		// No renegotiation path: an offer for a live peer is dropped.
		log.Warn().Str("module", "peer").Str("remote", sig.From).Msg("offer for existing peer, ignored")
		return
	}

	p, err := m.addPeer(sig.From, false)
	if err != nil || p == nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", sig.From).Msg("answer peer")
		return
	}

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(sig.Description, &offer); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("bad offer description")
		return
	}
	answer, err := p.AcceptOffer(offer)
	if err != nil {
		// Left dangling on purpose: no retry, the entry stays until
		// peer-left removes it.
		log.Error().Err(err).Str("module", "peer").Str("remote", sig.From).Msg("apply offer")
		return
	}
	m.sendDescription(sig.From, core.SignalAnswer, answer)
}

func (m *Manager) handleAnswer(sig core.Signal) {
	m.mu.RLock()
	p, ok := m.peers[sig.From]
	m.mu.RUnlock()
	if !ok {
		log.Warn().Str("module", "peer").Str("remote", sig.From).Msg("answer for unknown peer")
		return
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(sig.Description, &answer); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("bad answer description")
		return
	}
	if err := p.AcceptAnswer(answer); err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", sig.From).Msg("apply answer")
	}
}

func (m *Manager) handleCandidate(sig core.Signal) {
	m.mu.RLock()
	p, ok := m.peers[sig.From]
	m.mu.RUnlock()
	if !ok {
		log.Warn().Str("module", "peer").Str("remote", sig.From).Msg("candidate for unknown peer")
		return
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(sig.Candidate, &ci); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("bad candidate")
		return
	}
	if err := p.AddCandidate(ci); err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", sig.From).Msg("add candidate")
	}
}

// addPeer creates and registers a peerConn for remote. Returns nil when a
// racing dispatch registered one first.
func (m *Manager) addPeer(remote string, initiator bool) (*peerConn, error) {
	p, err := newPeerConn(m.cfg, remote, initiator, m.tracks,
		func(ci webrtc.ICECandidateInit) { m.sendCandidate(remote, ci) },
		func(track *webrtc.TrackRemote) { m.storeTrack(remote, track) },
	)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if _, ok := m.peers[remote]; ok {
		m.mu.Unlock()
		p.Close()
		return nil, nil
	}
	m.peers[remote] = p
	m.mu.Unlock()
	return p, nil
}

func (m *Manager) dropPeer(remote string) {
	m.mu.Lock()
	p, ok := m.peers[remote]
	delete(m.peers, remote)
	delete(m.remotes, remote)
	m.mu.Unlock()
	if ok {
		p.Close()
		log.Info().Str("module", "peer").Str("remote", remote).Msg("peer removed")
	}
}

func (m *Manager) storeTrack(remote string, track *webrtc.TrackRemote) {
	m.mu.Lock()
	m.remotes[remote] = append(m.remotes[remote], track)
	m.mu.Unlock()

	m.trackMu.RLock()
	fn := m.onTrack
	m.trackMu.RUnlock()
	if fn != nil {
		fn(remote, track)
	}
}

func (m *Manager) sendDescription(remote, sigType string, desc webrtc.SessionDescription) {
	raw, err := json.Marshal(desc)
	if err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("marshal description")
		return
	}
	m.mu.RLock()
	userID := m.userID
	m.mu.RUnlock()
	err = m.sig.Send(core.EventCallSignal, core.Signal{
		To:          remote,
		Type:        sigType,
		Description: raw,
		UserID:      userID,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", remote).Msg("send description")
	}
}

func (m *Manager) sendCandidate(remote string, ci webrtc.ICECandidateInit) {
	raw, err := json.Marshal(ci)
	if err != nil {
		return
	}
	err = m.sig.Send(core.EventCallSignal, core.Signal{
		To:        remote,
		Type:      core.SignalCandidate,
		Candidate: raw,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "peer").Str("remote", remote).Msg("send candidate")
	}
}
