package network

import (
	"sync"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
)

// PeerID identifies a remote node on the gossip/RPC boundary.
type PeerID string

// Peer is one remote connection's bounded message queues. A channel gives
// FIFO ordering for free, satisfying the per-peer order preservation
// requirement for cross-shard messages; a full queue returns an error from
// Send/Deliver rather than dropping the message, per the backpressure
// requirement.
type Peer struct {
	id      PeerID
	outbox  chan NetworkMessage
	inbox   chan NetworkMessage
}

// NewPeer constructs a Peer with queues sized by cfg.
func NewPeer(id PeerID, cfg config.NetworkConfig) *Peer {
	size := cfg.PerPeerQueueSize
	if size <= 0 {
		size = 1
	}
	return &Peer{
		id:     id,
		outbox: make(chan NetworkMessage, size),
		inbox:  make(chan NetworkMessage, size),
	}
}

// ID returns the peer's identity.
func (p *Peer) ID() PeerID { return p.id }

// Send enqueues msg for delivery to this peer. Returns a Timeout-kind error
// (the queue is a finite resource and this is a capacity exhaustion, not a
// malformed request) when the outbound queue is full.
func (p *Peer) Send(msg NetworkMessage) error {
	select {
	case p.outbox <- msg:
		return nil
	default:
		return kerrors.New(kerrors.Timeout, "peer_outbox_full")
	}
}

// Deliver enqueues msg as received from this peer, for local consumption via
// Incoming.
func (p *Peer) Deliver(msg NetworkMessage) error {
	select {
	case p.inbox <- msg:
		return nil
	default:
		return kerrors.New(kerrors.Timeout, "peer_inbox_full")
	}
}

// Outgoing exposes the sink of messages queued for this peer, for the
// transport layer to drain and actually put on the wire.
func (p *Peer) Outgoing() <-chan NetworkMessage { return p.outbox }

// Incoming exposes the stream of messages received from this peer, for C2/
// C4/C5 to consume.
func (p *Peer) Incoming() <-chan NetworkMessage { return p.inbox }

// PeerSet is the registry of connected peers, mirroring the teacher's
// bridgePeerSet (register/unregister under one mutex, errors on duplicate
// or missing peer).
type PeerSet struct {
	cfg config.NetworkConfig

	mu    sync.RWMutex
	peers map[PeerID]*Peer
}

// NewPeerSet constructs an empty PeerSet.
func NewPeerSet(cfg config.NetworkConfig) *PeerSet {
	return &PeerSet{cfg: cfg, peers: make(map[PeerID]*Peer)}
}

// Register adds a new peer, or fails if id is already registered.
func (s *PeerSet) Register(id PeerID) (*Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; ok {
		return nil, kerrors.New(kerrors.InputInvalid, "peer_already_registered")
	}
	p := NewPeer(id, s.cfg)
	s.peers[id] = p
	return p, nil
}

// Unregister removes a peer, or fails if it was never registered.
func (s *PeerSet) Unregister(id PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		return kerrors.New(kerrors.InputInvalid, "peer_not_registered")
	}
	delete(s.peers, id)
	return nil
}

// Peer returns the registered peer for id, or (nil, false).
func (s *PeerSet) Peer(id PeerID) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

// Broadcast enqueues msg to every registered peer, collecting (rather than
// short-circuiting on) individual Send failures so one full queue never
// blocks delivery to the others.
func (s *PeerSet) Broadcast(msg NetworkMessage) []error {
	s.mu.RLock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	var errs []error
	for _, p := range peers {
		if err := p.Send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
