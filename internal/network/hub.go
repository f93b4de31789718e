package network

import (
	"sync"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crossshard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleNetwork)

// Hub is this node's view of the gossip/RPC boundary: a PeerSet plus a
// static shard-to-peer routing table, so the cross-shard coordinator can
// address a ShardID without knowing which peer currently serves it.
type Hub struct {
	peers *PeerSet

	mu      sync.RWMutex
	routes  map[crossshard.ShardID]PeerID
}

// NewHub constructs a Hub over peers, with an initially empty routing table.
func NewHub(peers *PeerSet) *Hub {
	return &Hub{peers: peers, routes: make(map[crossshard.ShardID]PeerID)}
}

// RouteShard binds a ShardID to the peer that serves it. Call again to
// repoint a route (e.g. after reconnecting to a shard under a new peer).
func (h *Hub) RouteShard(shard crossshard.ShardID, peer PeerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes[shard] = peer
}

// Send implements crossshard.Transport: look up the peer serving shard, then
// enqueue a CrossShardMessage on its outbox. A full queue or unrouted shard
// surfaces as an error to the caller, never a silent drop.
func (h *Hub) Send(shard crossshard.ShardID, msg *crossshard.Message) error {
	h.mu.RLock()
	peerID, ok := h.routes[shard]
	h.mu.RUnlock()
	if !ok {
		return kerrors.New(kerrors.InputInvalid, "no_route_to_shard")
	}

	peer, ok := h.peers.Peer(peerID)
	if !ok {
		return kerrors.New(kerrors.InputInvalid, "route_peer_not_registered")
	}
	return peer.Send(CrossShardMessage(msg))
}

// BroadcastTransaction fans a newly admitted transaction out to every peer,
// for mempool propagation. Per-peer Send failures are logged, not raised —
// one congested peer must not block gossip to the rest (mirrors the
// teacher's broadcast loop continuing past a single failed peer).
func (h *Hub) BroadcastTransaction(tx *txtypes.Transaction) {
	h.broadcast(TransactionMessage(tx))
}

// BroadcastBlock fans a newly produced block out to every peer.
func (h *Hub) BroadcastBlock(b *txtypes.Block) {
	h.broadcast(BlockMessage(b))
}

func (h *Hub) broadcast(msg NetworkMessage) {
	for _, err := range h.peers.Broadcast(msg) {
		logger.Warn("broadcast send failed for one peer", "err", err)
	}
}
