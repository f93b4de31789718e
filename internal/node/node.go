// Package node assembles C1-C6 into one running process. Per the design
// notes' message-passing topology (replacing the original source's cyclic
// smart-pointer ownership), NodeContext is the only thing that holds every
// component's handle; components themselves hold only the narrow interfaces
// they need (StateReader, Transport, ConsensusGate) and talk to each other
// through channels the supervisor wires, never through back-references to
// each other.
package node

import (
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/blockproducer"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crossshard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/execution"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/mempool"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/network"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/state"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleNode)

// NodeContext is the top-level supervisor: one instance per process, built
// once at startup from a NodeConfig and never mutated in place except
// through the components it owns.
type NodeContext struct {
	cfg *config.NodeConfig

	kv    database.KvStore
	State *state.StateStore

	Mempool    *mempool.Mempool
	Engine     *execution.Engine
	Coordinator *crossshard.Coordinator
	Producer   *blockproducer.Producer

	Peers *network.PeerSet
	Hub   *network.Hub

	inbound chan network.NetworkMessage
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Deps bundles the constructor inputs NodeConfig alone cannot provide:
// this node's producer/account identity, its lattice keypair, the peer
// shards' public keys for 2PC signature verification, and the consensus
// seam ProduceRound hands finished candidates to.
type Deps struct {
	Address      common.Address
	Keys         *crypto.CoordinatorKeyPair
	PeerKeys     map[crossshard.ShardID][]byte
	Consensus    blockproducer.ConsensusGate
}

// New opens storage and constructs every component, wiring them through the
// narrow interfaces each one declares rather than handing out concrete
// sibling references.
func New(cfg *config.NodeConfig, deps Deps) (*NodeContext, error) {
	cfg.Sanitize()

	var kv database.KvStore
	var err error
	switch cfg.Storage.Backend {
	case "badger":
		kv, err = database.OpenBadgerDB(cfg.Storage.DataDir)
	default:
		kv, err = database.OpenLevelDB(cfg.Storage.DataDir)
	}
	if err != nil {
		return nil, kerrors.Wrap(kerrors.StorageFault, "open_storage", err)
	}

	st, err := state.New(kv, common.Hash{})
	if err != nil {
		return nil, err
	}

	mp := mempool.New(cfg.Mempool, st)
	engine := execution.New(cfg.Execution)

	peers := network.NewPeerSet(cfg.Network)
	hub := network.NewHub(peers)

	csStorage := crossshard.NewStorage(kv)
	coordinator := crossshard.NewCoordinator(cfg.Coordinator, csStorage, deps.Keys, deps.PeerKeys, hub, st)
	if err := coordinator.Recover(); err != nil {
		return nil, err
	}

	producer := blockproducer.New(cfg.BlockProducer, mp, engine, st, deps.Consensus, deps.Address)

	return &NodeContext{
		cfg:         cfg,
		kv:          kv,
		State:       st,
		Mempool:     mp,
		Engine:      engine,
		Coordinator: coordinator,
		Producer:    producer,
		Peers:       peers,
		Hub:         hub,
		inbound:     make(chan network.NetworkMessage, cfg.Network.PerPeerQueueSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// RegisterPeer adds a peer and starts forwarding its inbound stream into the
// shared dispatch loop — the message-passing edge between the network
// boundary and every other component, with no component holding a Peer
// handle directly.
func (n *NodeContext) RegisterPeer(id network.PeerID) (*network.Peer, error) {
	p, err := n.Peers.Register(id)
	if err != nil {
		return nil, err
	}
	go n.pumpPeer(p)
	return p, nil
}

func (n *NodeContext) pumpPeer(p *network.Peer) {
	for {
		select {
		case <-n.stopCh:
			return
		case msg, ok := <-p.Incoming():
			if !ok {
				return
			}
			select {
			case n.inbound <- msg:
			case <-n.stopCh:
				return
			}
		}
	}
}

// Start launches the coordinator's timeout sweep and the inbound dispatch
// loop. Block production is driven externally (by a ticker or a consensus
// callback), via ProduceRound — it is not an internally looping goroutine
// here, matching the teacher's worker being driven by an external mining
// trigger rather than free-running.
func (n *NodeContext) Start() {
	n.Coordinator.Start()
	go n.dispatchLoop()
}

// Stop shuts the node down in reverse dependency order: stop accepting new
// inbound work, stop the coordinator sweep, close storage last so anything
// still flushing has a live handle.
func (n *NodeContext) Stop() {
	close(n.stopCh)
	<-n.doneCh
	n.Coordinator.Stop()
	if err := n.kv.Close(); err != nil {
		logger.Error("storage close failed", "err", err)
	}
}

// dispatchLoop is the supervisor's single fan-in point: every peer's inbound
// stream lands here and is routed by message kind, replacing the cyclic
// component-to-component references the original source used.
func (n *NodeContext) dispatchLoop() {
	defer close(n.doneCh)
	for {
		select {
		case <-n.stopCh:
			return
		case msg := <-n.inbound:
			n.handleInbound(msg)
		}
	}
}

func (n *NodeContext) handleInbound(msg network.NetworkMessage) {
	switch msg.Kind {
	case network.KindTransaction:
		if _, err := n.Mempool.Add(msg.Transaction); err != nil {
			logger.Debug("rejected gossiped transaction", "err", err)
		}

	case network.KindBlock:
		n.handleBlock(msg.Block)

	case network.KindCrossShard:
		n.handleCrossShard(msg.CrossShard)
	}
}

// handleBlock accepts a peer-produced block into local state when it
// extends the current head. Block propagation/sync beyond this single-hop
// acceptance (fork choice, historical backfill) is out of scope for this
// core.
func (n *NodeContext) handleBlock(b *txtypes.Block) {
	head, ok, err := n.State.LatestBlock()
	if err != nil {
		logger.Error("latest block lookup failed", "err", err)
		return
	}
	if ok && b.Header.PrevHash != head.Hash() {
		logger.Debug("dropping non-extending block", "height", b.Header.Height)
		return
	}
	if err := n.State.PutBlock(b); err != nil {
		logger.Error("failed to store gossiped block", "err", err)
		return
	}
	n.State.SetHeight(b.Header.Height)
	for _, tx := range b.Txs {
		n.Mempool.MarkExecuted(tx.Hash())
	}
}

// handleCrossShard dispatches a signed 2PC message to the coordinator's
// initiator or participant role by message type, and sends back whatever
// reply the handler produces.
func (n *NodeContext) handleCrossShard(msg *crossshard.Message) {
	var (
		reply *crossshard.Message
		err   error
	)
	switch msg.Type {
	case crossshard.MsgPrepare:
		reply, err = n.Coordinator.HandlePrepare(msg)
	case crossshard.MsgVoteYes, crossshard.MsgVoteNo, crossshard.MsgUnprepare:
		err = n.Coordinator.HandleVote(msg)
	case crossshard.MsgCommit:
		reply, err = n.Coordinator.HandleCommit(msg)
	case crossshard.MsgAbort:
		reply, err = n.Coordinator.HandleAbort(msg)
	case crossshard.MsgAck:
		err = n.Coordinator.HandleAck(msg)
	}
	if err != nil {
		if kerrors.IsFatal(err) {
			logger.Error("fatal error handling cross-shard message", "type", msg.Type, "err", err)
		} else {
			logger.Warn("cross-shard message rejected", "type", msg.Type, "err", err)
		}
		return
	}
	if reply == nil {
		return
	}
	if err := n.Hub.Send(reply.ToShard, reply); err != nil {
		logger.Warn("cross-shard reply send failed", "err", err)
	}
}

// RunBlockProduction drives ProduceRound on a fixed interval until Stop is
// called, the simplest external trigger a standalone process can use.
func (n *NodeContext) RunBlockProduction(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			block, err := n.Producer.ProduceRound()
			if err != nil {
				logger.Error("block production round failed", "err", err)
				continue
			}
			if block != nil {
				n.Hub.BroadcastBlock(block)
			}
		}
	}
}
