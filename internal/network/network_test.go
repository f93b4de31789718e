package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crossshard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

func smallQueueConfig() config.NetworkConfig {
	return config.NetworkConfig{PerPeerQueueSize: 1}
}

func TestPeerSendSucceedsThenFailsOnFullQueue(t *testing.T) {
	p := NewPeer("peer-a", smallQueueConfig())
	msg := TransactionMessage(&txtypes.Transaction{})

	require.NoError(t, p.Send(msg))
	err := p.Send(msg)
	require.Error(t, err, "a second send into a size-1 queue must surface backpressure, not drop")
}

func TestPeerDeliverSucceedsThenFailsOnFullQueue(t *testing.T) {
	p := NewPeer("peer-a", smallQueueConfig())
	msg := TransactionMessage(&txtypes.Transaction{})

	require.NoError(t, p.Deliver(msg))
	err := p.Deliver(msg)
	require.Error(t, err)
}

func TestPeerOutgoingDrainsSentMessages(t *testing.T) {
	p := NewPeer("peer-a", config.NetworkConfig{PerPeerQueueSize: 4})
	msg := TransactionMessage(&txtypes.Transaction{})
	require.NoError(t, p.Send(msg))

	got := <-p.Outgoing()
	assert.Equal(t, KindTransaction, got.Kind)
}

func TestPeerSetRegisterRejectsDuplicate(t *testing.T) {
	s := NewPeerSet(smallQueueConfig())
	_, err := s.Register("peer-a")
	require.NoError(t, err)

	_, err = s.Register("peer-a")
	require.Error(t, err)
}

func TestPeerSetUnregisterRejectsUnknown(t *testing.T) {
	s := NewPeerSet(smallQueueConfig())
	err := s.Unregister("ghost")
	require.Error(t, err)
}

func TestPeerSetBroadcastContinuesPastOneFullPeer(t *testing.T) {
	s := NewPeerSet(smallQueueConfig())
	full, err := s.Register("full")
	require.NoError(t, err)
	_, err = s.Register("open")
	require.NoError(t, err)

	msg := TransactionMessage(&txtypes.Transaction{})
	require.NoError(t, full.Send(msg)) // fill "full"'s size-1 outbox

	errs := s.Broadcast(msg)
	require.Len(t, errs, 1, "only the already-full peer should report a send failure")

	open, ok := s.Peer("open")
	require.True(t, ok)
	select {
	case <-open.Outgoing():
	default:
		t.Fatal("broadcast must still have reached the peer with room")
	}
}

func TestHubSendFailsWithNoRoute(t *testing.T) {
	peers := NewPeerSet(smallQueueConfig())
	hub := NewHub(peers)

	err := hub.Send(crossshard.ShardID(1), &crossshard.Message{})
	require.Error(t, err)
}

func TestHubSendFailsWhenRoutedPeerNotRegistered(t *testing.T) {
	peers := NewPeerSet(smallQueueConfig())
	hub := NewHub(peers)
	hub.RouteShard(1, "ghost")

	err := hub.Send(crossshard.ShardID(1), &crossshard.Message{})
	require.Error(t, err)
}

func TestHubSendRoutesToRegisteredPeer(t *testing.T) {
	peers := NewPeerSet(config.NetworkConfig{PerPeerQueueSize: 4})
	hub := NewHub(peers)
	_, err := peers.Register("shard-1-peer")
	require.NoError(t, err)
	hub.RouteShard(1, "shard-1-peer")

	msg := &crossshard.Message{TxID: crossshard.TxID{0x01}}
	require.NoError(t, hub.Send(crossshard.ShardID(1), msg))

	p, _ := peers.Peer("shard-1-peer")
	got := <-p.Outgoing()
	require.Equal(t, KindCrossShard, got.Kind)
	assert.Equal(t, msg.TxID, got.CrossShard.TxID)
}

func TestHubBroadcastTransactionReachesAllPeers(t *testing.T) {
	peers := NewPeerSet(config.NetworkConfig{PerPeerQueueSize: 4})
	hub := NewHub(peers)
	_, err := peers.Register("a")
	require.NoError(t, err)
	_, err = peers.Register("b")
	require.NoError(t, err)

	tx := &txtypes.Transaction{TxType: txtypes.TxTypeTransfer}
	hub.BroadcastTransaction(tx)

	for _, id := range []PeerID{"a", "b"} {
		p, _ := peers.Peer(id)
		select {
		case got := <-p.Outgoing():
			assert.Equal(t, KindTransaction, got.Kind)
		default:
			t.Fatalf("peer %s never received the broadcast transaction", id)
		}
	}
}
