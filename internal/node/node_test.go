package node

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/blockproducer"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crossshard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/network"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

type acceptAllConsensus struct{}

func (acceptAllConsensus) Accept(_ *txtypes.BlockHeader, _ []*txtypes.Transaction, _ []*txtypes.Receipt) (bool, error) {
	return true, nil
}

var _ blockproducer.ConsensusGate = acceptAllConsensus{}

func newTestNode(t *testing.T, peerKeys map[crossshard.ShardID][]byte) *NodeContext {
	t.Helper()
	cfg := config.DefaultNodeConfig
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.Backend = "leveldb"

	if peerKeys == nil {
		peerKeys = map[crossshard.ShardID][]byte{}
	}

	keys, err := crypto.GenerateCoordinatorKeyPair()
	require.NoError(t, err)

	n, err := New(&cfg, Deps{
		Address:   common.Address{0x01},
		Keys:      keys,
		PeerKeys:  peerKeys,
		Consensus: acceptAllConsensus{},
	})
	require.NoError(t, err)
	// Start so Stop (in cleanup) has its dispatch/sweep goroutines to join;
	// these tests drive handleInbound directly rather than through the
	// dispatch loop, so starting it merely makes shutdown well-defined.
	n.Start()
	t.Cleanup(n.Stop)
	return n
}

func signedTransfer(t *testing.T, nonce uint64, amount int64) *txtypes.Transaction {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	to := common.Address{0xAB}
	tx := &txtypes.Transaction{
		TxType:       txtypes.TxTypeTransfer,
		AccountNonce: nonce,
		From:         crypto.PubkeyToAddress(priv.PubKey()),
		Recipient:    &to,
		Amount:       big.NewInt(amount),
		Price:        5,
		GasLimit:     21000,
	}
	sig, err := crypto.Sign(tx.SigningHash(), priv)
	require.NoError(t, err)
	tx.Signature = sig
	return tx
}

func TestHandleInboundTransactionAdmitsToMempool(t *testing.T) {
	n := newTestNode(t, nil)
	tx := signedTransfer(t, 0, 10)
	require.NoError(t, n.State.PutAccount(tx.From, &txtypes.Account{
		Balance: uint256.NewInt(1_000_000),
		Nonce:   0,
	}))

	n.handleInbound(network.TransactionMessage(tx))
	assert.Equal(t, 1, n.Mempool.Size())
}

func TestHandleInboundTransactionRejectedStaysOutOfMempool(t *testing.T) {
	n := newTestNode(t, nil)
	tx := signedTransfer(t, 0, 10) // sender account never seeded: zero balance

	n.handleInbound(network.TransactionMessage(tx))
	assert.Equal(t, 0, n.Mempool.Size())
}

func TestHandleBlockAcceptsExtendingBlock(t *testing.T) {
	n := newTestNode(t, nil)
	header := txtypes.BlockHeader{Height: 1, PrevHash: common.Hash{}}
	block := &txtypes.Block{Header: header}

	n.handleInbound(network.BlockMessage(block))
	assert.Equal(t, uint64(1), n.State.Height())

	stored, ok, err := n.State.GetBlockByHeight(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.Header.Height, stored.Header.Height)
}

func TestHandleBlockDropsNonExtendingBlock(t *testing.T) {
	n := newTestNode(t, nil)
	first := &txtypes.Block{Header: txtypes.BlockHeader{Height: 1, PrevHash: common.Hash{}}}
	n.handleInbound(network.BlockMessage(first))
	require.Equal(t, uint64(1), n.State.Height())

	stale := &txtypes.Block{Header: txtypes.BlockHeader{Height: 1, PrevHash: common.Hash{0x99}}}
	n.handleInbound(network.BlockMessage(stale))

	assert.Equal(t, uint64(1), n.State.Height(), "a block that doesn't extend the head must be dropped")
}

func TestHandleCrossShardPrepareRepliesThroughHub(t *testing.T) {
	peerKeys, err := crypto.GenerateCoordinatorKeyPair()
	require.NoError(t, err)
	n := newTestNode(t, map[crossshard.ShardID][]byte{
		crossshard.ShardID(9): peerKeys.PublicKeyBytes(),
	})

	_, err = n.Peers.Register("reply-peer")
	require.NoError(t, err)
	n.Hub.RouteShard(crossshard.ShardID(9), "reply-peer")

	payload := []byte("payload")
	msg := crossshard.NewMessage(crossshard.MsgPrepare, crossshard.TxID{0x01}, crossshard.ShardID(9), crossshard.ShardID(0), crossshard.PhasePrepare, payload, peerKeys).
		WithResources([]crossshard.ResourceID{"acct:1"})

	n.handleInbound(network.CrossShardMessage(msg))

	peer, _ := n.Peers.Peer("reply-peer")
	select {
	case got := <-peer.Outgoing():
		require.Equal(t, network.KindCrossShard, got.Kind)
		assert.Equal(t, crossshard.MsgVoteYes, got.CrossShard.Type)
	default:
		t.Fatal("expected a VOTE_YES reply to be routed back through the hub")
	}
}
