// Package network defines the typed message surface C2/C4/C5 consume
// (NetworkMessage) and the per-peer bounded inbox/outbox that moves it,
// following the teacher's peer queue shape (node/sc/bridgepeer.go's
// queuedTxs/queuedProps channel-per-kind broadcaster) but surfacing a full
// queue as a Send error instead of the teacher's silent peer-drop — the
// design notes require backpressure to be observable, not dropped.
package network

import (
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crossshard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

// MessageKind tags a NetworkMessage's payload variant.
type MessageKind uint8

const (
	KindTransaction MessageKind = iota
	KindBlock
	KindCrossShard
)

// NetworkMessage is the tagged union every inbound/outbound channel carries.
// Exactly one of Transaction/Block/CrossShard is set, selected by Kind.
type NetworkMessage struct {
	Kind        MessageKind
	Transaction *txtypes.Transaction
	Block       *txtypes.Block
	CrossShard  *crossshard.Message
}

// TransactionMessage wraps a transaction for broadcast.
func TransactionMessage(tx *txtypes.Transaction) NetworkMessage {
	return NetworkMessage{Kind: KindTransaction, Transaction: tx}
}

// BlockMessage wraps a block for broadcast.
func BlockMessage(b *txtypes.Block) NetworkMessage {
	return NetworkMessage{Kind: KindBlock, Block: b}
}

// CrossShardMessage wraps a signed 2PC wire message (PREPARE/VOTE_YES/
// VOTE_NO/COMMIT/ABORT/ACK/UNPREPARE — the variant lives in the message's
// own Type field). A PREPARE message carries its raw payload in m.Payload;
// every later message in the same transaction's lifecycle carries none.
func CrossShardMessage(m *crossshard.Message) NetworkMessage {
	return NetworkMessage{Kind: KindCrossShard, CrossShard: m}
}
