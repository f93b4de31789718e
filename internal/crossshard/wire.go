package crossshard

import (
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/rlpx"
)

// MsgType enumerates the coordinator/participant 2PC wire messages.
type MsgType uint8

const (
	MsgPrepare MsgType = iota + 1
	MsgVoteYes
	MsgVoteNo
	MsgCommit
	MsgAbort
	MsgAck
	MsgUnprepare
)

const wireVersion = 1

// Message is the signed wire envelope exchanged between coordinator and
// participant shards: (version, msg_type, tx_id, from_shard, to_shard,
// phase, payload_digest, sig). Payload itself travels only in the initial
// PREPARE (via CoordinatorTxState.Payload / PreparedRecord.Payload); every
// later message carries just its digest, so the signature binds to content
// without repeating it over the wire.
type Message struct {
	Version       uint8
	Type          MsgType
	TxID          TxID
	FromShard     ShardID
	ToShard       ShardID
	Phase         Phase
	PayloadDigest common.Hash
	Sig           []byte

	// Resources, Reason and Payload ride alongside the signed envelope but
	// are not part of the signature's preimage (the authenticated pre-image
	// is exactly (version, type, tx_id, sender_shard, receiver_shard, phase,
	// payload_digest)); a participant that receives a PREPARE with tampered
	// Resources or Payload simply locks the wrong set or fails the digest
	// check below, it never bypasses signature verification.
	Resources []ResourceID
	Reason    string

	// Payload carries the raw transaction bytes on a PREPARE message only;
	// every later message in the transaction's lifecycle leaves it nil and
	// relies solely on PayloadDigest.
	Payload []byte
}

type rlpMessage struct {
	Version       uint8
	Type          uint8
	TxID          []byte
	FromShard     uint32
	ToShard       uint32
	Phase         uint8
	PayloadDigest []byte
}

// preimage is the signed content of a Message: Version, Type, TxID,
// FromShard, ToShard, Phase and PayloadDigest (not Sig, Resources, Reason
// or Payload).
func (m *Message) preimage() []byte {
	enc, _ := rlpx.Encode(rlpMessage{
		Version:       m.Version,
		Type:          uint8(m.Type),
		TxID:          txIDBytes(m.TxID),
		FromShard:     uint32(m.FromShard),
		ToShard:       uint32(m.ToShard),
		Phase:         uint8(m.Phase),
		PayloadDigest: m.PayloadDigest.Bytes(),
	})
	return enc
}

// NewMessage builds and signs a Message using the coordinator's lattice key
// pair. Dilithium (mode2) rather than the tx-layer's secp256k1 is used here
// per the domain-stack split: participant-facing 2PC traffic is
// post-quantum-authenticated, account-facing transaction signatures are not.
func NewMessage(typ MsgType, txID TxID, from, to ShardID, phase Phase, payload []byte, kp *crypto.CoordinatorKeyPair) *Message {
	m := &Message{
		Version:       wireVersion,
		Type:          typ,
		TxID:          txID,
		FromShard:     from,
		ToShard:       to,
		Phase:         phase,
		PayloadDigest: crypto.Keccak256(payload),
	}
	m.Sig = kp.SignCoordinatorMessage(m.preimage())
	if typ == MsgPrepare {
		m.Payload = payload
	}
	return m
}

// WithResources attaches a resource list to a PREPARE message; it is not
// part of the signed pre-image (see Message's doc comment).
func (m *Message) WithResources(resources []ResourceID) *Message {
	m.Resources = resources
	return m
}

// WithReason attaches a human-readable refusal reason to a VOTE_NO message.
func (m *Message) WithReason(reason string) *Message {
	m.Reason = reason
	return m
}

// Verify checks m's signature against the claimed signer's public key.
func Verify(m *Message, signerPubKey []byte) error {
	ok, err := crypto.VerifyCoordinatorMessage(signerPubKey, m.preimage(), m.Sig)
	if err != nil {
		return kerrors.Wrap(kerrors.InputInvalid, "coordinator_sig_verify", err)
	}
	if !ok {
		return kerrors.New(kerrors.InputInvalid, "coordinator_sig_invalid")
	}
	return nil
}
