// Package txtypes defines the node's data model: Transaction, Account,
// Block, and Receipt. Field naming follows the teacher's transaction
// structs (blockchain/types/tx_internal_data_value_transfer.go:
// AccountNonce, Price, GasLimit, Recipient, Amount, TxSignatures), but
// collapsed from the teacher's N-interface-per-tx-type design into one
// tagged struct — this core has no fee-delegation or multisig account-key
// machinery to justify the teacher's TxInternalData polymorphism.
package txtypes

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/rlpx"
)

// TxType enumerates the transaction kinds the execution engine understands.
type TxType uint8

const (
	TxTypeTransfer TxType = iota
	TxTypeContractCreate
	TxTypeCall
	TxTypeStake
	TxTypeUnstake
	TxTypeDelegate
	TxTypeClaimReward
	TxTypeBatch
	TxTypeSystem
	TxTypeCustom
)

// SignatureLength is the canonical 65-byte secp256k1 signature length.
const SignatureLength = 65

// Transaction is the single tagged struct this core operates on, per
// field names mirroring the teacher's AccountNonce/Price/GasLimit/Recipient/
// Amount/TxSignatures convention.
type Transaction struct {
	TxType       TxType
	AccountNonce uint64
	From         common.Address
	Recipient    *common.Address // nil for ContractCreate
	Amount       *big.Int
	Price        uint64 // gas price
	GasLimit     uint64
	Payload      []byte
	Signature    []byte // 65-byte secp256k1 signature
	CustomKind   uint8  // only meaningful when TxType == TxTypeCustom

	cachedHash *common.Hash
}

// rlpTransaction is the canonical wire/hash encoding: every field of
// Transaction in order, excluding the hash itself (spec §6: "the hash field
// is excluded from the pre-image").
type rlpTransaction struct {
	TxType       uint8
	AccountNonce uint64
	From         common.Address
	HasRecipient bool
	Recipient    common.Address
	Amount       []byte
	Price        uint64
	GasLimit     uint64
	Payload      []byte
	CustomKind   uint8
}

func (tx *Transaction) toRLP() rlpTransaction {
	r := rlpTransaction{
		TxType:       uint8(tx.TxType),
		AccountNonce: tx.AccountNonce,
		From:         tx.From,
		Amount:       tx.Amount.Bytes(),
		Price:        tx.Price,
		GasLimit:     tx.GasLimit,
		Payload:      tx.Payload,
		CustomKind:   tx.CustomKind,
	}
	if tx.Recipient != nil {
		r.HasRecipient = true
		r.Recipient = *tx.Recipient
	}
	return r
}

// SigningHash returns the hash signed over: the canonical encoding of every
// field except the signature and the cached hash.
func (tx *Transaction) SigningHash() common.Hash {
	enc := rlpx.MustEncode(tx.toRLP())
	return keccak(enc)
}

// Hash returns the transaction's content hash, H(canonical_encode(rest)),
// computed (and cached) over every field excluding the hash itself.
func (tx *Transaction) Hash() common.Hash {
	if tx.cachedHash != nil {
		return *tx.cachedHash
	}
	h := tx.SigningHash()
	tx.cachedHash = &h
	return h
}

// EncodeRLP implements the wire encoding, following the teacher's
// EncodeRLP(w io.Writer) error convention (node/sc/bridge_manager.go's
// BridgeJournal.EncodeRLP).
func (tx *Transaction) EncodeRLP() ([]byte, error) {
	type wire struct {
		Body rlpTransaction
		Sig  []byte
	}
	return rlpx.Encode(wire{Body: tx.toRLP(), Sig: tx.Signature})
}

// DecodeRLP implements the wire decoding counterpart to EncodeRLP.
func (tx *Transaction) DecodeRLP(b []byte) error {
	type wire struct {
		Body rlpTransaction
		Sig  []byte
	}
	var w wire
	if err := rlpx.Decode(b, &w); err != nil {
		return err
	}
	tx.TxType = TxType(w.Body.TxType)
	tx.AccountNonce = w.Body.AccountNonce
	tx.From = w.Body.From
	if w.Body.HasRecipient {
		r := w.Body.Recipient
		tx.Recipient = &r
	} else {
		tx.Recipient = nil
	}
	tx.Amount = new(big.Int).SetBytes(w.Body.Amount)
	tx.Price = w.Body.Price
	tx.GasLimit = w.Body.GasLimit
	tx.Payload = w.Body.Payload
	tx.CustomKind = w.Body.CustomKind
	tx.Signature = w.Sig
	tx.cachedHash = nil
	return nil
}

// Cost returns value + gas_price*gas_limit, the balance an account must have
// to be admitted to the mempool.
func (tx *Transaction) Cost() *big.Int {
	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Price), new(big.Int).SetUint64(tx.GasLimit))
	return new(big.Int).Add(tx.Amount, gasCost)
}

// Priority is gas_price * gas_limit, the mempool/conflict-group ordering key.
func (tx *Transaction) Priority() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(tx.Price), new(big.Int).SetUint64(tx.GasLimit))
}

// AccountKind distinguishes native accounts from EVM-deployed accounts.
type AccountKind uint8

const (
	AccountKindNative AccountKind = iota
	AccountKindEvm
)

// Account is the per-address world-state record.
type Account struct {
	Balance     *uint256.Int
	Nonce       uint64
	Kind        AccountKind
	CodeHash    *common.Hash // present iff Kind == AccountKindEvm and deployed
	StorageRoot *common.Hash // present iff Kind == AccountKindEvm and deployed
}

// rlpAccount is the account's RLP-encoded on-disk shape:
// (nonce, balance, storage_root, code_hash), per the external-interfaces
// persisted-state layout.
type rlpAccount struct {
	Nonce       uint64
	Balance     []byte
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EncodeRLP returns the canonical (nonce, balance, storage_root, code_hash)
// encoding stored at accounts/{addr}.
func (a *Account) EncodeRLP() ([]byte, error) {
	enc := rlpAccount{Nonce: a.Nonce, Balance: a.Balance.Bytes()}
	if a.StorageRoot != nil {
		enc.StorageRoot = *a.StorageRoot
	}
	if a.CodeHash != nil {
		enc.CodeHash = *a.CodeHash
	}
	return rlpx.Encode(enc)
}

// DecodeRLP parses the encoding EncodeRLP produces. Kind is inferred by the
// caller (non-zero CodeHash ⇒ Evm), since the RLP layout carries no explicit
// kind tag.
func (a *Account) DecodeRLP(b []byte) error {
	var enc rlpAccount
	if err := rlpx.Decode(b, &enc); err != nil {
		return err
	}
	a.Nonce = enc.Nonce
	a.Balance = new(uint256.Int).SetBytes(enc.Balance)
	a.Kind = AccountKindNative
	if !enc.CodeHash.IsZero() {
		ch := enc.CodeHash
		sr := enc.StorageRoot
		a.CodeHash = &ch
		a.StorageRoot = &sr
		a.Kind = AccountKindEvm
	}
	return nil
}

// BlockHeader is the block header described by the external-interfaces
// section: fields in listed order, big-endian numerics, length-prefixed
// variable fields.
type BlockHeader struct {
	Height       uint64
	PrevHash     common.Hash
	MerkleRoot   common.Hash
	StateRoot    common.Hash
	ReceiptsRoot common.Hash
	Producer     common.Address
	Timestamp    uint64
	Difficulty   uint64
	HeaderNonce  uint64
}

// Hash returns Keccak256(canonical_encode(header)).
func (h *BlockHeader) Hash() common.Hash {
	return keccak(rlpx.MustEncode(h))
}

// Block bundles a header with its transactions and an optional producer
// signature.
type Block struct {
	Header    BlockHeader
	Txs       []*Transaction
	Signature []byte
}

// Hash returns the block's identity, the header hash.
func (b *Block) Hash() common.Hash { return b.Header.Hash() }

// EncodeRLP implements the wire encoding for a full block.
func (b *Block) EncodeRLP() ([]byte, error) {
	type wireTx struct {
		Body rlpTransaction
		Sig  []byte
	}
	wireTxs := make([]wireTx, len(b.Txs))
	for i, tx := range b.Txs {
		wireTxs[i] = wireTx{Body: tx.toRLP(), Sig: tx.Signature}
	}
	type wire struct {
		Header BlockHeader
		Txs    []wireTx
		Sig    []byte
	}
	return rlpx.Encode(wire{Header: b.Header, Txs: wireTxs, Sig: b.Signature})
}

// DecodeRLP implements the wire decoding for a full block.
func (b *Block) DecodeRLP(raw []byte) error {
	type wireTx struct {
		Body rlpTransaction
		Sig  []byte
	}
	type wire struct {
		Header BlockHeader
		Txs    []wireTx
		Sig    []byte
	}
	var w wire
	if err := rlpx.Decode(raw, &w); err != nil {
		return err
	}
	b.Header = w.Header
	b.Signature = w.Sig
	b.Txs = make([]*Transaction, len(w.Txs))
	for i, wt := range w.Txs {
		tx := &Transaction{
			TxType:       TxType(wt.Body.TxType),
			AccountNonce: wt.Body.AccountNonce,
			From:         wt.Body.From,
			Amount:       new(big.Int).SetBytes(wt.Body.Amount),
			Price:        wt.Body.Price,
			GasLimit:     wt.Body.GasLimit,
			Payload:      wt.Body.Payload,
			CustomKind:   wt.Body.CustomKind,
			Signature:    wt.Sig,
		}
		if wt.Body.HasRecipient {
			r := wt.Body.Recipient
			tx.Recipient = &r
		}
		b.Txs[i] = tx
	}
	return nil
}

// ReceiptStatus is the outcome of executing a single transaction.
type ReceiptStatus uint8

const (
	ReceiptSuccess ReceiptStatus = iota
	ReceiptFailed
)

// Receipt is the outcome record of a single transaction.
type Receipt struct {
	TxHash          common.Hash
	Status          ReceiptStatus
	GasUsed         uint64
	FailureReason   string
	Logs            [][]byte
	ContractAddress *common.Address
}

func keccak(b []byte) common.Hash {
	return crypto.Keccak256(b)
}
