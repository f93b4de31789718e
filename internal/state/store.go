// Package state implements the account/EVM state store: the Merkle-
// Patricia-Trie-rooted account store mutated by the execution engine and
// the cross-shard coordinator, and read by the block producer. Grounded on
// the teacher's blockchain/state package shape (database.go's cached-trie
// wrapper, account_common.go's RLP account record) and storage/database's
// block-by-hash/height secondary index (db_manager.go).
package state

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/trie"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleState)

const accountCacheSize = 4096

// SnapshotID identifies a save point on the journal stack: the journal
// length at the moment the snapshot was opened.
type SnapshotID int

// StateStore is the node's single account/EVM world-state store. Only one
// uncommitted snapshot stack is allowed at a time, held by the block
// producer for the duration of a round.
type StateStore struct {
	mu sync.Mutex

	kv          database.KvStore
	nodeStore   trie.NodeStore
	accountTrie *trie.Trie

	accountCache *lru.Cache // common.Address -> *txtypes.Account
	journal      []journalEntry

	height uint64
}

// New opens a StateStore over kv, loading the account trie rooted at root
// (the zero hash for a fresh chain).
func New(kv database.KvStore, root common.Hash) (*StateStore, error) {
	ns := &kvNodeStore{kv: kv}
	cache, err := lru.New(accountCacheSize)
	if err != nil {
		return nil, err
	}
	s := &StateStore{
		kv:           kv,
		nodeStore:    ns,
		accountTrie:  trie.New(ns),
		accountCache: cache,
	}
	if !root.IsZero() {
		// The trie is populated lazily from the node store as paths are
		// walked; nothing to preload eagerly here.
		logger.Info("opened state store", "root", root.Hex())
	}
	return s, nil
}

// journalEntry is one undoable mutation, recorded so Rollback can replay the
// journal in reverse per the write-barrier design.
type journalEntry struct {
	accountAddr *common.Address
	prevAccount *txtypes.Account // nil means the account did not exist before

	storageAddr *common.Address
	storageSlot *common.Hash
	prevValue   []byte // nil means the slot did not exist before

	heightBefore *uint64
}

// GetAccount returns the account at addr, or (nil, false) if absent.
// NotFound is a value, never an error.
func (s *StateStore) GetAccount(addr common.Address) (*txtypes.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(addr)
}

func (s *StateStore) getAccountLocked(addr common.Address) (*txtypes.Account, bool, error) {
	if v, ok := s.accountCache.Get(addr); ok {
		if v == nil {
			return nil, false, nil
		}
		acc := *v.(*txtypes.Account)
		return &acc, true, nil
	}
	enc, ok := s.accountTrie.Get(addr.Bytes())
	if !ok {
		s.accountCache.Add(addr, nil)
		return nil, false, nil
	}
	acc := &txtypes.Account{}
	if err := acc.DecodeRLP(enc); err != nil {
		return nil, false, kerrors.Wrap(kerrors.StorageFault, "account_decode", err)
	}
	cached := *acc
	s.accountCache.Add(addr, &cached)
	return acc, true, nil
}

// PutAccount writes the account record at addr, recording the previous
// value into the current journal for rollback.
func (s *StateStore) PutAccount(addr common.Address, acc *txtypes.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed, err := s.getAccountLocked(addr)
	if err != nil {
		return err
	}
	entry := journalEntry{accountAddr: &addr}
	if existed {
		entry.prevAccount = prev
	}
	s.journal = append(s.journal, entry)

	enc, err := acc.EncodeRLP()
	if err != nil {
		return kerrors.Wrap(kerrors.StorageFault, "account_encode", err)
	}
	s.accountTrie.Update(addr.Bytes(), enc)
	cached := *acc
	s.accountCache.Add(addr, &cached)
	return nil
}

// DeleteAccount removes the account at addr. Forbidden when the account has
// a non-empty storage root (spec §9 open-question decision).
func (s *StateStore) DeleteAccount(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed, err := s.getAccountLocked(addr)
	if err != nil {
		return err
	}
	if existed && prev.StorageRoot != nil && !prev.StorageRoot.IsZero() {
		return kerrors.New(kerrors.InputInvalid, kerrors.ReasonStorageRootPresent)
	}

	entry := journalEntry{accountAddr: &addr}
	if existed {
		entry.prevAccount = prev
	}
	s.journal = append(s.journal, entry)

	s.accountTrie.Delete(addr.Bytes())
	s.accountCache.Add(addr, nil)
	return nil
}

// Height returns the store's current block height.
func (s *StateStore) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// SetHeight advances the store's height. Only callable by the block
// producer after a successful apply.
func (s *StateStore) SetHeight(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.height
	s.journal = append(s.journal, journalEntry{heightBefore: &prev})
	s.height = h
}

// StateRoot returns the Merkle-Patricia-Trie root over every account,
// RLP-encoded as (nonce, balance, storage_root, code_hash). Deterministic
// regardless of account insertion order.
func (s *StateStore) StateRoot() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountTrie.Hash()
}

// Commit persists every trie node touched since the store was opened (or
// last committed) and returns the new root. Retried once on I/O fault, then
// fatal — per spec, the chain cannot proceed without a consistent view.
func (s *StateStore) Commit() (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.accountTrie.Commit()
	if err != nil {
		root, err = s.accountTrie.Commit()
		if err != nil {
			return common.Hash{}, kerrors.Wrap(kerrors.StorageFault, "trie_commit", err)
		}
	}
	return root, nil
}

// BeginSnapshot opens a new save point and returns its id.
func (s *StateStore) BeginSnapshot() SnapshotID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SnapshotID(len(s.journal))
}

// CommitSnapshot keeps every mutation made since id. The journal entries
// are left in place, so they become part of the enclosing snapshot (or
// permanent, if id was the outermost snapshot).
func (s *StateStore) CommitSnapshot(id SnapshotID) {
	// No-op by design: entries already applied to the live trie/cache.
	// Retained as an explicit call so BlockProducer's round structure
	// matches the public contract exactly.
	_ = id
}

// RollbackSnapshot discards every layer down to and including id, replaying
// the journal in reverse to undo every recorded mutation.
func (s *StateStore) RollbackSnapshot(id SnapshotID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.journal) - 1; i >= int(id); i-- {
		e := s.journal[i]
		switch {
		case e.accountAddr != nil:
			if e.prevAccount != nil {
				enc, err := e.prevAccount.EncodeRLP()
				if err == nil {
					s.accountTrie.Update(e.accountAddr.Bytes(), enc)
				}
				cached := *e.prevAccount
				s.accountCache.Add(*e.accountAddr, &cached)
			} else {
				s.accountTrie.Delete(e.accountAddr.Bytes())
				s.accountCache.Add(*e.accountAddr, nil)
			}
		case e.storageAddr != nil:
			s.rollbackStorageLocked(*e.storageAddr, *e.storageSlot, e.prevValue)
		case e.heightBefore != nil:
			s.height = *e.heightBefore
		}
	}
	s.journal = s.journal[:id]
}

// PutBlock stores a block keyed by hash and indexes it by height, becoming
// part of the canonical chain.
func (s *StateStore) PutBlock(b *txtypes.Block) error {
	enc, err := b.EncodeRLP()
	if err != nil {
		return kerrors.Wrap(kerrors.StorageFault, "block_encode", err)
	}
	hash := b.Hash()
	if err := s.kv.Put(database.BlockKey(hash.Bytes()), enc); err != nil {
		return kerrors.Wrap(kerrors.StorageFault, "block_put", err)
	}
	if err := s.kv.Put(database.HeightIndexKey(b.Header.Height), hash.Bytes()); err != nil {
		return kerrors.Wrap(kerrors.StorageFault, "height_index_put", err)
	}
	return nil
}

// GetBlockByHash returns the block stored at hash, or (nil, false) if absent.
func (s *StateStore) GetBlockByHash(hash common.Hash) (*txtypes.Block, bool, error) {
	enc, err := s.kv.Get(database.BlockKey(hash.Bytes()))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.StorageFault, "block_get", err)
	}
	b := &txtypes.Block{}
	if err := b.DecodeRLP(enc); err != nil {
		return nil, false, kerrors.Wrap(kerrors.StorageFault, "block_decode", err)
	}
	return b, true, nil
}

// GetBlockByHeight resolves height through the secondary index, then loads
// the block by hash.
func (s *StateStore) GetBlockByHeight(height uint64) (*txtypes.Block, bool, error) {
	hashBytes, err := s.kv.Get(database.HeightIndexKey(height))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.StorageFault, "height_index_get", err)
	}
	return s.GetBlockByHash(common.BytesToHash(hashBytes))
}

// LatestBlock returns the block at the store's current height.
func (s *StateStore) LatestBlock() (*txtypes.Block, bool, error) {
	return s.GetBlockByHeight(s.Height())
}
