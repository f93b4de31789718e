package state

import (
	"github.com/holiman/uint256"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/trie"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

// GetEvmBalance returns addr's balance (zero for an unknown account).
func (s *StateStore) GetEvmBalance(addr common.Address) (*uint256.Int, error) {
	acc, ok, err := s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return uint256.NewInt(0), nil
	}
	return acc.Balance.Clone(), nil
}

// GetEvmNonce returns addr's nonce (zero for an unknown account).
func (s *StateStore) GetEvmNonce(addr common.Address) (uint64, error) {
	acc, ok, err := s.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return acc.Nonce, nil
}

// GetEvmCodeHash returns addr's code hash, or the zero hash if the account
// has no deployed code.
func (s *StateStore) GetEvmCodeHash(addr common.Address) (common.Hash, error) {
	acc, ok, err := s.GetAccount(addr)
	if err != nil || !ok || acc.CodeHash == nil {
		return common.Hash{}, err
	}
	return *acc.CodeHash, nil
}

// GetEvmCode returns the deployed code at addr, or nil if none.
func (s *StateStore) GetEvmCode(addr common.Address) ([]byte, error) {
	hash, err := s.GetEvmCodeHash(addr)
	if err != nil || hash.IsZero() {
		return nil, err
	}
	v, err := s.kv.Get(database.TrieNodeKey(append([]byte("code/"), hash.Bytes()...)))
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, kerrors.Wrap(kerrors.StorageFault, "code_get", err)
	}
	return v, nil
}

// SetEvmCode deploys code at addr, updating its code hash and account kind.
func (s *StateStore) SetEvmCode(addr common.Address, code []byte) error {
	acc, ok, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		acc = &txtypes.Account{Balance: uint256.NewInt(0)}
	}
	hash := codeHash(code)
	if err := s.kv.Put(database.TrieNodeKey(append([]byte("code/"), hash.Bytes()...)), code); err != nil {
		return kerrors.Wrap(kerrors.StorageFault, "code_put", err)
	}
	acc.Kind = txtypes.AccountKindEvm
	acc.CodeHash = &hash
	if acc.StorageRoot == nil {
		zero := common.Hash{}
		acc.StorageRoot = &zero
	}
	return s.PutAccount(addr, acc)
}

// GetEvmStorageRoot returns addr's storage root, recomputed from the
// current set of stored slots (spec §9: storage is kept in flat
// storage/{addr}/{slot} entries; the root is an ephemeral trie built over
// them on demand rather than a separately persisted per-account trie).
func (s *StateStore) GetEvmStorageRoot(addr common.Address) (common.Hash, error) {
	t := trie.New(nil)
	it := s.kv.NewIteratorWithPrefix(storagePrefix(addr))
	defer it.Release()
	for it.Next() {
		slot := it.Key()[len(storagePrefix(addr)):]
		t.Update(slot, it.Value())
	}
	if err := it.Error(); err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.StorageFault, "storage_root_scan", err)
	}
	return t.Hash(), nil
}

// GetEvmStorage returns the value at (addr, slot), or nil if unset.
func (s *StateStore) GetEvmStorage(addr common.Address, slot common.Hash) ([]byte, error) {
	v, err := s.kv.Get(database.StorageKey(addr.Bytes(), slot.Bytes()))
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, kerrors.Wrap(kerrors.StorageFault, "storage_get", err)
	}
	return v, nil
}

// SetEvmStorage sets (addr, slot) to value, journaling the previous value
// for rollback, then refreshes the account's cached storage root.
func (s *StateStore) SetEvmStorage(addr common.Address, slot common.Hash, value []byte) error {
	s.mu.Lock()
	prev, err := s.kv.Get(database.StorageKey(addr.Bytes(), slot.Bytes()))
	if err != nil && err != database.ErrNotFound {
		s.mu.Unlock()
		return kerrors.Wrap(kerrors.StorageFault, "storage_get", err)
	}
	if err == database.ErrNotFound {
		prev = nil
	}
	a, sl := addr, slot
	s.journal = append(s.journal, journalEntry{storageAddr: &a, storageSlot: &sl, prevValue: prev})
	putErr := s.kv.Put(database.StorageKey(addr.Bytes(), slot.Bytes()), value)
	s.mu.Unlock()
	if putErr != nil {
		return kerrors.Wrap(kerrors.StorageFault, "storage_put", putErr)
	}
	return s.refreshStorageRoot(addr)
}

// refreshStorageRoot recomputes and persists addr's storage root into its
// account record after a storage write.
func (s *StateStore) refreshStorageRoot(addr common.Address) error {
	acc, ok, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	root, err := s.GetEvmStorageRoot(addr)
	if err != nil {
		return err
	}
	acc.StorageRoot = &root
	return s.PutAccount(addr, acc)
}

// rollbackStorageLocked undoes a single storage journal entry. Called with
// s.mu already held (from RollbackSnapshot).
func (s *StateStore) rollbackStorageLocked(addr common.Address, slot common.Hash, prevValue []byte) {
	key := database.StorageKey(addr.Bytes(), slot.Bytes())
	if prevValue == nil {
		_ = s.kv.Delete(key)
		return
	}
	_ = s.kv.Put(key, prevValue)
}

func storagePrefix(addr common.Address) []byte {
	return database.StorageKey(addr.Bytes(), nil)
}

func codeHash(code []byte) common.Hash {
	return crypto.Keccak256(code)
}
