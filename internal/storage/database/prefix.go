package database

import "encoding/binary"

// Key prefixes, multiplexing blocks/accounts/storage/coordinator state over
// one KvStore the way db_manager.go's DBEntryType namespaces multiple
// logical tables over one physical handle.
var (
	prefixBlock         = []byte("blocks/")
	prefixHeightIndex   = []byte("height_index/")
	prefixAccount       = []byte("accounts/")
	prefixStorage       = []byte("storage/")
	prefixTrieNode      = []byte("trienode/")
	prefixCoordTx       = []byte("coordinator/tx/")
	prefixCoordPrepared = []byte("coordinator/prepared/")
	prefixCoordLock     = []byte("coordinator/locks/")
)

// BlockKey returns the key for a block stored by hash.
func BlockKey(hash []byte) []byte { return append(append([]byte{}, prefixBlock...), hash...) }

// HeightIndexKey returns the key mapping a block height to its canonical hash.
func HeightIndexKey(height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return append(append([]byte{}, prefixHeightIndex...), b[:]...)
}

// AccountKey returns the key for an account record keyed by address.
func AccountKey(addr []byte) []byte { return append(append([]byte{}, prefixAccount...), addr...) }

// StorageKey returns the key for an EVM storage slot keyed by (addr, slot).
func StorageKey(addr, slot []byte) []byte {
	k := append(append([]byte{}, prefixStorage...), addr...)
	return append(k, slot...)
}

// TrieNodeKey returns the key for a trie node keyed by its content hash.
func TrieNodeKey(hash []byte) []byte { return append(append([]byte{}, prefixTrieNode...), hash...) }

// CoordinatorTxKey returns the key for a CoordinatorTxState record.
func CoordinatorTxKey(txID []byte) []byte { return append(append([]byte{}, prefixCoordTx...), txID...) }

// CoordinatorPreparedKey returns the key for a participant's Prepared record.
func CoordinatorPreparedKey(txID []byte) []byte {
	return append(append([]byte{}, prefixCoordPrepared...), txID...)
}

// CoordinatorLockKey returns the key for a resource lock owner record.
func CoordinatorLockKey(resourceID []byte) []byte {
	return append(append([]byte{}, prefixCoordLock...), resourceID...)
}
