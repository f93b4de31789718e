// Package database provides the node's key-value persistence: a narrow
// KvStore interface plus leveldb and badger backends, following the
// teacher's db_manager.go / leveldb_database.go wrapper pattern but
// collapsed to the single concrete interface the design notes call for
// in place of dynamic dispatch over an Any-downcast.
package database

import (
	"errors"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/metrics"
)

var logger = log.NewModuleLogger(log.ModuleStorage)

// ErrNotFound is returned by Get/Has-adjacent calls when a key is absent.
// NotFound is a value everywhere above this package, never an error — this
// sentinel exists only so backends have one conventional way to express it.
var ErrNotFound = errors.New("database: not found")

// Batch accumulates writes for atomic application, mirroring the teacher's
// Batch interface (storage/database/db_manager.go's NewBatch(DBEntryType)).
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	Reset()
	ValueSize() int
}

// Iterator walks a key range in lexicographic order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// KvStore is the narrow persistence surface every storage-backed component
// depends on: accounts, trie nodes, blocks, and the coordinator's durable
// log all multiplex over one KvStore using key prefixes (see
// internal/storage/database/prefix.go), rather than separate dynamically
// dispatched backends per concern.
type KvStore interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	NewIteratorWithPrefix(prefix []byte) Iterator
	Close() error
}

// counters mirrors the teacher's per-backend metrics.Meter fields
// (leveldb_database.go's diskReadMeter/diskWriteMeter), collapsed to one
// shared pair of meters reused by every backend implementation.
type counters struct {
	reads  interface{ Mark(int64) }
	writes interface{ Mark(int64) }
}

func newCounters(backend string) counters {
	return counters{
		reads:  metrics.NewRegisteredMeter(backend + "/disk/read"),
		writes: metrics.NewRegisteredMeter(backend + "/disk/write"),
	}
}
