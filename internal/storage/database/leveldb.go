package database

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// levelStore wraps a goleveldb handle, following the teacher's levelDB
// struct (storage/database/leveldb_database.go) with the quit-channel
// metrics-collector goroutine dropped — this core reports counters inline
// rather than by periodically polling internal leveldb stats.
type levelStore struct {
	path string
	db   *leveldb.DB
	c    counters
}

// OpenLevelDB opens (or creates) a leveldb store at path, recovering from a
// detected corruption the same way NewLDBDatabase does.
func OpenLevelDB(path string) (KvStore, error) {
	opts := &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
	}
	db, err := leveldb.OpenFile(path, opts)
	if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("opened leveldb store", "path", path)
	return &levelStore{path: path, db: db, c: newCounters("leveldb")}, nil
}

func (s *levelStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.c.reads.Mark(int64(len(v)))
	return v, nil
}

func (s *levelStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

func (s *levelStore) Put(key, value []byte) error {
	s.c.writes.Mark(int64(len(value)))
	return s.db.Put(key, value, nil)
}

func (s *levelStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *levelStore) NewBatch() Batch {
	return &levelBatch{db: s.db, b: new(leveldb.Batch)}
}

func (s *levelStore) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &levelIterator{it: s.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (s *levelStore) Close() error {
	logger.Info("closing leveldb store", "path", s.path)
	return s.db.Close()
}

type levelBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *levelBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *levelBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

func (b *levelBatch) ValueSize() int { return b.size }

type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool      { return i.it.Next() }
func (i *levelIterator) Key() []byte     { return i.it.Key() }
func (i *levelIterator) Value() []byte   { return i.it.Value() }
func (i *levelIterator) Release()        { i.it.Release() }
func (i *levelIterator) Error() error    { return i.it.Error() }
