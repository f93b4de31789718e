package database

import (
	"github.com/dgraph-io/badger"
)

// badgerStore is the alternate KvStore backend, offered alongside leveldb
// per the teacher's own go.mod (which carries both syndtr/goleveldb and
// dgraph-io/badger as direct dependencies) and selected by
// internal/config.StorageConfig.Backend.
type badgerStore struct {
	path string
	db   *badger.DB
	c    counters
}

// OpenBadgerDB opens (or creates) a badger store at path.
func OpenBadgerDB(path string) (KvStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	logger.Info("opened badger store", "path", path)
	return &badgerStore{path: path, db: db, c: newCounters("badger")}, nil
}

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			out = append([]byte{}, v...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.c.reads.Mark(int64(len(out)))
	return out, nil
}

func (s *badgerStore) Has(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *badgerStore) Put(key, value []byte) error {
	s.c.writes.Mark(int64(len(value)))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) NewBatch() Batch {
	return &badgerBatch{db: s.db, wb: s.db.NewWriteBatch()}
}

func (s *badgerStore) NewIteratorWithPrefix(prefix []byte) Iterator {
	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerIterator{txn: txn, it: it, prefix: prefix, started: false}
}

func (s *badgerStore) Close() error {
	logger.Info("closing badger store", "path", s.path)
	return s.db.Close()
}

type badgerBatch struct {
	db   *badger.DB
	wb   *badger.WriteBatch
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.wb.Set(key, value)
}

func (b *badgerBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.wb.Delete(key)
}

func (b *badgerBatch) Write() error {
	return b.wb.Flush()
}

func (b *badgerBatch) Reset() {
	b.wb.Cancel()
	b.wb = b.db.NewWriteBatch()
	b.size = 0
}

func (b *badgerBatch) ValueSize() int { return b.size }

type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
}

func (i *badgerIterator) Next() bool {
	if !i.started {
		i.started = true
	} else {
		i.it.Next()
	}
	return i.it.ValidForPrefix(i.prefix)
}

func (i *badgerIterator) Key() []byte {
	return append([]byte{}, i.it.Item().Key()...)
}

func (i *badgerIterator) Value() []byte {
	var out []byte
	_ = i.it.Item().Value(func(v []byte) error {
		out = append([]byte{}, v...)
		return nil
	})
	return out
}

func (i *badgerIterator) Release() {
	i.it.Close()
	i.txn.Discard()
}

func (i *badgerIterator) Error() error { return nil }
