package state

import (
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
)

// kvNodeStore adapts a database.KvStore into the trie's content-addressed
// NodeStore, namespacing every node under the shared trienode/ prefix.
type kvNodeStore struct {
	kv database.KvStore
}

func (s *kvNodeStore) GetNode(hash common.Hash) ([]byte, bool, error) {
	v, err := s.kv.Get(database.TrieNodeKey(hash.Bytes()))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *kvNodeStore) PutNode(hash common.Hash, enc []byte) error {
	return s.kv.Put(database.TrieNodeKey(hash.Bytes()), enc)
}
