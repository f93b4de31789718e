package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
)

// memNodeStore is a plain in-memory NodeStore, standing in for the real
// kv-backed one the way the teacher's in-memory database stands in for
// LevelDB in its own trie fixtures.
type memNodeStore struct {
	nodes map[common.Hash][]byte
}

func newMemNodeStore() *memNodeStore {
	return &memNodeStore{nodes: make(map[common.Hash][]byte)}
}

func (m *memNodeStore) GetNode(hash common.Hash) ([]byte, bool, error) {
	enc, ok := m.nodes[hash]
	return enc, ok, nil
}

func (m *memNodeStore) PutNode(hash common.Hash, enc []byte) error {
	m.nodes[hash] = enc
	return nil
}

func TestTrieGetMissingKeyReturnsFalse(t *testing.T) {
	tr := New(newMemNodeStore())
	_, ok := tr.Get([]byte("nope"))
	assert.False(t, ok)
}

func TestTrieUpdateThenGetRoundTrips(t *testing.T) {
	tr := New(newMemNodeStore())
	tr.Update([]byte("alice"), []byte("balance-1"))
	tr.Update([]byte("bob"), []byte("balance-2"))

	v, ok := tr.Get([]byte("alice"))
	require.True(t, ok)
	assert.Equal(t, []byte("balance-1"), v)

	v, ok = tr.Get([]byte("bob"))
	require.True(t, ok)
	assert.Equal(t, []byte("balance-2"), v)
}

func TestTrieDeleteRemovesKeyWithoutDisturbingSiblings(t *testing.T) {
	tr := New(newMemNodeStore())
	tr.Update([]byte("alice"), []byte("1"))
	tr.Update([]byte("bob"), []byte("2"))
	tr.Update([]byte("albert"), []byte("3"))

	tr.Delete([]byte("alice"))
	_, ok := tr.Get([]byte("alice"))
	assert.False(t, ok)

	v, ok := tr.Get([]byte("bob"))
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)

	v, ok = tr.Get([]byte("albert"))
	require.True(t, ok)
	assert.Equal(t, []byte("3"), v)
}

func TestTrieHashIsDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	a := New(newMemNodeStore())
	a.Update([]byte("alice"), []byte("1"))
	a.Update([]byte("bob"), []byte("2"))
	a.Update([]byte("carol"), []byte("3"))

	b := New(newMemNodeStore())
	b.Update([]byte("carol"), []byte("3"))
	b.Update([]byte("alice"), []byte("1"))
	b.Update([]byte("bob"), []byte("2"))

	assert.Equal(t, a.Hash(), b.Hash(), "MPT root must not depend on key insertion order")
}

func TestTrieHashChangesWithContent(t *testing.T) {
	tr := New(newMemNodeStore())
	empty := tr.Hash()

	tr.Update([]byte("alice"), []byte("1"))
	withOne := tr.Hash()
	assert.NotEqual(t, empty, withOne)

	tr.Update([]byte("alice"), []byte("2"))
	withUpdated := tr.Hash()
	assert.NotEqual(t, withOne, withUpdated)
}

func TestTrieDeleteThenReinsertReachesOriginalHash(t *testing.T) {
	tr := New(newMemNodeStore())
	tr.Update([]byte("alice"), []byte("1"))
	tr.Update([]byte("bob"), []byte("2"))
	before := tr.Hash()

	tr.Update([]byte("carol"), []byte("3"))
	tr.Delete([]byte("carol"))

	assert.Equal(t, before, tr.Hash(), "inserting then deleting a key must leave the root unchanged")
}

func TestTrieCommitWritesNodesToStore(t *testing.T) {
	store := newMemNodeStore()
	tr := New(store)
	tr.Update([]byte("alice"), []byte("1"))
	tr.Update([]byte("bob"), []byte("2"))

	root, err := tr.Commit()
	require.NoError(t, err)
	assert.NotZero(t, root)
	assert.NotEmpty(t, store.nodes, "commit must have written at least the root node")
}
