package trie

import (
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
)

// NodeStore is the narrow persistence surface the trie needs: content-
// addressed node storage keyed by Keccak256 hash. Concrete backends live in
// internal/storage/database.
type NodeStore interface {
	GetNode(hash common.Hash) ([]byte, bool, error)
	PutNode(hash common.Hash, enc []byte) error
}

// Trie is a radix-16 Merkle-Patricia Trie over arbitrary byte keys. Reads and
// writes operate in-memory; Commit persists every touched node and returns
// the new root hash.
type Trie struct {
	root  *node
	store NodeStore
}

// New returns an empty trie backed by store. A nil store is valid for
// transient, never-committed tries used in read/write-set analysis.
func New(store NodeStore) *Trie {
	return &Trie{store: store}
}

// Get returns the value stored at key, or (nil, false) if absent.
func (t *Trie) Get(key []byte) ([]byte, bool) {
	return get(t.root, keyToNibbles(key))
}

func get(n *node, path []byte) ([]byte, bool) {
	if n == nil {
		return nil, false
	}
	switch n.kind {
	case kindLeaf:
		if nibblesEqual(n.path, path) {
			return n.value, true
		}
		return nil, false
	case kindExtension:
		cp := commonPrefixLen(n.path, path)
		if cp < len(n.path) {
			return nil, false
		}
		return get(n.child, path[cp:])
	case kindBranch:
		if len(path) == 0 {
			if n.term == nil {
				return nil, false
			}
			return n.term, true
		}
		return get(n.children[path[0]], path[1:])
	default:
		return nil, false
	}
}

// Update inserts or overwrites the value at key.
func (t *Trie) Update(key, value []byte) {
	t.root = insert(t.root, keyToNibbles(key), value)
}

func insert(n *node, path, value []byte) *node {
	if n == nil {
		return &node{kind: kindLeaf, path: path, value: value}
	}
	switch n.kind {
	case kindLeaf:
		if nibblesEqual(n.path, path) {
			return &node{kind: kindLeaf, path: path, value: value}
		}
		return splitLeaf(n, path, value)
	case kindExtension:
		cp := commonPrefixLen(n.path, path)
		if cp == len(n.path) {
			n.child = insert(n.child, path[cp:], value)
			return n
		}
		return splitExtension(n, cp, path, value)
	case kindBranch:
		if len(path) == 0 {
			n.term = value
			return n
		}
		n.children[path[0]] = insert(n.children[path[0]], path[1:], value)
		return n
	default:
		return &node{kind: kindLeaf, path: path, value: value}
	}
}

// splitLeaf replaces a conflicting leaf with a branch (and, when the common
// prefix is non-empty, an extension above it).
func splitLeaf(n *node, path, value []byte) *node {
	cp := commonPrefixLen(n.path, path)
	branch := &node{kind: kindBranch}

	placeInBranch(branch, n.path[cp:], n.value)
	placeInBranch(branch, path[cp:], value)

	if cp == 0 {
		return branch
	}
	return &node{kind: kindExtension, path: append([]byte{}, n.path[:cp]...), child: branch}
}

// splitExtension handles inserting a key that diverges partway through an
// extension's shared path.
func splitExtension(n *node, cp int, path, value []byte) *node {
	branch := &node{kind: kindBranch}

	remaining := n.path[cp:]
	if len(remaining) == 1 {
		branch.children[remaining[0]] = n.child
	} else {
		branch.children[remaining[0]] = &node{kind: kindExtension, path: append([]byte{}, remaining[1:]...), child: n.child}
	}

	placeInBranch(branch, path[cp:], value)

	if cp == 0 {
		return branch
	}
	return &node{kind: kindExtension, path: append([]byte{}, n.path[:cp]...), child: branch}
}

// placeInBranch inserts (path, value) as a child of branch, using the
// branch's own terminal slot when path is empty.
func placeInBranch(branch *node, path, value []byte) {
	if len(path) == 0 {
		branch.term = value
		return
	}
	branch.children[path[0]] = &node{kind: kindLeaf, path: append([]byte{}, path[1:]...), value: value}
}

// Delete removes key from the trie, if present. It is a no-op otherwise.
func (t *Trie) Delete(key []byte) {
	t.root, _ = del(t.root, keyToNibbles(key))
}

func del(n *node, path []byte) (*node, bool) {
	if n == nil {
		return nil, false
	}
	switch n.kind {
	case kindLeaf:
		if nibblesEqual(n.path, path) {
			return nil, true
		}
		return n, false
	case kindExtension:
		cp := commonPrefixLen(n.path, path)
		if cp < len(n.path) {
			return n, false
		}
		child, removed := del(n.child, path[cp:])
		if !removed {
			return n, false
		}
		if child == nil {
			return nil, true
		}
		return mergeExtension(n.path, child), true
	case kindBranch:
		if len(path) == 0 {
			if n.term == nil {
				return n, false
			}
			n.term = nil
			return collapseBranch(n), true
		}
		idx := path[0]
		child, removed := del(n.children[idx], path[1:])
		if !removed {
			return n, false
		}
		n.children[idx] = child
		return collapseBranch(n), true
	default:
		return n, false
	}
}

// mergeExtension collapses an extension whose child has itself become a
// single-path node, to keep the trie minimal.
func mergeExtension(prefix []byte, child *node) *node {
	switch child.kind {
	case kindLeaf:
		return &node{kind: kindLeaf, path: append(append([]byte{}, prefix...), child.path...), value: child.value}
	case kindExtension:
		return &node{kind: kindExtension, path: append(append([]byte{}, prefix...), child.path...), child: child.child}
	default:
		return &node{kind: kindExtension, path: prefix, child: child}
	}
}

// collapseBranch reduces a branch with at most one remaining entry (one
// child xor a terminal value, never both) into a leaf or extension, matching
// standard MPT minimization.
func collapseBranch(n *node) *node {
	count := 0
	var onlyIdx = -1
	for i, c := range n.children {
		if c != nil {
			count++
			onlyIdx = i
		}
	}
	if count == 0 && n.term != nil {
		return &node{kind: kindLeaf, path: nil, value: n.term}
	}
	if count == 1 && n.term == nil {
		child := n.children[onlyIdx]
		return mergeExtension([]byte{byte(onlyIdx)}, child)
	}
	if count == 0 && n.term == nil {
		return nil
	}
	return n
}

// Hash returns the current root hash without persisting anything, for
// read-only root comparisons (MPT stability checks).
func (t *Trie) Hash() common.Hash {
	return hashNode(t.root, nil)
}

// Commit persists every node touched since the trie was built and returns
// the new root hash. A nil store makes Commit equivalent to Hash.
func (t *Trie) Commit() (common.Hash, error) {
	var persistErr error
	persist := func(h common.Hash, enc []byte) {
		if t.store == nil || persistErr != nil {
			return
		}
		if err := t.store.PutNode(h, enc); err != nil {
			persistErr = err
		}
	}
	root := hashNode(t.root, persist)
	if persistErr != nil {
		return common.Hash{}, persistErr
	}
	return root, nil
}

func nibblesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
