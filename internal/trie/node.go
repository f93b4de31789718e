// Package trie implements the radix-16 Merkle-Patricia Trie that roots
// account state: hex-prefix path encoding, RLP-encoded {leaf, extension,
// branch-17} nodes, Keccak-256 node hashing. No teacher source for this
// package was retrieved alongside the rest of the corpus (see DESIGN.md),
// so the node shapes below follow the wire format spelled out directly:
// flag nibble 0x20 for a leaf, 0x00 for an extension, plus 0x10 added on
// odd-length paths.
package trie

import (
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/rlpx"
)

// node is the sum type of the three MPT node kinds, held as live pointers
// while the trie is being mutated. Hashes are computed lazily, bottom-up, at
// commit time.
type node struct {
	kind nodeKind

	// leaf/extension share this shape: path is the remaining nibble path,
	// value is the stored value (leaf) or the child node (extension).
	path  []byte
	value []byte
	child *node // extension only

	// branch-17: 16 children plus one terminal value.
	children [16]*node
	term     []byte
}

type nodeKind uint8

const (
	kindEmpty nodeKind = iota
	kindLeaf
	kindExtension
	kindBranch
)

// rlpLeafExt is the two-element RLP encoding shared by leaf and extension
// nodes: (hex-prefix-encoded path, value).
type rlpLeafExt struct {
	Path  []byte
	Value []byte
}

// rlpBranch is the seventeen-element RLP encoding of a branch node: sixteen
// child slots (each a child hash, or empty) plus one terminal value slot.
type rlpBranch struct {
	Children [16][]byte
	Term     []byte
}

// hashNode returns the Keccak256 hash of n's canonical RLP encoding,
// recursing into children first. This is the value stored in a parent
// branch/extension slot and, at the root, the trie's state root. persist,
// when non-nil, receives every (hash, encoding) pair produced along the way
// so the caller can commit them to a NodeStore in one pass.
func hashNode(n *node, persist func(common.Hash, []byte)) common.Hash {
	if n == nil {
		return common.Hash{}
	}
	switch n.kind {
	case kindLeaf:
		enc := rlpLeafExt{Path: hexPrefixEncode(n.path, true), Value: n.value}
		raw := rlpx.MustEncode(enc)
		h := crypto.Keccak256(raw)
		if persist != nil {
			persist(h, raw)
		}
		return h
	case kindExtension:
		childHash := hashNode(n.child, persist)
		enc := rlpLeafExt{Path: hexPrefixEncode(n.path, false), Value: childHash.Bytes()}
		raw := rlpx.MustEncode(enc)
		h := crypto.Keccak256(raw)
		if persist != nil {
			persist(h, raw)
		}
		return h
	case kindBranch:
		var childHashes [16][]byte
		for i, c := range n.children {
			if c == nil {
				continue
			}
			ch := hashNode(c, persist)
			childHashes[i] = ch.Bytes()
		}
		enc := rlpBranch{Children: childHashes, Term: n.term}
		raw := rlpx.MustEncode(enc)
		h := crypto.Keccak256(raw)
		if persist != nil {
			persist(h, raw)
		}
		return h
	default:
		return common.Hash{}
	}
}

// hexPrefixEncode packs nibbles into the standard hex-prefix byte encoding:
// a flag nibble (0x2 for leaf, 0x0 for extension) in the high nibble of the
// first byte, with an extra 0x1 added when the nibble count is odd (and the
// first real nibble packed into the low nibble of that same first byte).
func hexPrefixEncode(nibbles []byte, isLeaf bool) []byte {
	flag := byte(0x00)
	if isLeaf {
		flag = 0x20
	}
	odd := len(nibbles)%2 == 1
	if odd {
		flag |= 0x10
	}

	var out []byte
	if odd {
		out = make([]byte, 0, 1+len(nibbles)/2)
		out = append(out, flag|nibbles[0])
		nibbles = nibbles[1:]
	} else {
		out = make([]byte, 0, 1+len(nibbles)/2)
		out = append(out, flag)
	}
	for i := 0; i < len(nibbles); i += 2 {
		out = append(out, nibbles[i]<<4|nibbles[i+1])
	}
	return out
}

// hexPrefixDecode is the inverse of hexPrefixEncode, returning the nibble
// path and whether the flag marked a leaf.
func hexPrefixDecode(enc []byte) (nibbles []byte, isLeaf bool) {
	if len(enc) == 0 {
		return nil, false
	}
	flag := enc[0] >> 4
	isLeaf = flag&0x2 != 0
	odd := flag&0x1 != 0

	if odd {
		nibbles = append(nibbles, enc[0]&0x0f)
	}
	for _, b := range enc[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	return nibbles, isLeaf
}

// keyToNibbles expands a byte key into its constituent hex nibbles.
func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, len(key)*2)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

// commonPrefixLen returns the length of the shared prefix of a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
