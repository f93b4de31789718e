// Package rlpx provides the canonical encode/decode helpers shared by
// transactions, blocks, trie nodes, and coordinator wire messages. It wraps
// go-ethereum's RLP codec, following the EncodeRLP/DecodeRLP method
// convention the teacher uses for its own journal types (see
// node/sc/bridge_manager.go's BridgeJournal.EncodeRLP/DecodeRLP).
package rlpx

import (
	"bytes"

	"github.com/ethereum/go-ethereum/rlp"
)

// Encode returns the canonical RLP encoding of v.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := rlp.Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode unmarshals the canonical RLP encoding in b into v.
func Decode(b []byte, v interface{}) error {
	return rlp.DecodeBytes(b, v)
}

// MustEncode is Encode, panicking on error. Reserved for encodings that
// cannot fail on well-formed in-memory values (used for hashing, never for
// anything touching untrusted input).
func MustEncode(v interface{}) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}
