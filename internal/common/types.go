// Package common defines the small value types shared across every
// ArthaChain component: the 32-byte content hash and the 20-byte account
// address. Both namespaces (native and EVM) share the same byte layout.
package common

import (
	"encoding/hex"
	"fmt"
)

const (
	// HashLength is the number of bytes in a content hash.
	HashLength = 32
	// AddressLength is the number of bytes in an account address.
	AddressLength = 20
)

// Hash is a 32-byte content identifier.
type Hash [HashLength]byte

// BytesToHash right-aligns b into a Hash, truncating from the left if b is
// longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed hex representation.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool { return h == Hash{} }

// Address is a 20-byte account identity shared by native and EVM accounts.
type Address [AddressLength]byte

// BytesToAddress right-aligns b into an Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the 0x-prefixed hex representation.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool { return a == Address{} }

// StorageKey identifies a single EVM storage slot of an account, used to
// build transaction read-set/write-set entries.
type StorageKey struct {
	Addr Address
	Slot Hash
}

func (k StorageKey) String() string {
	return fmt.Sprintf("storage:%s:%s", k.Addr.Hex(), k.Slot.Hex())
}
