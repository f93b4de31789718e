// Package crypto provides the node's three hashing/signing primitives:
// Keccak256 content hashing (used by blocks, transactions, and trie nodes),
// secp256k1 transaction signature verification, and a lattice-based
// (post-quantum) scheme used to authenticate coordinator wire messages.
package crypto

import (
	"crypto/ecdsa"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
)

// Keccak256 hashes b and returns the 32-byte digest, used for block/tx
// identity and trie node hashing.
func Keccak256(b ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, chunk := range b {
		h.Write(chunk)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// SignatureLength is the byte length of a transaction signature: 32-byte r,
// 32-byte s, 1-byte recovery id.
const SignatureLength = 65

var (
	errBadSignatureLength = errors.New("crypto: signature must be 65 bytes")
	errBadRecoveryID       = errors.New("crypto: invalid recovery id")
)

// RecoverAddress recovers the signer address from a 65-byte secp256k1
// signature over digest, the same (r, s, v) layout used throughout the
// go-ethereum-derived client family.
func RecoverAddress(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, errBadSignatureLength
	}
	if sig[64] > 1 {
		return common.Address{}, errBadRecoveryID
	}

	compact := make([]byte, SignatureLength)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, digest.Bytes())
	if err != nil {
		return common.Address{}, err
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the 20-byte address from an uncompressed public
// key, following the standard Keccak256(pubkey)[12:] derivation.
func PubkeyToAddress(pub *btcec.PublicKey) common.Address {
	raw := pub.SerializeUncompressed()[1:] // drop the 0x04 prefix
	digest := Keccak256(raw)
	return common.BytesToAddress(digest.Bytes()[12:])
}

// Sign produces a 65-byte (r, s, v) signature over digest using priv.
func Sign(digest common.Hash, priv *btcec.PrivateKey) ([]byte, error) {
	compact := btcecdsa.SignCompact(priv, digest.Bytes(), false)
	if len(compact) != SignatureLength {
		return nil, errBadSignatureLength
	}
	sig := make([]byte, SignatureLength)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// ToECDSA exposes the standard-library view of a secp256k1 key pair, for
// interop with packages that expect *ecdsa.PrivateKey.
func ToECDSA(priv *btcec.PrivateKey) *ecdsa.PrivateKey {
	return priv.ToECDSA()
}
