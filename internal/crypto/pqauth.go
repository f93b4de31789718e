package crypto

import (
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/sign/dilithium/mode2"
)

// CoordinatorKeyPair authenticates cross-shard coordinator/participant wire
// messages with a lattice-based (post-quantum) signature, per the
// coordinator's authentication requirement: every PREPARE/VOTE/COMMIT/ABORT
// message is signed and receivers reject unsigned or mis-signed messages
// without any state change.
type CoordinatorKeyPair struct {
	pub  *mode2.PublicKey
	priv *mode2.PrivateKey
}

// GenerateCoordinatorKeyPair mints a fresh dilithium mode2 key pair for one
// shard's coordinator identity.
func GenerateCoordinatorKeyPair() (*CoordinatorKeyPair, error) {
	pub, priv, err := mode2.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &CoordinatorKeyPair{pub: pub, priv: priv}, nil
}

// PublicKeyBytes returns the wire-transmissible public key.
func (kp *CoordinatorKeyPair) PublicKeyBytes() []byte {
	buf := make([]byte, mode2.PublicKeySize)
	kp.pub.Pack((*[mode2.PublicKeySize]byte)(buf))
	return buf
}

// SignCoordinatorMessage signs the canonical (version, type, tx_id,
// sender_shard, receiver_shard, phase, payload_digest) pre-image described
// by the wire format.
func (kp *CoordinatorKeyPair) SignCoordinatorMessage(preimage []byte) []byte {
	sig := make([]byte, mode2.SignatureSize)
	mode2.SignTo(kp.priv, preimage, sig)
	return sig
}

// VerifyCoordinatorMessage reports whether sig authenticates preimage under
// the given public key bytes.
func VerifyCoordinatorMessage(pubBytes, preimage, sig []byte) (bool, error) {
	if len(pubBytes) != mode2.PublicKeySize {
		return false, errors.New("crypto: bad coordinator public key length")
	}
	var pub mode2.PublicKey
	pub.Unpack((*[mode2.PublicKeySize]byte)(pubBytes))
	return mode2.Verify(&pub, preimage, sig), nil
}
