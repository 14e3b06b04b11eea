package keys

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// Sign signs msg and returns the base58 encoded signature.
func Sign(priv ed25519.PrivateKey, msg []byte) string {
	return base58.Encode(ed25519.Sign(priv, msg))
}

// Verify checks a base58 signature of msg against a base58 public key. It never
// panics; malformed keys or signatures simply do not verify.
func Verify(publicKey string, msg []byte, signature string) bool {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false
	}

	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(pub, msg, sig)
}
