package keys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// PublicKeyString encodes a public key in base58. This is the address format.
func PublicKeyString(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// ParsePublicKey decodes a base58 address into a public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding public key")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// IsAddress reports whether s decodes to a public key.
func IsAddress(s string) bool {
	_, err := ParsePublicKey(s)
	return err == nil
}
