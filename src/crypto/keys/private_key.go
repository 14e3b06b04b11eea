package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

//GenerateKeyPair creates a new ed25519 key pair. It only fails if the platform
//cannot provide randomness.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generating ed25519 key")
	}
	return pub, priv, nil
}

//PrivateKeyString encodes the seed of a private key in base58.
func PrivateKeyString(priv ed25519.PrivateKey) string {
	return base58.Encode(priv.Seed())
}

//ParsePrivateKey decodes a base58 private key. Both the 32-byte seed form and
//the 64-byte expanded form are accepted. The expanded form must be internally
//consistent, ie. its public half must derive from its seed.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding private key")
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !priv.Equal(ed25519.PrivateKey(raw)) {
			return nil, fmt.Errorf("inconsistent private key")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("invalid private key length %d", len(raw))
	}
}

//DerivePublicKey returns the address controlled by an encoded private key. The
//second return value is false when the input cannot be decoded into a key; this
//is an expected outcome for user input, not a failure.
func DerivePublicKey(privateKey string) (string, bool) {
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", false
	}
	return PublicKeyString(priv.Public().(ed25519.PublicKey)), true
}
