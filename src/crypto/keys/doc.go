// Package keys implements the public key cryptography used throughout Tally.
//
// An address is an ed25519 public key. Whoever holds the matching private key
// owns the address and is the only party able to authorize transfers out of
// it. Keys and signatures travel as base58 strings, which are compact and
// unambiguous to copy around.
//
// Tally nodes never need a private key of their own. Keys are a wallet
// concern; the node only verifies signatures.
package keys
