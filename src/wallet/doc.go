// Package wallet keeps the private keys of the addresses a Tally node signs
// transactions for, on behalf of the clients of its HTTP API.
package wallet
