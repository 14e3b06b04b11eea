// Package service implements the HTTP API of a Tally node.
//
// Submissions are answered with 202 Accepted once the transaction is in the
// pool; it is committed later by the gossip round. Errors are returned as
// {"error": ..., "kind": ...} where kind is the classification of the error:
// Validation and InvalidSignature map to 400, InsufficientFunds to 422, an
// unknown address to 404, and anything else to 500.
package service
