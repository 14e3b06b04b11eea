// Package config defines the configuration for a Tally node.
//
// Regardless of how Tally is started, directly from Go code or as a standalone
// process from the command line, it uses the Config object defined in this
// package to store and forward configuration options. On top of these
// configuration options, Tally relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional configuration
// files:
//
//  priv_key // (optional) a base58 private key, loaded into the address book (cf. tally keygen).
//  peers.json // a JSON array of "host:port" bootstrap peers.
//  genesis.json // (optional) a JSON object mapping addresses to initial balances.
//  tally.toml // (optional) configuration file read by the command line.
//
// The three periodic protocols of a node have their own intervals: signal
// (discovery, 100ms), inform (state sync, 5s) and blab (transaction gossip,
// 1s). The RPCs of each protocol time out before the protocol is due again.
package config
