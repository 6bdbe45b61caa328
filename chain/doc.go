// Package chain resolves the current time from a blockchain and reconciles
// it with the local clock.
//
// Auction deadlines are anchored to chain time so that bidders and the
// auction house agree on a single clock. Chain queries fail in practice
// (node restarts, rate limits, transient network errors), so every resolver
// in this package degrades to the local clock instead of returning an
// error: callers always receive a usable Reading and inspect its Accurate
// flag to learn which clock produced it.
//
// Two resolution paths are provided:
//   - Clock.Now resolves through a HeaderSource (typically an ethclient
//     wrapper, optionally cached) and is the path services use.
//   - FetchRPC speaks raw JSON-RPC over a plain *http.Client for probes and
//     CLI tooling that must not take a client dependency.
package chain
