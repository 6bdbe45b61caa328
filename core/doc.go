// Package core defines the domain model shared across bidhouse packages.
//
// The core package provides:
//   - Security event types and the SecuritySink interface for audit fanout
//   - Severity levels with ordering for threshold comparisons
//   - A Redis-backed cache used by the chain clock and rate limiters
//   - A circuit breaker used by outbound notification channels
//
// Service interfaces are defined where they are consumed (api, service),
// not here; core carries only the types those interfaces exchange.
package core
