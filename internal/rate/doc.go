// Package rate provides the Redis-backed request budgets behind the
// enrollment engine: a fixed-window cap on code requests per user, and
// flood-wait cooldowns dictated by the network.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Flood
// waits are plain keys whose TTL is the remaining wait. Key prefixes under
// the configured namespace:
//   - cr: — code requests per user
//   - fw: — network flood-wait per phone number
//
// # What this package must NOT do
//
//   - Decide retry policy. It reports remaining waits; the caller retries.
//   - Be imported outside the enroll module.
package rate
