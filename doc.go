// Package enroll provides a concurrent enrollment engine that logs messaging
// accounts into a third-party network with a phone number, a one-time code,
// and an optional second-factor password, then vaults the exported session
// credential for later use.
//
// The package is designed for bot-style callers that handle one inbound
// message at a time: Engine methods are synchronous, but attempts for
// different users run fully in parallel after initialization through
// [Builder.Build]. Events for the same user are serialized strictly in
// arrival order.
//
// # Architecture boundaries
//
// enroll is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountClient] and [CredentialStore] integration interfaces, and
// value types (LoginResult, StoredCredential, AuditEvent, MetricsSnapshot).
// Coordination machinery — per-user single-flight execution and Redis-backed
// request budgets — lives under internal/ and is never exported. The
// pgx-backed credential repository ships as the credstore subpackage.
//
// # What this package must NOT do
//
//   - Speak the remote network protocol. That belongs to the caller's
//     [AccountClient] implementation; enroll only orchestrates it.
//   - Render UI. The caller owns keyboards, message text, and routing;
//     enroll returns results and [HumanMessage]-mappable errors.
//   - Retry rate-limited operations. The retry delay is surfaced through
//     [RateLimitError] and the caller decides when to try again.
//
// # Resource contract
//
// Every login attempt exclusively owns one network connection. Every
// terminal transition — success, failure, or [Engine.Abandon] — releases it
// exactly once, and teardown never fails outward.
package enroll
