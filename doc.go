// Package authkit is the client-side session and token manager for the
// loopchat backend. It owns the authenticated state of one device: the
// credential pair in a [tokenstore.Store], the in-memory [Session], an
// authenticated HTTP client ([Manager.Do], [Manager.Get], [Manager.Post])
// with retry-once semantics, and an authenticated WebSocket factory.
//
// A [Manager] is built once at process start through [Builder.Build] and is
// safe for concurrent use afterwards. Construction performs no I/O; call
// [Manager.Restore] once to reconstruct the session persisted by a previous
// run.
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Manager], [Builder], [Config],
// and value types (Session, MetricsSnapshot, SessionEvent). Flow
// orchestration, wire encoding, and event dispatch live under internal/ and
// are never exported. Token store backends live under tokenstore/.
//
// # What this package must NOT do
//
//   - Hold raw access or refresh tokens in the Session value; secrets stay
//     confined to the token store.
//   - Issue more than one concurrent refresh call against the backend: all
//     concurrent refresh demands collapse into a single in-flight ticket.
//   - Retry an authenticated request more than once per logical call.
//
// # Refresh contract
//
// Refresh is single-flight. The first caller that finds an expired access
// token performs the network refresh; every concurrent caller attaches to
// the same ticket and observes the same outcome. A refresh that fails is
// terminal: the manager signs out and callers surface [ErrUnauthorized]. A
// refresh that completes after sign-out is discarded, never resurrecting a
// cleared session.
package authkit
