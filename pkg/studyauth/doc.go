// Package studyauth manages participant authentication, session state and
// informed-consent reconciliation for research-study client applications.
//
// A Manager owns a CredentialStore and a ConsentStore, talks to the study
// server through a NetworkTransport, and derives the currently valid
// authenticated client from them. Collaborators never hold that client
// directly: Manager.API returns a proxy whose every call resolves the
// current binding first, so a sign-out/sign-in cycle cannot leave anyone on
// stale credentials.
//
// # Sign-in completion pipeline
//
// Sign-in runs through a consent-aware pipeline. When the server rejects a
// sign-in with a consent-required error whose missing subpopulations overlap
// signatures held locally, the manager uploads every local signature and
// retries the identical sign-in exactly once. The second outcome — success
// or failure — is final. The session carried by a consent-required error is
// authoritative and is persisted even when the error propagates.
//
// # Concurrency
//
// All Manager methods are safe from any goroutine. The pairing of bound
// client and session is an immutable value behind an atomic pointer, swapped
// wholesale on every transition. Blocking operations take a context; the
// fire-and-forget secondaries (passwordless link requests, consent signature
// uploads) run through pkg/async futures.
package studyauth
