// Package localstore provides implementations of the studyauth credential
// and consent stores.
//
// Three backends ship out of the box: mutex-guarded in-memory stores for
// tests and ephemeral use, a durable single-file store on bbolt with
// CBOR-encoded values and optional NaCl secretbox encryption of credentials
// at rest, and Redis-backed stores for SDK deployments inside backend
// workers or shared-device kiosks.
//
// All implementations tolerate concurrent reads and serialize writes with
// last-write-wins semantics.
package localstore
