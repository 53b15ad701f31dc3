// Package async provides a small generic Future abstraction for running
// side work off the calling goroutine.
//
// A Future is obtained from Async, which starts the supplied function in its
// own goroutine and returns immediately. Callers wait with Await, bound the
// wait with AwaitWithTimeout, or poll with IsComplete. WaitAll collects the
// results of several futures in order.
//
// The SDK uses futures for fire-and-forget secondaries whose failure must not
// fail the primary operation: requesting a passwordless sign-in link after
// sign-up, uploading a consent signature after it has been persisted locally,
// and refreshing the session after a consent withdrawal.
package async
