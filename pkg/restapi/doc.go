// Package restapi implements the study server's REST protocol as a
// studyauth.NetworkTransport.
//
// The client speaks JSON over HTTP and translates the server's status codes
// into the transport error categories the authentication manager understands:
// 401 becomes studyauth.ErrNotAuthenticated, 404 becomes
// studyauth.ErrEntityNotFound, and 412 becomes a
// *studyauth.ConsentRequiredError carrying the session the server issued
// alongside the rejection. Sessions observed in responses are cached per
// identity so CachedSession can answer without a network round trip.
//
// Usage:
//
//	cfg, err := config.Load[restapi.Config]()
//	if err != nil {
//		log.Fatal(err)
//	}
//	transport, err := restapi.New(cfg, restapi.WithLogger(log))
package restapi
