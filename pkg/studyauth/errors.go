package studyauth

import "errors"

// Transport error categories. Implementations of NetworkTransport must fail
// with one of these (or wrap one) so the manager can classify outcomes; any
// other error is treated as a generic transport failure.
var (
	// ErrNotAuthenticated indicates bad credentials or an expired session.
	ErrNotAuthenticated = errors.New("studyauth: not authenticated")

	// ErrEntityNotFound indicates the requested server entity does not exist.
	// Consent signature lookups translate it to a local-cache fallback rather
	// than surfacing it.
	ErrEntityNotFound = errors.New("studyauth: entity not found")
)

// Local validation and state errors.
var (
	ErrNoIdentity      = errors.New("studyauth: email or phone is required")
	ErrInvalidEmail    = errors.New("studyauth: invalid email address")
	ErrConsentNotFound = errors.New("studyauth: consent signature not found")
	ErrNilTransport    = errors.New("studyauth: network transport is required")
	ErrNilCredentials  = errors.New("studyauth: credential store is required")
	ErrNilConsentStore = errors.New("studyauth: consent store is required")
	ErrEmptyStudyID    = errors.New("studyauth: study identifier is required")
	ErrEmptySignature  = errors.New("studyauth: consent signature requires a subpopulation and a name")
)

// ConsentRequiredError reports that authentication itself succeeded but a
// required subpopulation's consent is missing or outdated. It carries the
// session issued by the server so callers can inspect consent state without
// another network call. It is an expected, user-actionable condition rather
// than a bug.
type ConsentRequiredError struct {
	Session *Session
}

func (e *ConsentRequiredError) Error() string {
	return "studyauth: consent required"
}

// AsConsentRequired unwraps err into a *ConsentRequiredError if it is one.
func AsConsentRequired(err error) (*ConsentRequiredError, bool) {
	var consentErr *ConsentRequiredError
	if errors.As(err, &consentErr) {
		return consentErr, true
	}
	return nil, false
}
