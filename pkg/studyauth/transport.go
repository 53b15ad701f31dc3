package studyauth

import "context"

// NetworkTransport executes the study server's authentication operations.
// Calls either succeed or fail with ErrNotAuthenticated, ErrEntityNotFound,
// a *ConsentRequiredError carrying a session, or a generic error.
//
// Implementations may capture sessions from responses as they pass through;
// CachedSession exposes that capture so the manager can answer session
// queries without a network round trip.
type NetworkTransport interface {
	// SignUp registers a new participant. It does not create a session.
	SignUp(ctx context.Context, signUp SignUp) error

	// SignIn authenticates with email and password and returns a session.
	SignIn(ctx context.Context, studyID, email, password string) (*Session, error)

	// SignInViaEmailLink redeems a token from a passwordless email link.
	SignInViaEmailLink(ctx context.Context, studyID, email, token string) (*Session, error)

	// SignInViaPhoneLink redeems a token from a passwordless SMS link.
	SignInViaPhoneLink(ctx context.Context, studyID string, phone Phone, token string) (*Session, error)

	// SignOut invalidates the session on the server.
	SignOut(ctx context.Context, session *Session) error

	RequestResetPassword(ctx context.Context, studyID, email string) error
	ResendEmailVerification(ctx context.Context, studyID, email string) error
	RequestEmailSignIn(ctx context.Context, studyID, email string) error
	RequestPhoneSignIn(ctx context.Context, studyID string, phone Phone) error

	// CachedSession returns the most recent session the transport observed
	// for the given credentials, without touching the network.
	CachedSession(studyID string, creds Credentials) (*Session, bool)

	// ParticipantClient returns a client bound to the given session for the
	// consented-user API surface. Callers must not hold the returned client
	// across a credential change; the manager's proxy exists for that.
	ParticipantClient(session *Session) ParticipantAPI
}

// ParticipantAPI is the consented-user API surface. The manager produces a
// proxy implementation that is safe to hold indefinitely: every call resolves
// the currently bound client before delegating, so collaborators never act on
// stale credentials.
type ParticipantAPI interface {
	// CreateConsentSignature uploads a consent signature for a subpopulation.
	CreateConsentSignature(ctx context.Context, signature ConsentSignature) error

	// ConsentSignature fetches the server-held signature for a subpopulation.
	// Fails with ErrEntityNotFound when the server has none.
	ConsentSignature(ctx context.Context, subpopulationGUID string) (*ConsentSignature, error)

	// WithdrawAllConsents withdraws the participant from every subpopulation.
	WithdrawAllConsents(ctx context.Context, reason string) error

	// WithdrawConsent withdraws the participant from one subpopulation.
	WithdrawConsent(ctx context.Context, subpopulationGUID, reason string) error

	// RefreshSession fetches the current session state from the server.
	RefreshSession(ctx context.Context) (*Session, error)

	// Participant fetches the participant record.
	Participant(ctx context.Context) (*Participant, error)

	// UpdateParticipant updates the participant record and returns the
	// session the server reissues for it.
	UpdateParticipant(ctx context.Context, participant *Participant) (*Session, error)

	// RequestUploadSession asks for an upload grant for a data archive.
	RequestUploadSession(ctx context.Context, name string, contentLength int64, contentMD5 string) (*UploadSession, error)

	// CompleteUpload tells the server the archive bytes have been delivered.
	CompleteUpload(ctx context.Context, uploadID string) error

	// ScheduledActivities fetches the participant's activity schedule.
	ScheduledActivities(ctx context.Context, daysAhead int) ([]*ScheduledActivity, error)

	// UpdateScheduledActivities reports activity state changes back.
	UpdateScheduledActivities(ctx context.Context, activities []*ScheduledActivity) error
}
