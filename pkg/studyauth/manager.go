package studyauth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"sync/atomic"

	"github.com/dmitrymomot/studykit/pkg/async"
	"github.com/dmitrymomot/studykit/pkg/logger"
)

// authState is the immutable pairing of the currently bound participant
// client and the session it was derived from. It is replaced wholesale on
// every credential transition and never mutated in place, so concurrent
// readers cannot observe a half-updated pairing.
type authState struct {
	api     ParticipantAPI
	session *Session
}

// Manager is the single authority for turning credentials into a usable
// authenticated client and for answering consent questions. All methods are
// safe to call from any goroutine.
type Manager struct {
	studyID   string
	transport NetworkTransport
	creds     CredentialStore
	consents  ConsentStore
	log       *slog.Logger

	state     atomic.Pointer[authState]
	listeners listenerRegistry
	proxy     *apiProxy
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger for the manager.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates a Manager for the given study. The transport and both stores
// are required. The manager starts unauthenticated; call Restore to rebind to
// a previously persisted session.
func New(studyID string, transport NetworkTransport, creds CredentialStore, consents ConsentStore, opts ...Option) (*Manager, error) {
	if studyID == "" {
		return nil, ErrEmptyStudyID
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	if creds == nil {
		return nil, ErrNilCredentials
	}
	if consents == nil {
		return nil, ErrNilConsentStore
	}

	m := &Manager{
		studyID:   studyID,
		transport: transport,
		creds:     creds,
		consents:  consents,
		log:       logger.NewDiscard(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.state.Store(&authState{api: unauthenticatedAPI{}})
	m.proxy = &apiProxy{manager: m}

	return m, nil
}

// Restore rebinds the manager to a session persisted by a previous process.
// It is a no-op when no session is stored.
func (m *Manager) Restore(ctx context.Context) error {
	session, err := m.creds.Session(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	m.state.Store(&authState{api: m.transport.ParticipantClient(session), session: session})
	return nil
}

// SignUp registers a new participant. The record's study is forced to the
// manager's configured study so a caller cannot register against another one.
// On success the identity fields are persisted for later sign-in; the store
// is left untouched on failure so the call can be retried idempotently.
//
// When no password is supplied the participant is on the passwordless flow,
// and a sign-in link request is issued as fire-and-forget side work; its
// failure is logged, not propagated.
func (m *Manager) SignUp(ctx context.Context, signUp SignUp) error {
	signUp.StudyID = m.studyID

	if signUp.Email == "" && signUp.Phone == nil {
		return ErrNoIdentity
	}
	if signUp.Email != "" {
		if err := validateEmail(signUp.Email); err != nil {
			return err
		}
	}

	if err := m.transport.SignUp(ctx, signUp); err != nil {
		return err
	}

	creds := Credentials{Email: signUp.Email, Phone: signUp.Phone, Password: signUp.Password}
	if err := m.creds.SetCredentials(ctx, creds); err != nil {
		m.log.WarnContext(ctx, "failed to persist credentials after sign-up",
			logger.Component("studyauth"), logger.Error(err))
	}

	if signUp.Password == "" {
		m.requestSignInLink(ctx, creds)
	}

	return nil
}

// SignUpWithEmail is a convenience wrapper registering an email identity.
// Pass an empty password to use the passwordless email-link flow.
func (m *Manager) SignUpWithEmail(ctx context.Context, email, password string) error {
	return m.SignUp(ctx, SignUp{Email: email, Password: password})
}

// requestSignInLink fires the passwordless link request off the calling
// goroutine. The primary operation already succeeded; a failure here only
// delays the participant's link.
func (m *Manager) requestSignInLink(ctx context.Context, creds Credentials) {
	future := async.Async(context.WithoutCancel(ctx), creds, func(ctx context.Context, c Credentials) (struct{}, error) {
		if c.Email != "" {
			return struct{}{}, m.transport.RequestEmailSignIn(ctx, m.studyID, c.Email)
		}
		return struct{}{}, m.transport.RequestPhoneSignIn(ctx, m.studyID, *c.Phone)
	})
	go func() {
		if _, err := future.Await(); err != nil {
			m.log.Warn("failed to request passwordless sign-in link",
				logger.Component("studyauth"), logger.Error(err))
		}
	}()
}

// SignIn authenticates with email and password, running the result through
// the consent-aware completion pipeline. On success the credentials and
// session are persisted and signed-in listeners fire; on any terminal failure
// other than consent-required the stored credentials and session are cleared.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	creds := Credentials{Email: email, Password: password}
	return m.completeSignIn(ctx, creds, func(ctx context.Context) (*Session, error) {
		return m.transport.SignIn(ctx, m.studyID, email, password)
	})
}

// SignInViaEmailLink redeems a passwordless email-link token through the same
// completion pipeline as SignIn.
func (m *Manager) SignInViaEmailLink(ctx context.Context, email, token string) (*Session, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	creds := Credentials{Email: email}
	return m.completeSignIn(ctx, creds, func(ctx context.Context) (*Session, error) {
		return m.transport.SignInViaEmailLink(ctx, m.studyID, email, token)
	})
}

// SignInViaPhoneLink redeems a passwordless SMS token through the same
// completion pipeline as SignIn.
func (m *Manager) SignInViaPhoneLink(ctx context.Context, phone Phone, token string) (*Session, error) {
	creds := Credentials{Phone: &phone}
	return m.completeSignIn(ctx, creds, func(ctx context.Context) (*Session, error) {
		return m.transport.SignInViaPhoneLink(ctx, m.studyID, phone, token)
	})
}

// SignOut clears all local state unconditionally: credentials, session and
// consent signatures are removed and the proxy falls back to an
// unauthenticated client even when the network sign-out fails. The network
// outcome is surfaced only as the returned error.
func (m *Manager) SignOut(ctx context.Context) error {
	identity := m.currentIdentity(ctx)
	session := m.currentSession(ctx)

	var netErr error
	if session != nil {
		netErr = m.transport.SignOut(ctx, session)
	}

	if err := m.creds.Clear(ctx); err != nil {
		m.log.WarnContext(ctx, "failed to clear credential store on sign-out",
			logger.Component("studyauth"), logger.Error(err))
	}
	if err := m.consents.Clear(ctx); err != nil {
		m.log.WarnContext(ctx, "failed to clear consent store on sign-out",
			logger.Component("studyauth"), logger.Error(err))
	}

	m.state.Store(&authState{api: unauthenticatedAPI{}})
	m.listeners.notifySignedOut(identity)

	return netErr
}

// RequestPasswordReset asks the server to email a password reset link.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	return m.transport.RequestResetPassword(ctx, m.studyID, email)
}

// ResendEmailVerification asks the server to resend the verification email.
func (m *Manager) ResendEmailVerification(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	return m.transport.ResendEmailVerification(ctx, m.studyID, email)
}

// RequestEmailSignIn asks the server to email a passwordless sign-in link.
func (m *Manager) RequestEmailSignIn(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	return m.transport.RequestEmailSignIn(ctx, m.studyID, email)
}

// RequestPhoneSignIn asks the server to text a passwordless sign-in link.
func (m *Manager) RequestPhoneSignIn(ctx context.Context, phone Phone) error {
	return m.transport.RequestPhoneSignIn(ctx, m.studyID, phone)
}

// SessionInfo returns the freshest known session. The transport's response
// interception may have observed a session more recently than the manager's
// own store, so that cache is consulted first and every hit is written back
// through to the credential store. Returns nil when no session is known.
func (m *Manager) SessionInfo(ctx context.Context) (*Session, error) {
	creds, err := m.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	if session, ok := m.transport.CachedSession(m.studyID, creds); ok && session != nil {
		if err := m.creds.SetSession(ctx, session); err != nil {
			m.log.WarnContext(ctx, "failed to write cached session through to store",
				logger.Component("studyauth"), logger.Error(err))
		}
		m.state.Store(&authState{api: m.transport.ParticipantClient(session), session: session})
		return session, nil
	}

	return m.creds.Session(ctx)
}

// IsConsentedTo reports whether the participant has consented to the given
// subpopulation: either the session marks it consented or a local signature
// exists for it. Local consent counts even before the server confirms it.
func (m *Manager) IsConsentedTo(ctx context.Context, subpopulationGUID string) bool {
	if session := m.currentSession(ctx); session != nil {
		if status, ok := session.ConsentStatuses[subpopulationGUID]; ok && status.Consented {
			return true
		}
	}
	return m.hasLocalSignature(ctx, subpopulationGUID)
}

// IsConsented reports whether the participant satisfies every consent
// requirement: the session says fully consented, or it carries no consent
// requirements at all, or every required subpopulation passes IsConsentedTo.
func (m *Manager) IsConsented(ctx context.Context) bool {
	session := m.currentSession(ctx)
	if session == nil {
		return false
	}
	if session.Consented {
		return true
	}
	if !session.HasConsentRequirements() {
		return true
	}
	for guid, status := range session.ConsentStatuses {
		if status.Required && !m.IsConsentedTo(ctx, guid) {
			return false
		}
	}
	return true
}

// IsConsentedMostRecentTo strictly requires the signed consent for the given
// subpopulation to match the latest published version. There is no
// local-signature fallback for this check.
func (m *Manager) IsConsentedMostRecentTo(ctx context.Context, subpopulationGUID string) bool {
	session := m.currentSession(ctx)
	if session == nil {
		return false
	}
	status, ok := session.ConsentStatuses[subpopulationGUID]
	return ok && status.Consented && status.SignedMostRecentConsent
}

// IsConsentedMostRecent reports whether every required subpopulation has a
// signature for its latest published consent version.
func (m *Manager) IsConsentedMostRecent(ctx context.Context) bool {
	session := m.currentSession(ctx)
	if session == nil {
		return false
	}
	if !session.HasConsentRequirements() {
		return session.Consented
	}
	for guid, status := range session.ConsentStatuses {
		if status.Required && !m.IsConsentedMostRecentTo(ctx, guid) {
			return false
		}
	}
	return true
}

// GiveConsent records the participant's agreement to a subpopulation's
// consent terms. The signature is persisted locally first — local persistence
// is the source of truth for "did the user agree" and must succeed before any
// network attempt. The upload then runs asynchronously through the returned
// future; an upload failure is logged and never rolls back the local
// signature.
func (m *Manager) GiveConsent(ctx context.Context, signature ConsentSignature) (*async.Future[ConsentSignature], error) {
	if signature.SubpopulationGUID == "" || signature.Name == "" {
		return nil, ErrEmptySignature
	}

	if err := m.consents.Put(ctx, signature); err != nil {
		return nil, err
	}

	future := async.Async(context.WithoutCancel(ctx), signature, func(ctx context.Context, sig ConsentSignature) (ConsentSignature, error) {
		if err := m.currentAPI().CreateConsentSignature(ctx, sig); err != nil {
			m.log.Warn("failed to upload consent signature",
				logger.Component("studyauth"),
				logger.Subpopulation(sig.SubpopulationGUID),
				logger.Error(err))
			return sig, err
		}
		return sig, nil
	})

	return future, nil
}

// ConsentSignatureFor returns the signature for a subpopulation, preferring
// the server's copy. A server miss (entity not found) falls back to the local
// store instead of surfacing as an error; ErrConsentNotFound is returned only
// when neither side has one.
func (m *Manager) ConsentSignatureFor(ctx context.Context, subpopulationGUID string) (*ConsentSignature, error) {
	signature, err := m.currentAPI().ConsentSignature(ctx, subpopulationGUID)
	if err == nil {
		return signature, nil
	}
	if !isSoftMiss(err) {
		return nil, err
	}
	return m.consents.Get(ctx, subpopulationGUID)
}

// WithdrawAll withdraws the participant from every subpopulation. The
// withdrawal itself is authoritative: the best-effort session refresh that
// follows is logged and swallowed on failure.
func (m *Manager) WithdrawAll(ctx context.Context, reason string) error {
	if err := m.currentAPI().WithdrawAllConsents(ctx, reason); err != nil {
		return err
	}
	m.refreshSessionBestEffort(ctx)
	return nil
}

// WithdrawConsent withdraws the participant from one subpopulation, with the
// same best-effort session refresh semantics as WithdrawAll.
func (m *Manager) WithdrawConsent(ctx context.Context, subpopulationGUID, reason string) error {
	if err := m.currentAPI().WithdrawConsent(ctx, subpopulationGUID, reason); err != nil {
		return err
	}
	m.refreshSessionBestEffort(ctx)
	return nil
}

// Participant returns the participant record, preferring the server's copy
// and falling back to the locally stored record on a server miss.
func (m *Manager) Participant(ctx context.Context) (*Participant, error) {
	participant, err := m.currentAPI().Participant(ctx)
	if err == nil {
		if setErr := m.creds.SetParticipant(ctx, participant); setErr != nil {
			m.log.WarnContext(ctx, "failed to persist participant record",
				logger.Component("studyauth"), logger.Error(setErr))
		}
		return participant, nil
	}
	if !isSoftMiss(err) {
		return nil, err
	}
	return m.creds.Participant(ctx)
}

// UpdateParticipant updates the participant record on the server. The server
// reissues a session for the updated record; persisting it locally is
// best-effort and does not fail the update.
func (m *Manager) UpdateParticipant(ctx context.Context, participant *Participant) error {
	session, err := m.currentAPI().UpdateParticipant(ctx, participant)
	if err != nil {
		return err
	}

	if err := m.creds.SetParticipant(ctx, participant); err != nil {
		m.log.WarnContext(ctx, "failed to persist participant record",
			logger.Component("studyauth"), logger.Error(err))
	}
	if session != nil {
		m.adoptSession(ctx, session)
	}
	return nil
}

// API returns the stable consented-user API façade. Collaborators may hold it
// indefinitely; every call is delegated to whatever client is currently
// bound, so a sign-out/sign-in cycle never leaves them on stale credentials.
func (m *Manager) API() ParticipantAPI {
	return m.proxy
}

// AddListener registers a listener for sign-in/sign-out notifications.
func (m *Manager) AddListener(l Listener) {
	m.listeners.add(l)
}

// RemoveListener removes a previously registered listener.
func (m *Manager) RemoveListener(l Listener) {
	m.listeners.remove(l)
}

// currentAPI resolves the currently bound client with a single atomic load.
func (m *Manager) currentAPI() ParticipantAPI {
	return m.state.Load().api
}

// currentSession returns the bound session, falling back to the persisted one
// when the manager has not been bound in this process yet.
func (m *Manager) currentSession(ctx context.Context) *Session {
	if state := m.state.Load(); state.session != nil {
		return state.session
	}
	session, err := m.creds.Session(ctx)
	if err != nil {
		m.log.DebugContext(ctx, "failed to read persisted session",
			logger.Component("studyauth"), logger.Error(err))
		return nil
	}
	return session
}

func (m *Manager) currentIdentity(ctx context.Context) string {
	creds, err := m.creds.Credentials(ctx)
	if err != nil {
		return ""
	}
	if creds.Email != "" {
		return creds.Email
	}
	if creds.Phone != nil {
		return creds.Phone.Number
	}
	return ""
}

func (m *Manager) hasLocalSignature(ctx context.Context, subpopulationGUID string) bool {
	signature, err := m.consents.Get(ctx, subpopulationGUID)
	return err == nil && signature != nil
}

// adoptSession persists a freshly issued session and rebinds the client to it.
func (m *Manager) adoptSession(ctx context.Context, session *Session) {
	if err := m.creds.SetSession(ctx, session); err != nil {
		m.log.WarnContext(ctx, "failed to persist session",
			logger.Component("studyauth"), logger.Error(err))
	}
	m.state.Store(&authState{api: m.transport.ParticipantClient(session), session: session})
}

// refreshSessionBestEffort updates local session state after a consent
// withdrawal. The withdrawal already succeeded; a refresh failure is logged
// and swallowed.
func (m *Manager) refreshSessionBestEffort(ctx context.Context) {
	session, err := m.currentAPI().RefreshSession(ctx)
	if err != nil {
		m.log.WarnContext(ctx, "failed to refresh session after withdrawal",
			logger.Component("studyauth"), logger.Error(err))
		return
	}
	if session != nil {
		m.adoptSession(ctx, session)
	}
}

// isSoftMiss reports whether err is the entity-not-found signal that consent
// and participant lookups translate into a local-cache fallback.
func isSoftMiss(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

func validateEmail(email string) error {
	if email == "" {
		return ErrNoIdentity
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}
