package studyauth

import (
	"context"

	"github.com/dmitrymomot/studykit/pkg/logger"
)

// completeSignIn runs a sign-in attempt through the completion pipeline.
//
// The pipeline reconciles the server's "consent required" rejection with
// consent the participant may already hold locally but never got uploaded
// (a previous upload having failed). When at least one of the missing
// required subpopulations has a local signature, every locally held
// signature is uploaded and the identical attempt is re-issued exactly once.
// A second rejection of any kind is returned unchanged; there is never a
// third attempt, because a server that keeps rejecting a given local consent
// would otherwise loop forever.
//
// A consent-required outcome is authentication success as far as session
// state is concerned: the session inside the error is authoritative and is
// persisted before the error propagates. Signed-in listeners fire only on a
// fully consented sign-in.
func (m *Manager) completeSignIn(ctx context.Context, creds Credentials, attempt func(context.Context) (*Session, error)) (*Session, error) {
	session, err := attempt(ctx)
	if err == nil {
		return m.finalizeSignIn(ctx, creds, session)
	}

	consentErr, ok := AsConsentRequired(err)
	if !ok {
		return nil, m.abortSignIn(ctx, err)
	}

	if !m.hasRecoverableConsent(ctx, consentErr.Session) {
		// The normal "please consent" path: nothing local to recover with.
		m.storeAuthenticated(ctx, creds, consentErr.Session)
		return nil, consentErr
	}

	m.uploadLocalConsents(ctx, consentErr.Session)

	session, err = attempt(ctx)
	if err != nil {
		if retryConsentErr, ok := AsConsentRequired(err); ok {
			m.storeAuthenticated(ctx, creds, retryConsentErr.Session)
			return nil, retryConsentErr
		}
		return nil, m.abortSignIn(ctx, err)
	}

	return m.finalizeSignIn(ctx, creds, session)
}

// hasRecoverableConsent reports whether any subpopulation the server flags as
// required-but-unconsented has a signature in the local consent store. Only
// that overlap justifies an upload-and-retry; otherwise the consent-required
// condition goes straight to the caller.
func (m *Manager) hasRecoverableConsent(ctx context.Context, session *Session) bool {
	for _, guid := range session.MissingRequiredConsents() {
		if m.hasLocalSignature(ctx, guid) {
			return true
		}
	}
	return false
}

// uploadLocalConsents uploads every signature held in the consent store, not
// just the missing ones, using a client bound to the session carried by the
// consent rejection. Individual upload failures are collected in the log and
// do not stop the sequence; the retried sign-in is issued only after every
// upload has been attempted.
func (m *Manager) uploadLocalConsents(ctx context.Context, session *Session) {
	guids, err := m.consents.List(ctx)
	if err != nil {
		m.log.WarnContext(ctx, "failed to enumerate local consent signatures",
			logger.Component("studyauth"), logger.Error(err))
		return
	}

	api := m.transport.ParticipantClient(session)
	for _, guid := range guids {
		signature, err := m.consents.Get(ctx, guid)
		if err != nil || signature == nil {
			continue
		}
		if err := api.CreateConsentSignature(ctx, *signature); err != nil {
			m.log.WarnContext(ctx, "failed to upload local consent signature",
				logger.Component("studyauth"),
				logger.Subpopulation(guid),
				logger.Error(err))
		}
	}
}

// finalizeSignIn persists the submitted credentials and the issued session,
// rebinds the client, and fires signed-in listeners exactly once.
func (m *Manager) finalizeSignIn(ctx context.Context, creds Credentials, session *Session) (*Session, error) {
	m.storeAuthenticated(ctx, creds, session)

	identity := creds.Email
	if identity == "" && creds.Phone != nil {
		identity = creds.Phone.Number
	}
	m.listeners.notifySignedIn(identity)

	return session, nil
}

// storeAuthenticated writes credentials and session through to the store and
// swaps in a client bound to the session. Store write failures are logged;
// the in-memory binding is still updated so the caller's session remains
// usable for this process.
func (m *Manager) storeAuthenticated(ctx context.Context, creds Credentials, session *Session) {
	if err := m.creds.SetCredentials(ctx, creds); err != nil {
		m.log.WarnContext(ctx, "failed to persist credentials",
			logger.Component("studyauth"), logger.Error(err))
	}
	m.adoptSession(ctx, session)
}

// abortSignIn clears stored credentials and session so the system never
// believes it is signed in after a terminal failure, then returns err
// unchanged for the caller.
func (m *Manager) abortSignIn(ctx context.Context, err error) error {
	if clearErr := m.creds.Clear(ctx); clearErr != nil {
		m.log.WarnContext(ctx, "failed to clear credential store after sign-in failure",
			logger.Component("studyauth"), logger.Error(clearErr))
	}
	m.state.Store(&authState{api: unauthenticatedAPI{}})
	return err
}
