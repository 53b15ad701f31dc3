package studyauth

import "context"

// apiProxy is the stable façade over the consented-user API. Every method
// resolves the manager's currently bound client with one atomic load and
// delegates unchanged. No caching and no retries happen here; a collaborator
// holding the proxy across a sign-out/sign-in cycle transparently follows the
// rebinding instead of keeping a client built from stale credentials.
type apiProxy struct {
	manager *Manager
}

var _ ParticipantAPI = (*apiProxy)(nil)

func (p *apiProxy) CreateConsentSignature(ctx context.Context, signature ConsentSignature) error {
	return p.manager.currentAPI().CreateConsentSignature(ctx, signature)
}

func (p *apiProxy) ConsentSignature(ctx context.Context, subpopulationGUID string) (*ConsentSignature, error) {
	return p.manager.currentAPI().ConsentSignature(ctx, subpopulationGUID)
}

func (p *apiProxy) WithdrawAllConsents(ctx context.Context, reason string) error {
	return p.manager.currentAPI().WithdrawAllConsents(ctx, reason)
}

func (p *apiProxy) WithdrawConsent(ctx context.Context, subpopulationGUID, reason string) error {
	return p.manager.currentAPI().WithdrawConsent(ctx, subpopulationGUID, reason)
}

func (p *apiProxy) RefreshSession(ctx context.Context) (*Session, error) {
	return p.manager.currentAPI().RefreshSession(ctx)
}

func (p *apiProxy) Participant(ctx context.Context) (*Participant, error) {
	return p.manager.currentAPI().Participant(ctx)
}

func (p *apiProxy) UpdateParticipant(ctx context.Context, participant *Participant) (*Session, error) {
	return p.manager.currentAPI().UpdateParticipant(ctx, participant)
}

func (p *apiProxy) RequestUploadSession(ctx context.Context, name string, contentLength int64, contentMD5 string) (*UploadSession, error) {
	return p.manager.currentAPI().RequestUploadSession(ctx, name, contentLength, contentMD5)
}

func (p *apiProxy) CompleteUpload(ctx context.Context, uploadID string) error {
	return p.manager.currentAPI().CompleteUpload(ctx, uploadID)
}

func (p *apiProxy) ScheduledActivities(ctx context.Context, daysAhead int) ([]*ScheduledActivity, error) {
	return p.manager.currentAPI().ScheduledActivities(ctx, daysAhead)
}

func (p *apiProxy) UpdateScheduledActivities(ctx context.Context, activities []*ScheduledActivity) error {
	return p.manager.currentAPI().UpdateScheduledActivities(ctx, activities)
}

// unauthenticatedAPI is what the proxy resolves to while no participant is
// signed in. Every call fails with ErrNotAuthenticated.
type unauthenticatedAPI struct{}

var _ ParticipantAPI = unauthenticatedAPI{}

func (unauthenticatedAPI) CreateConsentSignature(context.Context, ConsentSignature) error {
	return ErrNotAuthenticated
}

func (unauthenticatedAPI) ConsentSignature(context.Context, string) (*ConsentSignature, error) {
	return nil, ErrNotAuthenticated
}

func (unauthenticatedAPI) WithdrawAllConsents(context.Context, string) error {
	return ErrNotAuthenticated
}

func (unauthenticatedAPI) WithdrawConsent(context.Context, string, string) error {
	return ErrNotAuthenticated
}

func (unauthenticatedAPI) RefreshSession(context.Context) (*Session, error) {
	return nil, ErrNotAuthenticated
}

func (unauthenticatedAPI) Participant(context.Context) (*Participant, error) {
	return nil, ErrNotAuthenticated
}

func (unauthenticatedAPI) UpdateParticipant(context.Context, *Participant) (*Session, error) {
	return nil, ErrNotAuthenticated
}

func (unauthenticatedAPI) RequestUploadSession(context.Context, string, int64, string) (*UploadSession, error) {
	return nil, ErrNotAuthenticated
}

func (unauthenticatedAPI) CompleteUpload(context.Context, string) error {
	return ErrNotAuthenticated
}

func (unauthenticatedAPI) ScheduledActivities(context.Context, int) ([]*ScheduledActivity, error) {
	return nil, ErrNotAuthenticated
}

func (unauthenticatedAPI) UpdateScheduledActivities(context.Context, []*ScheduledActivity) error {
	return ErrNotAuthenticated
}
