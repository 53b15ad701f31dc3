package studyauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAPIProxy_FollowsRebinding(t *testing.T) {
	t.Parallel()

	transport := &MockTransport{}
	m, _, _ := newTestManager(t, transport)

	// A collaborator grabs the proxy once and never again.
	proxy := m.API()
	assert.Same(t, proxy, m.API(), "API must always return the same façade instance")

	firstSession := testSession("token-1")
	secondSession := testSession("token-2")

	firstAPI := &MockParticipantAPI{}
	secondAPI := &MockParticipantAPI{}
	transport.On("ParticipantClient", firstSession).Return(firstAPI)
	transport.On("ParticipantClient", secondSession).Return(secondAPI)
	transport.On("SignIn", mock.Anything, "study-1", "a@b.com", "pw").Return(firstSession, nil).Once()
	transport.On("SignIn", mock.Anything, "study-1", "c@d.com", "pw2").Return(secondSession, nil).Once()
	transport.On("SignOut", mock.Anything, firstSession).Return(nil).Once()

	firstAPI.On("CompleteUpload", mock.Anything, "u1").Return(nil).Once()
	secondAPI.On("CompleteUpload", mock.Anything, "u2").Return(nil).Once()

	_, err := m.SignIn(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, proxy.CompleteUpload(context.Background(), "u1"))

	require.NoError(t, m.SignOut(context.Background()))
	assert.ErrorIs(t, proxy.CompleteUpload(context.Background(), "u-none"), ErrNotAuthenticated)

	// After a different participant signs in, the held proxy transparently
	// delegates to the newly bound client.
	_, err = m.SignIn(context.Background(), "c@d.com", "pw2")
	require.NoError(t, err)
	require.NoError(t, proxy.CompleteUpload(context.Background(), "u2"))

	firstAPI.AssertExpectations(t)
	secondAPI.AssertExpectations(t)
}

func TestAPIProxy_DelegatesEveryOperation(t *testing.T) {
	t.Parallel()

	transport := &MockTransport{}
	m, _, _ := newTestManager(t, transport)

	session := testSession("token-1")
	api := &MockParticipantAPI{}
	transport.On("ParticipantClient", session).Return(api)
	transport.On("SignIn", mock.Anything, "study-1", "a@b.com", "pw").Return(session, nil).Once()

	_, err := m.SignIn(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	ctx := context.Background()
	proxy := m.API()

	signature := ConsentSignature{SubpopulationGUID: "sp1", Name: "A B"}
	participant := &Participant{FirstName: "Ada"}
	uploadSession := &UploadSession{ID: "u1", URL: "https://example.org/u1"}
	activities := []*ScheduledActivity{{GUID: "act-1"}}

	api.On("CreateConsentSignature", ctx, signature).Return(nil).Once()
	api.On("ConsentSignature", ctx, "sp1").Return(&signature, nil).Once()
	api.On("WithdrawAllConsents", ctx, "r").Return(nil).Once()
	api.On("WithdrawConsent", ctx, "sp1", "r").Return(nil).Once()
	api.On("RefreshSession", ctx).Return(session, nil).Once()
	api.On("Participant", ctx).Return(participant, nil).Once()
	api.On("UpdateParticipant", ctx, participant).Return(session, nil).Once()
	api.On("RequestUploadSession", ctx, "archive.zip", int64(42), "md5").Return(uploadSession, nil).Once()
	api.On("CompleteUpload", ctx, "u1").Return(nil).Once()
	api.On("ScheduledActivities", ctx, 4).Return(activities, nil).Once()
	api.On("UpdateScheduledActivities", ctx, activities).Return(nil).Once()

	assert.NoError(t, proxy.CreateConsentSignature(ctx, signature))

	gotSig, err := proxy.ConsentSignature(ctx, "sp1")
	require.NoError(t, err)
	assert.Equal(t, &signature, gotSig)

	assert.NoError(t, proxy.WithdrawAllConsents(ctx, "r"))
	assert.NoError(t, proxy.WithdrawConsent(ctx, "sp1", "r"))

	gotSession, err := proxy.RefreshSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, gotSession)

	gotParticipant, err := proxy.Participant(ctx)
	require.NoError(t, err)
	assert.Equal(t, participant, gotParticipant)

	_, err = proxy.UpdateParticipant(ctx, participant)
	require.NoError(t, err)

	gotUpload, err := proxy.RequestUploadSession(ctx, "archive.zip", 42, "md5")
	require.NoError(t, err)
	assert.Equal(t, uploadSession, gotUpload)

	assert.NoError(t, proxy.CompleteUpload(ctx, "u1"))

	gotActivities, err := proxy.ScheduledActivities(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, activities, gotActivities)

	assert.NoError(t, proxy.UpdateScheduledActivities(ctx, activities))

	api.AssertExpectations(t)
}
