package studyauth

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock implementation of NetworkTransport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) SignUp(ctx context.Context, signUp SignUp) error {
	args := m.Called(ctx, signUp)
	return args.Error(0)
}

func (m *MockTransport) SignIn(ctx context.Context, studyID, email, password string) (*Session, error) {
	args := m.Called(ctx, studyID, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockTransport) SignInViaEmailLink(ctx context.Context, studyID, email, token string) (*Session, error) {
	args := m.Called(ctx, studyID, email, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockTransport) SignInViaPhoneLink(ctx context.Context, studyID string, phone Phone, token string) (*Session, error) {
	args := m.Called(ctx, studyID, phone, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockTransport) SignOut(ctx context.Context, session *Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockTransport) RequestResetPassword(ctx context.Context, studyID, email string) error {
	args := m.Called(ctx, studyID, email)
	return args.Error(0)
}

func (m *MockTransport) ResendEmailVerification(ctx context.Context, studyID, email string) error {
	args := m.Called(ctx, studyID, email)
	return args.Error(0)
}

func (m *MockTransport) RequestEmailSignIn(ctx context.Context, studyID, email string) error {
	args := m.Called(ctx, studyID, email)
	return args.Error(0)
}

func (m *MockTransport) RequestPhoneSignIn(ctx context.Context, studyID string, phone Phone) error {
	args := m.Called(ctx, studyID, phone)
	return args.Error(0)
}

func (m *MockTransport) CachedSession(studyID string, creds Credentials) (*Session, bool) {
	args := m.Called(studyID, creds)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*Session), args.Bool(1)
}

func (m *MockTransport) ParticipantClient(session *Session) ParticipantAPI {
	args := m.Called(session)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(ParticipantAPI)
}

// MockParticipantAPI is a mock implementation of ParticipantAPI.
type MockParticipantAPI struct {
	mock.Mock
}

func (m *MockParticipantAPI) CreateConsentSignature(ctx context.Context, signature ConsentSignature) error {
	args := m.Called(ctx, signature)
	return args.Error(0)
}

func (m *MockParticipantAPI) ConsentSignature(ctx context.Context, subpopulationGUID string) (*ConsentSignature, error) {
	args := m.Called(ctx, subpopulationGUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ConsentSignature), args.Error(1)
}

func (m *MockParticipantAPI) WithdrawAllConsents(ctx context.Context, reason string) error {
	args := m.Called(ctx, reason)
	return args.Error(0)
}

func (m *MockParticipantAPI) WithdrawConsent(ctx context.Context, subpopulationGUID, reason string) error {
	args := m.Called(ctx, subpopulationGUID, reason)
	return args.Error(0)
}

func (m *MockParticipantAPI) RefreshSession(ctx context.Context) (*Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockParticipantAPI) Participant(ctx context.Context) (*Participant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Participant), args.Error(1)
}

func (m *MockParticipantAPI) UpdateParticipant(ctx context.Context, participant *Participant) (*Session, error) {
	args := m.Called(ctx, participant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockParticipantAPI) RequestUploadSession(ctx context.Context, name string, contentLength int64, contentMD5 string) (*UploadSession, error) {
	args := m.Called(ctx, name, contentLength, contentMD5)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UploadSession), args.Error(1)
}

func (m *MockParticipantAPI) CompleteUpload(ctx context.Context, uploadID string) error {
	args := m.Called(ctx, uploadID)
	return args.Error(0)
}

func (m *MockParticipantAPI) ScheduledActivities(ctx context.Context, daysAhead int) ([]*ScheduledActivity, error) {
	args := m.Called(ctx, daysAhead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ScheduledActivity), args.Error(1)
}

func (m *MockParticipantAPI) UpdateScheduledActivities(ctx context.Context, activities []*ScheduledActivity) error {
	args := m.Called(ctx, activities)
	return args.Error(0)
}

// fakeCredentialStore is an in-memory CredentialStore for tests.
type fakeCredentialStore struct {
	mu          sync.Mutex
	creds       Credentials
	session     *Session
	participant *Participant
}

func (f *fakeCredentialStore) Credentials(context.Context) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, nil
}

func (f *fakeCredentialStore) SetCredentials(_ context.Context, creds Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = creds
	return nil
}

func (f *fakeCredentialStore) Session(context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeCredentialStore) SetSession(_ context.Context, session *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
	return nil
}

func (f *fakeCredentialStore) Participant(context.Context) (*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participant, nil
}

func (f *fakeCredentialStore) SetParticipant(_ context.Context, participant *Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participant = participant
	return nil
}

func (f *fakeCredentialStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = Credentials{}
	f.session = nil
	f.participant = nil
	return nil
}

// fakeConsentStore is an in-memory ConsentStore for tests.
type fakeConsentStore struct {
	mu         sync.Mutex
	signatures map[string]ConsentSignature
}

func newFakeConsentStore() *fakeConsentStore {
	return &fakeConsentStore{signatures: make(map[string]ConsentSignature)}
}

func (f *fakeConsentStore) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	guids := make([]string, 0, len(f.signatures))
	for guid := range f.signatures {
		guids = append(guids, guid)
	}
	return guids, nil
}

func (f *fakeConsentStore) Get(_ context.Context, guid string) (*ConsentSignature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	signature, ok := f.signatures[guid]
	if !ok {
		return nil, ErrConsentNotFound
	}
	return &signature, nil
}

func (f *fakeConsentStore) Put(_ context.Context, signature ConsentSignature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signatures[signature.SubpopulationGUID] = signature
	return nil
}

func (f *fakeConsentStore) Remove(_ context.Context, guid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.signatures, guid)
	return nil
}

func (f *fakeConsentStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signatures = make(map[string]ConsentSignature)
	return nil
}

// recordingListener captures listener notifications in order.
type recordingListener struct {
	mu        sync.Mutex
	signedIn  []string
	signedOut []string
}

func (r *recordingListener) SignedIn(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signedIn = append(r.signedIn, email)
}

func (r *recordingListener) SignedOut(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signedOut = append(r.signedOut, email)
}
