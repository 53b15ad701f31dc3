package localstore

import (
	"context"
	"sync"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

// MemoryCredentialStore implements studyauth.CredentialStore in memory.
// Values are copied on read and write so callers cannot mutate stored state.
type MemoryCredentialStore struct {
	mu          sync.RWMutex
	creds       studyauth.Credentials
	session     *studyauth.Session
	participant *studyauth.Participant
}

var _ studyauth.CredentialStore = (*MemoryCredentialStore)(nil)

// NewMemoryCredentialStore creates an empty in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (m *MemoryCredentialStore) Credentials(context.Context) (studyauth.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds := m.creds
	if m.creds.Phone != nil {
		phone := *m.creds.Phone
		creds.Phone = &phone
	}
	return creds, nil
}

func (m *MemoryCredentialStore) SetCredentials(_ context.Context, creds studyauth.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if creds.Phone != nil {
		phone := *creds.Phone
		creds.Phone = &phone
	}
	m.creds = creds
	return nil
}

func (m *MemoryCredentialStore) Session(context.Context) (*studyauth.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySession(m.session), nil
}

func (m *MemoryCredentialStore) SetSession(_ context.Context, session *studyauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = copySession(session)
	return nil
}

func (m *MemoryCredentialStore) Participant(context.Context) (*studyauth.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyParticipant(m.participant), nil
}

func (m *MemoryCredentialStore) SetParticipant(_ context.Context, participant *studyauth.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participant = copyParticipant(participant)
	return nil
}

func (m *MemoryCredentialStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = studyauth.Credentials{}
	m.session = nil
	m.participant = nil
	return nil
}

// MemoryConsentStore implements studyauth.ConsentStore in memory.
type MemoryConsentStore struct {
	mu         sync.RWMutex
	signatures map[string]studyauth.ConsentSignature
}

var _ studyauth.ConsentStore = (*MemoryConsentStore)(nil)

// NewMemoryConsentStore creates an empty in-memory consent store.
func NewMemoryConsentStore() *MemoryConsentStore {
	return &MemoryConsentStore{signatures: make(map[string]studyauth.ConsentSignature)}
}

func (m *MemoryConsentStore) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	guids := make([]string, 0, len(m.signatures))
	for guid := range m.signatures {
		guids = append(guids, guid)
	}
	return guids, nil
}

func (m *MemoryConsentStore) Get(_ context.Context, subpopulationGUID string) (*studyauth.ConsentSignature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	signature, ok := m.signatures[subpopulationGUID]
	if !ok {
		return nil, studyauth.ErrConsentNotFound
	}
	return copySignature(signature), nil
}

func (m *MemoryConsentStore) Put(_ context.Context, signature studyauth.ConsentSignature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[signature.SubpopulationGUID] = *copySignature(signature)
	return nil
}

func (m *MemoryConsentStore) Remove(_ context.Context, subpopulationGUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signatures, subpopulationGUID)
	return nil
}

func (m *MemoryConsentStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures = make(map[string]studyauth.ConsentSignature)
	return nil
}

func copySession(session *studyauth.Session) *studyauth.Session {
	if session == nil {
		return nil
	}
	copied := *session
	if session.Phone != nil {
		phone := *session.Phone
		copied.Phone = &phone
	}
	if session.ConsentStatuses != nil {
		copied.ConsentStatuses = make(map[string]studyauth.ConsentStatus, len(session.ConsentStatuses))
		for guid, status := range session.ConsentStatuses {
			copied.ConsentStatuses[guid] = status
		}
	}
	return &copied
}

func copyParticipant(participant *studyauth.Participant) *studyauth.Participant {
	if participant == nil {
		return nil
	}
	copied := *participant
	if participant.DataGroups != nil {
		copied.DataGroups = append([]string(nil), participant.DataGroups...)
	}
	if participant.Attributes != nil {
		copied.Attributes = make(map[string]string, len(participant.Attributes))
		for k, v := range participant.Attributes {
			copied.Attributes[k] = v
		}
	}
	return &copied
}

func copySignature(signature studyauth.ConsentSignature) *studyauth.ConsentSignature {
	copied := signature
	if signature.ImageData != nil {
		copied.ImageData = append([]byte(nil), signature.ImageData...)
	}
	return &copied
}
