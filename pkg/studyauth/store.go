package studyauth

import "context"

// CredentialStore persists the participant's identity, session and record.
// Implementations must tolerate concurrent reads and serialize concurrent
// writes; last-write-wins is acceptable. Absent values are returned as zero
// values (nil session, nil participant, zero credentials), not errors.
type CredentialStore interface {
	Credentials(ctx context.Context) (Credentials, error)
	SetCredentials(ctx context.Context, creds Credentials) error

	Session(ctx context.Context) (*Session, error)
	SetSession(ctx context.Context, session *Session) error

	Participant(ctx context.Context) (*Participant, error)
	SetParticipant(ctx context.Context, participant *Participant) error

	// Clear removes credentials, session and participant record.
	Clear(ctx context.Context) error
}

// ConsentStore persists locally signed consent signatures keyed by
// subpopulation GUID. Get fails with ErrConsentNotFound when no signature is
// stored for the subpopulation.
type ConsentStore interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, subpopulationGUID string) (*ConsentSignature, error)
	Put(ctx context.Context, signature ConsentSignature) error
	Remove(ctx context.Context, subpopulationGUID string) error
	Clear(ctx context.Context) error
}
