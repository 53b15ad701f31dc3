package localstore

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

var (
	bucketCredentials = []byte("credentials")
	bucketConsents    = []byte("consents")

	keyCredentials = []byte("credentials")
	keySession     = []byte("session")
	keyParticipant = []byte("participant")
)

// BoltStore is a durable single-file store implementing both
// studyauth.CredentialStore and studyauth.ConsentStore. Values are encoded
// with CBOR; bbolt serializes writers, so concurrent use is safe.
//
// When an encryption key is configured, credential-bucket values are sealed
// with NaCl secretbox before they touch disk.
type BoltStore struct {
	db  *bolt.DB
	key *[32]byte
}

var (
	_ studyauth.CredentialStore = (*BoltStore)(nil)
	_ studyauth.ConsentStore    = (*BoltStore)(nil)
)

// BoltOption configures a BoltStore.
type BoltOption func(*BoltStore) error

// WithEncryptionKey enables encryption at rest for credential values.
// The key must be exactly 32 bytes.
func WithEncryptionKey(key []byte) BoltOption {
	return func(s *BoltStore) error {
		if len(key) != 32 {
			return ErrInvalidEncryptionKey
		}
		s.key = new([32]byte)
		copy(s.key[:], key)
		return nil
	}
}

// OpenBolt opens (creating if necessary) the store file at path.
func OpenBolt(path string, opts ...BoltOption) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}

	store := &BoltStore{db: db}
	for _, opt := range opts {
		if err := opt(store); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCredentials); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketConsents)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return store, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Credentials(ctx context.Context) (studyauth.Credentials, error) {
	var creds studyauth.Credentials
	err := s.getSealed(ctx, keyCredentials, &creds)
	return creds, err
}

func (s *BoltStore) SetCredentials(ctx context.Context, creds studyauth.Credentials) error {
	return s.putSealed(ctx, keyCredentials, creds)
}

func (s *BoltStore) Session(ctx context.Context) (*studyauth.Session, error) {
	var session studyauth.Session
	found, err := s.getSealedFound(ctx, keySession, &session)
	if err != nil || !found {
		return nil, err
	}
	return &session, nil
}

func (s *BoltStore) SetSession(ctx context.Context, session *studyauth.Session) error {
	if session == nil {
		return s.delete(bucketCredentials, keySession)
	}
	return s.putSealed(ctx, keySession, session)
}

func (s *BoltStore) Participant(ctx context.Context) (*studyauth.Participant, error) {
	var participant studyauth.Participant
	found, err := s.getSealedFound(ctx, keyParticipant, &participant)
	if err != nil || !found {
		return nil, err
	}
	return &participant, nil
}

func (s *BoltStore) SetParticipant(ctx context.Context, participant *studyauth.Participant) error {
	if participant == nil {
		return s.delete(bucketCredentials, keyParticipant)
	}
	return s.putSealed(ctx, keyParticipant, participant)
}

func (s *BoltStore) Clear(context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketCredentials); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketCredentials)
		return err
	})
}

// --- studyauth.ConsentStore ---

func (s *BoltStore) List(context.Context) ([]string, error) {
	var guids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConsents).ForEach(func(k, _ []byte) error {
			guids = append(guids, string(k))
			return nil
		})
	})
	return guids, err
}

func (s *BoltStore) Get(_ context.Context, subpopulationGUID string) (*studyauth.ConsentSignature, error) {
	var signature studyauth.ConsentSignature
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketConsents).Get([]byte(subpopulationGUID))
		if data == nil {
			return nil
		}
		found = true
		if err := cbor.Unmarshal(data, &signature); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptValue, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, studyauth.ErrConsentNotFound
	}
	return &signature, nil
}

func (s *BoltStore) Put(_ context.Context, signature studyauth.ConsentSignature) error {
	data, err := cbor.Marshal(signature)
	if err != nil {
		return fmt.Errorf("encode consent signature: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConsents).Put([]byte(signature.SubpopulationGUID), data)
	})
}

func (s *BoltStore) Remove(_ context.Context, subpopulationGUID string) error {
	return s.delete(bucketConsents, []byte(subpopulationGUID))
}

// ClearConsents removes every stored consent signature. It has a distinct
// name because BoltStore implements both store interfaces and Clear is taken
// by the credential side; wrap the store with ConsentSide to hand it to a
// studyauth.Manager.
func (s *BoltStore) ClearConsents(context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketConsents); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketConsents)
		return err
	})
}

// ConsentSide adapts a BoltStore to a standalone studyauth.ConsentStore
// whose Clear touches only consent data.
func (s *BoltStore) ConsentSide() studyauth.ConsentStore {
	return boltConsentSide{s}
}

type boltConsentSide struct {
	store *BoltStore
}

func (c boltConsentSide) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

func (c boltConsentSide) Get(ctx context.Context, guid string) (*studyauth.ConsentSignature, error) {
	return c.store.Get(ctx, guid)
}

func (c boltConsentSide) Put(ctx context.Context, signature studyauth.ConsentSignature) error {
	return c.store.Put(ctx, signature)
}

func (c boltConsentSide) Remove(ctx context.Context, guid string) error {
	return c.store.Remove(ctx, guid)
}

func (c boltConsentSide) Clear(ctx context.Context) error {
	return c.store.ClearConsents(ctx)
}

// --- helpers ---

func (s *BoltStore) putSealed(_ context.Context, key []byte, value any) error {
	data, err := cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if s.key != nil {
		data, err = s.seal(data)
		if err != nil {
			return err
		}
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).Put(key, data)
	})
}

func (s *BoltStore) getSealed(ctx context.Context, key []byte, out any) error {
	_, err := s.getSealedFound(ctx, key, out)
	return err
}

func (s *BoltStore) getSealedFound(_ context.Context, key []byte, out any) (bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(bucketCredentials).Get(key)
		if stored != nil {
			data = append([]byte(nil), stored...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}

	if s.key != nil {
		data, err = s.open(data)
		if err != nil {
			return false, err
		}
	}
	if err := cbor.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	return true, nil
}

func (s *BoltStore) delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

func (s *BoltStore) seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, s.key), nil
}

func (s *BoltStore) open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 {
		return nil, ErrDecryptionFailed
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, s.key)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
