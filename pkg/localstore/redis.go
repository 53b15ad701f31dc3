package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

// RedisCredentialStore implements studyauth.CredentialStore on Redis. Keys
// are namespaced so multiple participants (or studies) can share a server.
type RedisCredentialStore struct {
	client    *redis.Client
	namespace string
}

var _ studyauth.CredentialStore = (*RedisCredentialStore)(nil)

// NewRedisCredentialStore creates a credential store using the given client.
// The namespace is prefixed to every key, e.g. "study-1:participant-7".
func NewRedisCredentialStore(client *redis.Client, namespace string) *RedisCredentialStore {
	return &RedisCredentialStore{client: client, namespace: namespace}
}

func (r *RedisCredentialStore) key(field string) string {
	return fmt.Sprintf("%s:%s", r.namespace, field)
}

func (r *RedisCredentialStore) Credentials(ctx context.Context) (studyauth.Credentials, error) {
	var creds studyauth.Credentials
	err := r.getJSON(ctx, r.key("credentials"), &creds)
	return creds, err
}

func (r *RedisCredentialStore) SetCredentials(ctx context.Context, creds studyauth.Credentials) error {
	return r.setJSON(ctx, r.key("credentials"), creds)
}

func (r *RedisCredentialStore) Session(ctx context.Context) (*studyauth.Session, error) {
	var session studyauth.Session
	found, err := r.getJSONFound(ctx, r.key("session"), &session)
	if err != nil || !found {
		return nil, err
	}
	return &session, nil
}

func (r *RedisCredentialStore) SetSession(ctx context.Context, session *studyauth.Session) error {
	if session == nil {
		return r.client.Del(ctx, r.key("session")).Err()
	}
	return r.setJSON(ctx, r.key("session"), session)
}

func (r *RedisCredentialStore) Participant(ctx context.Context) (*studyauth.Participant, error) {
	var participant studyauth.Participant
	found, err := r.getJSONFound(ctx, r.key("participant"), &participant)
	if err != nil || !found {
		return nil, err
	}
	return &participant, nil
}

func (r *RedisCredentialStore) SetParticipant(ctx context.Context, participant *studyauth.Participant) error {
	if participant == nil {
		return r.client.Del(ctx, r.key("participant")).Err()
	}
	return r.setJSON(ctx, r.key("participant"), participant)
}

func (r *RedisCredentialStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key("credentials"), r.key("session"), r.key("participant")).Err()
}

func (r *RedisCredentialStore) getJSON(ctx context.Context, key string, out any) error {
	_, err := r.getJSONFound(ctx, key, out)
	return err
}

func (r *RedisCredentialStore) getJSONFound(ctx context.Context, key string, out any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	return true, nil
}

func (r *RedisCredentialStore) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, 0).Err()
}

// RedisConsentStore implements studyauth.ConsentStore on a Redis hash keyed
// by subpopulation GUID.
type RedisConsentStore struct {
	client    *redis.Client
	namespace string
}

var _ studyauth.ConsentStore = (*RedisConsentStore)(nil)

// NewRedisConsentStore creates a consent store using the given client.
func NewRedisConsentStore(client *redis.Client, namespace string) *RedisConsentStore {
	return &RedisConsentStore{client: client, namespace: namespace}
}

func (r *RedisConsentStore) key() string {
	return fmt.Sprintf("%s:consents", r.namespace)
}

func (r *RedisConsentStore) List(ctx context.Context) ([]string, error) {
	return r.client.HKeys(ctx, r.key()).Result()
}

func (r *RedisConsentStore) Get(ctx context.Context, subpopulationGUID string) (*studyauth.ConsentSignature, error) {
	data, err := r.client.HGet(ctx, r.key(), subpopulationGUID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, studyauth.ErrConsentNotFound
	}
	if err != nil {
		return nil, err
	}

	var signature studyauth.ConsentSignature
	if err := json.Unmarshal(data, &signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	return &signature, nil
}

func (r *RedisConsentStore) Put(ctx context.Context, signature studyauth.ConsentSignature) error {
	data, err := json.Marshal(signature)
	if err != nil {
		return fmt.Errorf("encode consent signature: %w", err)
	}
	return r.client.HSet(ctx, r.key(), signature.SubpopulationGUID, data).Err()
}

func (r *RedisConsentStore) Remove(ctx context.Context, subpopulationGUID string) error {
	return r.client.HDel(ctx, r.key(), subpopulationGUID).Err()
}

func (r *RedisConsentStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}
