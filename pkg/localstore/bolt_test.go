package localstore

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

func openTestBolt(t *testing.T, opts ...BoltOption) *BoltStore {
	t.Helper()

	store, err := OpenBolt(filepath.Join(t.TempDir(), "study.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStore_Credentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestBolt(t)

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.True(t, creds.IsZero())

	want := studyauth.Credentials{
		Email:    "a@b.com",
		Password: "pw",
		Phone:    &studyauth.Phone{RegionCode: "US", Number: "+15551234567"},
	}
	require.NoError(t, store.SetCredentials(ctx, want))

	got, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	session := &studyauth.Session{Token: "t1", Consented: true}
	require.NoError(t, store.SetSession(ctx, session))

	gotSession, err := store.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, gotSession)

	require.NoError(t, store.Clear(ctx))

	got, err = store.Credentials(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	gotSession, err = store.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, gotSession)
}

func TestBoltStore_Consents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestBolt(t)
	consents := store.ConsentSide()

	_, err := consents.Get(ctx, "sp1")
	assert.ErrorIs(t, err, studyauth.ErrConsentNotFound)

	signature := studyauth.ConsentSignature{
		SubpopulationGUID: "sp1",
		Name:              "Ada Lovelace",
		Birthdate:         "1815-12-10",
		ImageData:         []byte{0x89, 0x50, 0x4e, 0x47},
		ImageMimeType:     "image/png",
		Scope:             studyauth.SharingAllQualifiedResearchers,
	}
	require.NoError(t, consents.Put(ctx, signature))

	got, err := consents.Get(ctx, "sp1")
	require.NoError(t, err)
	assert.Equal(t, signature, *got)

	guids, err := consents.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sp1"}, guids)

	// Clearing consents must not touch credentials.
	require.NoError(t, store.SetCredentials(ctx, studyauth.Credentials{Email: "a@b.com"}))
	require.NoError(t, consents.Clear(ctx))

	guids, err = consents.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, guids)

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", creds.Email)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "study.db")

	store, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, store.SetCredentials(ctx, studyauth.Credentials{Email: "a@b.com"}))
	require.NoError(t, store.Close())

	reopened, err := OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	creds, err := reopened.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", creds.Email)
}

func TestBoltStore_Encryption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rejects short keys", func(t *testing.T) {
		t.Parallel()

		_, err := OpenBolt(filepath.Join(t.TempDir(), "study.db"), WithEncryptionKey([]byte("short")))
		assert.ErrorIs(t, err, ErrInvalidEncryptionKey)
	})

	t.Run("round trips and keeps plaintext off disk", func(t *testing.T) {
		t.Parallel()

		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "study.db")
		store, err := OpenBolt(path, WithEncryptionKey(key))
		require.NoError(t, err)

		require.NoError(t, store.SetCredentials(ctx, studyauth.Credentials{Email: "secret@b.com", Password: "hunter2"}))

		creds, err := store.Credentials(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", creds.Password)

		require.NoError(t, store.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "hunter2")
		assert.NotContains(t, string(raw), "secret@b.com")
	})

	t.Run("wrong key fails to decrypt", func(t *testing.T) {
		t.Parallel()

		keyA := make([]byte, 32)
		keyB := make([]byte, 32)
		_, err := rand.Read(keyA)
		require.NoError(t, err)
		_, err = rand.Read(keyB)
		require.NoError(t, err)
		keyB[0] = ^keyA[0]

		path := filepath.Join(t.TempDir(), "study.db")
		store, err := OpenBolt(path, WithEncryptionKey(keyA))
		require.NoError(t, err)
		require.NoError(t, store.SetCredentials(ctx, studyauth.Credentials{Email: "a@b.com"}))
		require.NoError(t, store.Close())

		reopened, err := OpenBolt(path, WithEncryptionKey(keyB))
		require.NoError(t, err)
		defer reopened.Close()

		_, err = reopened.Credentials(ctx)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}
