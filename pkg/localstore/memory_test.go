package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/studykit/pkg/studyauth"
)

func TestMemoryCredentialStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryCredentialStore()

	t.Run("empty store returns zero values", func(t *testing.T) {
		creds, err := store.Credentials(ctx)
		require.NoError(t, err)
		assert.True(t, creds.IsZero())

		session, err := store.Session(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("round trips values", func(t *testing.T) {
		creds := studyauth.Credentials{Email: "a@b.com", Password: "pw"}
		require.NoError(t, store.SetCredentials(ctx, creds))

		session := &studyauth.Session{Token: "t1", ConsentStatuses: map[string]studyauth.ConsentStatus{
			"sp1": {SubpopulationGUID: "sp1", Required: true},
		}}
		require.NoError(t, store.SetSession(ctx, session))

		gotCreds, err := store.Credentials(ctx)
		require.NoError(t, err)
		assert.Equal(t, creds, gotCreds)

		gotSession, err := store.Session(ctx)
		require.NoError(t, err)
		assert.Equal(t, session, gotSession)
	})

	t.Run("reads return copies", func(t *testing.T) {
		gotSession, err := store.Session(ctx)
		require.NoError(t, err)
		gotSession.ConsentStatuses["sp1"] = studyauth.ConsentStatus{Consented: true}

		fresh, err := store.Session(ctx)
		require.NoError(t, err)
		assert.False(t, fresh.ConsentStatuses["sp1"].Consented)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))

		creds, err := store.Credentials(ctx)
		require.NoError(t, err)
		assert.True(t, creds.IsZero())

		session, err := store.Session(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}

func TestMemoryConsentStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryConsentStore()

	t.Run("miss returns ErrConsentNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "sp1")
		assert.ErrorIs(t, err, studyauth.ErrConsentNotFound)
	})

	t.Run("put get list remove", func(t *testing.T) {
		signature := studyauth.ConsentSignature{
			SubpopulationGUID: "sp1",
			Name:              "Ada Lovelace",
			Birthdate:         "1815-12-10",
			Scope:             studyauth.SharingSponsorsAndPartners,
		}
		require.NoError(t, store.Put(ctx, signature))

		got, err := store.Get(ctx, "sp1")
		require.NoError(t, err)
		assert.Equal(t, signature, *got)

		guids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"sp1"}, guids)

		require.NoError(t, store.Remove(ctx, "sp1"))
		_, err = store.Get(ctx, "sp1")
		assert.ErrorIs(t, err, studyauth.ErrConsentNotFound)
	})
}
