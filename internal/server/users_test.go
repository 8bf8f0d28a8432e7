package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/backend/backendtest"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUsers_Upsert(t *testing.T) {
	users := NewMemoryUsers()
	ctx := context.Background()

	first, err := users.UpsertUserBySubject(ctx, types.Identity{Subject: "google-1", Email: "jane@example.com", Name: "Jane"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)

	again, err := users.UpsertUserBySubject(ctx, types.Identity{Subject: "google-1", Email: "jane@example.org", Name: "Jane D."})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "jane@example.org", again.Email)

	got, err := users.GetUser(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane D.", got.Name)

	missing, err := users.GetUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryUsers_RejectsInvalidIdentity(t *testing.T) {
	users := NewMemoryUsers()

	_, err := users.UpsertUserBySubject(context.Background(), types.Identity{Subject: "google-1", Email: "not-an-email"})
	assert.Error(t, err)

	_, err = users.UpsertUserBySubject(context.Background(), types.Identity{Email: "jane@example.com"})
	assert.Error(t, err)
}

func newUserService(t *testing.T) (*UserService, *backendtest.Fake, *state.Store, *analytics.Recorder) {
	t.Helper()
	fake := backendtest.New(t)
	client, err := backend.New(fake.URL(), backend.Options{Timeout: 5 * time.Second})
	require.NoError(t, err)

	store := state.NewStore(state.NewMemoryBackend(), state.Options{})
	rec := &analytics.Recorder{}
	return NewUserService(NewMemoryUsers(), client, store, rec, nil), fake, store, rec
}

func TestUserService_SignInExchangesToken(t *testing.T) {
	svc, fake, store, rec := newUserService(t)
	ctx := context.Background()

	user, err := svc.SignIn(ctx, &types.Identity{Subject: "google-1", Email: "jane@example.com"}, "id-token")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls("token_exchange"))

	doc, err := store.Get(ctx, Owner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, "backend-id-token", doc.SessionToken())
	assert.Equal(t, []string{analytics.EventSignedIn}, rec.Events())

	current, err := svc.Current(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", current.Email)
}

func TestUserService_SignOutRevokesBackendSession(t *testing.T) {
	svc, fake, store, rec := newUserService(t)
	ctx := context.Background()

	user, err := svc.SignIn(ctx, &types.Identity{Subject: "google-1", Email: "jane@example.com"}, "id-token")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, user.ID))
	assert.Equal(t, 1, fake.Calls("logout"))
	assert.Contains(t, fake.Tokens(), "Bearer backend-id-token")

	doc, err := store.Get(ctx, Owner(user.ID))
	require.NoError(t, err)
	assert.Empty(t, doc.SessionToken())
	assert.Equal(t, []string{analytics.EventSignedIn, analytics.EventSignedOut}, rec.Events())
}

func TestUserService_DevSignIn(t *testing.T) {
	svc, fake, store, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.SignIn(ctx, &types.Identity{Subject: "dev-user", Email: "dev@localhost.test"}, "")
	require.NoError(t, err)
	assert.Zero(t, fake.Calls("token_exchange"))

	doc, err := store.Get(ctx, Owner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, DevSessionToken, doc.SessionToken())

	require.NoError(t, svc.SignOut(ctx, user.ID))
	assert.Zero(t, fake.Calls("logout"))
}

func TestUserService_SignInRequiresIdentity(t *testing.T) {
	svc, _, _, _ := newUserService(t)

	_, err := svc.SignIn(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestUserService_CurrentUnknown(t *testing.T) {
	svc, _, _, _ := newUserService(t)

	_, err := svc.Current(context.Background(), uuid.New())
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 404, HTTPStatus(err))
}
