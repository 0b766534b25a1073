package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/catalog-admin/internal/credentials"
	"github.com/lehigh-university-libraries/catalog-admin/internal/fakeapi"
	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
	"github.com/lehigh-university-libraries/catalog-admin/internal/session"
)

func TestProfileNameChangeKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	result, err := h.client.Profile.Update(context.Background(), models.ProfilePatch{Name: models.Ptr("Admin")})
	require.NoError(t, err)
	assert.False(t, result.ReauthRequired)
	require.NotNil(t, result.User.Name)
	assert.Equal(t, "Admin", *result.User.Name)
	assert.True(t, h.client.Session.Authenticated())

	// resending the current email is not a change
	result, err = h.client.Profile.Update(context.Background(), models.ProfilePatch{Email: models.Ptr(fakeapi.AdminEmail)})
	require.NoError(t, err)
	assert.False(t, result.ReauthRequired)
	assert.True(t, h.client.Session.Authenticated())
}

func TestProfileEmailChangeRequiresLogin(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	oldToken, ok := h.client.Session.Token()
	require.True(t, ok)

	var events []session.Event
	h.client.Session.Subscribe(func(e session.Event) { events = append(events, e) })

	result, err := h.client.Profile.Update(ctx, models.ProfilePatch{Email: models.Ptr("boss@example.com")})
	require.NoError(t, err)
	assert.True(t, result.ReauthRequired)
	assert.Equal(t, "boss@example.com", result.User.Email)
	assert.False(t, h.client.Session.Authenticated())
	require.NotEmpty(t, events)
	assert.Equal(t, session.RouteLogin, events[len(events)-1].Navigate)

	// a caller still holding the old token is rejected by the server
	stale := gateway.New(h.srv.URL+"/api", gateway.WithHTTPClient(h.srv.Client()), gateway.WithTokenSource(staticToken(oldToken)))
	err = stale.Get(ctx, "/users", nil, &[]models.User{})
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	// the local session is gone as well
	_, err = h.client.Users.List(ctx)
	assert.ErrorIs(t, err, gateway.ErrNotAuthenticated)

	require.NoError(t, h.client.Session.Login(ctx, "boss@example.com", fakeapi.AdminPassword))
	_, err = h.client.Users.List(ctx)
	assert.NoError(t, err)
}

func TestProfileRestoredStaleTokenIsDroppedOnFirstCall(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	creds, ok, err := credentialsOnDisk(h)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.client.Profile.Update(ctx, models.ProfilePatch{Email: models.Ptr("boss@example.com")})
	require.NoError(t, err)

	// another process reloads with the token saved before the change
	require.NoError(t, writeCredentials(h, creds))
	h.client.Session.Restore()
	require.True(t, h.client.Session.Authenticated())

	_, err = h.client.Users.List(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.False(t, h.client.Session.Authenticated())
}

func TestChangePassword(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		sent := len(h.api.Requests())

		err := h.client.Profile.ChangePassword(context.Background(), fakeapi.AdminPassword, "12345")
		var verr *gateway.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "new_password", verr.Field)
		assert.Len(t, h.api.Requests(), sent)
	})

	t.Run("wrong current password", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		token, _ := h.client.Session.Token()

		err := h.client.Profile.ChangePassword(context.Background(), "wrong-current", "newpass1")
		require.Error(t, err)
		assert.ErrorIs(t, err, gateway.ErrClient)
		assert.NotErrorIs(t, err, gateway.ErrUnauthorized)
		assert.Contains(t, err.Error(), "Incorrect current password")

		assert.True(t, h.client.Session.Authenticated())
		after, _ := h.client.Session.Token()
		assert.Equal(t, token, after)
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)

		require.NoError(t, h.client.Profile.ChangePassword(context.Background(), fakeapi.AdminPassword, "newpass1"))
		assert.False(t, h.client.Session.Authenticated())

		req, ok := h.api.LastRequest(http.MethodPost, "/api/change-password")
		require.True(t, ok)
		assert.NotEmpty(t, req.Authorization)

		err := h.client.Session.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword)
		assert.ErrorIs(t, err, gateway.ErrUnauthorized)
		require.NoError(t, h.client.Session.Login(context.Background(), fakeapi.AdminEmail, "newpass1"))
	})

	t.Run("no session", func(t *testing.T) {
		h := newHarness(t)
		err := h.client.Profile.ChangePassword(context.Background(), "x", "newpass1")
		assert.ErrorIs(t, err, gateway.ErrNotAuthenticated)
	})
}

func writeCredentials(h *harness, c credentials.Credentials) error {
	return credentials.NewFileStore(h.fs, testCredentials).Save(c)
}
