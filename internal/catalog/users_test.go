package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/catalog-admin/internal/credentials"
	"github.com/lehigh-university-libraries/catalog-admin/internal/fakeapi"
	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
	"github.com/lehigh-university-libraries/catalog-admin/internal/session"
)

func TestUserLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()
	users := h.client.Users

	created, err := users.Create(ctx, models.UserDraft{
		Email:    "clerk@example.com",
		Name:     models.Ptr("Store Clerk"),
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "clerk@example.com", created.Email)

	view := users.View()
	require.Len(t, view, 2)
	assert.Equal(t, created, view[1])

	// a nil password leaves it unchanged
	updated, err := users.Update(ctx, created.ID, models.UserPatch{Name: models.Ptr("Head Clerk")})
	require.NoError(t, err)
	require.NotNil(t, updated.Name)
	assert.Equal(t, "Head Clerk", *updated.Name)

	req, ok := h.api.LastRequest(http.MethodPut, "/api/users/2")
	require.True(t, ok)
	assert.NotEmpty(t, req.Authorization)

	assertCanLogin(t, h, "clerk@example.com", "secret1")

	_, err = users.Update(ctx, created.ID, models.UserPatch{Password: models.Ptr("changed1")})
	require.NoError(t, err)
	assertCanLogin(t, h, "clerk@example.com", "changed1")

	require.NoError(t, users.Remove(ctx, created.ID))
	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fakeapi.AdminEmail, list[0].Email)
	assert.Equal(t, list, users.View())
}

func TestUserErrors(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()
	users := h.client.Users
	h.api.AddUser("taken@example.com", "", "password")

	_, err := users.Create(ctx, models.UserDraft{Email: "taken@example.com", Password: "secret1"})
	var apiErr *gateway.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, gateway.KindClient, apiErr.Kind)
	assert.Equal(t, "Email already registered", apiErr.Detail)

	err = users.Remove(ctx, 1)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Cannot delete your own account", apiErr.Detail)
	assert.True(t, h.client.Session.Authenticated())
}

func TestUserValidationHappensBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()
	users := h.client.Users
	sent := len(h.api.Requests())

	tests := []struct {
		name string
		call func() error
	}{
		{"create without email", func() error {
			_, err := users.Create(ctx, models.UserDraft{Password: "secret1"})
			return err
		}},
		{"create with short password", func() error {
			_, err := users.Create(ctx, models.UserDraft{Email: "a@example.com", Password: "12345"})
			return err
		}},
		{"update with short password", func() error {
			_, err := users.Update(ctx, 1, models.UserPatch{Password: models.Ptr("")})
			return err
		}},
		{"empty update", func() error {
			_, err := users.Update(ctx, 1, models.UserPatch{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), gateway.ErrValidation)
		})
	}
	assert.Len(t, h.api.Requests(), sent)
}

func TestUsersRequireSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.Users.List(context.Background())
	assert.ErrorIs(t, err, gateway.ErrNotAuthenticated)
	assert.Empty(t, h.api.Requests())
}

func assertCanLogin(t *testing.T, h *harness, email, password string) {
	t.Helper()
	m := session.New(credentials.NewFileStore(afero.NewMemMapFs(), testCredentials), session.Config{
		TokenURL:   h.srv.URL + "/api/login",
		HTTPClient: h.srv.Client(),
	})
	require.NoError(t, m.Login(context.Background(), email, password))
}
