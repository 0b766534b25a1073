package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/catalog-admin/internal/credentials"
	"github.com/lehigh-university-libraries/catalog-admin/internal/fakeapi"
	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
)

const credsPath = "/creds/credentials.yaml"

func newManager(t *testing.T, fs afero.Fs, srv *httptest.Server) *Manager {
	t.Helper()
	return New(credentials.NewFileStore(fs, credsPath), Config{
		TokenURL:   srv.URL + "/api/login",
		HTTPClient: srv.Client(),
	})
}

func TestLoginThenRestore(t *testing.T) {
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	defer srv.Close()
	fs := afero.NewMemMapFs()

	m := newManager(t, fs, srv)
	var events []Event
	m.Subscribe(func(e Event) { events = append(events, e) })

	require.NoError(t, m.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword))
	assert.Equal(t, Authenticated, m.Status())
	token, ok := m.Token()
	require.True(t, ok)
	assert.Equal(t, fakeapi.AdminEmail, m.Identity())

	assert.Equal(t, []Event{
		{Status: Authenticating},
		{Status: Authenticated, Navigate: RouteMain},
	}, events)

	// credentials are sent form-encoded under the fixed field names
	req, found := api.LastRequest(http.MethodPost, "/api/login")
	require.True(t, found)
	assert.Equal(t, fakeapi.AdminEmail, req.Form.Get("username"))
	assert.Equal(t, fakeapi.AdminPassword, req.Form.Get("password"))

	// simulate a reload
	reloaded := newManager(t, fs, srv)
	assert.Equal(t, Unauthenticated, reloaded.Status())
	reloaded.Restore()
	assert.Equal(t, Authenticated, reloaded.Status())
	restored, ok := reloaded.Token()
	require.True(t, ok)
	assert.Equal(t, token, restored)
	assert.Equal(t, fakeapi.AdminEmail, reloaded.Identity())
}

func TestRestoreDoesNotCallServer(t *testing.T) {
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	defer srv.Close()
	fs := afero.NewMemMapFs()

	require.NoError(t, credentials.NewFileStore(fs, credsPath).Save(credentials.Credentials{Token: "revoked-long-ago"}))

	m := newManager(t, fs, srv)
	m.Restore()

	assert.True(t, m.Authenticated())
	assert.Empty(t, api.Requests())
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		password string
		failWith int
		sentinel error
	}{
		{name: "wrong password", password: "nope", sentinel: gateway.ErrClient},
		{name: "server error", password: fakeapi.AdminPassword, failWith: http.StatusInternalServerError, sentinel: gateway.ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := fakeapi.New()
			srv := httptest.NewServer(api)
			defer srv.Close()
			if tt.failWith != 0 {
				api.FailNext(tt.failWith)
			}

			m := newManager(t, afero.NewMemMapFs(), srv)
			err := m.Login(context.Background(), fakeapi.AdminEmail, tt.password)
			require.Error(t, err)

			var authErr *gateway.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, LoginFailedMessage, authErr.Error())
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, Unauthenticated, m.Status())
			_, ok := m.Token()
			assert.False(t, ok)
		})
	}
}

func TestLoginNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(fakeapi.New())
	m := newManager(t, afero.NewMemMapFs(), srv)
	srv.Close()

	err := m.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword)
	require.Error(t, err)
	assert.EqualError(t, err, LoginFailedMessage)
	assert.ErrorIs(t, err, gateway.ErrNetwork)
	assert.Equal(t, Unauthenticated, m.Status())
}

func TestLoginRequiresCredentials(t *testing.T) {
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	defer srv.Close()

	m := newManager(t, afero.NewMemMapFs(), srv)
	err := m.Login(context.Background(), "  ", "")
	assert.ErrorIs(t, err, gateway.ErrValidation)
	assert.Empty(t, api.Requests())
}

func TestLogout(t *testing.T) {
	srv := httptest.NewServer(fakeapi.New())
	defer srv.Close()
	fs := afero.NewMemMapFs()

	m := newManager(t, fs, srv)
	require.NoError(t, m.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword))

	var last Event
	m.Subscribe(func(e Event) { last = e })
	m.Logout()

	assert.Equal(t, Unauthenticated, m.Status())
	assert.Equal(t, Event{Status: Unauthenticated, Navigate: RouteLogin}, last)
	_, ok := m.Token()
	assert.False(t, ok)

	exists, err := afero.Exists(fs, credsPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHandleUnauthorized(t *testing.T) {
	srv := httptest.NewServer(fakeapi.New())
	defer srv.Close()

	m := newManager(t, afero.NewMemMapFs(), srv)

	// no session: nothing to do and no navigation
	var events []Event
	m.Subscribe(func(e Event) { events = append(events, e) })
	m.HandleUnauthorized("")
	assert.Empty(t, events)

	require.NoError(t, m.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword))
	token, ok := m.Token()
	require.True(t, ok)

	// a late 401 for a token from an earlier session leaves this one alone
	m.HandleUnauthorized("token-from-before")
	m.HandleUnauthorized("")
	assert.Equal(t, Authenticated, m.Status())

	m.HandleUnauthorized(token)
	assert.Equal(t, Unauthenticated, m.Status())
	assert.Equal(t, RouteLogin, events[len(events)-1].Navigate)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}
