package catalog

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/catalog-admin/internal/config"
	"github.com/lehigh-university-libraries/catalog-admin/internal/credentials"
	"github.com/lehigh-university-libraries/catalog-admin/internal/fakeapi"
	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
)

const testCredentials = "/home/admin/.config/catalog-admin/credentials.yaml"

type harness struct {
	api    *fakeapi.Server
	srv    *httptest.Server
	fs     afero.Fs
	client *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	fs := afero.NewMemMapFs()
	client := NewClient(config.Config{
		APIURL:          srv.URL + "/api",
		AssetURL:        srv.URL,
		CredentialsPath: testCredentials,
		HTTPTimeout:     5 * time.Second,
	}, fs)

	return &harness{api: api, srv: srv, fs: fs, client: client}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.client.Session.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword))
}

// staticToken is a token source that always presents the same token
type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

// failingReads delegates to a Requester but fails every Get once armed
type failingReads struct {
	Requester
	armed bool
}

func (f *failingReads) Get(ctx context.Context, path string, query url.Values, out any) error {
	if f.armed {
		return &gateway.Error{Kind: gateway.KindServer, Status: 503, Method: "GET", Path: path}
	}
	return f.Requester.Get(ctx, path, query, out)
}

func credentialsOnDisk(h *harness) (credentials.Credentials, bool, error) {
	return credentials.NewFileStore(h.fs, testCredentials).Load()
}
