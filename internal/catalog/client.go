package catalog

import (
	"net/http"
	"strings"

	"github.com/spf13/afero"

	"github.com/lehigh-university-libraries/catalog-admin/internal/config"
	"github.com/lehigh-university-libraries/catalog-admin/internal/credentials"
	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
	"github.com/lehigh-university-libraries/catalog-admin/internal/images"
	"github.com/lehigh-university-libraries/catalog-admin/internal/session"
)

// Client wires the session, the gateway and the synchronizers together
type Client struct {
	Session  *session.Manager
	Gateway  *gateway.Gateway
	Products *Products
	Users    *Users
	Profile  *Profile
	Images   *images.Fetcher
}

// NewClient creates a client for the API described by cfg. Credentials and
// downloaded images go through fs.
func NewClient(cfg config.Config, fs afero.Fs) *Client {
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	sess := session.New(credentials.NewFileStore(fs, cfg.CredentialsPath), session.Config{
		TokenURL:   strings.TrimRight(cfg.APIURL, "/") + "/login",
		HTTPClient: httpClient,
	})
	gw := gateway.New(cfg.APIURL,
		gateway.WithHTTPClient(httpClient),
		gateway.WithTokenSource(sess),
		gateway.WithUnauthorizedHandler(sess.HandleUnauthorized),
	)

	return &Client{
		Session:  sess,
		Gateway:  gw,
		Products: NewProducts(gw, sess),
		Users:    NewUsers(gw, sess),
		Profile:  NewProfile(gw, sess),
		Images:   images.NewFetcher(cfg.AssetURL, gw, fs),
	}
}
