package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/oauth2"

	"github.com/lehigh-university-libraries/catalog-admin/internal/credentials"
	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
)

// LoginFailedMessage is shown for every rejected login, whatever the cause
const LoginFailedMessage = "Invalid email or password"

// Status is the authentication state of the session
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Route tells the presentation layer where to go after a state change
type Route int

const (
	RouteNone Route = iota
	RouteMain
	RouteLogin
)

// Event is delivered to subscribers on every status change
type Event struct {
	Status   Status
	Navigate Route
}

// Listener receives session events. Listeners run synchronously and must not
// call back into the Manager's mutating methods.
type Listener func(Event)

// Config locates the token endpoint
type Config struct {
	// TokenURL is the login endpoint, e.g. http://localhost:8000/api/login
	TokenURL   string
	HTTPClient *http.Client
}

// Manager owns the bearer token and the authentication state. The only
// writers of the token are Login, Logout and HandleUnauthorized.
type Manager struct {
	store  credentials.Store
	oauth  *oauth2.Config
	client *http.Client

	mu        sync.RWMutex
	status    Status
	token     string
	identity  string
	listeners []Listener
}

func New(store credentials.Store, cfg Config) *Manager {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		store:  store,
		client: client,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Subscribe registers a listener for state changes
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Restore loads a persisted token and optimistically marks the session
// authenticated. The token is not checked against the server here; the first
// API call that gets a 401 ends the session.
func (m *Manager) Restore() {
	c, ok, err := m.store.Load()
	if err != nil {
		slog.Warn("Unable to read stored credentials", "err", err)
		return
	}
	if !ok {
		slog.Debug("No stored credentials")
		return
	}

	m.mu.Lock()
	m.token = c.Token
	m.identity = c.Identity
	m.status = Authenticated
	m.mu.Unlock()

	slog.Debug("Session restored", "identity", c.Identity)
	m.emit(Event{Status: Authenticated})
}

// Login submits the credentials as form fields "username" and "password".
// Any failure leaves the session unauthenticated and returns an AuthError
// carrying LoginFailedMessage.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return gateway.Invalid("credentials", "Email and password are required")
	}

	m.mu.Lock()
	if m.status == Authenticating {
		m.mu.Unlock()
		return errors.New("login already in progress")
	}
	m.status = Authenticating
	m.mu.Unlock()
	m.emit(Event{Status: Authenticating})

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	tok, err := m.oauth.PasswordCredentialsToken(ctx, identifier, secret)
	if err != nil {
		slog.Error("Login failed", "identity", identifier, "err", err)
		if clearErr := m.store.Clear(); clearErr != nil {
			slog.Warn("Unable to clear stored credentials", "err", clearErr)
		}
		m.reset(RouteNone)
		return &gateway.AuthError{Message: LoginFailedMessage, Cause: loginCause(err)}
	}

	if err := m.store.Save(credentials.Credentials{Token: tok.AccessToken, Identity: identifier}); err != nil {
		// the session still works for this process
		slog.Warn("Unable to persist token", "err", err)
	}

	m.mu.Lock()
	m.token = tok.AccessToken
	m.identity = identifier
	m.status = Authenticated
	m.mu.Unlock()

	slog.Info("Logged in", "identity", identifier)
	m.emit(Event{Status: Authenticated, Navigate: RouteMain})
	return nil
}

// Logout drops the token locally. It never contacts the server.
func (m *Manager) Logout() {
	if err := m.store.Clear(); err != nil {
		slog.Warn("Unable to clear stored credentials", "err", err)
	}
	m.reset(RouteLogin)
	slog.Info("Logged out")
}

// HandleUnauthorized is the gateway hook for 401 responses. A rejection of a
// token other than the current one belongs to an earlier session and is ignored.
func (m *Manager) HandleUnauthorized(rejected string) {
	m.mu.RLock()
	current := m.token
	m.mu.RUnlock()
	if current == "" || rejected != current {
		slog.Debug("Ignoring 401 for a token no longer in use")
		return
	}
	slog.Info("Session invalidated by server")
	m.Logout()
}

// Token implements gateway.TokenSource
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != Authenticated || m.token == "" {
		return "", false
	}
	return m.token, true
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) Authenticated() bool {
	return m.Status() == Authenticated
}

// Identity is the identifier the current token was issued to, if known
func (m *Manager) Identity() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

func (m *Manager) reset(route Route) {
	m.mu.Lock()
	m.token = ""
	m.identity = ""
	m.status = Unauthenticated
	m.mu.Unlock()
	m.emit(Event{Status: Unauthenticated, Navigate: route})
}

func (m *Manager) emit(e Event) {
	m.mu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}

// loginCause keeps the transport classification of a failed login so
// callers can tell a bad password from an unreachable server.
func loginCause(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		kind := gateway.KindClient
		if status >= 500 {
			kind = gateway.KindServer
		}
		return &gateway.Error{Kind: kind, Status: status, Method: http.MethodPost, Path: "/login", Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &gateway.Error{Kind: gateway.KindNetwork, Method: http.MethodPost, Path: "/login", Cause: err}
	}
	return err
}
