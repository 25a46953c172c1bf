// Package auth acquires and caches the bearer credential for the remote
// document-storage API.
//
// The credential is an application (client-credentials) token scoped to the
// tenant. The manager caches it in memory only and refreshes proactively
// before expiry so callers never send an almost-expired token; the token is
// never persisted anywhere.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultExpirySkew is how long before the real expiry a token is
// considered stale and refreshed.
const DefaultExpirySkew = 5 * time.Minute

// Config holds the application credential used for token acquisition.
type Config struct {
	// ClientID is the application (client) identifier.
	ClientID string

	// ClientSecret is the application secret.
	ClientSecret string

	// TenantID identifies the directory tenant. Used to derive the token
	// endpoint when TokenURL is not set explicitly.
	TenantID string

	// TokenURL overrides the derived token endpoint. Useful for tests and
	// sovereign-cloud deployments.
	TokenURL string

	// Scopes requested for the token. Defaults to the resource-wide
	// application scope when empty.
	Scopes []string

	// ExpirySkew overrides DefaultExpirySkew. Zero selects the default.
	ExpirySkew time.Duration
}

// Manager owns the cached access token. A single Manager instance is shared
// by all concurrent operations of one client.
//
// Thread safety: the refresh path is serialized under one mutex, so
// concurrent expiring-token accesses trigger at most one refresh and a token
// is never observed mid-assignment.
type Manager struct {
	mu    sync.Mutex
	token *oauth2.Token
	skew  time.Duration

	// fetch acquires a fresh token; replaceable in tests.
	fetch func(ctx context.Context) (*oauth2.Token, error)

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager validates the credential configuration and returns a Manager.
// No network call is made until Token is first invoked.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("auth: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("auth: client secret is required")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.TenantID == "" {
			return nil, fmt.Errorf("auth: tenant id is required when token url is not set")
		}
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://graph.microsoft.com/.default"}
	}

	skew := cfg.ExpirySkew
	if skew <= 0 {
		skew = DefaultExpirySkew
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}

	return &Manager{
		skew:  skew,
		fetch: cc.Token,
		now:   time.Now,
	}, nil
}

// Token returns a valid bearer token string, refreshing first if the cached
// token expires within the skew window. Acquisition failures are surfaced
// immediately; they are an authentication problem, not a transient one, and
// are never retried here.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid() {
		return m.token.AccessToken, nil
	}

	token, err := m.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("token acquisition failed: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return "", fmt.Errorf("token acquisition returned an empty token")
	}

	m.token = token
	return m.token.AccessToken, nil
}

// Invalidate drops the cached token so the next Token call refreshes.
// Called when the remote API answers 401 despite a cached token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
}

// valid reports whether the cached token exists and is outside the refresh
// window. Caller must hold the mutex.
func (m *Manager) valid() bool {
	if m.token == nil || m.token.AccessToken == "" {
		return false
	}
	if m.token.Expiry.IsZero() {
		return true // tokens without expiry never refresh proactively
	}
	return m.now().Before(m.token.Expiry.Add(-m.skew))
}

// Redact shortens a token for log output. Tokens must never be logged whole.
func Redact(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}
