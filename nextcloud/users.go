package nextcloud

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
)

const currentUserRoute = "/ocs/v2.php/cloud/user"

// UserAuthenticator validates member credentials by fetching the member's
// own user record from the cloud with them.
type UserAuthenticator struct {
	baseURL   url.URL
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger

	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	cache map[[sha256.Size]byte]cachedPrincipal
}

type cachedPrincipal struct {
	principal auth.Principal
	expires   time.Time
}

// UserAuthenticatorOption configures a UserAuthenticator
type UserAuthenticatorOption func(*UserAuthenticator)

// WithTransport sets the round tripper below the basic auth transport.
func WithTransport(transport http.RoundTripper) UserAuthenticatorOption {
	return func(a *UserAuthenticator) { a.transport = transport }
}

// WithCacheTTL sets how long a successful login is remembered. Zero disables
// the cache.
func WithCacheTTL(ttl time.Duration) UserAuthenticatorOption {
	return func(a *UserAuthenticator) { a.ttl = ttl }
}

// WithAuthLogger sets the logger
func WithAuthLogger(logger *slog.Logger) UserAuthenticatorOption {
	return func(a *UserAuthenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewUserAuthenticator creates an authenticator against the cloud at baseURL
func NewUserAuthenticator(baseURL url.URL, timeout time.Duration, opts ...UserAuthenticatorOption) *UserAuthenticator {
	a := &UserAuthenticator{
		baseURL: baseURL,
		timeout: timeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:     time.Minute,
		now:     time.Now,
		cache:   make(map[[sha256.Size]byte]cachedPrincipal),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type userRecord struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayname"`
	Email       string   `json:"email"`
	Language    string   `json:"language"`
	Groups      []string `json:"groups"`
}

// Authenticate implements auth.Authenticator
func (a *UserAuthenticator) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Principal, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, &auth.Error{Type: auth.ErrInvalidCredentials, Message: "missing username or password"}
	}

	key := sha256.Sum256([]byte(creds.Username + "\x00" + creds.Password))
	if principal, ok := a.cached(key); ok {
		return principal, nil
	}

	client := &http.Client{
		Transport: httpclient.NewBasicAuthTransport(creds.Username, creds.Password, a.transport, a.logger),
		Timeout:   a.timeout,
	}
	wrapper, err := httpclient.NewHttpClientWrapper(client, a.baseURL, a.logger)
	if err != nil {
		return nil, err
	}

	var record userRecord
	if err := wrapper.DoOCS(ctx, http.MethodGet, currentUserRoute, nil, &record); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && (statusErr.HTTPStatus == http.StatusUnauthorized || statusErr.OCSStatus == 997) {
			a.logger.Debug("cloud rejected credentials", "user", creds.Username)
			return nil, &auth.Error{Type: auth.ErrInvalidCredentials, Message: "invalid username or password", Err: err}
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", creds.Username, err)
	}
	if record.ID == "" {
		return nil, fmt.Errorf("failed to fetch user %s: empty user record", creds.Username)
	}

	principal := auth.Principal{
		ID:          record.ID,
		DisplayName: record.DisplayName,
		Email:       record.Email,
		Language:    record.Language,
		Groups:      record.Groups,
	}
	a.store(key, principal)
	return &principal, nil
}

func (a *UserAuthenticator) cached(key [sha256.Size]byte) (*auth.Principal, bool) {
	if a.ttl <= 0 {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[key]
	if !ok {
		return nil, false
	}
	if !a.now().Before(entry.expires) {
		delete(a.cache, key)
		return nil, false
	}
	return entry.principal.Clone(), true
}

func (a *UserAuthenticator) store(key [sha256.Size]byte, principal auth.Principal) {
	if a.ttl <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for k, entry := range a.cache {
		if !now.Before(entry.expires) {
			delete(a.cache, k)
		}
	}
	a.cache[key] = cachedPrincipal{principal: *principal.Clone(), expires: now.Add(a.ttl)}
}
