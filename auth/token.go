package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cafevdb/cafevdbmembers/internal/crypto"
	"github.com/cafevdb/cafevdbmembers/settings"
)

// TokenService decrypts the row-access token a member's database session
// runs with. The token is stored sealed with a key derived from the
// member's password, so only a request carrying the password can use it.
type TokenService struct {
	settings *settings.Settings
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	fingerprint [sha256.Size]byte
	token       string
	expires     time.Time
}

// NewTokenService creates a token service
func NewTokenService(s *settings.Settings, logger *slog.Logger) *TokenService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TokenService{
		settings: s,
		logger:   logger,
		ttl:      10 * time.Minute,
		now:      time.Now,
		cache:    make(map[string]cachedToken),
	}
}

func fingerprint(creds Credentials) [sha256.Size]byte {
	return sha256.Sum256([]byte(creds.Username + "\x00" + creds.Password))
}

// RowAccessToken returns the plain token of the authenticated member.
func (s *TokenService) RowAccessToken(ctx context.Context, creds Credentials) (string, error) {
	fp := fingerprint(creds)
	s.mu.Lock()
	cached, ok := s.cache[creds.Username]
	s.mu.Unlock()
	if ok && cached.fingerprint == fp && s.now().Before(cached.expires) {
		return cached.token, nil
	}

	sealed, err := s.settings.User(ctx, creds.Username, settings.RowAccessToken, true)
	if err != nil {
		return "", fmt.Errorf("failed to read row access token: %w", err)
	}
	if sealed == "" {
		return "", &Error{
			Type:    ErrNoRowAccessToken,
			Message: fmt.Sprintf("no row access token stored for %s", creds.Username),
		}
	}

	sealer, err := crypto.NewSealer(crypto.DeriveKey(creds.Password, creds.Username))
	if err != nil {
		return "", err
	}
	token, err := sealer.Open(sealed)
	if err != nil {
		s.logger.Warn("row access token does not open with the current password", "username", creds.Username)
		return "", &Error{
			Type:    ErrNoRowAccessToken,
			Message: "row access token cannot be decrypted",
			Err:     err,
		}
	}

	s.mu.Lock()
	s.cache[creds.Username] = cachedToken{fingerprint: fp, token: token, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// StoreRowAccessToken seals token with the member's password and stores it.
func (s *TokenService) StoreRowAccessToken(ctx context.Context, creds Credentials, token string) error {
	sealer, err := crypto.NewSealer(crypto.DeriveKey(creds.Password, creds.Username))
	if err != nil {
		return err
	}
	sealed, err := sealer.Seal(token)
	if err != nil {
		return fmt.Errorf("failed to seal row access token: %w", err)
	}
	if err := s.settings.SetUser(ctx, creds.Username, settings.RowAccessToken, sealed, true); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, creds.Username)
	s.mu.Unlock()
	s.logger.Info("row access token stored", "username", creds.Username)
	return nil
}
