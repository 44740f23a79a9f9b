// Package memory authenticates against a static account list, for local
// development without a cloud instance and for tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cafevdb/cafevdbmembers/auth"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// User is one account of the list. Either Password or PasswordHash (bcrypt)
// must be set; plain passwords are hashed when the user is added.
type User struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password,omitempty"`
	PasswordHash string   `yaml:"passwordHash,omitempty"`
	DisplayName  string   `yaml:"displayName,omitempty"`
	Email        string   `yaml:"email,omitempty"`
	Language     string   `yaml:"language,omitempty"`
	Groups       []string `yaml:"groups,omitempty"`
}

type account struct {
	hash      []byte
	principal auth.Principal
}

// Store holds the accounts
type Store struct {
	mu       sync.RWMutex
	accounts map[string]account
	cost     int
	logger   *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCost sets the bcrypt cost used for plain passwords.
func WithCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]account),
		cost:     bcrypt.DefaultCost,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type accountFile struct {
	Users []User `yaml:"users"`
}

// Load reads a YAML account list:
//
//	users:
//	  - username: clara
//	    passwordHash: $2a$10$...
//	    groups: [admin]
func Load(r io.Reader, opts ...Option) (*Store, error) {
	var file accountFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse account list: %w", err)
	}
	s := New(opts...)
	for _, user := range file.Users {
		if err := s.AddUser(user); err != nil {
			return nil, err
		}
	}
	s.logger.Info("account list loaded", "users", len(file.Users))
	return s, nil
}

// LoadFile reads the account list at path.
func LoadFile(path string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts...)
}

// AddUser adds an account. Usernames are unique.
func (s *Store) AddUser(user User) error {
	if user.Username == "" {
		return fmt.Errorf("account without username")
	}

	var hash []byte
	switch {
	case user.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(user.PasswordHash)); err != nil {
			return fmt.Errorf("user %s: invalid password hash: %w", user.Username, err)
		}
		hash = []byte(user.PasswordHash)
	case user.Password != "":
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(user.Password), s.cost); err != nil {
			return fmt.Errorf("user %s: %w", user.Username, err)
		}
	default:
		return fmt.Errorf("user %s has no password", user.Username)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[user.Username]; exists {
		return fmt.Errorf("user already exists: %s", user.Username)
	}
	s.accounts[user.Username] = account{
		hash: hash,
		principal: auth.Principal{
			ID:          user.Username,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			Language:    user.Language,
			Groups:      append([]string(nil), user.Groups...),
		},
	}
	return nil
}

// Authenticate implements auth.Authenticator
func (s *Store) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Principal, error) {
	s.mu.RLock()
	acct, exists := s.accounts[creds.Username]
	s.mu.RUnlock()

	if !exists || bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)) != nil {
		s.logger.Info("authentication failed", "username", creds.Username, "known", exists)
		return nil, &auth.Error{
			Type:    auth.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	s.logger.Debug("authentication successful", "username", creds.Username)
	return acct.principal.Clone(), nil
}
