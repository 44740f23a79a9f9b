package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStore_Authenticate(t *testing.T) {
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.AddUser(User{Username: "clara", Password: "piano", Language: "de", Groups: []string{"admin"}}))
	assert.Error(t, s.AddUser(User{Username: "clara", Password: "again"}))
	assert.Error(t, s.AddUser(User{Username: "robert"}))
	assert.Error(t, s.AddUser(User{Password: "nameless"}))

	tests := []struct {
		name    string
		creds   auth.Credentials
		wantErr bool
	}{
		{"valid", auth.Credentials{Username: "clara", Password: "piano"}, false},
		{"wrong password", auth.Credentials{Username: "clara", Password: "violin"}, true},
		{"unknown user", auth.Credentials{Username: "robert", Password: "piano"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.Authenticate(context.Background(), tt.creds)
			if tt.wantErr {
				assert.True(t, auth.IsErrorType(err, auth.ErrInvalidCredentials))
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "clara", p.ID)
			assert.Equal(t, "de", p.Language)
			assert.True(t, p.IsMember("admin"))
		})
	}
}

func TestStore_PrincipalIsCopied(t *testing.T) {
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.AddUser(User{Username: "clara", Password: "piano", Groups: []string{"cafevdb-project-5"}}))

	p, err := s.Authenticate(context.Background(), auth.Credentials{Username: "clara", Password: "piano"})
	require.NoError(t, err)
	p.Groups[0] = "admin"

	p, err = s.Authenticate(context.Background(), auth.Credentials{Username: "clara", Password: "piano"})
	require.NoError(t, err)
	assert.False(t, p.IsMember("admin"))
}

func TestLoad(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("violin"), bcrypt.MinCost)
	require.NoError(t, err)

	list := `
users:
  - username: robert
    passwordHash: ` + string(hash) + `
    displayName: Robert Schumann
    groups: [cafevdb-project-5]
  - username: clara
    password: piano
`
	s, err := Load(strings.NewReader(list), WithCost(bcrypt.MinCost))
	require.NoError(t, err)

	p, err := s.Authenticate(context.Background(), auth.Credentials{Username: "robert", Password: "violin"})
	require.NoError(t, err)
	assert.Equal(t, "Robert Schumann", p.DisplayName)
	assert.True(t, p.IsMember("cafevdb-project-5"))

	_, err = s.Authenticate(context.Background(), auth.Credentials{Username: "clara", Password: "piano"})
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		list string
	}{
		{"unknown key", "users:\n  - username: clara\n    password: piano\n    role: admin\n"},
		{"bad hash", "users:\n  - username: clara\n    passwordHash: plain\n"},
		{"duplicate", "users:\n  - {username: clara, password: a}\n  - {username: clara, password: b}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.list), WithCost(bcrypt.MinCost))
			assert.Error(t, err)
		})
	}

	s, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	_, err = s.Authenticate(context.Background(), auth.Credentials{Username: "clara"})
	assert.Error(t, err)
}
