package nextcloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAuthenticator(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, currentUserRoute, r.URL.Path)
		user, pass, _ := r.BasicAuth()
		if user != "clara" || pass != "viola" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ocs":{"meta":{"status":"failure","statuscode":997,"message":"Current user is not logged in"},"data":[]}}`))
			return
		}
		ocsReply(w, 200, `{"id":"clara","displayname":"Clara Schumann","email":"clara@example.org","language":"de","groups":["cafevdb-project-7","musicians"]}`)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	authenticator := NewUserAuthenticator(*u, 5*time.Second, WithTransport(server.Client().Transport))
	ctx := context.Background()

	principal, err := authenticator.Authenticate(ctx, auth.Credentials{Username: "clara", Password: "viola"})
	require.NoError(t, err)
	assert.Equal(t, &auth.Principal{
		ID:          "clara",
		DisplayName: "Clara Schumann",
		Email:       "clara@example.org",
		Language:    "de",
		Groups:      []string{"cafevdb-project-7", "musicians"},
	}, principal)
	assert.True(t, principal.IsMember("musicians"))

	principal.Groups[0] = "admin"

	// Second login is served from the cache.
	principal, err = authenticator.Authenticate(ctx, auth.Credentials{Username: "clara", Password: "viola"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, principal.IsMember("admin"))

	_, err = authenticator.Authenticate(ctx, auth.Credentials{Username: "clara", Password: "piano"})
	assert.True(t, auth.IsErrorType(err, auth.ErrInvalidCredentials))
	assert.Equal(t, 2, calls)

	_, err = authenticator.Authenticate(ctx, auth.Credentials{Username: "clara"})
	assert.True(t, auth.IsErrorType(err, auth.ErrInvalidCredentials))
	assert.Equal(t, 2, calls)
}

func TestUserAuthenticator_CacheExpiry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		ocsReply(w, 200, `{"id":"robert","displayname":"Robert"}`)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	authenticator := NewUserAuthenticator(*u, time.Second, WithTransport(server.Client().Transport), WithCacheTTL(time.Minute))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	authenticator.now = func() time.Time { return now }

	creds := auth.Credentials{Username: "robert", Password: "piano"}
	_, err = authenticator.Authenticate(context.Background(), creds)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = authenticator.Authenticate(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
