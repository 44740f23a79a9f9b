package auth

import (
	"context"
	"testing"

	"github.com/cafevdb/cafevdbmembers/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	store := settings.NewMemoryStore()
	s := NewTokenService(settings.New(store, settings.Defaults{}), nil)
	ctx := context.Background()
	creds := Credentials{Username: "clara", Password: "piano"}

	_, err := s.RowAccessToken(ctx, creds)
	assert.True(t, IsErrorType(err, ErrNoRowAccessToken))

	require.NoError(t, s.StoreRowAccessToken(ctx, creds, "row-token"))

	sealed, ok, err := store.UserValue(ctx, "clara", settings.RowAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, sealed, "row-token")

	token, err := s.RowAccessToken(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "row-token", token)

	// Cached lookups still check the password.
	_, err = s.RowAccessToken(ctx, Credentials{Username: "clara", Password: "violin"})
	assert.True(t, IsErrorType(err, ErrNoRowAccessToken))

	token, err = s.RowAccessToken(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "row-token", token)
}
