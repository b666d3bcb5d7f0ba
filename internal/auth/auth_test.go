package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-service/internal/repositories/memory"
)

const testKey = "test-signing-key"

func TestExtractTokenPrefersHeader(t *testing.T) {
	assert.Equal(t, "h", ExtractToken("Bearer h", "q"))
	assert.Equal(t, "h", ExtractToken("bearer h", ""))
	assert.Equal(t, "q", ExtractToken("", "q"))
	assert.Equal(t, "q", ExtractToken("Basic abc", "q"))
	assert.Equal(t, "", ExtractToken("Bearer ", ""))
}

func TestVerifySubjectAndLegacyClaim(t *testing.T) {
	v := NewVerifier(testKey)

	tok, err := GenerateToken(testKey, 7, time.Minute)
	require.NoError(t, err)
	id, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, 7, id)

	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 9,
		"exp":     time.Now().Add(time.Minute).Unix(),
	})
	raw, err := legacy.SignedString([]byte(testKey))
	require.NoError(t, err)
	id, err = v.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, 9, id)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier(testKey)

	expired, err := GenerateToken(testKey, 7, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	wrongKey, err := GenerateToken("other", 7, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongKey)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "7"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(raw)
	require.Error(t, err)

	_, err = v.Verify("")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticate(t *testing.T) {
	store := memory.New()
	alice := store.AddUser("alice")
	a := NewAuthenticator(NewVerifier(testKey), store.Set().Users, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	good, err := GenerateToken(testKey, alice.ID, time.Minute)
	require.NoError(t, err)

	p := a.Authenticate(ctx, "Bearer "+good, "")
	require.Equal(t, Principal{UserID: alice.ID, Username: "alice"}, p)

	p = a.Authenticate(ctx, "", good)
	require.Equal(t, alice.ID, p.UserID)

	p = a.Authenticate(ctx, "Bearer garbage", good)
	require.True(t, p.IsAnonymous(), "header wins over query even when invalid")

	unknown, err := GenerateToken(testKey, 999, time.Minute)
	require.NoError(t, err)
	require.True(t, a.Authenticate(ctx, "", unknown).IsAnonymous())
	require.True(t, a.Authenticate(ctx, "", "").IsAnonymous())
}
