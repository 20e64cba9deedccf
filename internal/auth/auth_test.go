package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaesteves/user-service/internal/auth"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash, "Password should be hashed, not raw")

	assert.True(t, auth.ComparePassword(hash, "hunter2"))
	assert.False(t, auth.ComparePassword(hash, "hunter1"))
	assert.False(t, auth.ComparePassword("not-a-hash", "hunter2"))

	again, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes must be salted")
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := auth.HashPassword("")
	require.ErrorIs(t, err, auth.ErrEmptyPassword)
}

func TestHashPassword_BcryptLimit(t *testing.T) {
	_, err := auth.HashPassword(strings.Repeat("p", auth.MaxPasswordBytes))
	require.NoError(t, err)

	_, err = auth.HashPassword(strings.Repeat("p", auth.MaxPasswordBytes+1))
	require.ErrorIs(t, err, auth.ErrPasswordTooLong)

	_, err = auth.HashPassword(strings.Repeat("é", 37))
	require.ErrorIs(t, err, auth.ErrPasswordTooLong, "the limit is in bytes, not runes")
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := auth.NewTokenIssuer("", "user-service")
	require.Error(t, err)
}

func TestTokenIssuer_MintAndSubject(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("secret", "user-service")
	require.NoError(t, err)

	userID := uuid.Must(uuid.NewV4())
	now := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)

	token, err := issuer.Mint(userID, now)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	subject, err := issuer.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, userID, subject)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "user-service", claims.Issuer)
	assert.Nil(t, claims.ExpiresAt)
	assert.Empty(t, claims.Audience)
}

func TestTokenIssuer_DistinctUsersGetDistinctTokens(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("secret", "user-service")
	require.NoError(t, err)
	now := time.Now()

	first, err := issuer.Mint(uuid.Must(uuid.NewV4()), now)
	require.NoError(t, err)
	second, err := issuer.Mint(uuid.Must(uuid.NewV4()), now)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenIssuer_SubjectRejectsForeignTokens(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("secret", "user-service")
	require.NoError(t, err)
	other, err := auth.NewTokenIssuer("other-secret", "user-service")
	require.NoError(t, err)

	token, err := other.Mint(uuid.Must(uuid.NewV4()), time.Now())
	require.NoError(t, err)

	_, err = issuer.Subject(token)
	require.Error(t, err)

	_, err = issuer.Subject("INVALIDTOKEN")
	require.Error(t, err)
}
