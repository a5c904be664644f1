package utils

import (
	"testing"
	"time"

	"storefront/config"
	"storefront/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func TestGenerateAndParseTokenPair(t *testing.T) {
	cfg := testConfig()
	user := &models.User{ID: 7, Role: models.RoleCustomer}

	pair, err := GenerateTokenPair(cfg, user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	claims, err := ParseToken(cfg, pair.Access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)
	assert.NotEmpty(t, claims.ID, "tokens carry a unique jti")

	refreshClaims, err := ParseToken(cfg, pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, int64(7), refreshClaims.UserID)
	assert.NotEqual(t, claims.ID, refreshClaims.ID)
}

func TestParseToken_RejectsWrongType(t *testing.T) {
	cfg := testConfig()
	pair, err := GenerateTokenPair(cfg, &models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	// A refresh token must not pass as an access token, and vice versa.
	_, err = ParseToken(cfg, pair.Refresh, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(cfg, pair.Access, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	pair, err := GenerateTokenPair(cfg, &models.User{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	other := testConfig()
	other.JWTSecret = "different-secret"
	_, err = ParseToken(other, pair.Access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute

	pair, err := GenerateTokenPair(cfg, &models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = ParseToken(cfg, pair.Access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsGarbage(t *testing.T) {
	_, err := ParseToken(testConfig(), "not-a-token", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
