package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewService("test-secret-key-123456789", time.Hour)

	userID := uuid.New()
	email := "hiker@example.com"
	roles := []string{"participant"}

	token, err := service.GenerateToken(userID, email, roles)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, roles, claims.Roles)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	service := NewService("test-secret-key-123456789", time.Hour)
	other := NewService("different-secret-key-9876", time.Hour)

	token, err := service.GenerateToken(uuid.New(), "x@example.com", nil)
	require.NoError(t, err)

	claims, err := other.ValidateToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateToken_Expired(t *testing.T) {
	service := NewService("test-secret-key-123456789", -time.Minute)

	token, err := service.GenerateToken(uuid.New(), "x@example.com", nil)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateToken_Garbage(t *testing.T) {
	service := NewService("test-secret-key-123456789", time.Hour)

	claims, err := service.ValidateToken("not.a.token")
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestHasRole(t *testing.T) {
	claims := &Claims{Roles: []string{"participant", "admin"}}

	assert.True(t, claims.HasRole("admin"))
	assert.True(t, claims.HasRole("participant"))
	assert.False(t, claims.HasRole("guide"))
}
