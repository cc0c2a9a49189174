package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "ppdb", Audience: []string{"ppdb-web"}})
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService()
	token, err := svc.IssueToken(models.JWTClaims{UserID: "user-1", TenantID: "tenant-1", Role: models.RoleSchoolAdmin}, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, models.RoleSchoolAdmin, claims.Role)
}

func TestAuthServiceValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestAuthService()
	token, err := svc.IssueToken(models.JWTClaims{UserID: "user-1", Role: models.RoleParent}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsForeignIssuer(t *testing.T) {
	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else", Audience: []string{"ppdb-web"}})
	token, err := other.IssueToken(models.JWTClaims{UserID: "user-1", Role: models.RoleParent}, time.Minute)
	require.NoError(t, err)

	_, err = newTestAuthService().ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthServiceValidateTokenRejectsWrongSecret(t *testing.T) {
	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other", Issuer: "ppdb", Audience: []string{"ppdb-web"}})
	token, err := other.IssueToken(models.JWTClaims{UserID: "user-1", Role: models.RoleParent}, time.Minute)
	require.NoError(t, err)

	_, err = newTestAuthService().ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthServiceValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := models.JWTClaims{UserID: "user-1", Role: models.RoleParent}
	claims.Issuer = "ppdb"
	claims.Audience = jwt.ClaimStrings{"ppdb-web"}
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestAuthService().ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthServiceValidateTokenRequiresRole(t *testing.T) {
	svc := newTestAuthService()
	token, err := svc.IssueToken(models.JWTClaims{UserID: "user-1"}, time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
