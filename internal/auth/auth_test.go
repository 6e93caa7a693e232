package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	p := Principal{UserID: uuid.New(), Role: RoleDoctor, DoctorID: uuid.New()}
	token, err := IssueToken("secret", p, time.Hour)
	require.NoError(t, err)

	got, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", Principal{UserID: uuid.New(), Role: RolePatient}, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken("secret", Principal{UserID: uuid.New(), Role: RolePatient}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRequiresDoctorID(t *testing.T) {
	claims := Claims{
		Role:             string(RoleDoctor),
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		Role:             "nurse",
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenMissingSecret(t *testing.T) {
	_, err := ParseToken("", "whatever")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	p := Principal{UserID: uuid.New(), Role: RoleAdmin}
	got, ok := PrincipalFromContext(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}
