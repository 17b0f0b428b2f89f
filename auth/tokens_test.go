package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"umbasa.net/nimbus/faults"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	token, err := tokens.Issue("user123", "test@example.com")
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	claims, err := tokens.Verify(token)
	assert.Nil(t, err)
	assert.Equal(t, "user123", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
}

func TestVerifyWrongSecret(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)
	other := NewTokens([]byte("other-secret"), time.Hour)

	token, err := tokens.Issue("user123", "test@example.com")
	assert.Nil(t, err)

	_, err = other.Verify(token)
	assert.NotNil(t, err)
	assert.True(t, faults.IsAuth(err))
}

func TestVerifyExpired(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), -time.Minute)

	token, err := tokens.Issue("user123", "test@example.com")
	assert.Nil(t, err)

	_, err = tokens.Verify(token)
	assert.NotNil(t, err)
	assert.True(t, faults.IsAuth(err))
}

func TestVerifyRejectsForeignSigningMethod(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	// correct secret but not the issued algorithm
	forged := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user123",
		Email:  "test@example.com",
	})
	tokenString, err := forged.SignedString([]byte("test-secret"))
	assert.Nil(t, err)

	_, err = tokens.Verify(tokenString)
	assert.NotNil(t, err)
	assert.True(t, faults.IsAuth(err))
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	forged := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user123",
	})
	tokenString, err := forged.SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.Nil(t, err)

	_, err = tokens.Verify(tokenString)
	assert.NotNil(t, err)
	assert.True(t, faults.IsAuth(err))
}

func TestVerifyGarbage(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	_, err := tokens.Verify("not-a-token")
	assert.NotNil(t, err)
	assert.True(t, faults.IsAuth(err))
}
