package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	subject, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestTokenService_IssueIsUnique(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)

	first, err := svc.Issue("user-1")
	require.NoError(t, err)
	second, err := svc.Issue("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenService_IssueRequiresSubject(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)
	_, err := svc.Issue("")
	assert.Error(t, err)
}

func TestTokenService_Expired(t *testing.T) {
	now := time.Now()
	issuer := NewTokenService([]byte("secret"), time.Minute, WithClock(func() time.Time { return now }))
	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	later := NewTokenService([]byte("secret"), time.Minute, WithClock(func() time.Time { return now.Add(2 * time.Minute) }))
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, err := NewTokenService([]byte("secret"), time.Hour).Issue("user-1")
	require.NoError(t, err)

	_, err = NewTokenService([]byte("other"), time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)

	for _, input := range []string{"", "abc", "a.b.c", "Bearer x.y.z", "...."} {
		_, err := svc.Verify(input)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", input)
	}
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)

	claims := &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_AnySingleByteChangeFails(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)
	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		replacement := strings.IndexByte(base64URLAlphabet, token[i]) + 1
		mutated := token[:i] + string(base64URLAlphabet[replacement%len(base64URLAlphabet)]) + token[i+1:]

		_, err := svc.Verify(mutated)
		require.ErrorIs(t, err, ErrInvalidToken, "mutation at position %d was accepted", i)
	}
}

func TestTokenService_LastSignatureByte(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)
	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	last := token[len(token)-1]
	for j := 0; j < len(base64URLAlphabet); j++ {
		c := base64URLAlphabet[j]
		if c == last {
			continue
		}
		_, err := svc.Verify(token[:len(token)-1] + string(c))
		require.ErrorIs(t, err, ErrInvalidToken, "replacing the last byte with %q was accepted", c)
	}
}
