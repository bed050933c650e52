package shopify

import (
	"net/http"
	"testing"
	"time"

	"recently-viewed-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func signSessionToken(t *testing.T, secret string, mutate func(*SessionTokenClaims)) string {
	t.Helper()
	claims := SessionTokenClaims{
		Dest: "https://foo.myshopify.com",
		Sid:  "sid-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://foo.myshopify.com/admin",
			Subject:   "42",
			Audience:  jwt.ClaimStrings{"api-key"},
			IssuedAt:  jwt.NewNumericDate(tokenNow.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(tokenNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(tokenNow.Add(time.Minute)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newTestVerifier() *SessionTokenVerifier {
	v := NewSessionTokenVerifier("api-key", "api-secret")
	v.now = func() time.Time { return tokenNow }
	return v
}

func TestSessionTokenVerify(t *testing.T) {
	session, err := newTestVerifier().Verify(signSessionToken(t, "api-secret", nil))
	require.NoError(t, err)

	assert.Equal(t, "foo.myshopify.com", session.Shop)
	assert.Equal(t, "42", session.User)
	assert.Equal(t, "sid-1", session.SessionID)
	assert.True(t, session.IssuedAt.Equal(tokenNow.Add(-time.Minute)))
}

func TestSessionTokenRejections(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": signSessionToken(t, "other-secret", nil),
		"wrong audience": signSessionToken(t, "api-secret", func(c *SessionTokenClaims) {
			c.Audience = jwt.ClaimStrings{"someone-else"}
		}),
		"expired": signSessionToken(t, "api-secret", func(c *SessionTokenClaims) {
			c.ExpiresAt = jwt.NewNumericDate(tokenNow.Add(-time.Minute))
		}),
		"no expiry": signSessionToken(t, "api-secret", func(c *SessionTokenClaims) {
			c.ExpiresAt = nil
		}),
		"bad dest": signSessionToken(t, "api-secret", func(c *SessionTokenClaims) {
			c.Dest = "https://evil.example.com"
		}),
		"issuer mismatch": signSessionToken(t, "api-secret", func(c *SessionTokenClaims) {
			c.Issuer = "https://bar.myshopify.com/admin"
		}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestVerifier().Verify(token)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindAuth))
			assert.Equal(t, http.StatusUnauthorized, domain.HTTPStatus(err))
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def", BearerToken("Bearer abc.def"))
	assert.Equal(t, "abc.def", BearerToken("bearer abc.def"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken(""))
}
