package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rizvi-Faiz/sso-system/config"
)

const (
	testProject = "demo-project"
	testKid     = "test-key"
)

type jwksFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := JWKS{Keys: []JWK{rsaJWK(testKid, &key.PublicKey)}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return &jwksFixture{key: key, server: server}
}

func rsaJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func (f *jwksFixture) validator() *Validator {
	return NewValidator(config.IdentityConfig{
		ProjectID: testProject,
		JWKSURL:   f.server.URL,
	})
}

// signIDToken mints an RS256 ID token the way the provider would.
func (f *jwksFixture) signIDToken(t *testing.T, mutate func(*jwt.RegisteredClaims)) string {
	t.Helper()

	claims := struct {
		jwt.RegisteredClaims
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "https://securetoken.google.com/" + testProject,
			Audience:  jwt.ClaimStrings{testProject},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:         "a@x.com",
		EmailVerified: true,
	}
	if mutate != nil {
		mutate(&claims.RegisteredClaims)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestCheckAcceptsValidAssertion(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	subject, err := v.Check(context.Background(), f.signIDToken(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject.ID)
	assert.Equal(t, "a@x.com", subject.Email)
	assert.True(t, subject.EmailVerified)
}

func TestCheckRejectsExpiredAssertion(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	expired := f.signIDToken(t, func(c *jwt.RegisteredClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	})

	_, err := v.Check(context.Background(), expired)
	assert.ErrorIs(t, err, ErrIdentityRejected)
}

func TestCheckRejectsWrongAudience(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	wrongAud := f.signIDToken(t, func(c *jwt.RegisteredClaims) {
		c.Audience = jwt.ClaimStrings{"other-project"}
	})

	_, err := v.Check(context.Background(), wrongAud)
	assert.ErrorIs(t, err, ErrIdentityRejected)
}

func TestCheckRejectsWrongIssuer(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	wrongIss := f.signIDToken(t, func(c *jwt.RegisteredClaims) {
		c.Issuer = "https://securetoken.google.com/other-project"
	})

	_, err := v.Check(context.Background(), wrongIss)
	assert.ErrorIs(t, err, ErrIdentityRejected)
}

func TestCheckRejectsForeignSigner(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	// Same kid, different private key
	foreign, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "https://securetoken.google.com/" + testProject,
		Audience:  jwt.ClaimStrings{testProject},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString(foreign)
	require.NoError(t, err)

	_, err = v.Check(context.Background(), signed)
	assert.ErrorIs(t, err, ErrIdentityRejected)
}

func TestCheckRejectsSymmetricallySignedAssertion(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString([]byte("some-shared-secret-0123456789abc"))
	require.NoError(t, err)

	_, err = v.Check(context.Background(), signed)
	assert.ErrorIs(t, err, ErrIdentityRejected)
}

func TestCheckRejectsEmptyAssertion(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator()

	_, err := v.Check(context.Background(), "")
	assert.ErrorIs(t, err, ErrIdentityRejected)
}

func TestCheckReportsJWKSOutage(t *testing.T) {
	f := newJWKSFixture(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)

	v := NewValidator(config.IdentityConfig{
		ProjectID: testProject,
		JWKSURL:   down.URL,
	})

	_, err := v.Check(context.Background(), f.signIDToken(t, nil))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestJWKSCacheServesRepeatChecks(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fetches := 0
	jwks := JWKS{Keys: []JWK{rsaJWK(testKid, &key.PublicKey)}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	v := NewValidator(config.IdentityConfig{
		ProjectID: testProject,
		JWKSURL:   server.URL,
		CacheTTL:  time.Hour,
	})

	f := &jwksFixture{key: key, server: server}
	for i := 0; i < 3; i++ {
		_, err := v.Check(context.Background(), f.signIDToken(t, nil))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, fetches)
}
