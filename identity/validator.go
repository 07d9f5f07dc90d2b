package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Rizvi-Faiz/sso-system/config"
)

// defaultJWKSURL serves the signing keys for provider-issued ID tokens
// (Firebase secure-token format).
const defaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// idTokenClaims are the claims this service reads from a provider ID token.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Validator verifies provider-issued RS256 ID tokens against the provider's
// published JWKS. It implements Verifier.
type Validator struct {
	projectID  string
	jwksURL    string
	httpClient *http.Client

	// Cache for the fetched JWKS
	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	cacheMu      sync.RWMutex

	// Cache for parsed public keys
	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// NewValidator creates an ID-token validator for the configured project.
func NewValidator(cfg config.IdentityConfig) *Validator {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 1 * time.Hour
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = defaultJWKSURL
	}

	return &Validator{
		projectID:    cfg.ProjectID,
		jwksURL:      jwksURL,
		jwksCacheTTL: cfg.CacheTTL,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		keyCache: make(map[string]*rsa.PublicKey),
	}
}

// Check validates the assertion's signature, issuer, audience, and expiry,
// and returns the asserted subject. Any validation failure is reported as
// ErrIdentityRejected; a JWKS fetch failure as ErrUnavailable.
func (v *Validator) Check(ctx context.Context, assertion string) (*Subject, error) {
	if assertion == "" {
		return nil, ErrIdentityRejected
	}

	token, err := jwt.ParseWithClaims(assertion, &idTokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			kid, ok := t.Header["kid"].(string)
			if !ok {
				return nil, errors.New("kid header not found")
			}
			return v.getPublicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityRejected, err)
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrIdentityRejected
	}

	// Verify issuer and audience when a project is configured
	if v.projectID != "" {
		expectedIssuer := fmt.Sprintf("https://securetoken.google.com/%s", v.projectID)
		if claims.Issuer != expectedIssuer {
			return nil, fmt.Errorf("%w: unexpected issuer %q", ErrIdentityRejected, claims.Issuer)
		}
		if !containsAudience(claims.Audience, v.projectID) {
			return nil, fmt.Errorf("%w: unexpected audience", ErrIdentityRejected)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrIdentityRejected)
	}

	return &Subject{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// getPublicKey returns the RSA public key for the given key ID, fetching and
// caching the JWKS as needed.
func (v *Validator) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, ok := v.keyCache[kid]; ok {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwks, err := v.getJWKS(ctx)
	if err != nil {
		return nil, err
	}

	for _, jwk := range jwks.Keys {
		if jwk.Kid != kid {
			continue
		}
		key, err := parseRSAPublicKey(jwk)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		v.keyCacheMu.Lock()
		v.keyCache[kid] = key
		v.keyCacheMu.Unlock()
		return key, nil
	}

	return nil, fmt.Errorf("no key found for kid %q", kid)
}

// getJWKS returns the cached JWKS, refetching it when the cache has expired.
func (v *Validator) getJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && time.Now().Before(v.jwksCacheExp) {
		jwks := v.jwksCache
		v.cacheMu.RUnlock()
		return jwks, nil
	}
	v.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	jwks := &JWKS{}
	if err := json.NewDecoder(resp.Body).Decode(jwks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	v.cacheMu.Lock()
	v.jwksCache = jwks
	v.jwksCacheExp = time.Now().Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	// New key set invalidates previously parsed keys
	v.keyCacheMu.Lock()
	v.keyCache = make(map[string]*rsa.PublicKey)
	v.keyCacheMu.Unlock()

	return jwks, nil
}

// parseRSAPublicKey builds an rsa.PublicKey from a JWK's modulus and exponent.
func parseRSAPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	if jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type: %s", jwk.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
