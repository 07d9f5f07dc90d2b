package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the authenticated principal carried inside a signed credential.
type Identity struct {
	SubjectID string `json:"userId"`
	Email     string `json:"email"`
}

// credentialClaims is the wire format of both access and refresh tokens.
type credentialClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies self-contained HS256 credentials. It is stateless:
// a pure function of its inputs, the current time, and the signing secret
// injected at construction.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec with the given signing secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Sign produces a signed token embedding the subject, email claim, a unique
// token ID, an issued-at time, and an expiry of now + ttl.
func (c *Codec) Sign(subjectID, email string, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("subject ID is required")
	}

	now := time.Now()
	claims := credentialClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token and returns the embedded
// identity. Every failure mode (tampered, malformed, wrong algorithm,
// expired) collapses into ErrInvalidCredential so the caller cannot
// distinguish them.
func (c *Codec) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingCredential
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &credentialClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*credentialClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidCredential
	}

	return &Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
	}, nil
}
