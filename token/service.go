package token

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/config"
	"github.com/Rizvi-Faiz/sso-system/session"
)

// SessionStore is the slice of the session store the token service depends on.
type SessionStore interface {
	Put(ctx context.Context, subjectID string, rec *session.Record, ttl time.Duration) error
	Delete(ctx context.Context, subjectID string) error
}

// Pair is a matched access/refresh credential pair. Both tokens carry the
// same subject and email claims at issuance time.
type Pair struct {
	AccessToken  string
	RefreshToken string
	Identity     Identity
}

// Service orchestrates credential issuance, validation, refresh rotation,
// and revocation. It is stateless per call; all shared state lives in the
// session store.
type Service struct {
	codec  *Codec
	store  SessionStore
	cfg    config.AuthConfig
	logger *zap.Logger
}

// NewService creates a token Service.
func NewService(codec *Codec, store SessionStore, cfg config.AuthConfig, logger *zap.Logger) *Service {
	return &Service{
		codec:  codec,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Issue mints a matched access/refresh pair for the subject and upserts the
// server-side session. A prior session for the same subject is silently
// overwritten: at most one live session per subject.
func (s *Service) Issue(ctx context.Context, subjectID, email string) (*Pair, error) {
	accessToken, err := s.codec.Sign(subjectID, email, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.codec.Sign(subjectID, email, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	rec := &session.Record{
		SubjectID: subjectID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Put(ctx, subjectID, rec, s.cfg.SessionTTL); err != nil {
		return nil, err
	}

	s.logger.Debug("issued credential pair", zap.String("subject_id", subjectID))

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Identity:     Identity{SubjectID: subjectID, Email: email},
	}, nil
}

// ValidateAccess verifies an access token and returns its identity. It never
// consults the session store: possession of an unexpired, correctly signed
// access token is sufficient. Revocation therefore does not invalidate
// access tokens already in flight; their short TTL bounds the exposure.
func (s *Service) ValidateAccess(accessToken string) (*Identity, error) {
	return s.codec.Verify(accessToken)
}

// Identify extracts the identity from any credential minted by this service,
// without touching the session store. Used by the gateway to recognise the
// subject behind a refresh cookie.
func (s *Service) Identify(credential string) (*Identity, error) {
	return s.codec.Verify(credential)
}

// Rotate verifies a refresh token and, on success, issues a fresh pair for
// the same subject, re-arming the session TTL. The old refresh token is not
// tracked server-side: two concurrent rotations with the same still-valid
// token both succeed and mint independently valid pairs.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*Pair, error) {
	ident, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.Issue(ctx, ident.SubjectID, ident.Email)
}

// Revoke deletes the subject's server-side session. Idempotent: revoking an
// already-revoked subject succeeds.
func (s *Service) Revoke(ctx context.Context, subjectID string) error {
	if err := s.store.Delete(ctx, subjectID); err != nil {
		return err
	}
	s.logger.Info("session revoked", zap.String("subject_id", subjectID))
	return nil
}
