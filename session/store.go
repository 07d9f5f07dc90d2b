package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/config"
)

// ErrStoreUnavailable is returned when the session store cannot be reached.
// It is distinct from an absent record: callers must treat it as an
// infrastructure fault, not as "not logged in".
var ErrStoreUnavailable = errors.New("session store unavailable")

// keyPrefix namespaces session keys so the Redis instance can be shared.
const keyPrefix = "sso:session:"

// Record is the server-side session state for one subject. Its presence in
// the store is what "logged in" means server-side; a new login for the same
// subject overwrites the prior record (single active session policy).
type Record struct {
	SubjectID string    `json:"subjectId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a Redis-backed session store shared by all service instances.
// Serialization is delegated to Redis: Put is last-writer-wins.
type Store struct {
	client    *redis.Client
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewStore creates a Store with its own Redis client from configuration.
func NewStore(cfg config.RedisConfig, logger *zap.Logger) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return NewStoreWithClient(client, cfg.OpTimeout, logger)
}

// NewStoreWithClient creates a Store around an existing Redis client.
// Used by tests to inject a miniredis-backed client.
func NewStoreWithClient(client *redis.Client, opTimeout time.Duration, logger *zap.Logger) *Store {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &Store{
		client:    client,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

// Put upserts the session record for subjectID and (re)arms its TTL.
// Any prior record for the subject is overwritten.
func (s *Store) Put(ctx context.Context, subjectID string, rec *Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key(subjectID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the session record for subjectID, or (nil, nil) when no record
// exists or its TTL has elapsed. A store/network failure is reported as
// ErrStoreUnavailable, never as absence.
func (s *Store) Get(ctx context.Context, subjectID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	payload, err := s.client.Get(ctx, key(subjectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec := &Record{}
	if err := json.Unmarshal(payload, rec); err != nil {
		// Corrupt blob: treat as absent so the subject re-authenticates.
		s.logger.Warn("discarding corrupt session record",
			zap.String("subject_id", subjectID),
			zap.Error(err))
		return nil, nil
	}
	return rec, nil
}

// Delete removes the session record for subjectID. Idempotent: deleting an
// absent record is not an error.
func (s *Store) Delete(ctx context.Context, subjectID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, key(subjectID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping verifies connectivity to Redis. Used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func key(subjectID string) string {
	return keyPrefix + subjectID
}
