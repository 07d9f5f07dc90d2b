package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStoreWithClient(client, time.Second, zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func testRecord(subjectID string) *Record {
	return &Record{
		SubjectID: subjectID,
		Email:     subjectID + "@x.com",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("u1")
	require.NoError(t, store.Put(ctx, "u1", rec, time.Hour))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.SubjectID, got.SubjectID)
	assert.Equal(t, rec.Email, got.Email)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestGetAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPutOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", &Record{SubjectID: "u1", Email: "old@x.com"}, time.Hour))
	require.NoError(t, store.Put(ctx, "u1", &Record{SubjectID: "u1", Email: "new@x.com"}, time.Hour))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new@x.com", got.Email)
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", testRecord("u1"), time.Minute))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPutReArmsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", testRecord("u1"), time.Minute))
	mr.FastForward(45 * time.Second)
	require.NoError(t, store.Put(ctx, "u1", testRecord("u1"), time.Minute))
	mr.FastForward(45 * time.Second)

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", testRecord("u1"), time.Hour))
	require.NoError(t, store.Delete(ctx, "u1"))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent record is not an error
	require.NoError(t, store.Delete(ctx, "u1"))
}

func TestCorruptRecordTreatedAsAbsent(t *testing.T) {
	store, mr := newTestStore(t)

	require.NoError(t, mr.Set(keyPrefix+"u1", "not-json"))

	got, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()
	ctx := context.Background()

	err := store.Put(ctx, "u1", testRecord("u1"), time.Hour)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = store.Delete(ctx, "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = store.Ping(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPing(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
