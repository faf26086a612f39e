package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"preset-labels/label"
)

var _ label.Updater = (*Store)(nil)

type fakeRedisClient struct {
	data      map[string]string
	getErr    error
	setErr    error
	closed    bool
	conflicts int
	watched   []string
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{data: map[string]string{}}
}

func (f *fakeRedisClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedisClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	if expiration != 0 {
		return redis.NewStatusResult("", errors.New("unexpected expiration"))
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedisClient) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedisClient) Close() error {
	f.closed = true
	return nil
}

// fakeTxn applies writes straight to the fake's map unless conflicts says the
// watched key was changed by another writer.
type fakeTxn struct {
	c *fakeRedisClient
}

func (t fakeTxn) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := t.c.data[key]
	return v, ok, nil
}

func (t fakeTxn) Set(_ context.Context, key, value string) error {
	if t.c.conflicts > 0 {
		t.c.conflicts--
		return redis.TxFailedErr
	}
	t.c.data[key] = value
	return nil
}

func newTestStore(c *fakeRedisClient) *Store {
	return &Store{
		client: c,
		watch: func(_ context.Context, key string, fn func(txn) error) error {
			c.watched = append(c.watched, key)
			return fn(fakeTxn{c: c})
		},
		opTimeout: time.Second,
		prefix:    "labels",
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{URL: "://bad"})
	require.Error(t, err)

	s, err := New(Config{URL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	require.Equal(t, "labels", s.prefix)
	require.Equal(t, 5*time.Second, s.opTimeout)
	require.NoError(t, s.Close())
}

func TestGetSetMapping(t *testing.T) {
	ctx := context.Background()
	c := newFakeRedisClient()
	s := newTestStore(c)

	_, ok, err := s.Get(ctx, "preset labels")
	require.NoError(t, err)
	require.False(t, ok, "redis.Nil must map to absent")

	require.NoError(t, s.Set(ctx, "preset labels", `["a"]`))
	require.Equal(t, `["a"]`, c.data["labels:preset labels"])

	v, ok, err := s.Get(ctx, "preset labels")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `["a"]`, v)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	require.True(t, c.closed)
}

func TestErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	c := newFakeRedisClient()
	c.getErr = boom
	c.setErr = boom
	s := newTestStore(c)

	_, _, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.Set(ctx, "k", "v"), boom)
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	c := newFakeRedisClient()
	c.data["labels:preset labels"] = `["a"]`
	c.conflicts = 2
	s := newTestStore(c)

	calls := 0
	err := s.Update(ctx, "preset labels", func(old string, ok bool) (string, error) {
		calls++
		require.True(t, ok)
		require.Equal(t, `["a"]`, old)
		return `["a","b"]`, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, `["a","b"]`, c.data["labels:preset labels"])
	require.Equal(t, []string{"labels:preset labels", "labels:preset labels", "labels:preset labels"}, c.watched)
}

func TestUpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	c := newFakeRedisClient()
	c.conflicts = maxUpdateAttempts
	s := newTestStore(c)

	err := s.Update(context.Background(), "k", func(string, bool) (string, error) { return "v", nil })
	require.ErrorIs(t, err, redis.TxFailedErr)
	_, ok := c.data["labels:k"]
	require.False(t, ok)
}

func TestUpdateCallbackErrorWritesNothing(t *testing.T) {
	c := newFakeRedisClient()
	s := newTestStore(c)
	boom := errors.New("boom")

	err := s.Update(context.Background(), "k", func(old string, ok bool) (string, error) {
		require.False(t, ok)
		return "v", boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, c.data)
}

func TestLabelServiceUsesUpdate(t *testing.T) {
	ctx := context.Background()
	c := newFakeRedisClient()
	c.conflicts = 1
	svc := label.NewService(newTestStore(c))

	require.NoError(t, svc.AddLabels(ctx, []string{"portrait"}))
	require.Equal(t, `["portrait"]`, c.data["labels:preset labels"])
	require.Len(t, c.watched, 2)
}
