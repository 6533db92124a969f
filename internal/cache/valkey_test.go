package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newValkeyTestStore connects to VALKEY_TEST_ADDR under a unique prefix, or
// skips the test when no server is configured.
func newValkeyTestStore(t *testing.T, ttl time.Duration) *ValkeyStore {
	t.Helper()
	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDR not set")
	}
	s, err := NewValkeyStore(ValkeyConfig{
		Address:        addr,
		KeyPrefix:      "flights-test-" + uuid.NewString(),
		ConnectTimeout: 2 * time.Second,
	}, ttl)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Flush(context.Background())
		_ = s.Close()
	})
	return s
}

func TestValkeyStore_RoundTripAndFlush(t *testing.T) {
	s := newValkeyTestStore(t, testTTL)
	ctx := context.Background()
	now := time.Now().UTC()

	e := entry("k1", 210, now)
	require.NoError(t, s.PutFresh(ctx, e))
	require.NoError(t, s.PutStale(ctx, e))

	got, ok, err := s.GetFresh(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Offers, got.Offers)
	assert.Equal(t, e.Strategy, got.Strategy)

	_, ok, err = s.GetStale(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	mark, ok, err := s.LastWrite(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1", mark.Key)

	require.NoError(t, s.Flush(ctx))
	_, ok, _ = s.GetFresh(ctx, "k1")
	assert.False(t, ok)
	_, ok, _ = s.LastWrite(ctx)
	assert.False(t, ok)
}

func TestValkeyStore_ServerSideTTL(t *testing.T) {
	s := newValkeyTestStore(t, testTTL)
	ctx := context.Background()
	require.NoError(t, s.PutFresh(ctx, entry("k", 100, time.Now())))
	require.NoError(t, s.PutStale(ctx, entry("k", 100, time.Now())))

	fresh, err := s.client.Do(ctx, s.client.B().Ttl().Key(s.key("fresh", "k")).Build()).AsInt64()
	require.NoError(t, err)
	stale, err := s.client.Do(ctx, s.client.B().Ttl().Key(s.key("stale", "k")).Build()).AsInt64()
	require.NoError(t, err)

	assert.InDelta(t, testTTL.Seconds(), float64(fresh), 2)
	assert.InDelta(t, 2*testTTL.Seconds(), float64(stale), 2)
}

func TestNewValkeyStore_RejectsSubSecondTTL(t *testing.T) {
	_, err := NewValkeyStore(ValkeyConfig{Address: "127.0.0.1:1"}, 500*time.Millisecond)
	assert.ErrorContains(t, err, "below one second")
}
