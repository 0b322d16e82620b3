package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/livequiz/internal/store"
)

func TestRedis_LoadAbsent(t *testing.T) {
	s := makeStore(t)

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedis_SaveLoadRoundTrip(t *testing.T) {
	s := makeStore(t)

	want := []byte(`{"accounts":{},"games":{},"sessions":{}}`)
	require.NoError(t, s.Save(context.Background(), want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRedis_SaveReplacesWholesale(t *testing.T) {
	s := makeStore(t)

	require.NoError(t, s.Save(context.Background(), []byte(`first`)))
	require.NoError(t, s.Save(context.Background(), []byte(`second`)))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte(`second`), got)
}

func makeStore(t *testing.T) *store.Redis {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return store.NewRedis(rc, "test:snapshot")
}
