package account_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/livequiz/internal/account"
	"github.com/victornm/livequiz/internal/errors"
	"github.com/victornm/livequiz/internal/state"
	"github.com/victornm/livequiz/internal/store"
)

func TestService_Register(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	err := s.Register(ctx, account.RegisterRequest{
		Email:    "alice@example.com",
		Password: "s3cret",
		Name:     "Alice",
	})
	require.NoError(t, err)

	// Second registration for the same email is rejected and must not alter
	// the first account's credentials.
	err = s.Register(ctx, account.RegisterRequest{
		Email:    "alice@example.com",
		Password: "other",
		Name:     "Mallory",
	})
	require.True(t, errors.Is(err, errors.CodeAlreadyExists))

	_, err = s.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err, "original password should still work")

	_, err = s.Login(ctx, "alice@example.com", "other")
	require.True(t, errors.Is(err, errors.CodeUnauthenticated))
}

func TestService_RegisterRequiresEmailAndPassword(t *testing.T) {
	s := makeService(t)

	err := s.Register(context.Background(), account.RegisterRequest{Name: "Nobody"})
	require.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestService_Login(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, account.RegisterRequest{
		Email:    "alice@example.com",
		Password: "s3cret",
		Name:     "Alice",
	}))

	tests := map[string]struct {
		email    string
		password string
		wantErr  bool
	}{
		"right credentials": {email: "alice@example.com", password: "s3cret"},
		"wrong password":    {email: "alice@example.com", password: "nope", wantErr: true},
		"unknown email":     {email: "bob@example.com", password: "s3cret", wantErr: true},
		"empty credentials": {wantErr: true},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			token, err := s.Login(ctx, tt.email, tt.password)
			if tt.wantErr {
				require.True(t, errors.Is(err, errors.CodeUnauthenticated))
				return
			}

			require.NoError(t, err)
			require.True(t, strings.HasPrefix(token, tt.email+":"), "token should carry the email")
		})
	}
}

func TestService_ResolveIdentity(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, account.RegisterRequest{
		Email:    "alice@example.com",
		Password: "s3cret",
		Name:     "Alice",
	}))

	t.Run("valid token", func(t *testing.T) {
		header := fmt.Sprintf("Bearer alice@example.com:%d", time.Now().UnixMilli())
		email, err := s.ResolveIdentity(ctx, header)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", email)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := s.ResolveIdentity(ctx, "")
		require.True(t, errors.Is(err, errors.CodeUnauthenticated))
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := s.ResolveIdentity(ctx, "Bearer notatoken")
		require.True(t, errors.Is(err, errors.CodeUnauthenticated))
	})

	t.Run("unknown account", func(t *testing.T) {
		header := fmt.Sprintf("Bearer bob@example.com:%d", time.Now().UnixMilli())
		_, err := s.ResolveIdentity(ctx, header)
		require.True(t, errors.Is(err, errors.CodeUnauthenticated))
	})
}

func TestService_LogoutAlwaysSucceeds(t *testing.T) {
	s := makeService(t)

	require.NoError(t, s.Logout(context.Background(), "Bearer whatever:123"))
}

func makeService(t *testing.T) *account.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	e := state.New(state.Config{Store: store.NewRedis(rc, "test:snapshot")})
	t.Cleanup(e.Close)
	require.NoError(t, e.Hydrate(ctx))

	return account.NewService(account.Config{State: e})
}
