package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/livequiz/internal/account"
	"github.com/victornm/livequiz/internal/api"
	"github.com/victornm/livequiz/internal/event"
	"github.com/victornm/livequiz/internal/game"
	"github.com/victornm/livequiz/internal/session"
	"github.com/victornm/livequiz/internal/state"
	"github.com/victornm/livequiz/internal/store"
	"github.com/victornm/livequiz/internal/telemetry"
)

const defaultSnapshotKey = "livequiz:snapshot"

type Config struct {
	HTTP struct {
		Port int32
	}

	Store struct {
		// Backend selects where the snapshot blob lives: "redis" (default)
		// or "postgres".
		Backend string
		Key     string

		Redis struct {
			Addrs []string
			Pass  string
		}

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Redis struct {
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			store  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	store  store.Store
	engine *state.Engine

	service struct {
		account *account.Service
		game    *game.Service
		session *session.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initState(); err != nil {
		return nil, fmt.Errorf("server: init state: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	var err error
	s.infra.redis.pubsub, err = s.connectRedis(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("redis: pubsub: %w", err)
	}

	key := s.c.Store.Key
	if key == "" {
		key = defaultSnapshotKey
	}

	switch s.c.Store.Backend {
	case "", "redis":
		s.infra.redis.store, err = s.connectRedis(s.c.Store.Redis.Addrs, s.c.Store.Redis.Pass)
		if err != nil {
			return fmt.Errorf("redis: store: %w", err)
		}
		s.store = store.NewRedis(s.infra.redis.store, key)

	case "postgres":
		if err := s.initPostgresStore(key); err != nil {
			return fmt.Errorf("postgres: store: %w", err)
		}

	default:
		return fmt.Errorf("unknown store backend %q", s.c.Store.Backend)
	}

	return nil
}

func (s *Server) connectRedis(addrs []string, pass string) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Server) initPostgresStore(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg := s.c.Store.Postgres
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pg.User, pg.Pass, pg.Addr, pg.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db

	ps := store.NewPostgres(db, key)
	if err := ps.Migrate(ctx); err != nil {
		return err
	}

	s.store = ps
	return nil
}

func (s *Server) initState() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.engine = state.New(state.Config{Store: s.store})
	return s.engine.Hydrate(ctx)
}

func (s *Server) initService() {
	s.service.account = account.NewService(account.Config{
		State: s.engine,
	})

	s.service.game = game.NewService(game.Config{
		State: s.engine,
	})

	s.service.session = session.NewService(session.Config{
		State:    s.engine,
		EventBus: s.eb,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Account:      s.service.account,
		Game:         s.service.game,
		Session:      s.service.session,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.engine.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
