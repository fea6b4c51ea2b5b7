package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/desertthunder/podx/internal/auth"
	"github.com/desertthunder/podx/internal/repositories"
	"github.com/desertthunder/podx/internal/server"
	"github.com/desertthunder/podx/internal/services"
	"github.com/desertthunder/podx/internal/session"
	"github.com/desertthunder/podx/internal/shared"
	"github.com/desertthunder/podx/internal/tasks"
	"github.com/desertthunder/podx/internal/web"
	"github.com/urfave/cli/v3"
)

// sessionBackend is an opened session store plus whatever it holds open.
type sessionBackend struct {
	store session.Store
	db    *sql.DB // set for the sqlite backend
	close func()
}

// openSessionStore opens the store selected by session.backend.
func (r *Runner) openSessionStore(ctx context.Context) (*sessionBackend, error) {
	sealer, err := session.NewSealer(r.config.App.Secret)
	if err != nil {
		return nil, err
	}
	codec := session.NewCodec(sealer)

	switch r.config.Session.Backend {
	case "memory":
		return &sessionBackend{store: session.NewMemoryStore(), close: func() {}}, nil
	case "", "sqlite":
		db, err := shared.OpenDatabase(ctx, r.config.Database)
		if err != nil {
			return nil, err
		}
		return &sessionBackend{
			store: repositories.NewSessionRepository(db, codec),
			db:    db,
			close: func() { db.Close() },
		}, nil
	case "redis":
		rdb, err := session.NewRedisClient(ctx, r.config.Redis)
		if err != nil {
			return nil, err
		}
		return &sessionBackend{
			store: session.NewRedisStore(rdb, r.config.Redis.Prefix, codec),
			close: func() { rdb.Close() },
		}, nil
	case "postgres":
		pool, err := session.NewPostgresPool(ctx, r.config.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		store, err := session.NewPostgresStore(ctx, pool, codec)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &sessionBackend{store: store, close: pool.Close}, nil
	default:
		return nil, fmt.Errorf("%w: unknown session backend %q", shared.ErrInvalidConfig, r.config.Session.Backend)
	}
}

// newManager builds the session manager for store from the config.
func (r *Runner) newManager(store session.Store) (*session.Manager, error) {
	cookies, err := session.NewCookieCodec(r.config.App.Secret)
	if err != nil {
		return nil, err
	}
	return session.NewManager(store, cookies, session.ManagerOptions{
		CookieName: r.config.Session.CookieName,
		TTL:        r.config.SessionTTL(),
		Secure:     r.config.SecureCookies(),
		Now:        r.now,
		Logger:     shared.WithLogger(r.logger, "component", "sessions"),
	}), nil
}

// Serve runs the web application until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := r.openSessionStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s session store: %w", r.config.Session.Backend, err)
	}
	defer backend.close()

	manager, err := r.newManager(backend.store)
	if err != nil {
		return err
	}

	authOpts := services.AuthOptionsFromConfig(r.config)
	authorizer, err := services.NewSpotifyAuth(authOpts)
	if err != nil {
		return err
	}

	guard := auth.NewGuard(auth.SpotifyRefresherFactory(authOpts),
		auth.WithWindow(r.config.RefreshWindow()),
		auth.WithLogger(shared.WithLogger(r.logger, "component", "guard")),
	)

	opts := web.Options{
		Sessions:   manager,
		Guard:      guard,
		Authorizer: authorizer,
		Services:   services.NewSpotifyFactory(services.ClientOptionsFromConfig(r.config, r.logger)),
		Collect:    tasks.OptionsFromConfig(r.config),
		Logger:     r.logger,
	}
	if backend.db != nil {
		opts.Users = repositories.NewUserRepository(backend.db)
	}

	app, err := web.New(opts)
	if err != nil {
		return err
	}

	var limiter *server.ClientLimiter
	if r.config.Server.RateLimit > 0 {
		limiter = server.NewClientLimiter(r.config.Server.RateLimit, r.config.Server.Burst)
	}

	addr := r.config.ListenAddr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}
	srv := server.New(addr, app.Handler(limiter), r.logger)

	go manager.RunPruner(ctx, r.config.PruneInterval())

	if cmd.Bool("open") {
		go func() {
			if err := shared.OpenBrowser(r.config.App.URI); err != nil {
				r.logger.Warn("failed to open browser", "error", err)
			}
		}()
	}

	r.logger.Info("starting podx", "addr", addr, "uri", r.config.App.URI, "sessions", r.config.Session.Backend)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
