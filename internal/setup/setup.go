package setup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/handler"
	"github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/notify"
	"github.com/linkup-dev/linkup/internal/presence"
	"github.com/linkup-dev/linkup/internal/service"
	"github.com/linkup-dev/linkup/internal/storage/memory"
	"github.com/linkup-dev/linkup/internal/storage/pg"
	"github.com/linkup-dev/linkup/internal/sweep"
)

// Store is everything the services and the sweeper need from persistence.
type Store interface {
	service.AccountStorage
	service.FollowStorage
	sweep.Storage
	io.Closer
}

// RateLimits guards the endpoints that send mail or check passwords.
type RateLimits struct {
	Login  *middleware.RateLimiter // per client IP
	Mail   *middleware.RateLimiter // per target email
	MailIP *middleware.RateLimiter // per client IP
}

func NewRateLimits() RateLimits {
	return RateLimits{
		Login:  middleware.NewRateLimiter(time.Second, 10, time.Hour),
		Mail:   middleware.NewRateLimiter(time.Minute, 3, time.Hour),
		MailIP: middleware.NewRateLimiter(10*time.Second, 20, time.Hour),
	}
}

// StartJanitors drops idle buckets until ctx is done.
func (l RateLimits) StartJanitors(ctx context.Context, interval time.Duration) {
	for _, rl := range []*middleware.RateLimiter{l.Login, l.Mail, l.MailIP} {
		rl.StartJanitor(ctx, interval)
	}
}

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        Store
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	RateLimits     RateLimits
	Presence       *presence.Registry
	Sweeper        *sweep.Sweeper
}

// OpenStorage opens the configured store. Postgres is migrated before use.
func OpenStorage(ctx context.Context, cfg *config.Config, connCfg pg.ConnectionConfig) (Store, error) {
	if !cfg.UsesPostgres() {
		return memory.New(), nil
	}
	storage, err := pg.New(ctx, cfg.Private.Pg, connCfg)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx); err != nil {
		storage.Close()
		return nil, err
	}
	return storage, nil
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := OpenStorage(ctx, cfg, pg.DefaultConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	deps, err := NewDependencies(cfg, storage, notify.New(&cfg.Private.Email))
	if err != nil {
		storage.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependencies wires the services over an already opened store.
func NewDependencies(cfg *config.Config, storage Store, notifier service.Notifier, opts ...service.AccountsOption) (*Dependencies, error) {
	issuer, err := credential.NewIssuer(credential.Keys{
		Access:        cfg.Private.AccessKey,
		PasswordReset: cfg.Private.ResetKey,
		Recovery:      cfg.Private.RecoveryKey,
	})
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry()
	accounts := service.NewAccounts(storage, notifier, issuer, &cfg.Public, opts...)
	follows := service.NewFollows(storage, service.WithFollowEvents(registry))
	gate := service.NewGate(storage, issuer)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Handler:        handler.New(accounts, follows, registry, cfg),
		AuthMiddleware: middleware.New(gate, cfg.Public.SecureCookies),
		RateLimits:     NewRateLimits(),
		Presence:       registry,
		Sweeper:        sweep.New(storage, time.Now),
	}, nil
}

func (d *Dependencies) Close() error {
	d.Presence.Clear()
	return d.Storage.Close()
}
