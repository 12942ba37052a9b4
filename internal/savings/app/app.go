package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	savingsConfig "github.com/samiecode/babylon/internal/savings/config"
	"github.com/samiecode/babylon/internal/savings/detector"
	"github.com/samiecode/babylon/internal/savings/handler"
	shttp "github.com/samiecode/babylon/internal/savings/http"
	"github.com/samiecode/babylon/internal/savings/notify"
	"github.com/samiecode/babylon/internal/savings/repo"
	"github.com/samiecode/babylon/internal/savings/service"
	"github.com/samiecode/babylon/internal/savings/vault"
	"github.com/samiecode/babylon/internal/savings/watchlist"
	vipConfig "github.com/samiecode/babylon/pkg/config"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/metrics"
	"github.com/samiecode/babylon/pkg/orm"
	"github.com/samiecode/babylon/pkg/ratelimit"
	"github.com/samiecode/babylon/pkg/safe"
	"github.com/samiecode/babylon/pkg/trace"
	"github.com/samiecode/babylon/pkg/xredis"
)

type App struct {
	ctx context.Context
	cfg *savingsConfig.Config

	db      *gorm.DB
	rdb     *redis.Client
	events  *notify.Emitter
	gateway *vault.Gateway
	watch   *watchlist.Cache
	closers []func()

	handlers shttp.Handlers
}

func New(configName string, opts ...vipConfig.Option) (*App, error) {
	// 加载配置
	cfg := &savingsConfig.Config{}
	if err := savingsConfig.Load(configName, cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &App{cfg: cfg}, nil
}

func (app *App) Config() *savingsConfig.Config { return app.cfg }

// StartService connects every dependency and builds the services. The
// returned cleanup releases them in reverse order; a failed start releases
// whatever was already opened.
func (app *App) StartService(ctx context.Context) (func(), error) {
	app.ctx = ctx
	logger.Init(app.cfg.Name, app.cfg.LogLevel)

	for _, start := range []func() error{app.startTrace, app.startDB, app.startRedis, app.startNats} {
		if err := start(); err != nil {
			app.release()
			return nil, err
		}
	}
	app.build()
	app.onClose(app.gateway.Close)

	sqlDB := mustSQL(app.db)
	safe.GoCtx(ctx, func(ctx context.Context) {
		metrics.ObservePools(ctx, sqlDB, app.rdb, 15*time.Second)
	})

	return func() {
		app.release()
		logger.Sync()
	}, nil
}

func (app *App) onClose(fn func()) {
	app.closers = append(app.closers, fn)
}

// release runs the registered closers newest first.
func (app *App) release() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func (app *App) StartHttp() *http.Server {
	return shttp.NewServer(app.ctx, app.cfg.HTTP.Addr, app.handlers, shttp.Options{
		Service:   app.cfg.Name,
		RateLimit: app.cfg.HTTP.RateLimit,
		Burst:     app.cfg.HTTP.Burst,
	})
}

func (app *App) startTrace() error {
	shutdown, err := trace.InitTrace(app.cfg.Name, trace.Config{
		Endpoint: app.cfg.Trace.Endpoint,
		Stdout:   app.cfg.Trace.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	app.onClose(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	})
	return nil
}

func (app *App) startDB() error {
	c := app.cfg.Database
	db, err := orm.New(&orm.Config{
		Driver:      c.Driver,
		DSN:         c.DSN,
		MaxIdle:     c.MaxIdle,
		MaxOpen:     c.MaxOpen,
		MaxLifetime: c.MaxLifetime,
		LogLevel:    c.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	app.db = db
	if sqlDB := mustSQL(db); sqlDB != nil {
		app.onClose(func() { _ = sqlDB.Close() })
	}
	if c.AutoMigrate {
		if err := repo.New(db).AutoMigrate(app.ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info(app.ctx, "database ready", zap.String("driver", c.Driver))
	return nil
}

func (app *App) startRedis() error {
	c := app.cfg.Redis
	if c.Addr == "" {
		logger.Info(app.ctx, "redis not configured, using in-process wallet locks")
		return nil
	}
	rdb, err := xredis.NewRedis(&xredis.Config{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	app.rdb = rdb
	app.onClose(func() { _ = rdb.Close() })
	return nil
}

func (app *App) startNats() error {
	if app.cfg.Nats.URL == "" {
		app.events = notify.NewEmitter(nil)
		return nil
	}
	pub, err := notify.NewNatsPublisher(app.cfg.Nats.URL,
		nats.Name(app.cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	app.events = notify.NewEmitter(pub)
	app.onClose(app.events.Close)
	logger.Info(app.ctx, "publishing savings events", zap.String("nats", app.cfg.Nats.URL))
	return nil
}

// build wires the vault, caches and services. The vault dials lazily so the
// service starts while the RPC endpoint is unreachable.
func (app *App) build() {
	store := repo.New(app.db)
	cfg := app.cfg

	breakers := ratelimit.NewManager(ratelimit.Rule{
		TripConsecutiveFailures: 5,
		Timeout:                 30 * time.Second,
	}, nil)
	breakers.IsSuccessful = vault.BreakerHealthy
	app.gateway = vault.New(cfg.Vault, breakers)
	app.watch = watchlist.New(store, watchlist.WithTTL(cfg.Watch.TTL))

	var locks service.Locker = service.NewMemLocker()
	if app.rdb != nil {
		locks = service.NewRedisLocker(app.rdb, cfg.Redis.LockTTL)
	}

	timeout := cfg.Vault.ConfirmTimeout
	app.handlers = shttp.Handlers{
		Webhook: &handler.Webhook{
			Ingest: service.NewIngestService(store, detector.New(app.watch, cfg.Webhook.TransferSignature), app.events, cfg.Webhook.Parallelism),
		},
		Wallet: &handler.Wallet{Wallets: service.NewWalletService(store, app.watch)},
		Savings: &handler.Savings{
			Config:      service.NewConfigService(store, app.gateway, app.watch, timeout),
			Auth:        service.NewAuthorizationService(store, app.gateway, app.events, timeout),
			Withdrawals: service.NewWithdrawalService(store, app.gateway, locks, app.events, timeout),
			Overview:    service.NewOverviewService(store),
		},
	}
}
