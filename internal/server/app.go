// Package server wires configuration, storage, the notification pipeline
// and the HTTP API together and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/linkup/internal/logging"
	"github.com/dmitrijs2005/linkup/internal/server/auth"
	"github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/httpapi"
	"github.com/dmitrijs2005/linkup/internal/server/notify"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkup/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	repomanager repomanager.RepositoryManager
	queue       notify.Backend
	dispatcher  *notify.Dispatcher
	server      *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	issuer, err := auth.NewIssuer(c.SecretKey, c.TokenValidityDuration)
	if err != nil {
		return nil, err
	}

	db, err := openDB(c)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: repomanager.NewPostgresRepositoryManager(),
	}

	if err := app.initQueue(); err != nil {
		app.Close()
		return nil, err
	}

	mailer, err := newMailer(c, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	ledger := services.NewOtpLedger(db, app.repomanager, c)
	usernames := services.NewUsernameNegotiator(db, app.repomanager, c)
	as := services.NewAuthService(db, app.repomanager, c, ledger, usernames, issuer, app.queue, mailer, logger)
	ps := services.NewProfileService(db, app.repomanager, c)
	ms := services.NewMediaService(db, app.repomanager, c)

	app.dispatcher = notify.NewDispatcher(app.queue, as.HandleJob, logger, notify.DispatcherOptions{})
	app.server = httpapi.NewServer(c.HTTPAddr, logger, as, ps, ms, httpapi.Options{
		AllowedOrigins: c.CORSAllowedOrigins,
		MaxUploadSize:  c.MaxUploadSize,
	})

	return app, nil
}

func openDB(c *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(c.DBMaxOpenConns)
	db.SetMaxIdleConns(c.DBMaxIdleConns)
	return db, nil
}

// initQueue selects Redis when an address is configured and an in-process
// queue otherwise.
func (app *App) initQueue() error {
	if app.config.RedisAddr == "" {
		app.queue = notify.NewMemoryQueue(0)
		return nil
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}

	app.queue = notify.NewRedisQueue(app.redis, app.config.MailQueue)
	return nil
}

// newMailer returns an SMTP mailer, or a mailer that only logs when no SMTP
// host is configured.
func newMailer(c *config.Config, logger logging.Logger) (notify.Mailer, error) {
	if c.SMTPHost == "" {
		return notify.NewLogMailer(logger), nil
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
}

// Run migrates the schema if asked to, then serves HTTP and dispatches
// notification jobs until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	if app.config.RunMigrations {
		if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
			return fmt.Errorf("migrations error: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Error(ctx, "component stopped", "component", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			cancel()
		}()
	}

	run("dispatcher", app.dispatcher.Run)
	run("http", app.server.Run)

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")

	return errors.Join(errs...)
}

// Close releases the pool, the queue and the Redis client. It is safe to
// call more than once.
func (app *App) Close() {
	if mq, ok := app.queue.(*notify.MemoryQueue); ok {
		mq.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
		app.redis = nil
	}
	if app.db != nil {
		_ = app.db.Close()
		app.db = nil
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
