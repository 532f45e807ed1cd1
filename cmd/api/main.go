package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheetvend-api/internal/config"
	"sheetvend-api/internal/handler"
	"sheetvend-api/internal/lock"
	"sheetvend-api/internal/middleware"
	"sheetvend-api/internal/notify"
	"sheetvend-api/internal/repository"
	"sheetvend-api/internal/router"
	"sheetvend-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	logger := newLogger(&cfg.App)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Grid. An unreachable grid leaves the service up; every inventory call
	// then fails with a store-unavailable error.
	grid := openGrid(ctx, cfg, logger)
	if grid != nil {
		defer grid.Close()
	}

	ledgerStore, err := openLedgerStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("ledger store", zap.Error(err))
	}
	defer ledgerStore.Close()

	ledger, err := service.NewCreditLedger(ctx, ledgerStore, logger.Named("ledger"))
	if err != nil {
		logger.Fatal("ledger load", zap.Error(err))
	}

	flusher := service.NewFlushScheduler(ledger, cfg.Ledger.RetryInterval, logger.Named("ledger"))
	flusher.Start()

	locker, redisClient := openLocker(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var sender notify.Sender
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, logger.Named("telegram"))
		if err != nil {
			logger.Warn("telegram sender disabled", zap.Error(err))
		} else {
			sender = tg
		}
	}

	// Services
	scanner := service.NewScanner(grid, cfg.Regions.Build(), logger.Named("scanner"))
	stats := service.NewStatsAggregator(scanner)
	allocator := service.NewAllocator(ledger, scanner, logger.Named("allocator"),
		service.WithBanEnforcement(cfg.Dispense.EnforceBan))
	dispenser := service.NewSerializedAllocator(allocator, locker, cfg.Lock.WaitTimeout, logger.Named("allocator"))
	broadcaster := service.NewBroadcaster(ledger, sender, logger.Named("broadcast"))
	admin := service.NewAdminService(service.AdminDeps{
		AdminIDs:    cfg.App.AdminIDs,
		Ledger:      ledger,
		Scanner:     scanner,
		Stats:       stats,
		Broadcaster: broadcaster,
		Sender:      sender,
	}, logger.Named("admin"))

	r := router.New(router.Config{
		Handler:         handler.New(cfg.App.Name, cfg.App.Version, scanner),
		DispenseHandler: handler.NewDispenseHandler(dispenser, stats, logger.Named("http")),
		AccountHandler:  handler.NewAccountHandler(ledger),
		AdminHandler:    handler.NewAdminHandler(admin),
		AdminAuth:       middleware.NewAdminAuth(cfg.App.AdminKey),
		Logger:          logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := flusher.Stop(); err != nil {
		logger.Error("ledger not persisted at shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(app *config.AppConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if app.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(app.LogLevel); err == nil {
		zcfg.Level = lvl
	}

	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewExample()
		logger.Warn("logger config rejected, using example logger", zap.Error(err))
	}
	return logger
}

func openGrid(ctx context.Context, cfg *config.Config, logger *zap.Logger) repository.GridStore {
	log := logger.Named("grid")

	var (
		store repository.GridStore
		err   error
	)
	switch cfg.Sheet.Backend {
	case "sqlite":
		store, err = repository.NewSQLiteGridStore(cfg.Sheet.SQLitePath, cfg.Sheet.GridName, log)
	case "postgres", "postgresql":
		store, err = repository.NewPostgresGridStore(cfg.Sheet.PostgresDSN(), cfg.Sheet.GridName, log)
	default:
		initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		store, err = repository.NewSheetsGridStore(initCtx, repository.SheetsConfig{
			SpreadsheetID:   cfg.Sheet.SpreadsheetID,
			SheetName:       cfg.Sheet.SheetName,
			CredentialsFile: cfg.Sheet.CredentialsFile,
			CredentialsJSON: cfg.Sheet.CredentialsJSON,
		}, log)
		cancel()
	}
	if err != nil {
		log.Warn("grid unavailable, inventory calls will fail",
			zap.String("backend", cfg.Sheet.Backend), zap.Error(err))
		return nil
	}
	return store
}

func openLedgerStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.LedgerStore, error) {
	log := logger.Named("ledger_store")

	if cfg.Ledger.Backend != "mysql" {
		return repository.NewFileLedgerStore(cfg.Ledger.Path, log)
	}

	db, err := sql.Open("mysql", cfg.Ledger.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := repository.NewMySQLLedgerStore(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// openLocker returns a Redis locker when configured and reachable, else an
// in-process one.
func openLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, *redis.Client) {
	log := logger.Named("lock")

	if cfg.Lock.Backend != "redis" {
		return lock.NewMemory(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Lock.RedisAddress(),
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, falling back to in-process lock", zap.Error(err))
		_ = client.Close()
		return lock.NewMemory(), nil
	}

	ttl := service.AllocationLockTTL(cfg.Lock.TTL)
	if ttl != cfg.Lock.TTL {
		log.Warn("LOCK_TTL too short for a full allocation, raised",
			zap.Duration("configured", cfg.Lock.TTL), zap.Duration("ttl", ttl))
	}

	log.Info("redis lock initialized", zap.String("addr", cfg.Lock.RedisAddress()), zap.Duration("ttl", ttl))
	return lock.NewRedis(client, cfg.Lock.KeyPrefix, ttl, log), client
}
