package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/formmatic/formmatic/internal/config"
	"github.com/formmatic/formmatic/internal/db"
	"github.com/formmatic/formmatic/internal/fillapi"
	"github.com/formmatic/formmatic/internal/formcodes"
	"github.com/formmatic/formmatic/internal/handler"
	"github.com/formmatic/formmatic/internal/logging"
	mw "github.com/formmatic/formmatic/internal/middleware"
	"github.com/formmatic/formmatic/internal/orchestrator"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/persist"
	"github.com/formmatic/formmatic/internal/repository"
	"github.com/formmatic/formmatic/internal/router"
	"github.com/formmatic/formmatic/internal/scenario"
	"github.com/formmatic/formmatic/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "formmatic-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, GelfAddr: cfg.GelfAddr, Service: "formmatic-server"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to OxiDB
	pool, err := db.NewPool(ctx, cfg.OxiDBHost, cfg.OxiDBPort, cfg.PoolSize, log)
	if err != nil {
		return fmt.Errorf("connect to oxidb: %w", err)
	}
	defer pool.Close()
	log.Info("connected to oxidb",
		zap.String("host", cfg.OxiDBHost), zap.Int("port", cfg.OxiDBPort), zap.Int("pool", cfg.PoolSize))

	drafts, closeDrafts, err := openDrafts(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDrafts()

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	txRepo := repository.NewTransactionRepo(pool)
	docRepo := repository.NewDocumentRepo(pool)

	// Services
	gen := fillapi.New(fillapi.Config{URL: cfg.FillAPIURL, APIKey: cfg.FillAPIKey, Timeout: cfg.FillAPITimeout})
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret)
	fillSvc := service.NewFillService(txRepo, docRepo, gen, log)
	txSvc := service.NewTransactionService(txRepo, fillSvc, log)
	printSvc := service.NewPrintService(txRepo, fillSvc, drafts, orchestrator.PrinterOptions{
		Merger:      pdfmerge.New(pdfmerge.NewPDFCPU(), log),
		Concurrency: cfg.PrintConcurrency,
		FillRate:    rate.Limit(cfg.FillRatePerSec),
		Logger:      log,
	}, log)
	draftSvc := service.NewDraftService(drafts)

	// Router
	r := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, log),
		Transaction: handler.NewTransactionHandler(txSvc, log),
		Fill:        handler.NewFillHandler(fillSvc, printSvc, log),
		Draft:       handler.NewDraftHandler(draftSvc, log),
		Catalog:     handler.NewCatalogHandler(scenario.Default(), formcodes.Default()),
	}, router.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: mw.NewRateLimiter(cfg.RatePerSec, cfg.RateBurst, log),
		Logger:      log,
	})

	// Index builds and admin seeding run on a dedicated connection so a
	// slow text index does not hold up the request pool.
	go backgroundInit(ctx, cfg, pool, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("formmatic server starting", zap.String("addr", cfg.HTTPAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDrafts(ctx context.Context, cfg *config.Config) (persist.Persister, func(), error) {
	switch cfg.DraftBackend {
	case "file":
		f, err := persist.NewFile(cfg.DraftDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open draft dir: %w", err)
		}
		return f, func() {}, nil
	case "redis":
		r, err := persist.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.DraftTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return persist.NewMemory(), func() {}, nil
	}
}

func backgroundInit(ctx context.Context, cfg *config.Config, pool *db.Pool, log *zap.Logger) {
	log = log.Named("init")
	log.Info("starting")
	initPool, err := db.NewPool(ctx, cfg.OxiDBHost, cfg.OxiDBPort, 1, log)
	if err != nil {
		log.Warn("dedicated connection failed, using main pool", zap.Error(err))
		initPool = pool
	}
	defer func() {
		if initPool != pool {
			initPool.Close()
		}
	}()

	userRepo := repository.NewUserRepo(initPool)
	txRepo := repository.NewTransactionRepo(initPool)
	docRepo := repository.NewDocumentRepo(initPool)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"user indexes", userRepo.EnsureIndexes},
		{"document indexes", docRepo.EnsureIndexes},
		{"pdf bucket", docRepo.EnsureBucket},
		{"seed admin", func(ctx context.Context) error {
			return service.NewAuthService(userRepo, cfg.JWTSecret).SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPass)
		}},
		{"transaction indexes", txRepo.EnsureIndexes},
		{"transaction text index", txRepo.EnsureTextIndex},
	}
	for _, step := range steps {
		start := time.Now()
		if err := step.fn(ctx); err != nil {
			log.Warn("step failed", zap.String("step", step.name), zap.Error(err))
			continue
		}
		log.Info("step done", zap.String("step", step.name), zap.Duration("took", time.Since(start).Round(time.Millisecond)))
	}
	log.Info("all done")
}
