package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/simonbarrel6/aakora/internal/application"
	"github.com/simonbarrel6/aakora/internal/config"
	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	tele "github.com/simonbarrel6/aakora/internal/infra/adapters/telegram"
	"github.com/simonbarrel6/aakora/internal/infra/billing"
	pg "github.com/simonbarrel6/aakora/internal/infra/db/postgres"
	httpapi "github.com/simonbarrel6/aakora/internal/infra/http"
	"github.com/simonbarrel6/aakora/internal/infra/i18n"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
	"github.com/simonbarrel6/aakora/internal/infra/memory"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
	red "github.com/simonbarrel6/aakora/internal/infra/redis"
	"github.com/simonbarrel6/aakora/internal/infra/sched"
	"github.com/simonbarrel6/aakora/internal/infra/security"
	"github.com/simonbarrel6/aakora/internal/usecase"
)

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(opts.configPath, opts.dev)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled: sensitive values are logged in clear")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	tr, err := i18n.Default(cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}

	srv := httpapi.NewServer(cfg.HTTP, logger)
	g, gctx := errgroup.WithContext(ctx)

	// ---- Sessions (+ rate limiter when Redis is available) ----
	var (
		store   repository.SessionStore
		limiter tele.Limiter
	)
	switch cfg.Session.Backend {
	case "redis":
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		var sealer red.Sealer
		if cfg.Security.EncryptionKey != "" {
			enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
			if err != nil {
				return fmt.Errorf("encryption: %w", err)
			}
			sealer = enc
		}
		store = red.NewSessionStore(rc, cfg.Session.IdleTimeout, sealer)
		limiter = red.NewRateLimiter(rc)
		srv.AddCheck("redis", rc.Ping)
		logger.Info().Msg("sessions stored in redis")
	default:
		mem := memory.NewSessionStore()
		store = mem
		sweeper := sched.NewSessionSweeper(cfg.Session.SweepInterval, cfg.Session.IdleTimeout, mem, logger)
		g.Go(func() error { return sweeper.Run(gctx) })
		logger.Info().Msg("sessions stored in memory")
	}

	// ---- Operation journal (optional) ----
	var journal repository.OperationJournal
	if cfg.Database.URL != "" {
		pool, err := openJournal(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		j := pg.NewOperationJournal(pool)
		if cfg.Database.EnsureSchema {
			if err := j.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		journal = j
		srv.AddCheck("postgres", pool.Ping)
		g.Go(func() error { return pg.ReportPoolStats(gctx, pool, 15*time.Second, logger) })
	}

	// ---- Billing flows ----
	bc := billing.NewClient(cfg.Billing, logger)
	registry, err := usecase.DefaultRegistry(usecase.ActionDeps{
		Billing: bc,
		Tr:      tr,
		Log:     logger,
		Dev:     cfg.Runtime.Dev,
		Params: usecase.Params{
			ClientIP:   cfg.Billing.ClientIP,
			PSTNAmount: cfg.Billing.PSTNAmount,
			PayMode:    cfg.Billing.PayMode,
			Lang:       cfg.Billing.Lang,
		},
	})
	if err != nil {
		return fmt.Errorf("flows: %w", err)
	}
	orch := usecase.NewOrchestrator(store, registry, journal, tr, logger)

	// ---- Telegram ----
	var botOpts []tele.Option
	if limiter != nil {
		botOpts = append(botOpts, tele.WithLimiter(limiter))
	}
	bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, tr, logger, botOpts...)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if strings.ToLower(cfg.Bot.Mode) != "polling" {
		logger.Warn().Str("mode", cfg.Bot.Mode).Msg("only polling is implemented; falling back to polling")
	}
	dispatcher := application.NewDispatcher(orch, bot, tr, logger)

	g.Go(func() error { return bot.StartPolling(gctx, dispatcher) })
	g.Go(func() error { return srv.Run(gctx) })

	logger.Info().
		Str("version", version).
		Str("billing", cfg.Billing.BaseURL()).
		Strs("commands", registry.Commands()).
		Msg("bot started")

	err = g.Wait()
	logger.Info().Msg("shutdown complete")
	return err
}

func openJournal(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	logger.Info().Int32("max_conns", pool.Config().MaxConns).Msg("operation journal enabled")
	return pool, nil
}
