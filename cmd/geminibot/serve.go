package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/yetazero/GeminiTelegramBot/internal/bot"
	"github.com/yetazero/GeminiTelegramBot/internal/clock"
	"github.com/yetazero/GeminiTelegramBot/internal/config"
	"github.com/yetazero/GeminiTelegramBot/internal/gemini"
	"github.com/yetazero/GeminiTelegramBot/internal/guard"
	"github.com/yetazero/GeminiTelegramBot/internal/history"
	"github.com/yetazero/GeminiTelegramBot/internal/logger"
	"github.com/yetazero/GeminiTelegramBot/internal/server"
	"github.com/yetazero/GeminiTelegramBot/internal/session"
	"github.com/yetazero/GeminiTelegramBot/internal/tier"
	"github.com/yetazero/GeminiTelegramBot/internal/version"
	"github.com/yetazero/GeminiTelegramBot/internal/watchdog"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideClock,
			provideLedger,
			provideSessionStore,
			provideHistoryStore,
			provideTierRegistry,
			provideGeminiClient,
			provideBot,
			provideServer,
			provideWatchdog,
		),
		fx.Invoke(
			startBot,
			startServer,
			startWatchdog,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideClock() clock.Clock { return clock.System{} }

func provideLedger(log *slog.Logger, cfg config.Config) *guard.Ledger {
	return guard.NewLedger(log, guard.Policy{
		RateWindow:      cfg.Policy.RateWindow(),
		RateQuota:       cfg.Policy.RateQuota,
		Cooldown:        cfg.Policy.Cooldown(),
		RepeatThreshold: cfg.Policy.RepeatThreshold,
	})
}

func provideSessionStore(log *slog.Logger, cfg config.Config) *session.Store {
	return session.NewStore(log, cfg.Policy.SessionExpiry())
}

func provideHistoryStore(log *slog.Logger, cfg config.Config) (*history.Store, error) {
	return history.NewStore(log,
		cfg.Paths.HistoryDir,
		cfg.Paths.FullHistoryDir,
		cfg.Policy.StandardTurnCap(),
		cfg.Policy.ExtendedTurnCap(),
	)
}

func provideTierRegistry(log *slog.Logger, cfg config.Config) *tier.Registry {
	return tier.Load(log, cfg.Paths.TierRegistry, cfg.AdminUserID)
}

func provideGeminiClient(log *slog.Logger, cfg config.Config) *gemini.Client {
	return gemini.NewClient(log, cfg.GeminiAPIKey, 60*time.Second)
}

func provideBot(log *slog.Logger, cfg config.Config, clk clock.Clock, ledger *guard.Ledger, sessions *session.Store, histories *history.Store, tiers *tier.Registry, model *gemini.Client) (*bot.Bot, error) {
	return bot.New(log, cfg, clk, ledger, sessions, histories, tiers, model)
}

func provideServer(log *slog.Logger, cfg config.Config, sessions *session.Store) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, sessions)
}

func provideWatchdog(log *slog.Logger, cfg config.Config) *watchdog.Watchdog {
	return watchdog.New(log, cfg.Policy.RestartInterval())
}

func startBot(lc fx.Lifecycle, log *slog.Logger, b *bot.Bot) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			log.Info("starting geminibot", slog.String("version", version.GetInfo()))
			go b.Run(ctx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("ops server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func startWatchdog(lc fx.Lifecycle, wd *watchdog.Watchdog) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return wd.Start() },
		OnStop:  func(_ context.Context) error { wd.Stop(); return nil },
	})
}
