package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"zathurabot/internal/bus"
	"zathurabot/internal/channel"
	"zathurabot/internal/config"
	"zathurabot/internal/dispatch"
	"zathurabot/internal/domain"
	"zathurabot/internal/gemini"
	"zathurabot/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// runtime holds everything a host mode needs once the pipeline is wired.
type runtime struct {
	cfg        *config.Config
	bus        *bus.InMemoryBus
	loop       *dispatch.Loop
	telegram   *channel.Telegram
	deliveries *store.SQLiteLog
}

// buildRuntime wires bus, generator, delivery log, dispatch loop and the
// Telegram sender. The bot token is mandatory; a missing Gemini key is only
// logged, the generator then answers with its not-configured failure.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	if err := requireBotToken(cfg); err != nil {
		return nil, err
	}
	if cfg.Gemini.APIKey == "" {
		logger.Warn("gemini.apiKey is not set, generation requests will fail gracefully")
	}

	prompts, err := config.LoadPrompts(cfg.General.PromptsPath)
	if err != nil {
		return nil, err
	}

	b := bus.New(100, logger)

	// A disabled store must leave the interface nil, not a typed nil.
	var deliveries *store.SQLiteLog
	var deliveryLog domain.DeliveryLog
	if cfg.Store.Enabled {
		deliveries, err = store.NewSQLiteLog(cfg.Store.DBPath, logger)
		if err != nil {
			return nil, err
		}
		deliveryLog = deliveries
	}

	gen := gemini.New(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		APIBase:    cfg.Gemini.APIBase,
		TextModel:  cfg.Gemini.TextModel,
		ImageModel: cfg.Gemini.ImageModel,
		System:     prompts.SystemInstruction,
		ImageStyle: prompts.ImageStyle,
		Logger:     logger,
	})

	loop := dispatch.NewLoop(dispatch.LoopConfig{
		Generator:   gen,
		Bus:         b,
		Deliveries:  deliveryLog,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentUpdates,
	})

	tg := channel.NewTelegram(channel.TelegramConfig{
		Token:     cfg.Telegram.Token,
		ParseMode: cfg.Telegram.ParseMode,
		Logger:    logger,
	})
	if err := tg.Attach(b); err != nil {
		return nil, err
	}

	return &runtime{
		cfg:        cfg,
		bus:        b,
		loop:       loop,
		telegram:   tg,
		deliveries: deliveries,
	}, nil
}

func (rt *runtime) close() {
	rt.bus.Close()
	if rt.deliveries != nil {
		rt.deliveries.Close()
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wh := channel.NewWebhook(channel.WebhookConfig{
				Port:   cfg.Webhook.Port,
				Path:   cfg.Webhook.Path,
				Secret: cfg.Webhook.Secret,
				Logger: logger,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				rt.loop.Run(gctx)
				return nil
			})
			g.Go(func() error {
				return wh.Start(gctx, rt.bus)
			})

			logger.Info("zathurabot serving", "version", version, "port", cfg.Webhook.Port)
			return g.Wait()
		},
	}
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the long-polling host (no public URL needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Polling conflicts with a registered webhook; drop it first.
			if err := rt.telegram.DeleteWebhook(); err != nil {
				logger.Warn("could not clear webhook before polling", "err", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				rt.loop.Run(gctx)
				return nil
			})
			g.Go(func() error {
				return rt.telegram.Poll(gctx)
			})

			logger.Info("zathurabot polling", "version", version)
			return g.Wait()
		},
	}
}
