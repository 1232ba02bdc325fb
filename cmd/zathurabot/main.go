package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"zathurabot/internal/channel"
	"zathurabot/internal/config"
	"zathurabot/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "zathurabot",
		Short: "Zathura Companion: a Telegram relay bot for Gemini text and image generation",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.zathurabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(pollCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return cfg, nil
}

// requireBotToken enforces the one fatal config condition: without the bot
// credential the process must not serve.
func requireBotToken(cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set BOT_TOKEN and reference it as ${BOT_TOKEN} in config)")
	}
	return nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg := config.Defaults()
			cfg.Telegram.Token = "${BOT_TOKEN}"
			cfg.Gemini.APIKey = "${GEMINI_API_KEY:-}"
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Register the public callback URL with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireBotToken(cfg); err != nil {
				return err
			}
			if cfg.Webhook.PublicURL == "" {
				return fmt.Errorf("webhook.publicUrl is required to register a webhook")
			}

			tg := channel.NewTelegram(channel.TelegramConfig{
				Token:  cfg.Telegram.Token,
				Logger: logger,
			})
			if err := tg.Connect(); err != nil {
				return err
			}
			return tg.SetWebhook(cfg.Webhook.PublicURL + cfg.Webhook.Path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Deregister the webhook, dropping queued updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireBotToken(cfg); err != nil {
				return err
			}

			tg := channel.NewTelegram(channel.TelegramConfig{
				Token:  cfg.Telegram.Token,
				Logger: logger,
			})
			if err := tg.Connect(); err != nil {
				return err
			}
			return tg.DeleteWebhook()
		},
	})

	return cmd
}

func statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration state and recent deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Printf("zathurabot v%s\n", version)
			fmt.Printf("bot token:      %s\n", setOrMissing(cfg.Telegram.Token))
			fmt.Printf("gemini api key: %s\n", setOrMissing(cfg.Gemini.APIKey))
			fmt.Printf("webhook url:    %s\n", setOrMissing(cfg.Webhook.PublicURL))

			if !cfg.Store.Enabled {
				return nil
			}
			log, err := store.NewSQLiteLog(cfg.Store.DBPath, logger)
			if err != nil {
				return err
			}
			defer log.Close()

			recs, err := log.RecentDeliveries(context.Background(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("\nrecent deliveries (%d):\n", len(recs))
			for _, r := range recs {
				fmt.Printf("  %s  chat=%d  %-14s %-9s %dms\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.ChatID, r.Action, r.Outcome, r.LatencyMs)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deliveries to show")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func setOrMissing(v string) string {
	if v == "" {
		return "(not set)"
	}
	return "configured"
}
