package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:             "info",
			MaxConcurrentUpdates: 5,
		},
		Telegram: TelegramConfig{
			ParseMode: "Markdown",
		},
		Gemini: GeminiConfig{
			APIBase:    "https://generativelanguage.googleapis.com/v1beta/models",
			TextModel:  "gemini-2.5-flash",
			ImageModel: "imagen-3.0-generate-002",
		},
		Webhook: WebhookConfig{
			Port: 8080,
			Path: "/webhook",
		},
		Store: StoreConfig{
			Enabled: true,
			DBPath:  "~/.zathurabot/deliveries.db",
		},
	}
}
