package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"zathurabot/internal/domain"
	"zathurabot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const healthBody = "Zathura Companion Bot is running."

// secretTokenHeader is sent by Telegram when the webhook was registered with
// a secret token.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookConfig configures the webhook host.
type WebhookConfig struct {
	Port   int
	Path   string // webhook URL path (default: /webhook)
	Secret string // optional secret token to verify update origin
	Logger *slog.Logger
}

// Webhook is the push host: it accepts update POSTs from the platform and
// publishes them to the bus. Replies go out through the Telegram sender
// attached to the same bus.
type Webhook struct {
	port   int
	path   string
	secret string
	bus    domain.UpdateBus
	logger *slog.Logger
	server *http.Server
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &Webhook{
		port:   cfg.Port,
		path:   cfg.Path,
		secret: cfg.Secret,
		logger: cfg.Logger,
	}
}

// Start runs the webhook HTTP server until the context is cancelled.
func (w *Webhook) Start(ctx context.Context, bus domain.UpdateBus) error {
	w.bus = bus

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleUpdate)
	mux.HandleFunc("/healthz", w.handleHealth)
	mux.Handle("/metrics", metrics.Default.Handler())

	w.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", w.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "port", w.port, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(rw, healthBody)
}

// handleUpdate accepts one platform update. Telegram retries on non-2xx, so
// updates that merely carry nothing actionable are still acknowledged.
func (w *Webhook) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if w.secret != "" {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(w.secret)) != 1 {
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	iu, ok := NormalizeUpdate(update)
	if !ok {
		w.ack(rw, "ignored")
		return
	}

	w.logger.Info("webhook update received",
		"chat_id", iu.ChatID,
		"command", iu.Command,
		"text_len", len(iu.Text),
	)

	w.bus.Publish(iu)
	w.ack(rw, "ok")
}

func (w *Webhook) ack(rw http.ResponseWriter, status string) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": status})
}
