// Package channel holds the platform adapters. Both hosts, long poll and
// webhook, normalize wire updates to domain.InboundUpdate before anything
// reaches the dispatch loop, and both deliver replies through the same
// Telegram sender.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zathurabot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen   = 4000
	telegramPollTimeout = 30 // seconds, long-poll hold time
)

// Telegram is the platform adapter: inbound long polling and the outbound
// sender shared by both hosting modes.
type Telegram struct {
	token     string
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.UpdateBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:     cfg.Token,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

// Connect authenticates against the Telegram API.
func (t *Telegram) Connect() error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return nil
}

// Attach connects to the Telegram API and registers the outbound sender on
// the bus. Must be called before Poll or a webhook host starts publishing.
func (t *Telegram) Attach(bus domain.UpdateBus) error {
	if t.bot == nil {
		if err := t.Connect(); err != nil {
			return err
		}
	}
	t.bus = bus
	bus.OnOutbound(t.deliver)
	return nil
}

// Poll runs the long-poll host until the context is cancelled.
func (t *Telegram) Poll(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram polling stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if iu, ok := NormalizeUpdate(update); ok {
				t.bus.Publish(iu)
			}
		}
	}
}

// SetWebhook registers the public callback URL with Telegram.
func (t *Telegram) SetWebhook(publicURL string) error {
	wh, err := tgbotapi.NewWebhook(publicURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := t.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	t.logger.Info("webhook registered", "url", publicURL)
	return nil
}

// DeleteWebhook deregisters the callback, dropping queued updates.
func (t *Telegram) DeleteWebhook() error {
	if _, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	t.logger.Info("webhook deleted")
	return nil
}

// NormalizeUpdate maps a wire update to the shape the router consumes.
// Updates without a usable message (edits, callbacks, channel posts) are
// reported as not ok and ignored upstream.
func NormalizeUpdate(update tgbotapi.Update) (domain.InboundUpdate, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return domain.InboundUpdate{}, false
	}

	iu := domain.InboundUpdate{
		ChatID:   m.Chat.ID,
		Received: time.Unix(int64(m.Date), 0),
	}
	if m.From != nil {
		iu.Username = m.From.UserName
	}

	if m.IsCommand() {
		iu.Command = m.Command()
		if args := strings.TrimSpace(m.CommandArguments()); args != "" {
			iu.Args = strings.Fields(args)
		}
		return iu, true
	}

	iu.Text = m.Text
	return iu, true
}

// deliver is the bus outbound handler. Typing notices and photo uploads are
// handled here; everything else goes through the chunked text sender.
func (t *Telegram) deliver(msg domain.OutboundMessage) {
	if msg.Typing {
		action := tgbotapi.NewChatAction(msg.ChatID, tgbotapi.ChatTyping)
		if _, err := t.bot.Request(action); err != nil {
			// Best effort only.
			t.logger.Debug("typing notice failed", "chat_id", msg.ChatID, "err", err)
		}
		return
	}

	if len(msg.Photo) > 0 {
		t.sendPhoto(msg)
		return
	}

	t.sendMessage(msg)
}

func (t *Telegram) sendPhoto(msg domain.OutboundMessage) {
	photo := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileBytes{Name: "zathura.png", Bytes: msg.Photo})
	photo.Caption = msg.Body
	if _, err := t.bot.Send(photo); err != nil {
		t.logger.Error("photo send failed", "chat_id", msg.ChatID, "err", err)
		// Deliver at least the caption so the user is not left hanging.
		t.sendMessage(domain.OutboundMessage{ChatID: msg.ChatID, Body: msg.Body})
	}
}

// sendMessage splits long bodies at the platform limit, preferring newline
// boundaries.
func (t *Telegram) sendMessage(msg domain.OutboundMessage) {
	for _, chunk := range splitMessage(msg.Body, telegramMaxMsgLen) {
		t.sendChunk(msg, chunk)
	}
}

// splitMessage cuts text into chunks of at most maxLen, cutting at the last
// newline when one falls in the second half of the chunk.
func splitMessage(text string, maxLen int) []string {
	if text == "" {
		return []string{""}
	}
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// sendChunk sends one message chunk. A markup parse error degrades the body
// to a plain-text send instead of dropping the reply; any other delivery
// failure is logged and the update is considered handled, no resend.
func (t *Telegram) sendChunk(out domain.OutboundMessage, text string) {
	msg := tgbotapi.NewMessage(out.ChatID, text)
	msg.DisableWebPagePreview = out.DisableLinkPreview
	if out.Render == domain.RenderMarkdown {
		msg.ParseMode = t.parseMode
	}

	_, err := t.bot.Send(msg)
	if err == nil {
		return
	}

	if msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		t.logger.Warn("telegram markup parse error, sending as plain text",
			"err", err, "parse_mode", t.parseMode,
		)
		plain := tgbotapi.NewMessage(out.ChatID, text)
		plain.DisableWebPagePreview = out.DisableLinkPreview
		if _, err = t.bot.Send(plain); err == nil {
			return
		}
	}

	t.logger.Error("telegram send failed", "chat_id", out.ChatID, "err", err)
}
