// Package dispatch hosts the update pipeline: receive an update, classify
// it, invoke at most one generation call, and send exactly one final reply
// for every non-ignored update.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"zathurabot/internal/domain"
	"zathurabot/internal/format"
	"zathurabot/internal/metrics"
	"zathurabot/internal/router"
)

const defaultConcurrency = 5

// Loop consumes inbound updates and processes each in its own goroutine,
// bounded by a semaphore. Unrelated updates are never serialized.
type Loop struct {
	gen         domain.Generator
	bus         domain.UpdateBus
	deliveries  domain.DeliveryLog // optional
	logger      *slog.Logger
	concurrency int
}

// LoopConfig holds the loop's dependencies. Everything is injected; the loop
// keeps no global state.
type LoopConfig struct {
	Generator   domain.Generator
	Bus         domain.UpdateBus
	Deliveries  domain.DeliveryLog
	Logger      *slog.Logger
	Concurrency int // max parallel updates (default 5)
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Loop{
		gen:         cfg.Generator,
		bus:         cfg.Bus,
		deliveries:  cfg.Deliveries,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound updates until the context is cancelled or the bus
// closes. A fault in one update's handling never stops the loop.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("dispatch loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("dispatch loop stopping")
			return
		case u, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, dispatch loop stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				l.logger.Info("dispatch loop stopping")
				return
			}
			go func(u domain.InboundUpdate) {
				defer func() { <-sem }()
				l.processUpdate(ctx, u)
			}(u)
		}
	}
}

// processUpdate walks one update through classify, invoke, and reply. Panics
// are caught here so a single bad update degrades to an apology instead of
// taking the loop down.
func (l *Loop) processUpdate(ctx context.Context, u domain.InboundUpdate) {
	start := time.Now()
	metrics.UpdatesReceived.Inc()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	action := router.Classify(u)

	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			l.logger.Error("panic while handling update", "chat_id", u.ChatID, "action", action.Kind.String(), "panic", r)
			l.reply(u, action, start, format.Apology(u.ChatID), "failed")
		}
	}()

	l.logger.Info("update classified",
		"chat_id", u.ChatID,
		"action", action.Kind.String(),
	)

	switch action.Kind {
	case domain.ActionIgnore:
		metrics.UpdatesIgnored.Inc()
		l.record(u, action, start, "ignored")

	case domain.ActionWelcome:
		l.reply(u, action, start, format.Welcome(u.ChatID), "delivered")

	case domain.ActionUsageError:
		// No backend call is made for an empty prompt.
		l.reply(u, action, start, format.Usage(u.ChatID), "delivered")

	case domain.ActionGenerateText:
		l.bus.SendOutbound(format.Typing(u.ChatID))
		metrics.TextGenerations.Inc()
		res := l.gen.GenerateText(ctx, action.Prompt)
		l.finish(u, action, start, format.TextReply(u.ChatID, res), res)

	case domain.ActionGenerateImage:
		l.bus.SendOutbound(format.Typing(u.ChatID))
		metrics.ImageGenerations.Inc()
		res := l.gen.GenerateImage(ctx, action.Prompt)
		l.finish(u, action, start, format.ImageReply(u.ChatID, action.Prompt, res), res)
	}
}

func (l *Loop) finish(u domain.InboundUpdate, action domain.Action, start time.Time, msg domain.OutboundMessage, res domain.GenerationResult) {
	outcome := "delivered"
	if res.Failed() {
		outcome = "failed"
		metrics.GenerationFailures.Inc()
		l.logger.Warn("generation failed",
			"chat_id", u.ChatID,
			"action", action.Kind.String(),
			"reason", res.FailureReason,
		)
	}
	l.reply(u, action, start, msg, outcome)
}

// reply sends the single final message for this update and records delivery.
func (l *Loop) reply(u domain.InboundUpdate, action domain.Action, start time.Time, msg domain.OutboundMessage, outcome string) {
	metrics.UpdateLatency.Observe(time.Since(start).Seconds())
	l.bus.SendOutbound(msg)
	metrics.RepliesSent.Inc()
	l.record(u, action, start, outcome)
}

// record writes the delivery log entry. Best effort: failures are logged and
// otherwise ignored.
func (l *Loop) record(u domain.InboundUpdate, action domain.Action, start time.Time, outcome string) {
	if l.deliveries == nil {
		return
	}
	rec := domain.DeliveryRecord{
		ChatID:    u.ChatID,
		Action:    action.Kind.String(),
		Outcome:   outcome,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.deliveries.RecordDelivery(ctx, rec); err != nil {
		l.logger.Warn("delivery log write failed", "err", err)
	}
}
