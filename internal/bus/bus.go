package bus

import (
	"log/slog"
	"sync"
	"time"

	"zathurabot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based update bus for in-process communication
// between the platform hosts and the dispatch loop.
type InMemoryBus struct {
	inbound  chan domain.InboundUpdate
	outbound func(domain.OutboundMessage)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.InboundUpdate, bufferSize),
		logger:  logger,
	}
}

// Publish enqueues an inbound update for the dispatch loop. Blocks up to 10
// seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(u domain.InboundUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- u:
	default:
		b.logger.Warn("inbound bus full, waiting...", "chat_id", u.ChatID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- u:
			b.logger.Info("update delivered after wait", "chat_id", u.ChatID)
		case <-timer.C:
			b.logger.Error("update dropped: bus full for 10s", "chat_id", u.ChatID)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundUpdate {
	return b.inbound
}

// SendOutbound hands a message to the registered platform sender. Messages
// for a chat are delivered in the order they are sent by one caller, so a
// typing notice issued before the final reply is observed first.
func (b *InMemoryBus) SendOutbound(m domain.OutboundMessage) {
	b.mu.RLock()
	handler := b.outbound
	b.mu.RUnlock()

	if handler == nil {
		b.logger.Warn("no outbound handler registered", "chat_id", m.ChatID)
		return
	}

	handler(m)
}

func (b *InMemoryBus) OnOutbound(handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outbound = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
