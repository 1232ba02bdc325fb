package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"zathurabot/internal/domain"
)

func testBusLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(10, testBusLogger())
	defer b.Close()

	b.Publish(domain.InboundUpdate{ChatID: 42, Text: "hello"})

	select {
	case u := <-b.Subscribe():
		if u.ChatID != 42 || u.Text != "hello" {
			t.Errorf("unexpected update: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestInMemoryBus_OutboundHandler(t *testing.T) {
	b := New(10, testBusLogger())
	defer b.Close()

	var got domain.OutboundMessage
	b.OnOutbound(func(m domain.OutboundMessage) { got = m })

	b.SendOutbound(domain.OutboundMessage{ChatID: 7, Body: "hi"})

	if got.ChatID != 7 || got.Body != "hi" {
		t.Errorf("handler got %+v", got)
	}
}

func TestInMemoryBus_NoHandler(t *testing.T) {
	b := New(10, testBusLogger())
	defer b.Close()

	// Should log and not panic.
	b.SendOutbound(domain.OutboundMessage{ChatID: 1, Body: "dropped"})
}

func TestInMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(10, testBusLogger())
	b.Close()

	// Should not panic on a closed bus.
	b.Publish(domain.InboundUpdate{ChatID: 1})
}

func TestInMemoryBus_OutboundOrder(t *testing.T) {
	b := New(10, testBusLogger())
	defer b.Close()

	var seq []bool
	b.OnOutbound(func(m domain.OutboundMessage) { seq = append(seq, m.Typing) })

	b.SendOutbound(domain.OutboundMessage{ChatID: 1, Typing: true})
	b.SendOutbound(domain.OutboundMessage{ChatID: 1, Body: "final"})

	if len(seq) != 2 || !seq[0] || seq[1] {
		t.Errorf("expected typing then final, got %v", seq)
	}
}
