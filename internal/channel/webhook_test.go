package channel

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"zathurabot/internal/bus"
)

func testWebhookLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testWebhook(t *testing.T, secret string) (*Webhook, *bus.InMemoryBus) {
	t.Helper()
	b := bus.New(16, testWebhookLogger())
	t.Cleanup(b.Close)
	w := NewWebhook(WebhookConfig{Secret: secret, Logger: testWebhookLogger()})
	w.bus = b
	return w, b
}

const sampleUpdate = `{
	"update_id": 10,
	"message": {
		"message_id": 1,
		"date": 1700000000,
		"chat": {"id": 42, "type": "private"},
		"from": {"id": 7, "is_bot": false, "first_name": "t", "username": "tester"},
		"text": "hello there"
	}
}`

func TestWebhookHandler_PublishesUpdate(t *testing.T) {
	w, b := testWebhook(t, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(sampleUpdate))
	rr := httptest.NewRecorder()
	w.handleUpdate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	select {
	case u := <-b.Subscribe():
		if u.ChatID != 42 || u.Text != "hello there" || u.Username != "tester" {
			t.Errorf("unexpected update: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("update not published")
	}
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	w, _ := testWebhook(t, "")

	req := httptest.NewRequest("GET", "/webhook", nil)
	rr := httptest.NewRecorder()
	w.handleUpdate(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestWebhookHandler_InvalidJSON(t *testing.T) {
	w, _ := testWebhook(t, "")

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()
	w.handleUpdate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestWebhookHandler_SecretMismatch(t *testing.T) {
	w, _ := testWebhook(t, "s3cret")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(sampleUpdate))
	req.Header.Set(secretTokenHeader, "wrong")
	rr := httptest.NewRecorder()
	w.handleUpdate(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
}

func TestWebhookHandler_SecretMatch(t *testing.T) {
	w, _ := testWebhook(t, "s3cret")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(sampleUpdate))
	req.Header.Set(secretTokenHeader, "s3cret")
	rr := httptest.NewRecorder()
	w.handleUpdate(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestWebhookHandler_NonMessageUpdateAcked(t *testing.T) {
	w, _ := testWebhook(t, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"update_id": 11}`))
	rr := httptest.NewRecorder()
	w.handleUpdate(rr, req)

	// Telegram retries non-2xx, so unusable updates are still acknowledged.
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ignored") {
		t.Errorf("expected ignored status, got %s", rr.Body.String())
	}
}

func TestWebhookHandler_Health(t *testing.T) {
	w, _ := testWebhook(t, "")

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	w.handleHealth(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "running") {
		t.Errorf("unexpected health response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookDefaults(t *testing.T) {
	w := NewWebhook(WebhookConfig{Logger: testWebhookLogger()})
	if w.path != "/webhook" || w.port != 8080 {
		t.Errorf("unexpected defaults: path=%s port=%d", w.path, w.port)
	}
}

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("short message", 100)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitMessage_Long(t *testing.T) {
	long := strings.Repeat("word ", 100)
	chunks := splitMessage(long, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk %d too long: %d", i, len(c))
		}
	}
	if strings.Join(chunks, "") != long {
		t.Error("chunks do not reassemble to the original body")
	}
}

func TestSplitMessage_PrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n" + strings.Repeat("b", 40)
	chunks := splitMessage(text, 50)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "a") {
		t.Errorf("expected cut at newline, first chunk ends %q", chunks[0][len(chunks[0])-5:])
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	chunks := splitMessage("", 100)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk for empty, got %d", len(chunks))
	}
}
