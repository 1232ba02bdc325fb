package channel

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func commandMessage(text string, cmdLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{ID: 7, UserName: "tester"},
		Date: 1700000000,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: cmdLen},
		},
	}
}

func TestNormalizeUpdate_FreeText(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hello world",
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{ID: 7, UserName: "tester"},
		Date: 1700000000,
	}}

	iu, ok := NormalizeUpdate(u)
	if !ok {
		t.Fatal("expected usable update")
	}
	if iu.ChatID != 42 || iu.Text != "hello world" || iu.Command != "" {
		t.Errorf("unexpected normalization: %+v", iu)
	}
	if iu.Username != "tester" {
		t.Errorf("username lost: %q", iu.Username)
	}
}

func TestNormalizeUpdate_Command(t *testing.T) {
	u := tgbotapi.Update{Message: commandMessage("/generate neon city", len("/generate"))}

	iu, ok := NormalizeUpdate(u)
	if !ok {
		t.Fatal("expected usable update")
	}
	if iu.Command != "generate" {
		t.Errorf("expected command generate, got %q", iu.Command)
	}
	if len(iu.Args) != 2 || iu.Args[0] != "neon" || iu.Args[1] != "city" {
		t.Errorf("unexpected args: %v", iu.Args)
	}
	if iu.Text != "" {
		t.Errorf("command update should carry no free text, got %q", iu.Text)
	}
}

func TestNormalizeUpdate_CommandNoArgs(t *testing.T) {
	u := tgbotapi.Update{Message: commandMessage("/generate", len("/generate"))}

	iu, ok := NormalizeUpdate(u)
	if !ok {
		t.Fatal("expected usable update")
	}
	if iu.Command != "generate" || len(iu.Args) != 0 {
		t.Errorf("unexpected normalization: %+v", iu)
	}
}

func TestNormalizeUpdate_NoMessage(t *testing.T) {
	if _, ok := NormalizeUpdate(tgbotapi.Update{}); ok {
		t.Error("update without message should not be usable")
	}
}

func TestNormalizeUpdate_NoFrom(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "anonymous",
		Chat: &tgbotapi.Chat{ID: 1},
		Date: 1700000000,
	}}

	iu, ok := NormalizeUpdate(u)
	if !ok {
		t.Fatal("sender is optional")
	}
	if iu.Username != "" {
		t.Errorf("expected empty username, got %q", iu.Username)
	}
}
