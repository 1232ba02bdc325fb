// Package format assembles platform-safe outbound messages from handler
// actions and generation results. Technical failure detail never appears in
// a body produced here; callers log it and users get the fixed apology.
package format

import (
	"fmt"
	"strings"
	"unicode"

	"zathurabot/internal/domain"
)

const welcomeBody = "🛰️ *Welcome to Zathura Companion!*\n\n" +
	"I am your AI assistant. I can answer any question you have.\n\n" +
	"🤖 *To ask me a question:* just send your message as plain text.\n" +
	"🎨 *To generate an image:* /generate <description>"

const usageBody = "🎨 Please provide a prompt, e.g. /generate a neon city at night."

const apologyBody = "😔 Sorry, I couldn't process that right now. Please try again in a moment."

// Welcome builds the fixed onboarding reply. No backend call involved.
func Welcome(chatID int64) domain.OutboundMessage {
	return domain.OutboundMessage{
		ChatID:             chatID,
		Body:               welcomeBody,
		Render:             domain.RenderMarkdown,
		DisableLinkPreview: true,
	}
}

// Usage builds the fixed reply for /generate without a prompt.
func Usage(chatID int64) domain.OutboundMessage {
	return domain.OutboundMessage{
		ChatID:             chatID,
		Body:               usageBody,
		DisableLinkPreview: true,
	}
}

// Apology builds the generic failure reply.
func Apology(chatID int64) domain.OutboundMessage {
	return domain.OutboundMessage{
		ChatID:             chatID,
		Body:               apologyBody,
		DisableLinkPreview: true,
	}
}

// TextReply builds the reply for a text generation result. Sources, already
// deduplicated and capped by the client, are appended as a numbered list.
func TextReply(chatID int64, res domain.GenerationResult) domain.OutboundMessage {
	if res.Failed() {
		return Apology(chatID)
	}

	var b strings.Builder
	b.WriteString(scrub(res.Text))
	if len(res.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for i, s := range res.Sources {
			fmt.Fprintf(&b, "\n%d. [%s](%s)", i+1, linkTitle(s.Title), s.URI)
		}
	}

	return domain.OutboundMessage{
		ChatID:             chatID,
		Body:               b.String(),
		Render:             domain.RenderMarkdown,
		DisableLinkPreview: true,
	}
}

// ImageReply builds the reply for an image generation result. The artifact
// travels as a photo attachment; the caption echoes the prompt back for
// confirmation.
func ImageReply(chatID int64, prompt string, res domain.GenerationResult) domain.OutboundMessage {
	if res.Failed() {
		return Apology(chatID)
	}

	return domain.OutboundMessage{
		ChatID:             chatID,
		Body:               "🖼 Generated image for: " + scrub(prompt),
		Photo:              res.Image,
		DisableLinkPreview: true,
	}
}

// Typing builds the best-effort working notice for a chat.
func Typing(chatID int64) domain.OutboundMessage {
	return domain.OutboundMessage{ChatID: chatID, Typing: true}
}

// scrub drops control characters the markup renderer would reject outright,
// keeping newlines and tabs.
func scrub(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// linkTitle keeps a source title usable inside [title](uri) markup.
func linkTitle(s string) string {
	replacer := strings.NewReplacer("[", "", "]", "", "(", "", ")", "", "\n", " ")
	return strings.TrimSpace(replacer.Replace(scrub(s)))
}
