package domain

import "time"

// InboundUpdate is one normalized message from the chat platform. It carries
// either a command with argument tokens or free-form text, never both.
// Constructed by a platform adapter, consumed exactly once by the router.
type InboundUpdate struct {
	ChatID   int64
	Username string   // optional sender handle
	Command  string   // command name without the leading slash, empty for free text
	Args     []string // command argument tokens
	Text     string   // free-form text, empty when Command is set
	Received time.Time
}

// RenderMode selects how the platform should render an outbound body.
type RenderMode string

const (
	RenderPlain    RenderMode = ""
	RenderMarkdown RenderMode = "Markdown"
)

// OutboundMessage is a reply handed to the platform sender.
type OutboundMessage struct {
	ChatID             int64
	Body               string
	Render             RenderMode
	DisableLinkPreview bool
	Photo              []byte // when set, Body is delivered as the photo caption
	Typing             bool   // best-effort typing notice; carries no body
}
