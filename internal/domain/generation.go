package domain

import "context"

type GenerationKind string

const (
	GenerationText  GenerationKind = "text"
	GenerationImage GenerationKind = "image"
)

// GenerationRequest is a prompt plus the kind of backend call it needs.
// Value type, no identity beyond its contents.
type GenerationRequest struct {
	Kind   GenerationKind
	Prompt string
}

// Source is one grounding citation attached to a text result.
type Source struct {
	Title string
	URI   string
}

// GenerationResult is the outcome of one backend call: text with optional
// sources, an image payload, or a failure. A non-empty FailureReason marks
// the result failed; the reason is for server logs, never shown to users.
type GenerationResult struct {
	Kind          GenerationKind
	Text          string
	Sources       []Source
	Image         []byte
	FailureReason string
}

func (r GenerationResult) Failed() bool { return r.FailureReason != "" }

func TextResult(body string, sources []Source) GenerationResult {
	return GenerationResult{Kind: GenerationText, Text: body, Sources: sources}
}

func ImageResult(payload []byte) GenerationResult {
	return GenerationResult{Kind: GenerationImage, Image: payload}
}

func FailedResult(kind GenerationKind, reason string) GenerationResult {
	return GenerationResult{Kind: kind, FailureReason: reason}
}

// Generator is the interface for the generation backend adapters. Both calls
// are stateless request/response transformations, safe to invoke concurrently.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) GenerationResult
	GenerateImage(ctx context.Context, prompt string) GenerationResult
}
