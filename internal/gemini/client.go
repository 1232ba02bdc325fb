// Package gemini adapts the two generation backends: text generation with
// Google Search grounding, and image generation. Both calls are single
// attempt, bounded by their own timeout, and map every transport or
// structural failure to a typed result instead of an error.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"zathurabot/internal/domain"
)

const (
	defaultAPIBase    = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "imagen-3.0-generate-002"

	// Image synthesis is slower upstream, so it gets the longer budget.
	textTimeout  = 15 * time.Second
	imageTimeout = 30 * time.Second

	maxSources = 3
)

// Failure reasons carried in GenerationResult. These go to server logs; the
// formatter replaces them with a short apology before anything reaches users.
const (
	ReasonNotConfigured    = "generation backend not configured"
	ReasonUnreachable      = "backend unreachable or rejected request"
	ReasonEmptyResponse    = "empty response"
	ReasonNoImageData      = "no image data returned"
	ReasonImageUnreachable = "image backend unreachable"
)

// DefaultSystemPrompt is the fixed style instruction sent with every text
// request. Overridable through the prompts file.
const DefaultSystemPrompt = "You are Zathura Companion, an intelligent AI assistant. " +
	"Respond concisely and professionally. If the request requires up-to-date " +
	"knowledge or real-time information, use Google Search grounding."

// DefaultImageStyle is prefixed to every image prompt. A product choice to
// bias output style, not a correctness requirement.
const DefaultImageStyle = "A vivid, richly detailed digital illustration of "

// Client calls the generation backends. It holds no mutable state between
// invocations and is safe for concurrent use.
type Client struct {
	apiKey      string
	apiBase     string
	textModel   string
	imageModel  string
	system      string
	imageStyle  string
	textClient  *http.Client
	imageClient *http.Client
	logger      *slog.Logger
}

type Config struct {
	APIKey     string
	APIBase    string
	TextModel  string
	ImageModel string
	System     string // system instruction for text generation
	ImageStyle string // stylistic prefix for image prompts
	Logger     *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultImageModel
	}
	if cfg.System == "" {
		cfg.System = DefaultSystemPrompt
	}
	if cfg.ImageStyle == "" {
		cfg.ImageStyle = DefaultImageStyle
	}
	return &Client{
		apiKey:      cfg.APIKey,
		apiBase:     cfg.APIBase,
		textModel:   cfg.TextModel,
		imageModel:  cfg.ImageModel,
		system:      cfg.System,
		imageStyle:  cfg.ImageStyle,
		textClient:  newHTTPClient(textTimeout),
		imageClient: newHTTPClient(imageTimeout),
		logger:      cfg.Logger,
	}
}

type genPart struct {
	Text string `json:"text"`
}

type genContent struct {
	Parts []genPart `json:"parts"`
}

type genTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type genRequest struct {
	Contents          []genContent `json:"contents"`
	Tools             []genTool    `json:"tools,omitempty"`
	SystemInstruction *genContent  `json:"systemInstruction,omitempty"`
}

type genWebSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type genAttribution struct {
	Web *genWebSource `json:"web"`
}

type genGrounding struct {
	GroundingAttributions []genAttribution `json:"groundingAttributions"`
}

type genCandidate struct {
	Content           genContent    `json:"content"`
	GroundingMetadata *genGrounding `json:"groundingMetadata"`
}

type genResponse struct {
	Candidates []genCandidate `json:"candidates"`
}

// GenerateText sends the prompt with the fixed system instruction and search
// grounding enabled. Grounding sources are optional enrichment: their absence
// never fails the call.
func (c *Client) GenerateText(ctx context.Context, prompt string) domain.GenerationResult {
	if c.apiKey == "" {
		c.logger.Warn("text generation skipped: no API key configured")
		return domain.FailedResult(domain.GenerationText, ReasonNotConfigured)
	}

	body := genRequest{
		Contents:          []genContent{{Parts: []genPart{{Text: prompt}}}},
		Tools:             []genTool{{}},
		SystemInstruction: &genContent{Parts: []genPart{{Text: c.system}}},
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", c.apiBase, c.textModel)
	resp, ok := c.post(ctx, c.textClient, endpoint, body)
	if !ok {
		return domain.FailedResult(domain.GenerationText, ReasonUnreachable)
	}
	defer resp.Body.Close()

	var decoded genResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Error("text response decode failed", "endpoint", endpoint, "err", err)
		return domain.FailedResult(domain.GenerationText, ReasonEmptyResponse)
	}

	if len(decoded.Candidates) == 0 {
		return domain.FailedResult(domain.GenerationText, ReasonEmptyResponse)
	}
	cand := decoded.Candidates[0]
	if len(cand.Content.Parts) == 0 || cand.Content.Parts[0].Text == "" {
		return domain.FailedResult(domain.GenerationText, ReasonEmptyResponse)
	}

	return domain.TextResult(cand.Content.Parts[0].Text, collectSources(cand.GroundingMetadata, maxSources))
}

type imgInstance struct {
	Prompt string `json:"prompt"`
}

type imgParameters struct {
	SampleCount int `json:"sampleCount"`
}

type imgRequest struct {
	Instances  []imgInstance `json:"instances"`
	Parameters imgParameters `json:"parameters"`
}

type imgPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type imgResponse struct {
	Predictions []imgPrediction `json:"predictions"`
}

// GenerateImage wraps the prompt in the stylistic template and requests a
// single sample. Multi-candidate responses are not supported.
func (c *Client) GenerateImage(ctx context.Context, prompt string) domain.GenerationResult {
	if c.apiKey == "" {
		c.logger.Warn("image generation skipped: no API key configured")
		return domain.FailedResult(domain.GenerationImage, ReasonNotConfigured)
	}

	body := imgRequest{
		Instances:  []imgInstance{{Prompt: c.imageStyle + prompt}},
		Parameters: imgParameters{SampleCount: 1},
	}

	endpoint := fmt.Sprintf("%s/%s:predict", c.apiBase, c.imageModel)
	resp, ok := c.post(ctx, c.imageClient, endpoint, body)
	if !ok {
		return domain.FailedResult(domain.GenerationImage, ReasonImageUnreachable)
	}
	defer resp.Body.Close()

	var decoded imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Error("image response decode failed", "endpoint", endpoint, "err", err)
		return domain.FailedResult(domain.GenerationImage, ReasonNoImageData)
	}

	if len(decoded.Predictions) == 0 || decoded.Predictions[0].BytesBase64Encoded == "" {
		return domain.FailedResult(domain.GenerationImage, ReasonNoImageData)
	}

	payload, err := base64.StdEncoding.DecodeString(decoded.Predictions[0].BytesBase64Encoded)
	if err != nil {
		c.logger.Error("image payload decode failed", "endpoint", endpoint, "err", err)
		return domain.FailedResult(domain.GenerationImage, ReasonNoImageData)
	}

	return domain.ImageResult(payload)
}

// post issues one JSON POST and reports whether a 2xx response came back.
// Transport errors and non-2xx statuses are logged with the endpoint and
// status so failures stay diagnosable without reaching the caller.
// The per-kind timeout lives on the http.Client, so it also covers reading
// the response body after post returns.
func (c *Client) post(ctx context.Context, client *http.Client, endpoint string, body any) (*http.Response, bool) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		c.logger.Error("request marshal failed", "endpoint", endpoint, "err", err)
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+c.apiKey, bytes.NewReader(jsonBody))
	if err != nil {
		c.logger.Error("request build failed", "endpoint", endpoint, "err", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error("backend request failed", "endpoint", endpoint, "err", err)
		return nil, false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Error("backend rejected request",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", string(detail),
		)
		return nil, false
	}

	return resp, true
}

// collectSources keeps attributions carrying both a title and a URI,
// deduplicates by URI, and caps the list preserving first-seen order.
func collectSources(meta *genGrounding, limit int) []domain.Source {
	if meta == nil {
		return nil
	}

	seen := make(map[string]bool, limit)
	var sources []domain.Source
	for _, attr := range meta.GroundingAttributions {
		if attr.Web == nil || attr.Web.Title == "" || attr.Web.URI == "" {
			continue
		}
		if seen[attr.Web.URI] {
			continue
		}
		seen[attr.Web.URI] = true
		sources = append(sources, domain.Source{Title: attr.Web.Title, URI: attr.Web.URI})
		if len(sources) == limit {
			break
		}
	}
	return sources
}
