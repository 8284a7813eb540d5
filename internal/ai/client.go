package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Analyzer runs a decision analysis against a generative model and returns
// the normalized verdict.
type Analyzer interface {
	Enabled() bool
	Analyze(ctx context.Context, spec DecisionSpec) (AnalysisResult, error)
}

// Config holds model provider configuration parameters. The credential is
// resolved at startup and injected here; the pipeline never reads
// process-wide state on its own.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// GeminiClient implements Analyzer against the Gemini generateContent REST
// API. It is the primary provider because it accepts inline binary
// attachments alongside the prompt text.
type GeminiClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewGeminiClient constructs a GeminiClient if the configuration is valid.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *GeminiClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Analyze sends the decision spec to the model and normalizes the response.
// The outbound call is the single suspension point; post-processing is
// strictly sequential and performs no retries.
func (c *GeminiClient) Analyze(ctx context.Context, spec DecisionSpec) (AnalysisResult, error) {
	if c == nil || !c.Enabled() {
		return AnalysisResult{}, ErrDisabled
	}
	raw, err := c.invoke(ctx, spec)
	if err != nil {
		return AnalysisResult{}, err
	}
	return ResultFromResponse(raw)
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

// geminiResponse wraps the decoded provider payload. Text materializes the
// candidate text the way the SDK accessor would, so the extractor's first
// strategy handles it; the untouched payload stays available for the
// serialization fallback.
type geminiResponse struct {
	Payload map[string]any
}

func (r *geminiResponse) Text() (string, error) {
	candidates, ok := r.Payload["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	first, ok := candidates[0].(map[string]any)
	if !ok {
		return "", errors.New("malformed candidate")
	}
	content, ok := first["content"].(map[string]any)
	if !ok {
		return "", errors.New("candidate has no content")
	}
	parts, ok := content["parts"].([]any)
	if !ok {
		return "", errors.New("content has no parts")
	}
	builder := &strings.Builder{}
	for _, part := range parts {
		if object, ok := part.(map[string]any); ok {
			if text, ok := object["text"].(string); ok {
				builder.WriteString(text)
			}
		}
	}
	if builder.Len() == 0 {
		return "", errors.New("no text parts in candidate")
	}
	return builder.String(), nil
}

func (r *geminiResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Payload)
}

func (c *GeminiClient) invoke(ctx context.Context, spec DecisionSpec) (any, error) {
	payload := c.buildRequest(spec)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("gemini status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &geminiResponse{Payload: decoded}, nil
}

// buildRequest assembles the role-tagged content blocks: the system
// instruction, one user text block, and one inline part per attachment.
func (c *GeminiClient) buildRequest(spec DecisionSpec) geminiRequest {
	parts := []geminiPart{{Text: BuildUserPrompt(spec)}}
	for _, option := range spec.Options {
		for _, attachment := range option.Attachments {
			if strings.TrimSpace(attachment.Data) == "" {
				continue
			}
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{
					MIMEType: attachment.MIMEType,
					Data:     attachment.Data,
				},
			})
		}
	}
	return geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: BuildSystemPrompt()}}},
		Contents:          []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxTokens,
			ResponseMIMEType: "text/plain",
		},
	}
}
