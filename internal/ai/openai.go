package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient implements Analyzer against the OpenAI responses API. It is
// the text-only fallback provider: attachments degrade to their prompt
// notes because the binary payloads are not forwarded.
type OpenAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewOpenAIClient constructs an OpenAIClient if the configuration is valid.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
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
	return &OpenAIClient{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *OpenAIClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Analyze sends the decision spec to the model and normalizes the response.
func (c *OpenAIClient) Analyze(ctx context.Context, spec DecisionSpec) (AnalysisResult, error) {
	if c == nil || !c.Enabled() {
		return AnalysisResult{}, ErrDisabled
	}

	payload := map[string]any{
		"model":             c.model,
		"instructions":      BuildSystemPrompt(),
		"input":             BuildUserPrompt(spec),
		"temperature":       c.temperature,
		"max_output_tokens": c.maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return AnalysisResult{}, fmt.Errorf("openai status %d: %v", resp.StatusCode, apiErr)
	}

	// The decoded body goes to the extractor untouched; its "output" array
	// shape is handled by the strategy list.
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode response: %w", err)
	}
	return ResultFromResponse(decoded)
}
