package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type openAIClientConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

type openAIClient struct {
	httpClient *http.Client
	provider   string
	baseURL    string
	model      string
	apiKey     string
}

func newOpenAIClient(cfg openAIClientConfig) (*openAIClient, error) {
	if cfg.Provider == "openai" && cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires an API key (set BREAKDOWN_CHAT_API_KEY or OPENAI_API_KEY)")
	}
	if cfg.Provider == "openai-compatible" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai-compatible provider requires generation.base_url")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		provider:   cfg.Provider,
		baseURL:    baseURL,
		model:      model,
		apiKey:     cfg.APIKey,
	}, nil
}

func (c *openAIClient) Provider() string { return c.provider }
func (c *openAIClient) Model() string    { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// errFormatRejected marks a 400 that may be caused by response_format.
var errFormatRejected = errors.New("response_format rejected")

// Complete calls /v1/chat/completions. JSON requests ask for a JSON object
// and retry without response_format when the backend rejects it.
func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	out, err := c.complete(ctx, req, req.JSON)
	if errors.Is(err, errFormatRejected) {
		out, err = c.complete(ctx, req, false)
	}
	if err != nil {
		return "", err
	}
	if req.JSON {
		if js, ok := ExtractJSON(out); ok {
			return js, nil
		}
	}
	return out, nil
}

func (c *openAIClient) complete(ctx context.Context, req Request, jsonFormat bool) (string, error) {
	payload := chatRequest{Model: c.model, Temperature: req.Temperature}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if jsonFormat {
		payload.ResponseFormat = map[string]any{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if jsonFormat && resp.StatusCode == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %s", errFormatRejected, respBody)
		}
		return "", fmt.Errorf("%s returned %d: %s", c.provider, resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10*1024*1024)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s error: %s", c.provider, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.provider)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
