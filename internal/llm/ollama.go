package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaClient talks to a local Ollama instance.
type ollamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func newOllamaClient(baseURL, model string) *ollamaClient {
	return &ollamaClient{
		httpClient: &http.Client{Timeout: 180 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

func (c *ollamaClient) Provider() string { return "ollama" }
func (c *ollamaClient) Model() string    { return c.model }

// OllamaModel is a model listed by /api/tags.
type OllamaModel struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type tagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// embedModels are known embedding-only models that can't do generation.
var embedModels = map[string]bool{
	"nomic-embed-text":       true,
	"mxbai-embed-large":      true,
	"all-minilm":             true,
	"snowflake-arctic-embed": true,
	"bge-m3":                 true,
}

// preferredModels lists models in preference order. Article drafting
// favors larger instruct models than quick lookups do.
var preferredModels = []string{
	"llama3.1:8b", "llama3.1", "qwen2.5:7b", "qwen2.5",
	"mistral", "gemma2", "llama3.2:3b", "llama3.2",
}

func (c *ollamaClient) listChatModels(ctx context.Context) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to Ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10*1024*1024)).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var chat []OllamaModel
	for _, m := range tags.Models {
		base, _, _ := strings.Cut(m.Name, ":")
		if embedModels[base] {
			continue
		}
		chat = append(chat, m)
	}
	return chat, nil
}

// pickModel resolves the configured model, or the best installed one.
func (c *ollamaClient) pickModel(ctx context.Context) (string, error) {
	if c.model != "" {
		return c.model, nil
	}
	models, err := c.listChatModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("%w: Ollama has no chat models installed", ErrNoProvider)
	}
	available := make(map[string]bool, len(models))
	for _, m := range models {
		available[m.Name] = true
	}
	for _, pref := range preferredModels {
		if available[pref] {
			return pref, nil
		}
	}
	return models[0].Name, nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete calls /api/generate, with format=json for JSON requests.
func (c *ollamaClient) Complete(ctx context.Context, r Request) (string, error) {
	model, err := c.pickModel(ctx)
	if err != nil {
		return "", err
	}
	gr := generateRequest{Model: model, Prompt: r.Prompt, System: r.System}
	if r.JSON {
		gr.Format = "json"
	}
	if r.Temperature > 0 {
		gr.Options = map[string]any{"temperature": r.Temperature}
	}
	body, err := json.Marshal(gr)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("Ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10*1024*1024)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}
