// Package llm talks to the text generation backends used for article
// drafting and reader questions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sgx-labs/breakdown/internal/config"
)

// ErrNoProvider is returned when generation is disabled or unconfigured.
var ErrNoProvider = errors.New("no generation provider configured")

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	JSON        bool
	Temperature float64
}

// Client is a provider-agnostic interface for text generation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

// Settings selects and configures a provider.
type Settings struct {
	Provider string // "openai", "openai-compatible", "ollama", "none"
	Model    string
	BaseURL  string
	APIKey   string
}

// SettingsFromConfig reads the [generation] section, falling back to
// OPENAI_API_KEY for the openai provider.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := Settings{
		Provider: normalizeProvider(cfg.Generation.Provider),
		Model:    strings.TrimSpace(cfg.Generation.Model),
		BaseURL:  strings.TrimSpace(cfg.Generation.BaseURL),
		APIKey:   strings.TrimSpace(cfg.Generation.APIKey),
	}
	if s.APIKey == "" && s.Provider == "openai" {
		s.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	return s
}

// NewClient constructs a client for s.Provider.
func NewClient(s Settings) (Client, error) {
	switch p := normalizeProvider(s.Provider); p {
	case "ollama":
		baseURL := s.BaseURL
		var err error
		if baseURL == "" {
			baseURL, err = config.OllamaURL()
		} else {
			baseURL, err = config.ValidateLocalURL(baseURL)
		}
		if err != nil {
			return nil, err
		}
		return newOllamaClient(baseURL, s.Model), nil
	case "openai", "openai-compatible":
		return newOpenAIClient(openAIClientConfig{
			Provider: p,
			Model:    s.Model,
			BaseURL:  s.BaseURL,
			APIKey:   s.APIKey,
		})
	case "none":
		return nil, fmt.Errorf("%w (generation.provider = \"none\")", ErrNoProvider)
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", s.Provider)
	}
}

func normalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return "none"
	}
	return p
}
