package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOllamaURL_Default(t *testing.T) {
	t.Setenv("OLLAMA_URL", "")
	t.Setenv("BREAKDOWN_SITE_PATH", t.TempDir())
	url, err := OllamaURL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "http://localhost:11434" {
		t.Errorf("expected default URL, got %q", url)
	}
}

func TestOllamaURL_Localhost(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"localhost", "http://localhost:11434"},
		{"127.0.0.1", "http://127.0.0.1:11434"},
		{"ipv6", "http://[::1]:11434"},
		{"custom port", "http://localhost:9999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OLLAMA_URL", tt.url)
			got, err := OllamaURL()
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.url, err)
			}
			if got != tt.url {
				t.Errorf("expected %q, got %q", tt.url, got)
			}
		})
	}
}

func TestOllamaURL_RejectsRemote(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"remote host", "http://example.com:11434"},
		{"remote IP", "http://192.168.1.100:11434"},
		{"https remote", "https://ollama.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OLLAMA_URL", tt.url)
			_, err := OllamaURL()
			if !errors.Is(err, ErrOllamaNotLocal) {
				t.Errorf("expected ErrOllamaNotLocal for %q, got %v", tt.url, err)
			}
		})
	}
}

func TestOllamaURL_RejectsBadScheme(t *testing.T) {
	for _, raw := range []string{"ftp://localhost:11434", "file:///etc/passwd", "://not-a-url"} {
		t.Setenv("OLLAMA_URL", raw)
		if _, err := OllamaURL(); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestLoadConfig_Default(t *testing.T) {
	SiteOverride = t.TempDir()
	t.Cleanup(func() { SiteOverride = "" })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.Mode != "indexed" || cfg.Search.DefaultLimit != 20 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if cfg.Content.ExcerptRadius != 120 {
		t.Errorf("excerpt radius = %d", cfg.Content.ExcerptRadius)
	}
	if cfg.Generation.Provider != "none" {
		t.Errorf("generation provider = %q", cfg.Generation.Provider)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	SiteOverride = t.TempDir()
	t.Cleanup(func() { SiteOverride = "" })
	t.Setenv("BREAKDOWN_CONTENT_ROOTS", "a, b")
	t.Setenv("BREAKDOWN_WPM", "180")
	t.Setenv("BREAKDOWN_ADDR", ":9090")
	t.Setenv("BREAKDOWN_ADMIN_TOKEN", "tok")
	t.Setenv("BREAKDOWN_CHAT_PROVIDER", "openai")
	t.Setenv("BREAKDOWN_CHAT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEBHOOK_URL", "https://hooks.example/lead")
	t.Setenv("WEBHOOK_SECRET", "s3")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.example/x")
	t.Setenv("BREAKDOWN_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Content.Roots) != 2 || cfg.Content.Roots[0] != "a" || cfg.Content.Roots[1] != "b" {
		t.Errorf("roots = %v", cfg.Content.Roots)
	}
	if cfg.Content.WordsPerMinute != 180 {
		t.Errorf("wpm = %d", cfg.Content.WordsPerMinute)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.AdminToken != "tok" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Generation.APIKey != "sk-test" {
		t.Errorf("OPENAI_API_KEY fallback not applied: %q", cfg.Generation.APIKey)
	}
	if cfg.Notify.WebhookURL == "" || cfg.Notify.WebhookSecret != "s3" || cfg.Notify.SlackWebhookURL == "" {
		t.Errorf("notify = %+v", cfg.Notify)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_BadWPMIgnored(t *testing.T) {
	SiteOverride = t.TempDir()
	t.Cleanup(func() { SiteOverride = "" })
	t.Setenv("BREAKDOWN_WPM", "fast")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Content.WordsPerMinute != 200 {
		t.Errorf("wpm = %d", cfg.Content.WordsPerMinute)
	}
}

func TestSitePath_OverrideBeatsEnv(t *testing.T) {
	flagDir := t.TempDir()
	envDir := t.TempDir()
	t.Setenv("BREAKDOWN_SITE_PATH", envDir)
	SiteOverride = flagDir
	t.Cleanup(func() { SiteOverride = "" })

	if got := SitePath(); got != flagDir {
		t.Errorf("SitePath() = %q, want %q", got, flagDir)
	}
}

func TestDataDir(t *testing.T) {
	site := t.TempDir()
	SiteOverride = site
	t.Cleanup(func() { SiteOverride = "" })

	t.Setenv("BREAKDOWN_DATA_DIR", "")
	if got := DataDir(); got != filepath.Join(site, ".breakdown", "data") {
		t.Errorf("default DataDir = %q", got)
	}
	if got := DBPath(); filepath.Base(got) != "breakdown.db" {
		t.Errorf("DBPath = %q", got)
	}

	custom := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv("BREAKDOWN_DATA_DIR", custom)
	if got := DataDir(); got != custom {
		t.Errorf("DataDir = %q, want %q", got, custom)
	}
	if info, err := os.Stat(custom); err != nil || !info.IsDir() {
		t.Errorf("expected data dir to be created")
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, []byte("x"), 0o644)
	t.Setenv("BREAKDOWN_DATA_DIR", file)
	if got := DataDir(); got != filepath.Join(site, ".breakdown", "data") {
		t.Errorf("file as data dir should fall back, got %q", got)
	}
}

func TestSkipDirs_IncludesConfigured(t *testing.T) {
	writeConfig(t, "[content]\nskip_dirs = [\"archive\"]\n")
	dirs := SkipDirs()
	for _, d := range []string{".git", "node_modules", "archive"} {
		if !dirs[d] {
			t.Errorf("expected %q to be skipped", d)
		}
	}
}

func TestErrConstants(t *testing.T) {
	for _, err := range []error{ErrNoSite, ErrNoDatabase, ErrOllamaNotLocal} {
		if err == nil || err.Error() == "" {
			t.Error("sentinel errors must carry a message")
		}
	}
}
