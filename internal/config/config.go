// Package config provides configuration for the breakdown binary.
// Loads from: CLI flags > env vars > .breakdown/config.toml > built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all breakdown configuration, loaded from TOML + env + flags.
type Config struct {
	Site       SiteConfig       `toml:"site"`
	Content    ContentConfig    `toml:"content"`
	Server     ServerConfig     `toml:"server"`
	Search     SearchConfig     `toml:"search"`
	Generation GenerationConfig `toml:"generation"`
	Notify     NotifyConfig     `toml:"notify"`
	Log        LogConfig        `toml:"log"`
}

// SiteConfig describes the published site.
type SiteConfig struct {
	Name        string `toml:"name"`
	URL         string `toml:"url"`
	Description string `toml:"description"`
	Path        string `toml:"path"`
}

// ContentConfig controls how content roots are scanned.
type ContentConfig struct {
	Roots          []string `toml:"roots"` // relative to the site path unless absolute
	WordsPerMinute int      `toml:"words_per_minute"`
	IncludeDrafts  bool     `toml:"include_drafts"`
	SkipDirs       []string `toml:"skip_dirs"`
	ExcerptRadius  int      `toml:"excerpt_radius"`
	MediaPrefix    string   `toml:"media_prefix"`
	DraftsDir      string   `toml:"drafts_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	AdminToken    string `toml:"admin_token"`
	RatePerMinute int    `toml:"rate_per_minute"`
}

// SearchConfig selects between live scans and the cached search index.
type SearchConfig struct {
	Mode         string `toml:"mode"` // "live" or "indexed" (default)
	Watch        bool   `toml:"watch"`
	DefaultLimit int    `toml:"default_limit"`
}

// GenerationConfig holds article generation backend settings.
type GenerationConfig struct {
	Provider string `toml:"provider"` // "openai", "openai-compatible", "ollama", "none"
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	MinWords int    `toml:"min_words"`
}

// NotifyConfig holds outbound notification endpoints.
type NotifyConfig struct {
	WebhookURL      string `toml:"webhook_url"`
	WebhookSecret   string `toml:"webhook_secret"`
	SlackWebhookURL string `toml:"slack_webhook_url"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// DefaultConfig returns a Config with all built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name: "Breakdown",
			URL:  "http://localhost:8080",
		},
		Content: ContentConfig{
			Roots:          []string{"content"},
			WordsPerMinute: 200,
			ExcerptRadius:  120,
			MediaPrefix:    "/media",
			DraftsDir:      "drafts",
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			RatePerMinute: 30,
		},
		Search: SearchConfig{
			Mode:         "indexed",
			DefaultLimit: 20,
		},
		Generation: GenerationConfig{
			Provider: "none",
			MinWords: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig merges all configuration sources: defaults < TOML file < env vars.
// The --site flag is handled separately by SitePath().
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(findConfigFile())
}

// LoadConfigFrom loads configuration from a specific file path, merging with
// defaults and env vars. A missing file yields defaults plus env.
func LoadConfigFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			meta, err := toml.DecodeFile(configPath, cfg)
			if err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
			warnUnknownKeys(meta, configPath)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BREAKDOWN_SITE_PATH"); v != "" {
		cfg.Site.Path = v
	}
	if v := os.Getenv("BREAKDOWN_SITE_URL"); v != "" {
		cfg.Site.URL = v
	}
	if v := os.Getenv("BREAKDOWN_CONTENT_ROOTS"); v != "" {
		cfg.Content.Roots = splitList(v)
	}
	if v := os.Getenv("BREAKDOWN_WPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Content.WordsPerMinute = n
		}
	}
	if v := os.Getenv("BREAKDOWN_SKIP_DIRS"); v != "" {
		cfg.Content.SkipDirs = append(cfg.Content.SkipDirs, splitList(v)...)
	}
	if v := os.Getenv("BREAKDOWN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("BREAKDOWN_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("BREAKDOWN_CHAT_PROVIDER"); v != "" {
		cfg.Generation.Provider = v
	}
	if v := os.Getenv("BREAKDOWN_CHAT_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("BREAKDOWN_CHAT_BASE_URL"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := os.Getenv("BREAKDOWN_CHAT_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
	}
	// OPENAI_API_KEY is a convenience fallback for the cloud providers.
	if cfg.Generation.APIKey == "" && (cfg.Generation.Provider == "openai" || cfg.Generation.Provider == "openai-compatible") {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.Generation.APIKey = v
		}
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Notify.WebhookSecret = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("BREAKDOWN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// findConfigFile looks for .breakdown/config.toml in the site path, then CWD.
func findConfigFile() string {
	if sp := resolveSiteForConfig(); sp != "" {
		p := ConfigFilePath(sp)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		p := ConfigFilePath(cwd)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// resolveSiteForConfig resolves the site path for config loading without
// calling SitePath() to avoid recursion through loadConfigSafe.
func resolveSiteForConfig() string {
	if SiteOverride != "" {
		return SiteOverride
	}
	return os.Getenv("BREAKDOWN_SITE_PATH")
}

// ConfigFilePath returns the path of the config file for a site.
func ConfigFilePath(sitePath string) string {
	return filepath.Join(sitePath, ".breakdown", "config.toml")
}

// FindConfigFile returns the path to the active config file, or empty string if none found.
func FindConfigFile() string {
	return findConfigFile()
}

// GenerateConfig writes a default .breakdown/config.toml with comments.
func GenerateConfig(sitePath string) error {
	configPath := ConfigFilePath(sitePath)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(configPath, []byte(generateTOMLContent(sitePath)), 0o600)
}

func generateTOMLContent(sitePath string) string {
	var b strings.Builder
	b.WriteString("# Breakdown configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Priority: CLI flags > environment variables > this file > built-in defaults\n")
	b.WriteString("# Environment variables: BREAKDOWN_SITE_PATH, BREAKDOWN_CONTENT_ROOTS, BREAKDOWN_WPM,\n")
	b.WriteString("#   BREAKDOWN_ADDR, BREAKDOWN_ADMIN_TOKEN, BREAKDOWN_DATA_DIR, BREAKDOWN_CHAT_*,\n")
	b.WriteString("#   OLLAMA_URL, WEBHOOK_URL, WEBHOOK_SECRET, SLACK_WEBHOOK_URL, BREAKDOWN_LOG_LEVEL\n\n")

	b.WriteString("[site]\n")
	b.WriteString("name = \"Breakdown\"\n")
	b.WriteString("url = \"http://localhost:8080\"\n")
	if sitePath != "" {
		b.WriteString(fmt.Sprintf("path = %q\n\n", sitePath))
	} else {
		b.WriteString("# path = \"/srv/breakdown\"  # defaults to the current directory\n\n")
	}

	b.WriteString("[content]\n")
	b.WriteString("roots = [\"content\"]          # scanned in this order; later roots win slug collisions\n")
	b.WriteString("words_per_minute = 200\n")
	b.WriteString("include_drafts = false\n")
	b.WriteString("# skip_dirs = [\"archive\"]    # added to built-in exclusions\n")
	b.WriteString("excerpt_radius = 120\n")
	b.WriteString("media_prefix = \"/media\"\n")
	b.WriteString("drafts_dir = \"drafts\"\n\n")

	b.WriteString("[server]\n")
	b.WriteString("addr = \"127.0.0.1:8080\"\n")
	b.WriteString("# admin_token = \"\"           # without a token, admin routes only answer loopback\n")
	b.WriteString("rate_per_minute = 30\n\n")

	b.WriteString("[search]\n")
	b.WriteString("mode = \"indexed\"             # \"live\" rescans on every request\n")
	b.WriteString("watch = false\n")
	b.WriteString("default_limit = 20\n\n")

	b.WriteString("[generation]\n")
	b.WriteString("# provider: \"openai\", \"openai-compatible\", \"ollama\", or \"none\"\n")
	b.WriteString("provider = \"none\"\n")
	b.WriteString("# model = \"\"\n")
	b.WriteString("# api_key = \"\"               # or BREAKDOWN_CHAT_API_KEY / OPENAI_API_KEY\n")
	b.WriteString("min_words = 300\n\n")

	b.WriteString("[notify]\n")
	b.WriteString("# webhook_url = \"\"\n")
	b.WriteString("# webhook_secret = \"\"\n")
	b.WriteString("# slack_webhook_url = \"\"\n\n")

	b.WriteString("[log]\n")
	b.WriteString("level = \"info\"\n")
	b.WriteString("development = false\n")
	return b.String()
}

// ShowConfig returns the current effective configuration as TOML.
// Secrets are masked.
func ShowConfig() string {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Sprintf("# Error loading config: %v\n", err)
	}
	if cfg.Site.Path == "" {
		cfg.Site.Path = SitePath()
	}
	cfg.Server.AdminToken = mask(cfg.Server.AdminToken)
	cfg.Generation.APIKey = mask(cfg.Generation.APIKey)
	cfg.Notify.WebhookSecret = mask(cfg.Notify.WebhookSecret)

	var b strings.Builder
	b.WriteString("# Effective breakdown configuration (merged from all sources)\n\n")
	enc := toml.NewEncoder(&b)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Sprintf("# Error encoding config: %v\n", err)
	}
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// loadConfigSafe loads config without risking recursion. Returns nil on error.
func loadConfigSafe() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		return nil
	}
	return cfg
}

// ConfigWarning returns any config file parse error, or empty string if OK.
func ConfigWarning() string {
	if _, err := LoadConfig(); err != nil {
		return err.Error()
	}
	return ""
}

// configSuggestions maps common wrong keys to the correct TOML key name.
var configSuggestions = map[string]string{
	"content_dirs":  "roots",
	"dirs":          "roots",
	"paths":         "roots",
	"root":          "roots",
	"wpm":           "words_per_minute",
	"drafts":        "include_drafts",
	"exclude_dirs":  "skip_dirs",
	"ignore_dirs":   "skip_dirs",
	"listen":        "addr",
	"port":          "addr",
	"token":         "admin_token",
	"apikey":        "api_key",
	"api-key":       "api_key",
	"baseurl":       "base_url",
	"base-url":      "base_url",
	"webhook":       "webhook_url",
	"slack_webhook": "slack_webhook_url",
	"limit":         "default_limit",
}

// warnUnknownKeys prints warnings for unrecognized config keys.
func warnUnknownKeys(meta toml.MetaData, configPath string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}
	fname := filepath.Base(configPath)
	for _, key := range undecoded {
		keyStr := key.String()
		lastPart := key[len(key)-1]
		if suggestion, ok := configSuggestions[lastPart]; ok {
			fmt.Fprintf(os.Stderr, "breakdown: WARNING: unknown key %q in %s, did you mean %q?\n",
				keyStr, fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "breakdown: WARNING: unknown key %q in %s (will be ignored)\n",
				keyStr, fname)
		}
	}
}

// defaultSkipDirs are directories never scanned or watched under a content root.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".breakdown":   true,
	".next":        true,
	"drafts":       true,
}

// SkipDirs returns the effective set of skipped directory names.
func SkipDirs() map[string]bool {
	dirs := make(map[string]bool, len(defaultSkipDirs))
	for k, v := range defaultSkipDirs {
		dirs[k] = v
	}
	if cfg := loadConfigSafe(); cfg != nil {
		for _, d := range cfg.Content.SkipDirs {
			dirs[d] = true
		}
	}
	return dirs
}

// SiteOverride is set by the --site global flag.
var SiteOverride string

// SitePath returns the site root directory: --site, then BREAKDOWN_SITE_PATH,
// then [site].path, then the current directory.
// SECURITY: refuses filesystem roots and shallow system directories.
func SitePath() string {
	var path string
	if SiteOverride != "" {
		path = SiteOverride
	} else if v := os.Getenv("BREAKDOWN_SITE_PATH"); v != "" {
		path = v
	} else if cfg := loadConfigSafe(); cfg != nil && cfg.Site.Path != "" {
		path = cfg.Site.Path
	} else if cwd, err := os.Getwd(); err == nil {
		path = cwd
	}
	if path != "" {
		path = validateSitePath(path)
	}
	return path
}

// validateSitePath rejects site paths that are too broad (e.g., /, /home)
// and resolves symlinks to prevent symlink-based escapes.
func validateSitePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	dangerous := []string{"/", "/home", "/Users", "/tmp", "/var", "/etc", "/opt"}
	if runtime.GOOS == "windows" && len(abs) >= 3 {
		driveRoot := abs[:3]
		dangerous = append(dangerous, driveRoot, filepath.Join(driveRoot, "Users"), filepath.Join(driveRoot, "Windows"))
	}
	for _, d := range dangerous {
		if abs == d {
			fmt.Fprintf(os.Stderr, "WARNING: site path %q is too broad, ignoring.\n", abs)
			return ""
		}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// May not exist yet (config init).
		return abs
	}
	for _, d := range dangerous {
		rd, err := filepath.EvalSymlinks(d)
		if resolved == d || (err == nil && resolved == rd) {
			fmt.Fprintf(os.Stderr, "WARNING: site path %q resolves to %q which is too broad, ignoring.\n", abs, resolved)
			return ""
		}
	}
	return abs
}

// SafeSitePath resolves a relative path within base and reports whether it
// stays inside. SECURITY: rejects traversal such as "../../etc".
func SafeSitePath(base, relativePath string) (string, bool) {
	if base == "" {
		return "", false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(relativePath)))
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", false
	}
	return absPath, true
}

// ContentRoots returns the absolute content root directories in scan order.
func ContentRoots() []string {
	site := SitePath()
	cfg := loadConfigSafe()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var roots []string
	for _, r := range cfg.Content.Roots {
		if filepath.IsAbs(r) {
			roots = append(roots, filepath.Clean(r))
			continue
		}
		if site == "" {
			continue
		}
		if p, ok := SafeSitePath(site, r); ok {
			roots = append(roots, p)
		} else {
			fmt.Fprintf(os.Stderr, "WARNING: content root %q escapes the site directory, ignoring.\n", r)
		}
	}
	return roots
}

// DraftsDir returns the directory where generated drafts are saved.
func DraftsDir() string {
	dir := "drafts"
	if cfg := loadConfigSafe(); cfg != nil && cfg.Content.DraftsDir != "" {
		dir = cfg.Content.DraftsDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(SitePath(), dir)
}

// Sentinel errors for consistent messaging across CLI and server.
var (
	// ErrNoSite is returned when no site path can be resolved.
	ErrNoSite = fmt.Errorf("no site found, run 'breakdown config init' or set BREAKDOWN_SITE_PATH")
	// ErrNoDatabase is returned when the site database cannot be opened.
	ErrNoDatabase = fmt.Errorf("cannot open breakdown database, run 'breakdown reindex' to rebuild it")
	// ErrOllamaNotLocal is returned when the Ollama URL points to a non-localhost host.
	ErrOllamaNotLocal = fmt.Errorf("OLLAMA_URL must point to localhost for security")
)

// OllamaURL returns the validated Ollama API URL.
// Returns an error if the URL is invalid or does not point to localhost.
func OllamaURL() (string, error) {
	raw := os.Getenv("OLLAMA_URL")
	if raw == "" {
		if cfg := loadConfigSafe(); cfg != nil && cfg.Generation.Provider == "ollama" && cfg.Generation.BaseURL != "" {
			raw = cfg.Generation.BaseURL
		} else {
			raw = "http://localhost:11434"
		}
	}
	return ValidateLocalURL(raw)
}

// ValidateLocalURL checks that raw is an http(s) URL on a loopback host.
func ValidateLocalURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid OLLAMA_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("OLLAMA_URL must use http or https scheme, got: %s", u.Scheme)
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		// SECURITY: don't leak the hostname in the error message
		return "", ErrOllamaNotLocal
	}
	return raw, nil
}

// DBPath returns the path to the SQLite database file.
func DBPath() string {
	return filepath.Join(DataDir(), "breakdown.db")
}

// DataDir returns the data directory (database, stats, audit log).
// SECURITY: validates BREAKDOWN_DATA_DIR is an existing or creatable directory.
func DataDir() string {
	if v := os.Getenv("BREAKDOWN_DATA_DIR"); v != "" {
		return validateDataDir(v)
	}
	return defaultDataDir()
}

func defaultDataDir() string {
	return filepath.Join(SitePath(), ".breakdown", "data")
}

func validateDataDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: BREAKDOWN_DATA_DIR=%q is not a valid path, using default.\n", dir)
		return defaultDataDir()
	}
	info, err := os.Stat(abs)
	if err == nil {
		if !info.IsDir() {
			fmt.Fprintf(os.Stderr, "WARNING: BREAKDOWN_DATA_DIR=%q is not a directory, using default.\n", abs)
			return defaultDataDir()
		}
		return abs
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: BREAKDOWN_DATA_DIR=%q cannot be created (%v), using default.\n", abs, err)
		return defaultDataDir()
	}
	return abs
}
