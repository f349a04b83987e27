package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RepoFileName is the repository-local config file, read from the review root.
const RepoFileName = ".lens.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the run-scoped lens configuration. It never carries credentials.
type Config struct {
	Provider          string `json:"provider" yaml:"provider"`
	Model             string `json:"model" yaml:"model"`
	Format            string `json:"format" yaml:"format"`
	FailOn            string `json:"failOn" yaml:"failOn"`
	SeverityThreshold string `json:"severityThreshold" yaml:"severityThreshold"`
	MaxFindings       int    `json:"maxFindings" yaml:"maxFindings"`

	MaxConcurrency        int     `json:"maxConcurrency" yaml:"maxConcurrency"`
	TokenBudgetPerUnit    int     `json:"tokenBudgetPerUnit" yaml:"tokenBudgetPerUnit"`
	ContextShare          float64 `json:"contextShare" yaml:"contextShare"`
	ContextDepth          int     `json:"contextDepth" yaml:"contextDepth"`
	RetryCeiling          int     `json:"retryCeiling" yaml:"retryCeiling"`
	BaseBackoffMs         int     `json:"baseBackoffMs" yaml:"baseBackoffMs"`
	MaxBackoffMs          int     `json:"maxBackoffMs" yaml:"maxBackoffMs"`
	RequestTimeoutSeconds int     `json:"requestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
	RequestsPerSecond     float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	SimilarityThreshold   float64 `json:"similarityThreshold" yaml:"similarityThreshold"`
	MaxResponseTokens     int     `json:"maxResponseTokens" yaml:"maxResponseTokens"`

	Extensions   []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Include      []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude      []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	MaxFileBytes int      `json:"maxFileBytes" yaml:"maxFileBytes"`
	RulesFile    string   `json:"rulesFile,omitempty" yaml:"rulesFile,omitempty"`

	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Privacy PrivacyConfig `json:"privacy" yaml:"privacy"`
}

// CacheConfig controls the on-disk response cache.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Dir        string `json:"dir,omitempty" yaml:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds" yaml:"ttlSeconds"`
}

// PrivacyConfig controls redaction of content before it leaves the machine.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets" yaml:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty" yaml:"redactPaths,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:              "openai",
		Model:                 "gpt-4o-mini",
		Format:                "text",
		FailOn:                "none",
		SeverityThreshold:     "low",
		MaxFindings:           25,
		MaxConcurrency:        4,
		TokenBudgetPerUnit:    6000,
		ContextShare:          0.4,
		ContextDepth:          1,
		RetryCeiling:          3,
		BaseBackoffMs:         1000,
		MaxBackoffMs:          30000,
		RequestTimeoutSeconds: 120,
		SimilarityThreshold:   0.8,
		MaxResponseTokens:     4096,
		Exclude:               []string{"vendor/**", "**/node_modules/**", "**/*.min.js", "**/*.gen.go", "**/dist/**"},
		MaxFileBytes:          512 * 1024,
		Cache: CacheConfig{
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
	}
}

// BaseBackoff returns the first retry delay.
func (c Config) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ConfigDir returns the platform-appropriate config directory for lens.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lens"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "lens"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "lens"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "lens"), nil
	default:
		return filepath.Join(home, ".config", "lens"), nil
	}
}

// ConfigPath returns the full path to the global config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile returns the defaults overlaid with the global config file. A
// missing file is not an error.
func LoadFile() (Config, error) {
	cfg := Default()
	if err := mergeFile(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to the global config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// SaveRepo writes cfg as the repository-local YAML file in dir.
func SaveRepo(dir string, cfg Config) (string, error) {
	path := filepath.Join(dir, RepoFileName)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Load builds the effective config by merging, lowest to highest:
// defaults, global config file, repoDir/.lens.yaml, LENS_* environment,
// overrides. Overrides come from CLI flags and use SetField keys. An empty
// repoDir skips the repository file.
func Load(repoDir string, overrides map[string]string) (Config, error) {
	cfg := Default()
	if err := mergeFile(&cfg); err != nil {
		return Config{}, err
	}
	if repoDir != "" {
		if err := mergeRepoFile(&cfg, repoDir); err != nil {
			return Config{}, err
		}
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile decodes the global config over cfg. Only keys present in the
// file change cfg, so explicit false values are honored.
func mergeFile(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func mergeRepoFile(cfg *Config, dir string) error {
	path := filepath.Join(dir, RepoFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// envKeys maps environment variables to SetField keys.
var envKeys = []struct{ env, key string }{
	{"LENS_PROVIDER", "provider"},
	{"LENS_MODEL", "model"},
	{"LENS_FORMAT", "format"},
	{"LENS_FAIL_ON", "failOn"},
	{"LENS_SEVERITY_THRESHOLD", "severityThreshold"},
	{"LENS_MAX_FINDINGS", "maxFindings"},
	{"LENS_MAX_CONCURRENCY", "maxConcurrency"},
	{"LENS_TOKEN_BUDGET", "tokenBudgetPerUnit"},
	{"LENS_RETRY_CEILING", "retryCeiling"},
	{"LENS_BASE_BACKOFF_MS", "baseBackoffMs"},
	{"LENS_MAX_BACKOFF_MS", "maxBackoffMs"},
	{"LENS_REQUEST_TIMEOUT", "requestTimeoutSeconds"},
	{"LENS_REQUESTS_PER_SECOND", "requestsPerSecond"},
	{"LENS_CACHE", "cache.enabled"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	// Apply in key order so errors are reported deterministically.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := overrides[k]
		if v == "" {
			continue
		}
		if err := SetField(cfg, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns every key accepted by SetField.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetField sets a single config field by key name. Lists are comma
// separated. Returns an error if the key is unknown or the value malformed.
func SetField(cfg *Config, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err := set(cfg, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

var setters = map[string]func(*Config, string) error{
	"provider":              func(c *Config, v string) error { c.Provider = v; return nil },
	"model":                 func(c *Config, v string) error { c.Model = v; return nil },
	"format":                func(c *Config, v string) error { c.Format = v; return nil },
	"failOn":                func(c *Config, v string) error { c.FailOn = v; return nil },
	"severityThreshold":     func(c *Config, v string) error { c.SeverityThreshold = v; return nil },
	"rulesFile":             func(c *Config, v string) error { c.RulesFile = v; return nil },
	"maxFindings":           intSetter(func(c *Config) *int { return &c.MaxFindings }),
	"maxConcurrency":        intSetter(func(c *Config) *int { return &c.MaxConcurrency }),
	"tokenBudgetPerUnit":    intSetter(func(c *Config) *int { return &c.TokenBudgetPerUnit }),
	"contextDepth":          intSetter(func(c *Config) *int { return &c.ContextDepth }),
	"retryCeiling":          intSetter(func(c *Config) *int { return &c.RetryCeiling }),
	"baseBackoffMs":         intSetter(func(c *Config) *int { return &c.BaseBackoffMs }),
	"maxBackoffMs":          intSetter(func(c *Config) *int { return &c.MaxBackoffMs }),
	"requestTimeoutSeconds": intSetter(func(c *Config) *int { return &c.RequestTimeoutSeconds }),
	"maxResponseTokens":     intSetter(func(c *Config) *int { return &c.MaxResponseTokens }),
	"maxFileBytes":          intSetter(func(c *Config) *int { return &c.MaxFileBytes }),
	"cache.ttlSeconds":      intSetter(func(c *Config) *int { return &c.Cache.TTLSeconds }),
	"contextShare":          floatSetter(func(c *Config) *float64 { return &c.ContextShare }),
	"requestsPerSecond":     floatSetter(func(c *Config) *float64 { return &c.RequestsPerSecond }),
	"similarityThreshold":   floatSetter(func(c *Config) *float64 { return &c.SimilarityThreshold }),
	"cache.enabled":         boolSetter(func(c *Config) *bool { return &c.Cache.Enabled }),
	"privacy.redactSecrets": boolSetter(func(c *Config) *bool { return &c.Privacy.RedactSecrets }),
	"cache.dir":             func(c *Config, v string) error { c.Cache.Dir = v; return nil },
	"extensions":            listSetter(func(c *Config) *[]string { return &c.Extensions }),
	"include":               listSetter(func(c *Config) *[]string { return &c.Include }),
	"exclude":               listSetter(func(c *Config) *[]string { return &c.Exclude }),
	"privacy.redactPaths":   listSetter(func(c *Config) *[]string { return &c.Privacy.RedactPaths }),
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("must be a number: %w", err)
		}
		*field(c) = f
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("must be true or false: %w", err)
		}
		*field(c) = b
		return nil
	}
}

func listSetter(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*field(c) = items
		return nil
	}
}
