package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/oqzl/grokchat/grok"
)

// EnvPrefix marks environment variables that override file settings,
// e.g. GROK_API_KEY or GROK_MODEL.
const EnvPrefix = "GROK_"

// Config represents the client settings parsed from YAML and the environment.
// A bare number given as timeout is read as seconds.
type Config struct {
	APIKey       string         `koanf:"api_key"`
	BaseURL      string         `koanf:"base_url"`
	Timeout      time.Duration  `koanf:"timeout"`
	Model        string         `koanf:"model"`
	SystemPrompt string         `koanf:"system_prompt"`
	Options      map[string]any `koanf:"options"`
}

// fileConfig is the on-disk shape written by Save.
type fileConfig struct {
	BaseURL      string         `yaml:"base_url"`
	Timeout      string         `yaml:"timeout"`
	Model        string         `yaml:"model"`
	SystemPrompt string         `yaml:"system_prompt,omitempty"`
	Options      map[string]any `yaml:"options,omitempty"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		BaseURL: grok.DefaultBaseURL,
		Timeout: grok.DefaultTimeout,
		Model:   grok.DefaultModel,
	}
}

// Load reads YAML configuration from disk, when present, overlays GROK_*
// environment variables and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if _, err := os.Stat(absPath); err == nil {
			if err := k.Load(file.Provider(absPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config file %q: %w", absPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %q: %w", absPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if err := timeoutSeconds(k); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML. The API key is never persisted.
func (c *Config) Save(path string) error {
	out := fileConfig{
		BaseURL:      c.BaseURL,
		Timeout:      c.Timeout.String(),
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		Options:      c.Options,
	}
	data, err := yamlv3.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config to %s: %w", path, err)
	}
	return nil
}

// timeoutSeconds rewrites a unitless timeout, e.g. `timeout: 30` or
// GROK_TIMEOUT=30, into a duration of that many seconds. Duration strings
// such as "45s" are left to the decoder.
func timeoutSeconds(k *koanf.Koanf) error {
	if !k.Exists("timeout") {
		return nil
	}

	var seconds float64
	switch v := k.Get("timeout").(type) {
	case int:
		seconds = float64(v)
	case int64:
		seconds = float64(v)
	case uint64:
		seconds = float64(v)
	case float64:
		seconds = v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		seconds = n
	default:
		return nil
	}

	if err := k.Set("timeout", time.Duration(seconds*float64(time.Second))); err != nil {
		return fmt.Errorf("normalise timeout: %w", err)
	}
	return nil
}

// Validate performs sanity checks on the configuration. A missing API key is
// not an error here; the client reports it on the first request.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", c.Timeout)
	}
	if c.Timeout > 0 && c.Timeout < time.Millisecond {
		return fmt.Errorf("timeout %s is below 1ms; use a unit such as 30s", c.Timeout)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url must be provided")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q must use http or https", c.BaseURL)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}

// ClientOptions converts the configuration into client options.
func (c *Config) ClientOptions() []grok.Option {
	opts := []grok.Option{
		grok.WithAPIKey(c.APIKey),
		grok.WithBaseURL(c.BaseURL),
		grok.WithModel(c.Model),
		grok.WithSystemPrompt(c.SystemPrompt),
		grok.WithOptions(c.Options),
	}
	if c.Timeout > 0 {
		opts = append(opts, grok.WithTimeout(c.Timeout))
	}
	return opts
}
