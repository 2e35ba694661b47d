// Package config loads settings from the environment and an optional TOML
// tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forcetech/cookvision/internal/i18n"
	"github.com/pelletier/go-toml/v2"
)

const (
	AppName      = "cookvision"
	EnvFileName  = "config.env"
	TOMLFileName = "config.toml"
)

// Config is the full application configuration. Secrets come only from the
// environment and are never read from or written to the TOML file.
type Config struct {
	DBPath          string    `toml:"db_path"`
	DefaultLanguage string    `toml:"default_language"`
	StoreKey        string    `toml:"-"`
	Vision          Vision    `toml:"vision"`
	Image           Image     `toml:"image"`
	Enrich          Enrich    `toml:"enrich"`
	Billing         Billing   `toml:"billing"`
	Telemetry       Telemetry `toml:"telemetry"`
	Bot             Bot       `toml:"bot"`
	Logging         Logging   `toml:"logging"`
}

type Vision struct {
	APIKey string `toml:"-"`
	Model  string `toml:"model"`
	Cache  bool   `toml:"cache"`
}

type Image struct {
	MaxWidth int `toml:"max_width"`
	Quality  int `toml:"quality"`
}

type Enrich struct {
	APIKey      string `toml:"-"`
	BaseURL     string `toml:"base_url"`
	Concurrency int    `toml:"concurrency"`
}

type Billing struct {
	APIKey   string `toml:"-"`
	BaseURL  string `toml:"base_url"`
	Platform string `toml:"platform"`
}

type Telemetry struct {
	Disabled        bool   `toml:"disabled"`
	OTLPEndpoint    string `toml:"otlp_endpoint"`
	TraceFile       string `toml:"trace_file"`
	DeviceLookupURL string `toml:"device_lookup_url"`
	RingSize        int    `toml:"ring_size"`
}

type Bot struct {
	Token   string `toml:"-"`
	AdminID int64  `toml:"-"`
}

type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBPath:          "cookvision.db",
		DefaultLanguage: i18n.Default,
		Vision:          Vision{Model: "gemini-2.0-flash", Cache: true},
		Image:           Image{MaxWidth: 1024, Quality: 60},
		Enrich:          Enrich{Concurrency: 4},
		Billing:         Billing{Platform: "stripe"},
		Telemetry: Telemetry{
			TraceFile:       "telemetry.jsonl",
			DeviceLookupURL: "https://ipapi.co/json/",
			RingSize:        100,
		},
		Logging: Logging{Level: "info", File: "cookvision.log"},
	}
}

// Dir returns the application's config directory, creating it if needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Load reads the TOML file at path (or dir/config.toml when path is empty),
// applies environment overrides, resolves relative paths against dir and
// validates the result. A missing file is not an error.
func Load(path, dir string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(dir, TOMLFileName)
	}
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, name string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	setString(&c.Bot.Token, "BOT_TOKEN")
	setString(&c.Vision.APIKey, "GEMINI_API_KEY")
	setString(&c.Vision.Model, "GEMINI_MODEL")
	setString(&c.Enrich.APIKey, "PEXELS_API_KEY")
	setString(&c.Billing.APIKey, "REVENUECAT_API_KEY")
	setString(&c.StoreKey, "COOKVISION_STORE_KEY")
	setString(&c.DBPath, "COOKVISION_DB_PATH")
	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err)
		}
		c.Bot.AdminID = id
	}
	return nil
}

// normalize resolves relative file paths against dir and canonicalizes the
// default language.
func (c *Config) normalize(dir string) {
	c.DBPath = resolvePath(c.DBPath, dir)
	c.Logging.File = resolvePath(c.Logging.File, dir)
	c.Telemetry.TraceFile = resolvePath(c.Telemetry.TraceFile, dir)
	c.DefaultLanguage = i18n.Match(c.DefaultLanguage)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

func resolvePath(path, dir string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// Save writes the tunable (non-secret) part of the configuration to path.
func (c *Config) Save(path string) error {
	b, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
