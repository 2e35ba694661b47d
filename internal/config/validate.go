package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path must be set")
	}
	if c.Vision.Model == "" {
		return errors.New("vision.model must be set")
	}
	if c.Image.MaxWidth < 64 {
		return fmt.Errorf("image.max_width must be at least 64, got %d", c.Image.MaxWidth)
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return fmt.Errorf("image.quality must be between 1 and 100, got %d", c.Image.Quality)
	}
	if c.Enrich.Concurrency < 1 {
		return errors.New("enrich.concurrency must be positive")
	}
	if c.Telemetry.RingSize < 1 {
		return errors.New("telemetry.ring_size must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Mode selects which secrets are required.
type Mode int

const (
	ModeBot Mode = iota
	ModeScan
	ModeLocal
)

// Missing returns the environment variables mode needs that are unset.
func (c *Config) Missing(mode Mode) []string {
	var missing []string
	if mode == ModeBot && c.Bot.Token == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if (mode == ModeBot || mode == ModeScan) && c.Vision.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	return missing
}
