package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/forcetech/cookvision/internal/app"
	"github.com/forcetech/cookvision/internal/config"
	"github.com/forcetech/cookvision/internal/i18n"
	"github.com/forcetech/cookvision/internal/telemetry"
	"github.com/spf13/cobra"
)

// localProfile is the profile used when none is given.
const localProfile = "local"

type commandContext struct {
	configPath string
	dbPath     string
	profile    string
	language   string
	jsonOutput bool
	verbose    bool

	// configDir locates config.env, the install id and relative paths.
	configDir func() (string, error)
	// options are passed to app.Open.
	options app.Options

	configOnce sync.Once
	config     *config.Config
	dir        string
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{
		profile:   localProfile,
		configDir: config.Dir,
	}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		dir, err := c.configDir()
		if err != nil {
			c.configErr = err
			return
		}
		config.LoadEnvFile(dir)

		cfg, err := config.Load(strings.TrimSpace(c.configPath), dir)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if p := strings.TrimSpace(c.dbPath); p != "" {
			cfg.DBPath = p
		}

		level := "warn"
		if c.verbose {
			level = cfg.Logging.Level
		}
		if _, err := telemetry.ConfigureLogger(telemetry.LogOptions{Level: level, Stderr: cmd.ErrOrStderr()}); err != nil {
			c.configErr = fmt.Errorf("configure logging: %w", err)
			return
		}

		c.config = cfg
		c.dir = dir
	})
	return c.config, c.configErr
}

// withServices opens the store and pipeline for the duration of fn.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(context.Context, *app.Services) error) error {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return err
	}

	opts := c.options
	if opts.AppUserID == nil {
		installID, err := telemetry.InstallID(c.dir)
		if err != nil {
			return fmt.Errorf("read install id: %w", err)
		}
		opts.AppUserID = func(profile string) string {
			return "cli:" + installID + ":" + profile
		}
	}

	ctx := cmd.Context()
	services, err := app.Open(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer services.Close()
	return fn(ctx, services)
}

// outputLanguage is --lang, else the profile's language, else the default.
func (c *commandContext) outputLanguage(ctx context.Context, services *app.Services) (string, error) {
	if c.language != "" {
		if !i18n.IsSupported(c.language) {
			return "", fmt.Errorf("unsupported language %q (supported: %s)", c.language, strings.Join(i18n.Supported(), ", "))
		}
		return strings.ToLower(c.language), nil
	}
	if lang := services.Lists.Language(ctx, c.profile); lang != "" {
		return lang, nil
	}
	return c.config.DefaultLanguage, nil
}
