package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forcetech/cookvision/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	var initPath string
	var overwrite bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(initPath)
			if path == "" {
				dir, err := ctx.configDir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, config.TOMLFileName)
			}
			if !overwrite {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --overwrite)", path)
				}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			cfg := config.Default()
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&initPath, "path", "", "Destination file")
	initCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")

	setupCmd := &cobra.Command{
		Use:         "setup",
		Short:       "Enter API keys interactively",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.IsInteractiveTerminal() {
				return errors.New("setup needs an interactive terminal")
			}
			dir, err := ctx.configDir()
			if err != nil {
				return err
			}
			if !config.RunSetupWizard(dir, config.ModeScan) {
				return errors.New("setup did not complete")
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			secrets := map[string]bool{
				"BOT_TOKEN":            cfg.Bot.Token != "",
				"GEMINI_API_KEY":       cfg.Vision.APIKey != "",
				"PEXELS_API_KEY":       cfg.Enrich.APIKey != "",
				"REVENUECAT_API_KEY":   cfg.Billing.APIKey != "",
				"COOKVISION_STORE_KEY": cfg.StoreKey != "",
			}
			// Round-trip through TOML so secrets never reach the output.
			b, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			if ctx.jsonOutput {
				var tunables map[string]any
				if err := toml.Unmarshal(b, &tunables); err != nil {
					return fmt.Errorf("decode config: %w", err)
				}
				return writeJSON(cmd, map[string]any{"config": tunables, "secrets": secrets})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.TrimSpace(string(b)))
			fmt.Fprintln(out)

			rows := make([][]string, 0, len(secrets))
			for _, name := range []string{"BOT_TOKEN", "GEMINI_API_KEY", "PEXELS_API_KEY", "REVENUECAT_API_KEY", "COOKVISION_STORE_KEY"} {
				state := "unset"
				if secrets[name] {
					state = "set"
				}
				rows = append(rows, []string{name, state})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Secret", "State"}, rows, nil))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and required secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if missing := cfg.Missing(config.ModeScan); len(missing) > 0 {
				return fmt.Errorf("missing %s; run `cookvision config setup` or set them in %s",
					strings.Join(missing, ", "), config.EnvFilePath(ctx.dir))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
			return nil
		},
	}

	configCmd.AddCommand(initCmd, setupCmd, showCmd, validateCmd)
	return configCmd
}
