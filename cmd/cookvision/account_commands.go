package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forcetech/cookvision/internal/app"
	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/i18n"
	"github.com/spf13/cobra"
)

type usageView struct {
	Profile        string `json:"profile"`
	Pro            bool   `json:"pro"`
	Date           string `json:"date"`
	ScansToday     int    `json:"scansToday"`
	Remaining      string `json:"remaining"`
	Favorites      int    `json:"favorites"`
	MaxFavorites   int    `json:"maxFavorites"`
	MaxRecentScans int    `json:"maxRecentScans"`
}

func newUsageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's scan usage and plan limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				isPro := services.Gate.CheckProStatus(c, ctx.profile)
				usage := services.Gate.DailyUsage(c, ctx.profile)
				view := usageView{
					Profile:        ctx.profile,
					Pro:            isPro,
					Date:           usage.Date,
					ScansToday:     usage.Count,
					Remaining:      services.Gate.RemainingScans(c, ctx.profile, isPro).String(),
					Favorites:      services.Lists.FavoritesCount(c, ctx.profile),
					MaxFavorites:   entitlement.MaxFavorites(isPro),
					MaxRecentScans: entitlement.MaxRecentScans(isPro),
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, view)
				}

				plan := "free"
				if isPro {
					plan = "pro"
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Plan", plan},
					{"Scans today", strconv.Itoa(view.ScansToday)},
					{"Scans left", view.Remaining},
					{"Favorites", fmt.Sprintf("%d/%d", view.Favorites, view.MaxFavorites)},
					{"Recent scans kept", strconv.Itoa(view.MaxRecentScans)},
				}
				fmt.Fprintln(out, renderTable(out, []string{"Profile", ctx.profile}, rows, nil))
				return nil
			})
		},
	}
}

func newProCommand(ctx *commandContext) *cobra.Command {
	proCmd := &cobra.Command{
		Use:   "pro",
		Short: "Manage the pro subscription",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether the profile has pro",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				isPro := services.Gate.CheckProStatus(c, ctx.profile)
				if ctx.jsonOutput {
					return writeJSON(cmd, map[string]any{"profile": ctx.profile, "pro": isPro})
				}
				if isPro {
					fmt.Fprintln(cmd.OutOrStdout(), "Pro is active.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Free plan.")
				}
				return nil
			})
		},
	}

	offeringsCmd := &cobra.Command{
		Use:   "offerings",
		Short: "List the packages available for purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				language, err := ctx.outputLanguage(c, services)
				if err != nil {
					return err
				}
				offering := services.Gate.Offerings(c, ctx.profile, language)
				if offering == nil {
					return errors.New("no offerings available")
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, offering)
				}
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(offering.Packages))
				for _, p := range offering.Packages {
					rows = append(rows, []string{p.Identifier, p.PlatformProductIdentifier})
				}
				fmt.Fprintf(out, "Offering %s\n", offering.Identifier)
				fmt.Fprintln(out, renderTable(out, []string{"Package", "Product"}, rows, nil))
				return nil
			})
		},
	}

	var purchaseToken string
	purchaseCmd := &cobra.Command{
		Use:   "purchase <package>",
		Short: "Register a completed store purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(purchaseToken) == "" {
				return errors.New("--token is required")
			}
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				language, err := ctx.outputLanguage(c, services)
				if err != nil {
					return err
				}
				offering := services.Gate.Offerings(c, ctx.profile, language)
				if offering == nil {
					return errors.New("no offerings available")
				}
				pkg, ok := offering.FindPackage(args[0])
				if !ok {
					return fmt.Errorf("package %s is not in offering %s", args[0], offering.Identifier)
				}

				result := services.Gate.Purchase(c, ctx.profile, *pkg, purchaseToken)
				if ctx.jsonOutput {
					if err := writeJSON(cmd, map[string]any{"package": pkg.Identifier, "result": result}); err != nil {
						return err
					}
				}
				switch result {
				case entitlement.PurchaseSuccess:
					if !ctx.jsonOutput {
						fmt.Fprintln(cmd.OutOrStdout(), "Pro is active. Enjoy unlimited scans.")
					}
					return nil
				case entitlement.PurchaseNoEntitlement:
					return errors.New("purchase registered but pro was not unlocked")
				case entitlement.PurchaseCancelled:
					return errors.New("purchase cancelled")
				default:
					return errors.New("purchase failed")
				}
			})
		},
	}
	purchaseCmd.Flags().StringVar(&purchaseToken, "token", "", "Store receipt or fetch token")

	var restoreToken string
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore earlier purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				restored := services.Gate.Restore(c, ctx.profile, strings.TrimSpace(restoreToken))
				if ctx.jsonOutput {
					return writeJSON(cmd, map[string]any{"profile": ctx.profile, "pro": restored})
				}
				if restored {
					fmt.Fprintln(cmd.OutOrStdout(), "Pro restored.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No active subscription found.")
				}
				return nil
			})
		},
	}
	restoreCmd.Flags().StringVar(&restoreToken, "token", "", "Store receipt or fetch token")

	proCmd.AddCommand(statusCmd, offeringsCmd, purchaseCmd, restoreCmd)
	return proCmd
}

func newLanguageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "language [code]",
		Short: "Show or set the profile language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					code := strings.ToLower(strings.TrimSpace(args[0]))
					if !i18n.IsSupported(code) {
						return fmt.Errorf("unsupported language %q (supported: %s)", args[0], strings.Join(i18n.Supported(), ", "))
					}
					services.Lists.SetLanguage(c, ctx.profile, code)
					if ctx.jsonOutput {
						return writeJSON(cmd, map[string]string{"language": code})
					}
					fmt.Fprintf(out, "Language set to %s (%s)\n", i18n.EnglishName(code), i18n.NativeName(code))
					return nil
				}

				current := services.Lists.Language(c, ctx.profile)
				if current == "" {
					current = ctx.config.DefaultLanguage
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, map[string]any{"language": current, "supported": i18n.Supported()})
				}
				rows := make([][]string, 0, len(i18n.Supported()))
				for _, code := range i18n.Supported() {
					mark := ""
					if code == current {
						mark = "*"
					}
					rows = append(rows, []string{mark, code, i18n.EnglishName(code), i18n.NativeName(code)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"", "Code", "Language", "Native"}, rows, nil))
				return nil
			})
		},
	}
}
