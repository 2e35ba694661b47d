package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/forcetech/cookvision/internal/app"
	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/storage"
	"github.com/spf13/cobra"
)

func newRecentCommand(ctx *commandContext) *cobra.Command {
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "Browse recent scans",
	}

	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				var scans []storage.RecentScan
				if all {
					scans = services.Lists.AllRecentScans(c, ctx.profile)
				} else {
					language, err := ctx.outputLanguage(c, services)
					if err != nil {
						return err
					}
					scans = services.Lists.RecentScans(c, ctx.profile, language)
				}

				if ctx.jsonOutput {
					views := make([]scanView, 0, len(scans))
					for _, s := range scans {
						views = append(views, savedScanView(s))
					}
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(scans) == 0 {
					fmt.Fprintln(out, "No recent scans.")
					return nil
				}
				rows := make([][]string, 0, len(scans))
				for _, s := range scans {
					names := make([]string, 0, len(s.Products))
					for _, p := range s.Products {
						names = append(names, p.Name)
					}
					rows = append(rows, []string{
						s.ID,
						formatTimestamp(s.Timestamp),
						s.Language,
						strings.Join(names, ", "),
						strconv.Itoa(len(s.CompleteRecipes) + len(s.NeedMoreRecipes)),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Scanned", "Language", "Products", "Recipes"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "Include scans in every language")

	showCmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Show the products and recipes of a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				saved := services.Lists.RecentScanByID(c, ctx.profile, args[0])
				if saved == nil {
					return fmt.Errorf("scan %s not found", args[0])
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, savedScanView(*saved))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scan %s · %s · %s\n", saved.ID, formatTimestamp(saved.Timestamp), saved.Language)
				printResult(out, saved.Result(), false)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <scan-id>",
		Short: "Delete a saved scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				if services.Lists.RecentScanByID(c, ctx.profile, args[0]) == nil {
					return fmt.Errorf("scan %s not found", args[0])
				}
				services.Lists.DeleteRecentScan(c, ctx.profile, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted scan %s\n", args[0])
				return nil
			})
		},
	}

	recentCmd.AddCommand(listCmd, showCmd, deleteCmd)
	return recentCmd
}

func savedScanView(s storage.RecentScan) scanView {
	return scanView{
		ID:              s.ID,
		Language:        s.Language,
		Timestamp:       s.Timestamp,
		Products:        s.Products,
		CompleteRecipes: s.CompleteRecipes,
		NeedMoreRecipes: s.NeedMoreRecipes,
	}
}

func newFavoritesCommand(ctx *commandContext) *cobra.Command {
	favoritesCmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage favorite recipes",
	}

	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List favorite recipes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				var favorites []storage.FavoriteRecipe
				if all {
					favorites = services.Lists.AllFavoriteRecipes(c, ctx.profile)
				} else {
					language, err := ctx.outputLanguage(c, services)
					if err != nil {
						return err
					}
					favorites = services.Lists.FavoriteRecipes(c, ctx.profile, language)
				}

				if ctx.jsonOutput {
					return writeJSON(cmd, favorites)
				}

				out := cmd.OutOrStdout()
				if len(favorites) == 0 {
					fmt.Fprintln(out, "No favorite recipes.")
					return nil
				}
				rows := make([][]string, 0, len(favorites))
				for _, f := range favorites {
					rows = append(rows, []string{f.ID, f.Name, f.Language, formatTimestamp(f.SavedAt)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Recipe", "Language", "Saved"}, rows, nil))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "Include recipes in every language")

	addCmd := &cobra.Command{
		Use:   "add <scan-id> <recipe-id>",
		Short: "Save a recipe from a scan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				saved := services.Lists.RecentScanByID(c, ctx.profile, args[0])
				if saved == nil {
					return fmt.Errorf("scan %s not found", args[0])
				}
				recipe, ok := saved.Result().FindRecipe(args[1])
				if !ok {
					return fmt.Errorf("scan %s has no recipe %s", args[0], args[1])
				}

				isPro := services.Gate.CheckProStatus(c, ctx.profile)
				if !services.Lists.SaveFavoriteRecipe(c, ctx.profile, recipe, saved.Language, isPro) {
					return fmt.Errorf("favorites are full (%d); remove one or upgrade to pro", entitlement.MaxFavorites(isPro))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to favorites\n", recipe.Name)
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <recipe-id>",
		Short: "Show a favorite recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				for _, f := range services.Lists.AllFavoriteRecipes(c, ctx.profile) {
					if f.ID != args[0] {
						continue
					}
					if ctx.jsonOutput {
						return writeJSON(cmd, f)
					}
					fmt.Fprintln(cmd.OutOrStdout(), recipeText(f.Recipe))
					return nil
				}
				return fmt.Errorf("favorite %s not found", args[0])
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <recipe-id>",
		Short: "Remove a favorite recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				if !services.Lists.IsRecipeFavorite(c, ctx.profile, args[0]) {
					return fmt.Errorf("favorite %s not found", args[0])
				}
				services.Lists.RemoveFavoriteRecipe(c, ctx.profile, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from favorites\n", args[0])
				return nil
			})
		},
	}

	favoritesCmd.AddCommand(listCmd, addCmd, showCmd, removeCmd)
	return favoritesCmd
}
