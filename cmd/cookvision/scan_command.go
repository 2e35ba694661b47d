package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/forcetech/cookvision/internal/app"
	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/imageprep"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/scan"
	"github.com/spf13/cobra"
)

var errLimitReached = errors.New("daily scan limit reached")

func newScanCommand(ctx *commandContext) *cobra.Command {
	var images bool

	cmd := &cobra.Command{
		Use:   "scan <photo>",
		Short: "Identify products in a fridge photo and suggest recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(c context.Context, services *app.Services) error {
				return runScan(c, cmd, ctx, services, args[0], images)
			})
		},
	}

	cmd.Flags().BoolVar(&images, "images", false, "Look up a photo for every recipe")
	return cmd
}

func runScan(c context.Context, cmd *cobra.Command, ctx *commandContext, services *app.Services, path string, images bool) error {
	scanner, err := services.Scanner()
	if err != nil {
		return err
	}
	language, err := ctx.outputLanguage(c, services)
	if err != nil {
		return err
	}

	photo, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer photo.Close()

	outcome, err := scanner.Run(c, scan.Request{Profile: ctx.profile, Photo: photo, Language: language})
	switch {
	case errors.Is(err, imageprep.ErrPrepareFailed):
		return fmt.Errorf("could not read %s: %w", path, err)
	case errors.Is(err, llm.ErrNotFridgeImage):
		return errors.New("the photo does not look like the inside of a fridge")
	case err != nil:
		return err
	}

	if outcome.LimitReached {
		return fmt.Errorf("%w: all %d free scans used today, upgrade with `cookvision pro purchase`",
			errLimitReached, entitlement.FreeDailyScans)
	}

	result := outcome.Result
	if images {
		enriched := scanner.Enrich(c, result.Recipes())
		result = withRecipes(result, enriched)
	}

	view := scanView{
		Language:        language,
		Remaining:       outcome.Remaining.String(),
		Products:        result.Products,
		CompleteRecipes: result.CompleteRecipes,
		NeedMoreRecipes: result.NeedMoreRecipes,
	}
	if outcome.Scan != nil {
		view.ID = outcome.Scan.ID
		view.Timestamp = outcome.Scan.Timestamp
	}

	if ctx.jsonOutput {
		return writeJSON(cmd, view)
	}

	out := cmd.OutOrStdout()
	printResult(out, result, images)
	if view.ID != "" {
		fmt.Fprintf(out, "Saved as scan %s\n", view.ID)
	}
	fmt.Fprintf(out, "Scans left today: %s\n", view.Remaining)
	return nil
}

// withRecipes returns a copy of result with recipes, in the order of
// Recipes(), written back to their categories.
func withRecipes(result *llm.AnalysisResult, recipes []llm.Recipe) *llm.AnalysisResult {
	n := len(result.CompleteRecipes)
	if len(recipes) != n+len(result.NeedMoreRecipes) {
		return result
	}
	out := *result
	out.CompleteRecipes = recipes[:n]
	out.NeedMoreRecipes = recipes[n:]
	return &out
}
