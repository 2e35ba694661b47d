package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/forcetech/cookvision/internal/enrich"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/lithammer/dedent"
	"github.com/spf13/cobra"
)

// scanView is the JSON shape of a scan result.
type scanView struct {
	ID              string        `json:"id,omitempty"`
	Language        string        `json:"language"`
	Timestamp       int64         `json:"timestamp,omitempty"`
	Remaining       string        `json:"remaining,omitempty"`
	Products        []llm.Product `json:"products"`
	CompleteRecipes []llm.Recipe  `json:"completeRecipes"`
	NeedMoreRecipes []llm.Recipe  `json:"needMoreRecipes"`
}

func formatText(tmpl string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(tmpl)), a...)
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

// printResult writes the product and recipe tables of a result.
func printResult(out io.Writer, result *llm.AnalysisResult, showImages bool) {
	if len(result.Products) == 0 {
		fmt.Fprintln(out, "No products recognized.")
	} else {
		rows := make([][]string, 0, len(result.Products))
		for _, p := range result.Products {
			confidence := "-"
			if p.Confidence != nil {
				confidence = fmt.Sprintf("%.0f%%", *p.Confidence*100)
			}
			rows = append(rows, []string{p.Emoji, p.Name, confidence})
		}
		fmt.Fprintln(out, renderTable(out, []string{"", "Product", "Confidence"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight}))
	}

	recipes := result.Recipes()
	if len(recipes) == 0 {
		fmt.Fprintln(out, "No recipe ideas this time.")
		return
	}

	headers := []string{"ID", "Recipe", "Category", "Time", "Difficulty", "Missing"}
	if showImages {
		headers = append(headers, "Image")
	}
	rows := make([][]string, 0, len(recipes))
	for _, r := range recipes {
		row := []string{
			r.ID,
			enrich.PlaceholderFor(r).Icon + " " + r.Name,
			string(r.Category),
			r.PrepTime,
			string(r.Difficulty),
			strings.Join(r.MissingIngredients, ", "),
		}
		if showImages {
			image := r.ImageURL
			if image == "" {
				image = "-"
			}
			row = append(row, image)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(out, headers, rows, nil))
}

// recipeText renders one recipe in full.
func recipeText(r llm.Recipe) string {
	var ingredients strings.Builder
	for _, ing := range r.Ingredients {
		mark := "[ ]"
		if r.HasIngredient(ing) {
			mark = "[x]"
		}
		fmt.Fprintf(&ingredients, "  %s %s\n", mark, ing)
	}

	var meta []string
	if r.PrepTime != "" {
		meta = append(meta, r.PrepTime)
	}
	if r.Difficulty != "" {
		meta = append(meta, string(r.Difficulty))
	}

	text := formatText(`
		%s %s
		%s

		Ingredients:
		%s
		Instructions:
		%s
	`, enrich.PlaceholderFor(r).Icon, r.Name, strings.Join(meta, " · "), ingredients.String(), r.Instructions)

	if r.Substitution != nil {
		text += fmt.Sprintf("\n\nSwap: %s -> %s", r.Substitution.Original, r.Substitution.Replacement)
		if r.Substitution.Reason != "" {
			text += " (" + r.Substitution.Reason + ")"
		}
	}
	for _, alt := range r.Alternatives {
		text += fmt.Sprintf("\nAlternative: %s - %s", alt.Name, alt.Description)
	}
	return text
}

// writeJSON prints v as indented JSON. HTML escaping is off so recipe
// steps like "salt & pepper" stay readable.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
