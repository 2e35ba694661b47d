package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/forcetech/cookvision/internal/enrich"
	"github.com/forcetech/cookvision/internal/i18n"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/storage"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects messages longer than 4096 characters.
const maxMessageLength = 4000

func formatProducts(products []llm.Product) string {
	if len(products) == 0 {
		return MsgNoProducts
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(MsgProductsHeader, pluralize("product", "products", len(products))))
	sb.WriteString("\n")
	for _, p := range products {
		emoji := p.Emoji
		if emoji == "" {
			emoji = "•"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", emoji, escapeMarkdown(p.Name)))
	}
	return strings.TrimSpace(sb.String())
}

// formatRecipe renders a recipe card. Available ingredients are ticked.
func formatRecipe(r llm.Recipe) string {
	var sb strings.Builder

	icon := enrich.PlaceholderFor(r).Icon
	sb.WriteString(fmt.Sprintf("%s *%s*\n", icon, escapeMarkdown(r.Name)))

	var meta []string
	if r.PrepTime != "" {
		meta = append(meta, fmt.Sprintf(MsgPrepTime, escapeMarkdown(r.PrepTime)))
	}
	if r.Difficulty != "" {
		meta = append(meta, fmt.Sprintf(MsgDifficulty, r.Difficulty))
	}
	if len(meta) > 0 {
		sb.WriteString(strings.Join(meta, " · "))
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + MsgIngredients + "\n")
	for _, ing := range r.Ingredients {
		mark := "▫️"
		if r.HasIngredient(ing) {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, escapeMarkdown(ing)))
	}
	if len(r.MissingIngredients) > 0 {
		sb.WriteString(fmt.Sprintf(MsgMissing, escapeMarkdown(strings.Join(r.MissingIngredients, ", "))))
		sb.WriteString("\n")
	}

	if r.Instructions != "" {
		sb.WriteString("\n" + MsgInstructions + "\n")
		sb.WriteString(escapeMarkdown(r.Instructions))
		sb.WriteString("\n")
	}

	if r.Substitution != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(MsgSubstitution, escapeMarkdown(r.Substitution.Original), escapeMarkdown(r.Substitution.Replacement)))
		if r.Substitution.Reason != "" {
			sb.WriteString(" (" + escapeMarkdown(r.Substitution.Reason) + ")")
		}
		sb.WriteString("\n")
	}

	if len(r.Alternatives) > 0 {
		sb.WriteString("\n" + MsgAlternatives + "\n")
		for _, alt := range r.Alternatives {
			sb.WriteString(fmt.Sprintf("• %s: %s\n", escapeMarkdown(alt.Name), escapeMarkdown(alt.Description)))
		}
	}

	return truncate(strings.TrimSpace(sb.String()), maxMessageLength)
}

func favoriteButton(scanID, recipeID string, isFavorite bool) tgbotapi.InlineKeyboardMarkup {
	label := BtnFavorite
	if isFavorite {
		label = BtnUnfavorite
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "fav:"+scanID+":"+recipeID),
		),
	)
}

func recentScansKeyboard(scans []storage.RecentScan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(scans))
	for _, s := range scans {
		label := fmt.Sprintf(BtnShowScan,
			time.UnixMilli(s.Timestamp).UTC().Format("Jan 2 15:04"),
			scanSummary(s))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncate(label, 60), "scan:"+s.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// scanSummary names the first products of a scan.
func scanSummary(s storage.RecentScan) string {
	names := make([]string, 0, 3)
	for i, p := range s.Products {
		if i == 3 {
			break
		}
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return pluralize("recipe", "recipes", len(s.CompleteRecipes)+len(s.NeedMoreRecipes))
	}
	return strings.Join(names, ", ")
}

func favoritesKeyboard(favorites []storage.FavoriteRecipe) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(favorites))
	for _, f := range favorites {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncate(f.Name, 40), "fv:"+f.ID),
			tgbotapi.NewInlineKeyboardButtonData("✕", "unfav:"+f.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func languageKeyboard(current string) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, code := range i18n.Supported() {
		label := i18n.NativeName(code)
		if code == current {
			label = "✓ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "lang:"+code))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
