package bot

import (
	"context"
	"strings"

	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/llm"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// handleRecentCommand lists recent scans in the current language.
func (b *Bot) handleRecentCommand(ctx context.Context, session *UserSession) {
	scans := b.deps.Library.RecentScans(ctx, session.profile, b.language(ctx, session))
	if len(scans) == 0 {
		session.reply(MsgNoRecentScans)
		return
	}
	session.replyWithKeyboard(recentScansKeyboard(scans), MsgRecentScansHeader)
}

// displayed returns the scan with scanID, preferring what the session is
// already showing. An empty scanID means the unsaved current result.
func (b *Bot) displayed(ctx context.Context, session *UserSession, scanID string) *displayedScan {
	if cur := session.current; cur != nil && cur.ScanID == scanID {
		return cur
	}
	if scanID == "" {
		return nil
	}
	saved := b.deps.Library.RecentScanByID(ctx, session.profile, scanID)
	if saved == nil {
		return nil
	}
	return &displayedScan{ScanID: saved.ID, Language: saved.Language, Result: saved.Result()}
}

// handleShowScan re-displays a saved scan.
func (b *Bot) handleShowScan(ctx context.Context, session *UserSession, scanID string) {
	saved := b.deps.Library.RecentScanByID(ctx, session.profile, scanID)
	if saved == nil {
		session.reply(MsgScanNotFound)
		return
	}
	session.current = &displayedScan{ScanID: saved.ID, Language: saved.Language, Result: saved.Result()}
	b.showResult(ctx, session, session.current)

	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(BtnDeleteScan, "del:"+saved.ID),
	))
	if b.deps.Suggester != nil && len(saved.Products) > 0 {
		markup.InlineKeyboard[0] = append(markup.InlineKeyboard[0],
			tgbotapi.NewInlineKeyboardButtonData(BtnMoreRecipes, "more:"+saved.ID))
	}
	session._reply(scanSummary(*saved), markup)
}

// handleDeleteScan removes a saved scan and its buttons.
func (b *Bot) handleDeleteScan(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery, scanID string) string {
	b.deps.Library.DeleteRecentScan(ctx, session.profile, scanID)
	if session.current != nil && session.current.ScanID == scanID {
		session.current = nil
	}
	b.editKeyboard(query, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	return MsgScanDeleted
}

// handleFavoriteToggle saves or removes the recipe behind a card's star
// button. Data is "<scanID>:<recipeID>".
func (b *Bot) handleFavoriteToggle(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery, data string) string {
	scanID, recipeID, ok := strings.Cut(data, ":")
	if !ok || recipeID == "" {
		return ""
	}
	lib := b.deps.Library

	if lib.IsRecipeFavorite(ctx, session.profile, recipeID) {
		lib.RemoveFavoriteRecipe(ctx, session.profile, recipeID)
		b.editKeyboard(query, favoriteButton(scanID, recipeID, false))
		return MsgFavoriteRemoved
	}

	shown := b.displayed(ctx, session, scanID)
	recipe, found := shown.findRecipe(recipeID)
	if !found {
		return MsgRecipeNotAvailable
	}

	isPro := b.deps.Entitlements.CheckProStatus(ctx, session.profile)
	if !lib.SaveFavoriteRecipe(ctx, session.profile, recipe, shown.Language, isPro) {
		session.reply(MsgFavoritesFull, entitlement.MaxFavorites(isPro))
		return MsgFavoritesFullCallout
	}
	log.Info().Int64("userId", session.userId).Str("recipe", recipe.Name).Msg("saved favorite recipe")
	b.editKeyboard(query, favoriteButton(scanID, recipeID, true))
	return MsgFavoriteSaved
}

// handleFavoritesCommand lists saved recipes in the current language.
func (b *Bot) handleFavoritesCommand(ctx context.Context, session *UserSession) {
	favorites := b.deps.Library.FavoriteRecipes(ctx, session.profile, b.language(ctx, session))
	if len(favorites) == 0 {
		session.reply(MsgNoFavorites)
		return
	}
	isPro := b.deps.Entitlements.CheckProStatus(ctx, session.profile)
	total := b.deps.Library.FavoritesCount(ctx, session.profile)
	session.replyWithKeyboard(favoritesKeyboard(favorites), MsgFavoritesHeader, total, entitlement.MaxFavorites(isPro))
}

func (b *Bot) findFavorite(ctx context.Context, session *UserSession, id string) (llm.Recipe, bool) {
	// Any language: the list may have been shown before a language change.
	for _, f := range b.deps.Library.AllFavoriteRecipes(ctx, session.profile) {
		if f.ID == id {
			return f.Recipe, true
		}
	}
	return llm.Recipe{}, false
}

// handleShowFavorite sends the card of a saved recipe.
func (b *Bot) handleShowFavorite(ctx context.Context, session *UserSession, id string) {
	recipe, ok := b.findFavorite(ctx, session, id)
	if !ok {
		session.reply(MsgRecipeNotAvailable)
		return
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(BtnUnfavorite, "unfav:"+id),
	))
	session._reply(formatRecipe(recipe), markup)
}

// handleRemoveFavorite removes a saved recipe from the favorites list.
func (b *Bot) handleRemoveFavorite(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery, id string) string {
	b.deps.Library.RemoveFavoriteRecipe(ctx, session.profile, id)

	if query.Message != nil && query.Message.ReplyMarkup != nil {
		// Drop the removed recipe's row from the list it was pressed in.
		kept := [][]tgbotapi.InlineKeyboardButton{}
		for _, row := range query.Message.ReplyMarkup.InlineKeyboard {
			if !rowMatches(row, "unfav:"+id) {
				kept = append(kept, row)
			}
		}
		b.editKeyboard(query, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: kept})
	}
	return MsgFavoriteRemoved
}

func rowMatches(row []tgbotapi.InlineKeyboardButton, data string) bool {
	for _, btn := range row {
		if btn.CallbackData != nil && *btn.CallbackData == data {
			return true
		}
	}
	return false
}
