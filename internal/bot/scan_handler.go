package bot

import (
	"bytes"
	"context"
	"errors"

	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/imageprep"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/scan"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Telegram media groups hold 2-10 items.
const maxMediaGroup = 10

// handlePhotoMessage starts a scan of the photo. A scan that is still
// running for this user is cancelled first.
func (b *Bot) handlePhotoMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	fileID := photoFileID(message)
	if fileID == "" {
		session.reply(MsgStartPrompt)
		return
	}

	language := b.language(ctx, session)
	scanCtx, generation := session.beginScan(ctx)
	session.reply(MsgAnalyzing)

	b.runJob(func() {
		typingCtx, stopTyping := context.WithCancel(scanCtx)
		defer stopTyping()
		go session.startTypingLoop(typingCtx)

		result := &ScanResult{Generation: generation, Language: language}

		data, err := b.deps.Downloader.DownloadFromTelegramFileID(scanCtx, b.tg.GetFileDirectURL, fileID)
		if err != nil {
			result.Err = errDownload{err}
		} else {
			result.Outcome, result.Err = b.deps.Scanner.Run(scanCtx, scan.Request{
				Profile:  session.profile,
				Photo:    bytes.NewReader(data),
				Language: language,
			})
		}

		session.Send(SessionMessage{Type: msgScanComplete, Ctx: ctx, ScanResult: result})
	})
}

// photoFileID picks the largest photo size, or an image sent as a file.
func photoFileID(message *tgbotapi.Message) string {
	if n := len(message.Photo); n > 0 {
		return message.Photo[n-1].FileID
	}
	if isImageDocument(message.Document) {
		return message.Document.FileID
	}
	return ""
}

type errDownload struct{ err error }

func (e errDownload) Error() string { return "download photo: " + e.err.Error() }
func (e errDownload) Unwrap() error { return e.err }

// handleScanComplete shows the outcome of a scan, unless the scan was
// superseded or cancelled meanwhile.
func (b *Bot) handleScanComplete(ctx context.Context, session *UserSession, result *ScanResult) {
	if result == nil || !session.isCurrent(result.Generation) {
		log.Info().Int64("userId", session.userId).Msg("dropping result of cancelled scan")
		return
	}

	if result.Err != nil {
		session.cancelScan()
		b.replyScanError(session, result.Err)
		return
	}

	outcome := result.Outcome
	if outcome.LimitReached {
		session.cancelScan()
		session.reply(MsgScanLimitReached, entitlement.FreeDailyScans)
		return
	}

	scanID := ""
	if outcome.Scan != nil {
		scanID = outcome.Scan.ID
	}
	session.current = &displayedScan{
		ScanID:   scanID,
		Language: result.Language,
		Result:   outcome.Result,
	}

	b.showResult(ctx, session, session.current)

	footer := formatReplyText(MsgRemainingScans, outcome.Remaining.String())
	if b.deps.Suggester != nil && len(outcome.Result.Products) > 0 {
		markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnMoreRecipes, "more:"+scanID),
		))
		session._reply(footer, markup)
	} else {
		session._reply(footer, nil)
	}

	b.startEnrichment(session, result.Generation, outcome.Result.Recipes())
}

func (b *Bot) replyScanError(session *UserSession, err error) {
	var dl errDownload
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.As(err, &dl):
		log.Warn().Err(err).Int64("userId", session.userId).Msg("photo download failed")
		session.reply(MsgPhotoDownloadFail)
	case errors.Is(err, imageprep.ErrPrepareFailed):
		log.Warn().Err(err).Int64("userId", session.userId).Msg("photo could not be prepared")
		session.reply(MsgPhotoReadFailed)
	case errors.Is(err, llm.ErrNotFridgeImage):
		session.reply(MsgNotFridge)
	default:
		log.Error().Err(err).Int64("userId", session.userId).Msg("scan failed")
		session.reply(MsgAnalysisFailed)
	}
}

// showResult sends the products followed by one card per recipe.
func (b *Bot) showResult(ctx context.Context, session *UserSession, shown *displayedScan) {
	res := shown.Result
	session._reply(formatProducts(res.Products), nil)

	if len(res.CompleteRecipes) == 0 && len(res.NeedMoreRecipes) == 0 {
		session.reply(MsgNoRecipes)
		return
	}
	if len(res.CompleteRecipes) > 0 {
		session.reply(MsgCompleteHeader)
		b.sendRecipeCards(ctx, session, shown.ScanID, res.CompleteRecipes)
	}
	if len(res.NeedMoreRecipes) > 0 {
		session.reply(MsgNeedMoreHeader)
		b.sendRecipeCards(ctx, session, shown.ScanID, res.NeedMoreRecipes)
	}
}

func (b *Bot) sendRecipeCards(ctx context.Context, session *UserSession, scanID string, recipes []llm.Recipe) {
	for _, r := range recipes {
		isFavorite := b.deps.Library.IsRecipeFavorite(ctx, session.profile, r.ID)
		session._reply(formatRecipe(r), favoriteButton(scanID, r.ID, isFavorite))
	}
}

// startEnrichment looks up recipe photos in the background. The lookups
// share the scan's context, so a new scan or /cancel stops them.
func (b *Bot) startEnrichment(session *UserSession, generation int, recipes []llm.Recipe) {
	scanCtx := session.scanCtx
	if scanCtx == nil {
		return
	}
	if len(recipes) == 0 {
		session.cancelScan()
		return
	}
	b.runJob(func() {
		enriched := b.deps.Scanner.Enrich(scanCtx, recipes)
		if scanCtx.Err() != nil {
			return
		}
		session.Send(SessionMessage{
			Type:     msgEnriched,
			Enriched: &EnrichedRecipes{Generation: generation, Recipes: enriched},
		})
	})
}

// handleEnriched posts the found recipe photos as one album and releases
// the scan.
func (b *Bot) handleEnriched(session *UserSession, enriched *EnrichedRecipes) {
	if enriched == nil || !session.isCurrent(enriched.Generation) {
		return
	}
	defer session.cancelScan()

	var withImages []llm.Recipe
	for _, r := range enriched.Recipes {
		if r.ImageURL != "" && len(withImages) < maxMediaGroup {
			withImages = append(withImages, r)
		}
	}

	switch len(withImages) {
	case 0:
		return
	case 1:
		photo := tgbotapi.NewPhoto(session.userId, tgbotapi.FileURL(withImages[0].ImageURL))
		photo.Caption = truncate(withImages[0].Name, 1024)
		if _, err := b.tg.Send(photo); err != nil {
			log.Debug().Err(err).Msg("failed to send recipe photo")
		}
	default:
		media := make([]any, 0, len(withImages))
		for _, r := range withImages {
			photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(r.ImageURL))
			photo.Caption = truncate(r.Name, 1024)
			media = append(media, photo)
		}
		// sendMediaGroup returns an array of messages, so it goes through Request.
		if _, err := b.tg.Request(tgbotapi.NewMediaGroup(session.userId, media)); err != nil {
			log.Debug().Err(err).Msg("failed to send recipe photos")
		}
	}
}

// handleMoreRecipes asks the model for further ideas for the products of
// the displayed scan.
func (b *Bot) handleMoreRecipes(ctx context.Context, session *UserSession, scanID string) {
	if b.deps.Suggester == nil {
		return
	}
	shown := b.displayed(ctx, session, scanID)
	if shown == nil || len(shown.Result.Products) == 0 {
		session.reply(MsgScanNotFound)
		return
	}
	session.current = shown

	scanCtx, generation := session.beginScan(ctx)
	products := shown.Result.Products
	language := shown.Language

	b.runJob(func() {
		typingCtx, stopTyping := context.WithCancel(scanCtx)
		defer stopTyping()
		go session.startTypingLoop(typingCtx)

		recipes, err := b.deps.Suggester.SuggestRecipes(scanCtx, products, language)
		session.Send(SessionMessage{
			Type:          msgSuggested,
			Ctx:           ctx,
			SuggestResult: &SuggestResult{Generation: generation, Recipes: recipes, Err: err},
		})
	})
}

func (b *Bot) handleSuggested(ctx context.Context, session *UserSession, result *SuggestResult) {
	if result == nil || !session.isCurrent(result.Generation) {
		return
	}
	defer session.cancelScan()

	if result.Err != nil {
		if !errors.Is(result.Err, context.Canceled) {
			log.Warn().Err(result.Err).Int64("userId", session.userId).Msg("recipe suggestions failed")
			session.reply(MsgMoreRecipesFailed)
		}
		return
	}
	if len(result.Recipes) == 0 || session.current == nil {
		session.reply(MsgMoreRecipesNone)
		return
	}

	session.current.Extra = append(session.current.Extra, result.Recipes...)
	session.reply(MsgMoreRecipesHeader)
	b.sendRecipeCards(ctx, session, session.current.ScanID, result.Recipes)
}
