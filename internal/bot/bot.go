// Package bot is the Telegram front end of the scan pipeline.
package bot

import (
	"context"
	"strings"

	"github.com/forcetech/cookvision/internal/billing"
	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/i18n"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/scan"
	"github.com/forcetech/cookvision/internal/storage"
	"github.com/forcetech/cookvision/internal/telemetry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Scanner runs the photo pipeline.
type Scanner interface {
	Run(ctx context.Context, req scan.Request) (*scan.Outcome, error)
	Enrich(ctx context.Context, recipes []llm.Recipe) []llm.Recipe
}

// Library is the persisted per-profile state.
type Library interface {
	RecentScans(ctx context.Context, profile, language string) []storage.RecentScan
	RecentScanByID(ctx context.Context, profile, id string) *storage.RecentScan
	DeleteRecentScan(ctx context.Context, profile, id string)
	SaveFavoriteRecipe(ctx context.Context, profile string, recipe llm.Recipe, language string, isPro bool) bool
	RemoveFavoriteRecipe(ctx context.Context, profile, id string)
	FavoriteRecipes(ctx context.Context, profile, language string) []storage.FavoriteRecipe
	AllFavoriteRecipes(ctx context.Context, profile string) []storage.FavoriteRecipe
	IsRecipeFavorite(ctx context.Context, profile, id string) bool
	FavoritesCount(ctx context.Context, profile string) int
	OnboardingComplete(ctx context.Context, profile string) bool
	SetOnboardingComplete(ctx context.Context, profile string)
	Language(ctx context.Context, profile string) string
	SetLanguage(ctx context.Context, profile, language string)
}

// Entitlements answers subscription questions.
type Entitlements interface {
	CheckProStatus(ctx context.Context, profile string) bool
	DailyUsage(ctx context.Context, profile string) entitlement.ScanUsage
	RemainingScans(ctx context.Context, profile string, isPro bool) entitlement.Remaining
	Offerings(ctx context.Context, profile, language string) *billing.Offering
	Restore(ctx context.Context, profile, token string) bool
}

// LogSource exposes recently recorded warnings and errors.
type LogSource interface {
	Entries() []telemetry.Entry
	Clear()
}

// Deps are the services the bot drives. Suggester and Logs may be nil.
type Deps struct {
	Scanner         Scanner
	Library         Library
	Entitlements    Entitlements
	Suggester       llm.RecipeSuggester
	Logs            LogSource
	Downloader      *ImageDownloader
	DefaultLanguage string
	AdminID         int64
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg    BotAPI
	state BotState
	deps  Deps

	// runJob starts background work; tests replace it to run inline.
	runJob func(func())
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, deps Deps) *Bot {
	if deps.Downloader == nil {
		deps.Downloader = NewImageDownloader()
	}
	if deps.DefaultLanguage == "" {
		deps.DefaultLanguage = i18n.Default
	}
	bot := &Bot{
		tg:     tg,
		deps:   deps,
		runJob: func(f func()) { go f() },
	}
	bot.state = bot.NewBotState()
	return bot
}

// Shutdown stops all session workers.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	if update.CallbackQuery != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	// Only private chats; the chat id doubles as the user id for replies.
	if update.Message != nil && update.Message.Chat != nil && !update.Message.Chat.IsPrivate() {
		return
	}

	session := b.state.getUserSession(userId)

	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          msgCallback,
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	message := update.Message
	log.Info().Int64("userId", userId).Str("text", message.Text).Bool("photo", len(message.Photo) > 0).Msg("got message")

	if len(message.Photo) > 0 || isImageDocument(message.Document) {
		send(SessionMessage{Type: msgPhoto, Ctx: ctx, Message: message})
		return
	}
	send(SessionMessage{Type: msgText, Ctx: ctx, Message: message})
}

func isImageDocument(doc *tgbotapi.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "image/")
}

// HandleSessionMessage implements MessageHandler. It is called by the
// session worker goroutine only.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case msgCallback:
		b.handleCallbackQuery(ctx, session, msg.CallbackQuery)
	case msgPhoto:
		b.handlePhotoMessage(ctx, session, msg.Message)
	case msgText:
		b.handleCommand(ctx, session, msg.Message)
	case msgScanComplete:
		b.handleScanComplete(ctx, session, msg.ScanResult)
	case msgEnriched:
		b.handleEnriched(session, msg.Enriched)
	case msgSuggested:
		b.handleSuggested(ctx, session, msg.SuggestResult)
	}
}

// handleCommand processes bot commands.
func (b *Bot) handleCommand(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	switch command {
	case "/start":
		b.handleStart(ctx, session, message.From)
	case "/help":
		session.reply(MsgHelp)
	case "/cancel":
		if session.cancelScan() {
			session.reply(MsgCancelled)
		} else {
			session.reply(MsgNothingToStop)
		}
	case "/recent":
		b.handleRecentCommand(ctx, session)
	case "/favorites":
		b.handleFavoritesCommand(ctx, session)
	case "/language":
		b.handleLanguageCommand(ctx, session, args)
	case "/usage":
		b.handleUsageCommand(ctx, session)
	case "/pro":
		b.handleProCommand(ctx, session)
	case "/restore":
		b.handleRestoreCommand(ctx, session)
	case "/debuglogs":
		b.handleDebugLogsCommand(session, args)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgStartPrompt)
	}
}

// handleCallbackQuery routes inline keyboard button presses by prefix.
func (b *Bot) handleCallbackQuery(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	action, arg, _ := strings.Cut(query.Data, ":")

	var answer string
	switch action {
	case "fav":
		answer = b.handleFavoriteToggle(ctx, session, query, arg)
	case "fv":
		b.handleShowFavorite(ctx, session, arg)
	case "unfav":
		answer = b.handleRemoveFavorite(ctx, session, query, arg)
	case "scan":
		b.handleShowScan(ctx, session, arg)
	case "del":
		answer = b.handleDeleteScan(ctx, session, query, arg)
	case "lang":
		answer = b.handleLanguageSelection(ctx, session, query, arg)
	case "more":
		b.handleMoreRecipes(ctx, session, arg)
	default:
		log.Warn().Str("data", query.Data).Msg("unknown callback")
	}

	// Answer the callback to remove the loading state
	if _, err := b.tg.Request(tgbotapi.NewCallback(query.ID, answer)); err != nil {
		log.Debug().Err(err).Msg("failed to answer callback")
	}
}

// handleStart greets the user. On first contact the output language is
// taken from the Telegram client language.
func (b *Bot) handleStart(ctx context.Context, session *UserSession, from *tgbotapi.User) {
	lib := b.deps.Library
	if lib.Language(ctx, session.profile) == "" && from != nil && from.LanguageCode != "" {
		lib.SetLanguage(ctx, session.profile, i18n.Match(from.LanguageCode))
	}

	if lib.OnboardingComplete(ctx, session.profile) {
		session.reply(MsgStartPrompt)
		return
	}

	session.reply(MsgWelcome, entitlement.FreeDailyScans, entitlement.FreeMaxFavorites)
	lib.SetOnboardingComplete(ctx, session.profile)
}

// language is the output language of the profile.
func (b *Bot) language(ctx context.Context, session *UserSession) string {
	if lang := b.deps.Library.Language(ctx, session.profile); lang != "" {
		return lang
	}
	return b.deps.DefaultLanguage
}

// editKeyboard replaces the inline keyboard of the message a callback came from.
func (b *Bot) editKeyboard(query *tgbotapi.CallbackQuery, markup tgbotapi.InlineKeyboardMarkup) {
	if query.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(query.Message.Chat.ID, query.Message.MessageID, markup)
	if _, err := b.tg.Request(edit); err != nil {
		log.Debug().Err(err).Msg("failed to edit keyboard")
	}
}
