package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/i18n"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// handleLanguageCommand shows the language picker, or switches directly
// with "/language pl".
func (b *Bot) handleLanguageCommand(ctx context.Context, session *UserSession, args []string) {
	if len(args) > 0 {
		code := strings.ToLower(args[0])
		if !i18n.IsSupported(code) {
			session.reply(MsgUnknownLanguage)
			return
		}
		b.deps.Library.SetLanguage(ctx, session.profile, code)
		session.reply(MsgLanguageChanged, i18n.EnglishName(code))
		return
	}

	current := b.language(ctx, session)
	session.replyWithKeyboard(languageKeyboard(current), MsgChooseLanguage, i18n.NativeName(current))
}

func (b *Bot) handleLanguageSelection(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery, code string) string {
	if !i18n.IsSupported(code) {
		return MsgUnknownLanguage
	}
	b.deps.Library.SetLanguage(ctx, session.profile, code)
	log.Info().Int64("userId", session.userId).Str("language", code).Msg("language changed")
	b.editKeyboard(query, languageKeyboard(code))
	return fmt.Sprintf(MsgLanguageChanged, i18n.EnglishName(code))
}

// handleUsageCommand shows the plan, today's scans and favorites count.
func (b *Bot) handleUsageCommand(ctx context.Context, session *UserSession) {
	ent := b.deps.Entitlements
	isPro := ent.CheckProStatus(ctx, session.profile)
	favorites := b.deps.Library.FavoritesCount(ctx, session.profile)

	if isPro {
		session.reply(MsgUsagePro, favorites, entitlement.ProMaxFavorites)
		return
	}
	usage := ent.DailyUsage(ctx, session.profile)
	session.reply(MsgUsageFree, usage.Count, entitlement.FreeDailyScans, favorites, entitlement.FreeMaxFavorites)
}

// handleProCommand describes the pro tier and the packages on offer.
// Purchases happen in the store apps; the bot only reflects them.
func (b *Bot) handleProCommand(ctx context.Context, session *UserSession) {
	ent := b.deps.Entitlements
	if ent.CheckProStatus(ctx, session.profile) {
		session.reply(MsgProActive)
		return
	}

	offering := ent.Offerings(ctx, session.profile, b.language(ctx, session))
	if offering == nil || len(offering.Packages) == 0 {
		session.reply(MsgProNoOffer)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(MsgProOffer, entitlement.ProMaxFavorites, entitlement.ProMaxRecentScans))
	if offering.Description != "" {
		sb.WriteString(escapeMarkdown(offering.Description) + "\n")
	}
	for _, pkg := range offering.Packages {
		sb.WriteString(fmt.Sprintf(MsgProPackage, escapeMarkdown(pkg.Identifier)))
		sb.WriteString("\n")
	}
	sb.WriteString(MsgProHowTo)
	session._reply(sb.String(), nil)
}

// handleRestoreCommand refreshes the subscriber state from billing.
func (b *Bot) handleRestoreCommand(ctx context.Context, session *UserSession) {
	session.sendTypingAction()
	if b.deps.Entitlements.Restore(ctx, session.profile, "") {
		session.reply(MsgRestoreOk)
		return
	}
	session.reply(MsgRestoreNo)
}

// handleDebugLogsCommand shows the in-memory log ring to the admin.
// Other users get the generic prompt so the command stays hidden.
func (b *Bot) handleDebugLogsCommand(session *UserSession, args []string) {
	if b.deps.AdminID == 0 || session.userId != b.deps.AdminID || b.deps.Logs == nil {
		session.reply(MsgStartPrompt)
		return
	}

	if len(args) > 0 && args[0] == "clear" {
		b.deps.Logs.Clear()
		session.reply(MsgDebugLogsClear)
		return
	}

	entries := b.deps.Logs.Entries()
	if len(entries) == 0 {
		session.reply(MsgDebugLogsEmpty)
		return
	}

	const shown = 20
	if len(entries) > shown {
		entries = entries[len(entries)-shown:]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(MsgDebugLogsHeader, len(entries)))
	for _, e := range entries {
		line := fmt.Sprintf("%s %s %s", e.Time.UTC().Format("15:04:05"), strings.ToUpper(string(e.Level)), e.Message)
		if e.Error != "" {
			line += ": " + e.Error
		}
		sb.WriteString("`" + strings.ReplaceAll(truncate(line, 300), "`", "'") + "`\n")
	}
	session._reply(truncate(sb.String(), maxMessageLength), nil)
}
