package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/scan"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Session message types.
const (
	msgCallback     = "callback"
	msgPhoto        = "photo"
	msgText         = "text"
	msgScanComplete = "scan_complete"
	msgEnriched     = "enriched"
	msgSuggested    = "suggested"
)

// SessionMessage represents a message to be processed by the session worker.
type SessionMessage struct {
	Type string
	Ctx  context.Context
	Done chan struct{} // Closed when processing is complete (for synchronous dispatch)

	// Message data (only one is set based on Type)
	Message       *tgbotapi.Message
	CallbackQuery *tgbotapi.CallbackQuery
	Text          string

	// Results posted back by background jobs
	ScanResult    *ScanResult
	Enriched      *EnrichedRecipes
	SuggestResult *SuggestResult
}

// ScanResult is a finished pipeline run for the scan started as Generation.
type ScanResult struct {
	Generation int
	Language   string
	Outcome    *scan.Outcome
	Err        error
}

// EnrichedRecipes carries recipes with photos filled in.
type EnrichedRecipes struct {
	Generation int
	Recipes    []llm.Recipe
}

// SuggestResult carries additional recipe ideas.
type SuggestResult struct {
	Generation int
	Recipes    []llm.Recipe
	Err        error
}

// displayedScan is the result the user is currently looking at. Favorite
// buttons resolve recipes against it first.
type displayedScan struct {
	ScanID   string
	Language string
	Result   *llm.AnalysisResult
	// Extra holds recipes added by "more ideas".
	Extra []llm.Recipe
}

func (d *displayedScan) findRecipe(id string) (llm.Recipe, bool) {
	if d == nil || d.Result == nil {
		return llm.Recipe{}, false
	}
	if r, ok := d.Result.FindRecipe(id); ok {
		return r, true
	}
	for _, r := range d.Extra {
		if r.ID == id {
			return r, true
		}
	}
	return llm.Recipe{}, false
}

// MessageSender abstracts the ability to send Telegram messages.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MessageHandler is the interface for processing session messages.
type MessageHandler interface {
	HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage)
}

// UserSession represents a user's session with the bot.
//
// Each session has a dedicated worker goroutine that processes messages
// sequentially, so handlers access session state without locks. Slow work
// (download, analysis, enrichment) runs in background jobs which post their
// results back to the inbox. Every scan gets a new generation; results of
// an older generation are dropped.
type UserSession struct {
	userId  int64
	profile string
	sender  MessageSender

	inbox   chan SessionMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handler MessageHandler

	generation int
	scanCtx    context.Context
	scanCancel context.CancelFunc
	current    *displayedScan
}

// beginScan cancels whatever the previous scan was still doing and returns
// the context and generation of a new one.
func (s *UserSession) beginScan(parent context.Context) (context.Context, int) {
	s.cancelScan()
	s.scanCtx, s.scanCancel = context.WithCancel(parent)
	s.generation++
	return s.scanCtx, s.generation
}

// cancelScan aborts the running scan and its enrichment. Reports whether
// there was anything to cancel.
func (s *UserSession) cancelScan() bool {
	if s.scanCancel == nil {
		return false
	}
	s.scanCancel()
	s.scanCancel = nil
	s.scanCtx = nil
	s.generation++
	return true
}

// isCurrent reports whether generation is the running scan.
func (s *UserSession) isCurrent(generation int) bool {
	return generation == s.generation && s.scanCtx != nil && s.scanCtx.Err() == nil
}

func (s *UserSession) replyWithError(err error) tgbotapi.Message {
	log.Error().Stack().Err(err).Send()
	return s._reply(formatReplyText(MsgUnexpectedErr, err), nil)
}

// sendTypingAction sends a "typing" chat action to show the user that the bot is processing.
func (s *UserSession) sendTypingAction() {
	action := tgbotapi.NewChatAction(s.userId, tgbotapi.ChatTyping)
	// sendChatAction returns a boolean, not a Message
	_, err := s.sender.Request(action)
	if err != nil {
		log.Debug().Err(err).Int64("userId", s.userId).Msg("failed to send typing action")
	}
}

// startTypingLoop sends a typing action every 4 seconds until the context is cancelled.
func (s *UserSession) startTypingLoop(ctx context.Context) {
	s.sendTypingAction()

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendTypingAction()
		}
	}
}

func (s *UserSession) replyWithMessage(msg tgbotapi.MessageConfig) tgbotapi.Message {
	msg.ChatID = s.userId
	sent, err := s.sender.Send(msg)
	if err != nil {
		log.Error().Stack().
			Interface("msg", msg).
			Err(fmt.Errorf("failed to send reply message: %w", err)).Send()
	} else {
		log.Debug().Int64("userId", s.userId).Int("messageId", sent.MessageID).Msg("sent message")
	}

	return sent
}

func (s *UserSession) _reply(text string, markup any) tgbotapi.Message {
	msg := tgbotapi.MessageConfig{
		Text:      text,
		ParseMode: tgbotapi.ModeMarkdown,
	}
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return s.replyWithMessage(msg)
}

func (s *UserSession) reply(text string, a ...any) tgbotapi.Message {
	return s._reply(formatReplyText(text, a...), nil)
}

func (s *UserSession) replyWithKeyboard(markup tgbotapi.InlineKeyboardMarkup, text string, a ...any) tgbotapi.Message {
	return s._reply(formatReplyText(text, a...), markup)
}

// --- Worker methods ---

// StartWorker starts the session's message processing worker goroutine.
// Must be called after setting the handler.
func (s *UserSession) StartWorker() {
	s.wg.Add(1)
	go s.runWorker()
}

// SetHandler sets the message handler for this session.
func (s *UserSession) SetHandler(handler MessageHandler) {
	s.handler = handler
}

func (s *UserSession) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.cancelScan()
			// Drain any remaining messages and signal completion
			for {
				select {
				case msg := <-s.inbox:
					if msg.Done != nil {
						close(msg.Done)
					}
				default:
					return
				}
			}
		case msg := <-s.inbox:
			s.processMessage(msg)
		}
	}
}

func (s *UserSession) processMessage(msg SessionMessage) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Int64("userId", s.userId).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if msg.Done != nil {
			close(msg.Done)
		}
	}()

	if s.handler == nil {
		log.Error().Int64("userId", s.userId).Msg("session handler not set")
		return
	}

	ctx := msg.Ctx
	if ctx == nil {
		ctx = s.ctx
	}
	s.handler.HandleSessionMessage(ctx, s, msg)
}

// Send queues a message for processing by the worker.
// This is non-blocking - it returns immediately after queuing.
func (s *UserSession) Send(msg SessionMessage) {
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
		if msg.Done != nil {
			close(msg.Done)
		}
	}
}

// SendSync queues a message and waits for it to be processed.
func (s *UserSession) SendSync(msg SessionMessage) {
	msg.Done = make(chan struct{})
	s.Send(msg)
	<-msg.Done
}

// Stop stops the worker and waits for it to finish.
func (s *UserSession) Stop() {
	s.cancel()
	s.wg.Wait()
}
