package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/forcetech/cookvision/internal/billing"
	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/scan"
	"github.com/forcetech/cookvision/internal/storage"
	"github.com/forcetech/cookvision/internal/telemetry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  int64 = 42
	testAdminID int64 = 7
)

// telegramRecorder records everything the bot sends.
type telegramRecorder struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileBase string
}

func (r *telegramRecorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c)
	return tgbotapi.Message{MessageID: len(r.sent)}, nil
}

func (r *telegramRecorder) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (r *telegramRecorder) GetFileDirectURL(fileID string) (string, error) {
	return r.fileBase + "/" + fileID, nil
}

func (r *telegramRecorder) messages() []tgbotapi.MessageConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range r.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (r *telegramRecorder) texts() []string {
	var out []string
	for _, msg := range r.messages() {
		out = append(out, msg.Text)
	}
	return out
}

func (r *telegramRecorder) lastText() string {
	texts := r.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (r *telegramRecorder) callbackAnswers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (r *telegramRecorder) photos() []tgbotapi.PhotoConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range r.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

type scannerMock struct {
	mock.Mock
}

func (m *scannerMock) Run(ctx context.Context, req scan.Request) (*scan.Outcome, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(*scan.Outcome)
	return out, args.Error(1)
}

func (m *scannerMock) Enrich(ctx context.Context, recipes []llm.Recipe) []llm.Recipe {
	args := m.Called(ctx, recipes)
	return args.Get(0).([]llm.Recipe)
}

type suggesterMock struct {
	mock.Mock
}

func (m *suggesterMock) SuggestRecipes(ctx context.Context, products []llm.Product, language string) ([]llm.Recipe, error) {
	args := m.Called(ctx, products, language)
	out, _ := args.Get(0).([]llm.Recipe)
	return out, args.Error(1)
}

type entitlementsFake struct {
	pro      bool
	used     int
	restored bool
	offering *billing.Offering
}

func (f *entitlementsFake) CheckProStatus(context.Context, string) bool { return f.pro }

func (f *entitlementsFake) DailyUsage(context.Context, string) entitlement.ScanUsage {
	return entitlement.ScanUsage{Date: "2026-10-18", Count: f.used}
}

func (f *entitlementsFake) RemainingScans(_ context.Context, _ string, isPro bool) entitlement.Remaining {
	if isPro {
		return entitlement.Remaining{Unlimited: true}
	}
	return entitlement.Remaining{Count: entitlement.FreeDailyScans - f.used}
}

func (f *entitlementsFake) Offerings(context.Context, string, string) *billing.Offering {
	return f.offering
}

func (f *entitlementsFake) Restore(context.Context, string, string) bool { return f.restored }

type testEnv struct {
	t         *testing.T
	tg        *telegramRecorder
	scanner   *scannerMock
	suggester *suggesterMock
	lists     *storage.Lists
	ent       *entitlementsFake
	logs      *telemetry.Ring
	bot       *Bot
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fridge-photo" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	t.Cleanup(images.Close)

	store, err := storage.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		t:         t,
		tg:        &telegramRecorder{fileBase: images.URL},
		scanner:   new(scannerMock),
		suggester: new(suggesterMock),
		lists:     storage.NewLists(store),
		ent:       &entitlementsFake{},
		logs:      telemetry.NewRing(10),
	}
	env.bot = NewBot(env.tg, Deps{
		Scanner:      env.scanner,
		Library:      env.lists,
		Entitlements: env.ent,
		Logs:         env.logs,
		AdminID:      testAdminID,
	})
	env.bot.runJob = func(f func()) { f() }
	t.Cleanup(env.bot.Shutdown)
	return env
}

func (e *testEnv) withSuggester() *testEnv {
	e.bot.deps.Suggester = e.suggester
	return e
}

func privateMessage(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, LanguageCode: "pl"},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
	}
}

func (e *testEnv) sendFrom(from int64, text string) {
	e.bot.handleUpdateSync(context.Background(), tgbotapi.Update{Message: privateMessage(from, text)})
}

func (e *testEnv) send(text string) {
	e.sendFrom(testUserID, text)
}

func (e *testEnv) sendPhoto(fileID string) {
	msg := privateMessage(testUserID, "")
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "thumb", Width: 90, Height: 120},
		{FileID: fileID, Width: 900, Height: 1200},
	}
	e.bot.handleUpdateSync(context.Background(), tgbotapi.Update{Message: msg})
	e.flush()
}

// press simulates a tap on an inline button of a bot message.
func (e *testEnv) press(data string) {
	e.bot.handleUpdateSync(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: testUserID},
			Message: privateMessage(testUserID, ""),
			Data:    data,
		},
	})
	e.flush()
}

func (e *testEnv) session() *UserSession {
	return e.bot.state.getUserSession(testUserID)
}

// flush waits until results posted by background jobs are handled.
func (e *testEnv) flush() {
	for i := 0; i < 3; i++ {
		e.session().SendSync(SessionMessage{})
	}
}

func fridgeResult() *llm.AnalysisResult {
	return &llm.AnalysisResult{
		Products: []llm.Product{
			{ID: "1", Name: "Eggs", Emoji: "🥚"},
			{ID: "2", Name: "Milk"},
		},
		CompleteRecipes: []llm.Recipe{{
			ID:                   "r1",
			Name:                 "Omelette",
			Ingredients:          []string{"Eggs", "Milk"},
			AvailableIngredients: []string{"Eggs", "Milk"},
			Instructions:         "Whisk and fry.",
			Category:             llm.CategoryComplete,
		}},
		NeedMoreRecipes: []llm.Recipe{{
			ID:                   "r2",
			Name:                 "Pancakes",
			Ingredients:          []string{"Eggs", "Milk", "Flour"},
			AvailableIngredients: []string{"Eggs", "Milk"},
			MissingIngredients:   []string{"Flour"},
			Category:             llm.CategoryNeedMore,
		}},
	}
}

func hasText(texts []string, substr string) bool {
	for _, txt := range texts {
		if strings.Contains(txt, substr) {
			return true
		}
	}
	return false
}

func TestStart_FirstContactWelcomesAndSetsLanguage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.send("/start")

	assert.Contains(t, env.tg.lastText(), "Welcome to CookVision")
	assert.Contains(t, env.tg.lastText(), "3 scans per day")
	assert.Equal(t, "pl", env.lists.Language(ctx, "42"))
	assert.True(t, env.lists.OnboardingComplete(ctx, "42"))

	env.send("/start")
	assert.Equal(t, MsgStartPrompt, env.tg.lastText())
}

func TestUnknownTextShowsPrompt(t *testing.T) {
	env := newTestEnv(t)
	env.send("hello there")
	assert.Equal(t, MsgStartPrompt, env.tg.lastText())
}

func TestGroupChatsAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	msg := privateMessage(testUserID, "/help")
	msg.Chat.Type = "group"

	env.bot.handleUpdateSync(context.Background(), tgbotapi.Update{Message: msg})

	assert.Empty(t, env.tg.texts())
}

func TestPhoto_ShowsResultsAndAlbum(t *testing.T) {
	env := newTestEnv(t)
	result := fridgeResult()

	env.scanner.On("Run", mock.Anything, mock.MatchedBy(func(req scan.Request) bool {
		return req.Profile == "42" && req.Language == "en" && req.Photo != nil
	})).Return(&scan.Outcome{
		Remaining: entitlement.Remaining{Count: 2},
		Result:    result,
		Scan:      &storage.RecentScan{ID: "1000"},
	}, nil).Once()

	enriched := result.Recipes()
	enriched[0].ImageURL = "https://images.example/omelette.jpg"
	env.scanner.On("Enrich", mock.Anything, mock.Anything).Return(enriched).Once()

	env.sendPhoto("fridge-photo")

	texts := env.tg.texts()
	require.NotEmpty(t, texts)
	assert.Equal(t, MsgAnalyzing, texts[0])
	assert.True(t, hasText(texts, "🥚 Eggs"))
	assert.True(t, hasText(texts, "*Omelette*"))
	assert.True(t, hasText(texts, "*Pancakes*"))
	assert.True(t, hasText(texts, "*Missing:* Flour"))
	assert.Equal(t, "Scans left today: 2", env.tg.lastText())

	var cardButtons []string
	for _, msg := range env.tg.messages() {
		if markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			cardButtons = append(cardButtons, *markup.InlineKeyboard[0][0].CallbackData)
		}
	}
	assert.Equal(t, []string{"fav:1000:r1", "fav:1000:r2"}, cardButtons)

	photos := env.tg.photos()
	require.Len(t, photos, 1)
	assert.Equal(t, "Omelette", photos[0].Caption)

	assert.Nil(t, env.session().scanCtx, "scan is released after enrichment")
	env.scanner.AssertExpectations(t)
}

func TestPhoto_LimitReached(t *testing.T) {
	env := newTestEnv(t)
	env.scanner.On("Run", mock.Anything, mock.Anything).
		Return(&scan.Outcome{LimitReached: true}, nil)

	env.sendPhoto("fridge-photo")

	assert.Equal(t, fmt.Sprintf(MsgScanLimitReached, entitlement.FreeDailyScans), env.tg.lastText())
	env.scanner.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
}

func TestPhoto_ErrorsMapToMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not a fridge", fmt.Errorf("analyze: %w", llm.ErrNotFridgeImage), MsgNotFridge},
		{"analysis failure", errors.New("model unavailable"), MsgAnalysisFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.scanner.On("Run", mock.Anything, mock.Anything).Return(nil, tt.err)

			env.sendPhoto("fridge-photo")

			assert.Equal(t, tt.want, env.tg.lastText())
			assert.Nil(t, env.session().scanCtx)
		})
	}
}

func TestPhoto_DownloadFailure(t *testing.T) {
	env := newTestEnv(t)

	env.sendPhoto("missing-file")

	assert.Equal(t, MsgPhotoDownloadFail, env.tg.lastText())
	env.scanner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestScanComplete_StaleResultIsDropped(t *testing.T) {
	env := newTestEnv(t)
	session := env.session()

	// The scan job never reports back; /cancel supersedes it.
	env.bot.runJob = func(func()) {}
	env.sendPhoto("fridge-photo")
	generation := session.generation
	env.send("/cancel")
	assert.Equal(t, MsgCancelled, env.tg.lastText())

	before := len(env.tg.texts())
	session.SendSync(SessionMessage{
		Type: msgScanComplete,
		ScanResult: &ScanResult{
			Generation: generation,
			Outcome:    &scan.Outcome{Result: fridgeResult()},
		},
	})

	assert.Len(t, env.tg.texts(), before, "nothing is shown for a cancelled scan")
	assert.Nil(t, session.current)
}

func TestCancel_NothingRunning(t *testing.T) {
	env := newTestEnv(t)
	env.send("/cancel")
	assert.Equal(t, MsgNothingToStop, env.tg.lastText())
}

func saveScan(t *testing.T, env *testEnv, language string) *storage.RecentScan {
	t.Helper()
	saved := env.lists.SaveRecentScan(context.Background(), "42", "aW1n", fridgeResult(), language, false)
	require.NotNil(t, saved)
	return saved
}

func TestFavoriteToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saved := saveScan(t, env, "en")

	env.press("fav:" + saved.ID + ":r1")
	assert.True(t, env.lists.IsRecipeFavorite(ctx, "42", "r1"))
	assert.Equal(t, []string{MsgFavoriteSaved}, env.tg.callbackAnswers())

	env.press("fav:" + saved.ID + ":r1")
	assert.False(t, env.lists.IsRecipeFavorite(ctx, "42", "r1"))
	assert.Equal(t, []string{MsgFavoriteSaved, MsgFavoriteRemoved}, env.tg.callbackAnswers())
}

func TestFavoriteToggle_FullList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < entitlement.FreeMaxFavorites; i++ {
		recipe := llm.Recipe{ID: fmt.Sprintf("x%d", i), Name: "Soup"}
		require.True(t, env.lists.SaveFavoriteRecipe(ctx, "42", recipe, "en", false))
	}
	saved := saveScan(t, env, "en")

	env.press("fav:" + saved.ID + ":r1")

	assert.False(t, env.lists.IsRecipeFavorite(ctx, "42", "r1"))
	assert.Equal(t, fmt.Sprintf(MsgFavoritesFull, entitlement.FreeMaxFavorites), env.tg.lastText())
	assert.Equal(t, []string{MsgFavoritesFullCallout}, env.tg.callbackAnswers())
}

func TestFavoriteToggle_UnknownRecipe(t *testing.T) {
	env := newTestEnv(t)
	saved := saveScan(t, env, "en")

	env.press("fav:" + saved.ID + ":nope")

	assert.Equal(t, []string{MsgRecipeNotAvailable}, env.tg.callbackAnswers())
}

func TestFavoritesCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.send("/favorites")
	assert.Equal(t, MsgNoFavorites, env.tg.lastText())

	require.True(t, env.lists.SaveFavoriteRecipe(ctx, "42", fridgeResult().CompleteRecipes[0], "en", false))
	require.True(t, env.lists.SaveFavoriteRecipe(ctx, "42", llm.Recipe{ID: "pl1", Name: "Pierogi"}, "pl", false))

	env.send("/favorites")
	msgs := env.tg.messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, "*Favorite recipes* (2/5)", last.Text)
	markup := last.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, markup.InlineKeyboard, 1, "only recipes in the current language are listed")
	assert.Equal(t, "fv:r1", *markup.InlineKeyboard[0][0].CallbackData)

	env.press("unfav:r1")
	assert.False(t, env.lists.IsRecipeFavorite(ctx, "42", "r1"))
}

func TestRecentCommandAndShowScan(t *testing.T) {
	env := newTestEnv(t)

	env.send("/recent")
	assert.Equal(t, MsgNoRecentScans, env.tg.lastText())

	saved := saveScan(t, env, "en")
	saveScan(t, env, "de")

	env.send("/recent")
	msgs := env.tg.messages()
	markup := msgs[len(msgs)-1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "scan:"+saved.ID, *markup.InlineKeyboard[0][0].CallbackData)

	env.press("scan:" + saved.ID)
	assert.True(t, hasText(env.tg.texts(), "*Omelette*"))
	assert.Equal(t, "Eggs, Milk", env.tg.lastText())

	env.press("del:" + saved.ID)
	assert.Nil(t, env.lists.RecentScanByID(context.Background(), "42", saved.ID))
	assert.Contains(t, env.tg.callbackAnswers(), MsgScanDeleted)
}

func TestMoreRecipes(t *testing.T) {
	env := newTestEnv(t).withSuggester()
	ctx := context.Background()
	saved := saveScan(t, env, "en")

	extra := []llm.Recipe{{ID: "r9", Name: "Frittata", Ingredients: []string{"Eggs"}}}
	env.suggester.On("SuggestRecipes", mock.Anything, fridgeResult().Products, "en").Return(extra, nil).Once()

	env.press("more:" + saved.ID)

	assert.True(t, hasText(env.tg.texts(), MsgMoreRecipesHeader))
	assert.Contains(t, env.tg.lastText(), "*Frittata*")

	// Extra recipes can be saved like the scanned ones.
	env.press("fav:" + saved.ID + ":r9")
	assert.True(t, env.lists.IsRecipeFavorite(ctx, "42", "r9"))
	env.suggester.AssertExpectations(t)
}

func TestLanguageCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.send("/language")
	assert.Equal(t, "Choose the language for products and recipes (current: English)", env.tg.lastText())

	env.send("/language de")
	assert.Equal(t, "Recipes will now be in German.", env.tg.lastText())
	assert.Equal(t, "de", env.lists.Language(ctx, "42"))

	env.send("/language fi")
	assert.Equal(t, MsgUnknownLanguage, env.tg.lastText())

	env.press("lang:pl")
	assert.Equal(t, "pl", env.lists.Language(ctx, "42"))
	assert.Equal(t, []string{"Recipes will now be in Polish."}, env.tg.callbackAnswers())
}

func TestUsageCommand(t *testing.T) {
	env := newTestEnv(t)
	env.ent.used = 1

	env.send("/usage")
	assert.Equal(t, "Plan: Free\nScans used today: 1/3\nFavorites: 0/5", env.tg.lastText())

	env.ent.pro = true
	env.send("/usage")
	assert.Equal(t, "Plan: *Pro* ⭐\nScans: unlimited\nFavorites: 0/25", env.tg.lastText())
}

func TestProAndRestoreCommands(t *testing.T) {
	env := newTestEnv(t)

	env.send("/pro")
	assert.Equal(t, MsgProNoOffer, env.tg.lastText())

	env.ent.offering = &billing.Offering{
		Identifier: "default",
		Packages:   []billing.Package{{Identifier: "$rc_monthly"}},
	}
	env.send("/pro")
	assert.Contains(t, env.tg.lastText(), "$rc\\_monthly")
	assert.Contains(t, env.tg.lastText(), "/restore")

	env.send("/restore")
	assert.Equal(t, MsgRestoreNo, env.tg.lastText())

	env.ent.restored = true
	env.ent.pro = true
	env.send("/restore")
	assert.Equal(t, MsgRestoreOk, env.tg.lastText())

	env.send("/pro")
	assert.Equal(t, MsgProActive, env.tg.lastText())
}

func TestDebugLogsCommand(t *testing.T) {
	env := newTestEnv(t)
	env.logs.Log(context.Background(), telemetry.LevelError, "vision request failed")

	env.send("/debuglogs")
	assert.Equal(t, MsgStartPrompt, env.tg.lastText(), "hidden from regular users")

	env.sendFrom(testAdminID, "/debuglogs")
	assert.Contains(t, env.tg.lastText(), "ERROR vision request failed")

	env.sendFrom(testAdminID, "/debuglogs clear")
	assert.Equal(t, MsgDebugLogsClear, env.tg.lastText())
	assert.Empty(t, env.logs.Entries())

	env.sendFrom(testAdminID, "/debuglogs")
	assert.Equal(t, MsgDebugLogsEmpty, env.tg.lastText())
}
