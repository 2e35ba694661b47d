package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/forcetech/cookvision/internal/app"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *llm.AnalysisResult
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, imageBase64, language string) (*llm.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func fridgeResult() *llm.AnalysisResult {
	return &llm.AnalysisResult{
		Products: []llm.Product{
			{ID: "p1", Name: "Milk", Emoji: "🥛"},
			{ID: "p2", Name: "Eggs", Emoji: "🥚"},
		},
		CompleteRecipes: []llm.Recipe{{
			ID:                   "r1",
			Name:                 "Omelette",
			Ingredients:          []string{"Eggs", "Milk"},
			AvailableIngredients: []string{"Eggs", "Milk"},
			Instructions:         "Whisk and fry.",
			PrepTime:             "10 min",
			Difficulty:           llm.DifficultyEasy,
			Category:             llm.CategoryComplete,
		}},
		NeedMoreRecipes: []llm.Recipe{{
			ID:                   "r2",
			Name:                 "Pancakes",
			Ingredients:          []string{"Eggs", "Milk", "Flour"},
			AvailableIngredients: []string{"Eggs", "Milk"},
			MissingIngredients:   []string{"Flour"},
			Instructions:         "Mix and bake.",
			Category:             llm.CategoryNeedMore,
		}},
	}
}

var secretEnv = []string{
	"BOT_TOKEN",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"PEXELS_API_KEY",
	"REVENUECAT_API_KEY",
	"ADMIN_TELEGRAM_ID",
	"COOKVISION_STORE_KEY",
	"COOKVISION_DB_PATH",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range secretEnv {
		t.Setenv(name, "")
	}
}

type cliEnv struct {
	dir      string
	db       string
	photo    string
	analyzer *fakeAnalyzer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	clearEnv(t)

	dir := t.TempDir()
	photo := filepath.Join(dir, "fridge.png")
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 200, B: uint8(y * 10), A: 255})
		}
	}
	f, err := os.Create(photo)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	return &cliEnv{
		dir:      dir,
		db:       filepath.Join(dir, "cookvision.db"),
		photo:    photo,
		analyzer: &fakeAnalyzer{result: fridgeResult()},
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	ctx := newCommandContext()
	ctx.configDir = func() (string, error) { return e.dir, nil }
	if e.analyzer != nil {
		ctx.options = app.Options{Analyzer: e.analyzer}
	}

	cmd := buildRootCommand(ctx)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliEnv) scan(t *testing.T, args ...string) scanView {
	t.Helper()
	out, _, err := e.run(t, append([]string{"scan", e.photo, "--json"}, args...)...)
	require.NoError(t, err)
	var view scanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	return view
}

func TestScan_PrintsResultAndSavesScan(t *testing.T) {
	env := newCLIEnv(t)

	view := env.scan(t)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "en", view.Language)
	assert.Equal(t, "2", view.Remaining)
	require.Len(t, view.Products, 2)
	require.Len(t, view.CompleteRecipes, 1)
	require.Len(t, view.NeedMoreRecipes, 1)

	out, _, err := env.run(t, "recent", "list")
	require.NoError(t, err)
	assert.Contains(t, out, view.ID)
	assert.Contains(t, out, "Milk, Eggs")

	out, _, err = env.run(t, "recent", "show", view.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Omelette")
	assert.Contains(t, out, "Pancakes")
	assert.Contains(t, out, "Flour")
}

func TestScan_TextOutput(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "scan", env.photo)
	require.NoError(t, err)
	assert.Contains(t, out, "Omelette")
	assert.Contains(t, out, "Saved as scan ")
	assert.Contains(t, out, "Scans left today: 2")
}

func TestScan_DailyLimit(t *testing.T) {
	env := newCLIEnv(t)

	for i := 0; i < 3; i++ {
		env.scan(t)
	}

	_, _, err := env.run(t, "scan", env.photo)
	require.Error(t, err)
	assert.ErrorIs(t, err, errLimitReached)

	out, _, err := env.run(t, "usage", "--json")
	require.NoError(t, err)
	var usage usageView
	require.NoError(t, json.Unmarshal([]byte(out), &usage))
	assert.Equal(t, 3, usage.ScansToday)
	assert.Equal(t, "0", usage.Remaining)
	assert.False(t, usage.Pro)
}

func TestScan_NotFridgeImageIsNotCounted(t *testing.T) {
	env := newCLIEnv(t)
	env.analyzer.err = fmt.Errorf("%w", llm.ErrNotFridgeImage)

	_, _, err := env.run(t, "scan", env.photo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not look like the inside of a fridge")

	out, _, err := env.run(t, "usage", "--json")
	require.NoError(t, err)
	var usage usageView
	require.NoError(t, json.Unmarshal([]byte(out), &usage))
	assert.Equal(t, 0, usage.ScansToday)
	assert.Equal(t, "3", usage.Remaining)
}

func TestScan_UnreadablePhoto(t *testing.T) {
	env := newCLIEnv(t)
	notImage := filepath.Join(env.dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("milk, eggs"), 0o600))

	_, _, err := env.run(t, "scan", notImage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read")
	assert.Equal(t, 0, env.analyzer.calls)
}

func TestScan_RequiresVisionKey(t *testing.T) {
	env := newCLIEnv(t)
	env.analyzer = nil

	_, _, err := env.run(t, "scan", env.photo)
	assert.ErrorIs(t, err, app.ErrNoAnalyzer)

	// Commands that never scan still work.
	_, _, err = env.run(t, "recent", "list")
	assert.NoError(t, err)
}

func TestRecent_LanguageFilterAndDelete(t *testing.T) {
	env := newCLIEnv(t)
	view := env.scan(t)

	out, _, err := env.run(t, "--lang", "de", "recent", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No recent scans.")

	out, _, err = env.run(t, "--lang", "de", "recent", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, view.ID)

	out, _, err = env.run(t, "recent", "delete", view.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted scan "+view.ID)

	_, _, err = env.run(t, "recent", "show", view.ID)
	assert.Error(t, err)
	_, _, err = env.run(t, "recent", "delete", view.ID)
	assert.Error(t, err)
}

func TestFavorites_AddListRemove(t *testing.T) {
	env := newCLIEnv(t)
	view := env.scan(t)

	out, _, err := env.run(t, "favorites", "add", view.ID, "r2")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved Pancakes to favorites")

	// Saving twice is not an error.
	_, _, err = env.run(t, "favorites", "add", view.ID, "r2")
	require.NoError(t, err)

	out, _, err = env.run(t, "favorites", "list", "--json")
	require.NoError(t, err)
	var favorites []storage.FavoriteRecipe
	require.NoError(t, json.Unmarshal([]byte(out), &favorites))
	require.Len(t, favorites, 1)
	assert.Equal(t, "Pancakes", favorites[0].Name)
	assert.Equal(t, "en", favorites[0].Language)
	assert.Equal(t, []string{"Flour"}, favorites[0].MissingIngredients)

	out, _, err = env.run(t, "favorites", "show", "r2")
	require.NoError(t, err)
	assert.Contains(t, out, "[ ] Flour")
	assert.Contains(t, out, "[x] Eggs")

	out, _, err = env.run(t, "favorites", "remove", "r2")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed r2")

	out, _, err = env.run(t, "favorites", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No favorite recipes.")
}

func TestFavorites_UnknownRecipe(t *testing.T) {
	env := newCLIEnv(t)
	view := env.scan(t)

	_, _, err := env.run(t, "favorites", "add", view.ID, "r9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no recipe r9")

	_, _, err = env.run(t, "favorites", "add", "123", "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan 123 not found")

	_, _, err = env.run(t, "favorites", "remove", "r1")
	assert.Error(t, err)
}

func TestFavorites_FullOnFreePlan(t *testing.T) {
	env := newCLIEnv(t)
	result := fridgeResult()
	for i := 3; i <= 6; i++ {
		result.CompleteRecipes = append(result.CompleteRecipes, llm.Recipe{
			ID:       fmt.Sprintf("r%d", i),
			Name:     fmt.Sprintf("Dish %d", i),
			Category: llm.CategoryComplete,
		})
	}
	env.analyzer.result = result
	view := env.scan(t)

	for i := 1; i <= 5; i++ {
		_, _, err := env.run(t, "favorites", "add", view.ID, fmt.Sprintf("r%d", i))
		require.NoError(t, err)
	}

	_, _, err := env.run(t, "favorites", "add", view.ID, "r6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "favorites are full (5)")
}

func TestLanguage_SetAndShow(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "language", "PL")
	require.NoError(t, err)
	assert.Contains(t, out, "Language set to Polish")

	out, _, err = env.run(t, "language", "--json")
	require.NoError(t, err)
	var current struct {
		Language  string   `json:"language"`
		Supported []string `json:"supported"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &current))
	assert.Equal(t, "pl", current.Language)
	assert.Equal(t, []string{"en", "pl", "uk", "de"}, current.Supported)

	view := env.scan(t)
	assert.Equal(t, "pl", view.Language)

	_, _, err = env.run(t, "language", "xx")
	assert.Error(t, err)
	_, _, err = env.run(t, "--lang", "xx", "recent", "list")
	assert.Error(t, err)
}

func TestPro_WithoutBilling(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "pro", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Free plan.")

	_, _, err = env.run(t, "pro", "offerings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no offerings available")

	_, _, err = env.run(t, "pro", "purchase", "monthly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token is required")

	out, _, err = env.run(t, "pro", "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "No active subscription found.")
}

func TestConfig_Init(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "sample", "config.toml")

	out, _, err := env.run(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "db_path")
	assert.Contains(t, string(b), "default_language")
	assert.NotContains(t, string(b), "api_key")

	_, _, err = env.run(t, "config", "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = env.run(t, "config", "init", "--path", path, "--overwrite")
	assert.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("GEMINI_API_KEY", "test-key")
	out, _, err := env.run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK")
}

func TestConfig_ShowHidesSecrets(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("PEXELS_API_KEY", "pexels-secret")

	out, _, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "db_path")
	assert.Contains(t, out, "PEXELS_API_KEY")
	assert.NotContains(t, out, "pexels-secret")
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestWriteJSON_KeepsRecipeText(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)

	require.NoError(t, writeJSON(cmd, map[string]string{"step": "Season with salt & pepper, cook <5 min"}))
	assert.Contains(t, out.String(), `"Season with salt & pepper, cook <5 min"`)
}
