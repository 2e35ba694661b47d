package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/forcetech/cookvision/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
	model string
	parts []*genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.parts = contents[0].Parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1000,
			CandidatesTokenCount: 500,
			TotalTokenCount:      1500,
		},
	}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	errors []error
}

func (s *recordingSink) RecordError(_ context.Context, _ string, err error, _ ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *recordingSink) Log(context.Context, telemetry.Level, string, ...attribute.KeyValue) {}

var testImage = base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))

func TestGeminiAnalyzer_Analyze(t *testing.T) {
	gen := &fakeGenerator{text: `{"products":[{"id":"1","name":"Jajka"}],"completeRecipes":[{"id":"1","name":"Jajecznica"}],"needMoreRecipes":[]}`}
	sink := &recordingSink{}
	a := newGeminiAnalyzer(gen, "", sink)

	result, err := a.Analyze(context.Background(), testImage, "pl")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, gen.model)
	require.Len(t, gen.parts, 2)
	assert.Contains(t, gen.parts[0].Text, "Polish")
	assert.Equal(t, "image/jpeg", gen.parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("jpeg bytes"), gen.parts[1].InlineData.Data)

	assert.Len(t, result.Products, 1)
	assert.Equal(t, CategoryComplete, result.CompleteRecipes[0].Category)
	assert.Equal(t, int64(1500), result.Usage.TotalTokens)
	assert.Empty(t, sink.errors)
}

func TestGeminiAnalyzer_MalformedJSONRecordsOnce(t *testing.T) {
	sink := &recordingSink{}
	a := newGeminiAnalyzer(&fakeGenerator{text: `{"products": [broken json}`}, "", sink)

	_, err := a.Analyze(context.Background(), testImage, "en")
	assert.True(t, errors.Is(err, ErrAnalysisFailed))
	assert.Len(t, sink.errors, 1)
}

func TestGeminiAnalyzer_NoJSONRecordsNothing(t *testing.T) {
	sink := &recordingSink{}
	a := newGeminiAnalyzer(&fakeGenerator{text: "This is a picture of a bicycle."}, "", sink)

	_, err := a.Analyze(context.Background(), testImage, "en")
	assert.True(t, errors.Is(err, ErrNotFridgeImage))
	assert.Empty(t, sink.errors)
}

func TestGeminiAnalyzer_TransportError(t *testing.T) {
	sink := &recordingSink{}
	a := newGeminiAnalyzer(&fakeGenerator{err: errors.New("503 unavailable")}, "", sink)

	_, err := a.Analyze(context.Background(), testImage, "en")
	assert.True(t, errors.Is(err, ErrAnalysisFailed))
	assert.Len(t, sink.errors, 1)
}

func TestGeminiAnalyzer_CancelledIsNotRecorded(t *testing.T) {
	sink := &recordingSink{}
	a := newGeminiAnalyzer(&fakeGenerator{err: context.Canceled}, "", sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, testImage, "en")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.errors)
}

func TestGeminiAnalyzer_InvalidBase64(t *testing.T) {
	gen := &fakeGenerator{}
	a := newGeminiAnalyzer(gen, "", &recordingSink{})

	_, err := a.Analyze(context.Background(), "%%%", "en")
	assert.True(t, errors.Is(err, ErrAnalysisFailed))
	assert.Equal(t, 0, gen.calls)
}

func TestGeminiAnalyzer_SuggestRecipes(t *testing.T) {
	gen := &fakeGenerator{text: `[{"name":"Tomato soup","missingIngredients":[]}]`}
	a := newGeminiAnalyzer(gen, "gemini-test", &recordingSink{})

	recipes, err := a.SuggestRecipes(context.Background(), []Product{{ID: "1", Name: "Tomatoes"}}, "de")
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "gemini-test", gen.model)
	assert.Contains(t, gen.parts[0].Text, "Tomatoes")
	assert.Contains(t, gen.parts[0].Text, "German")
}

func TestGeminiAnalyzer_SuggestRecipesFailure(t *testing.T) {
	sink := &recordingSink{}
	a := newGeminiAnalyzer(&fakeGenerator{text: "sorry"}, "", sink)

	_, err := a.SuggestRecipes(context.Background(), []Product{{Name: "Milk"}}, "en")
	assert.True(t, errors.Is(err, ErrRecipeFailed))
	assert.Len(t, sink.errors, 1)
}
