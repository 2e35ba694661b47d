package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/forcetech/cookvision/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Gemini 2.0 Flash pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.10
	geminiOutputPricePerMillion = 0.40
)

// contentGenerator is the part of genai.Models the analyzer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer uses Google's Gemini API for fridge analysis and recipe
// suggestions.
type GeminiAnalyzer struct {
	models contentGenerator
	model  string
	sink   telemetry.Sink
}

// NewGeminiAnalyzer creates a new Gemini-based analyzer.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, sink telemetry.Sink) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiAnalyzer(client.Models, model, sink), nil
}

func newGeminiAnalyzer(models contentGenerator, model string, sink telemetry.Sink) *GeminiAnalyzer {
	if model == "" {
		model = DefaultModel
	}
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &GeminiAnalyzer{models: models, model: model, sink: sink}
}

// Analyze implements the Analyzer interface using Gemini. Malformed output
// is recorded to telemetry once; a reply without JSON is not.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, imageBase64, language string) (*AnalysisResult, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, g.fail(ctx, KindAnalysisFailed, fmt.Errorf("invalid image encoding: %w", err), language)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(buildAnalysisPrompt(language)),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: "image/jpeg"}},
	}

	text, usage, err := g.generate(ctx, parts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, g.fail(ctx, KindAnalysisFailed, err, language)
	}

	result, err := parseAnalysis(text)
	if err != nil {
		kind := KindOf(err)
		if kind == KindNotFridgeImage {
			log.Info().Str("language", language).Msg("model found no food in image")
			return nil, err
		}
		return nil, g.fail(ctx, kind, errors.Unwrap(err), language)
	}
	result.Usage = usage

	log.Info().
		Str("model", g.model).
		Str("language", language).
		Int("products", len(result.Products)).
		Int("recipes", len(result.CompleteRecipes)+len(result.NeedMoreRecipes)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return result, nil
}

// SuggestRecipes asks for five recipes built from products without
// sending the photo again.
func (g *GeminiAnalyzer) SuggestRecipes(ctx context.Context, products []Product, language string) ([]Recipe, error) {
	if len(products) == 0 {
		return nil, newAnalysisError(KindRecipeFailed, errors.New("no products"))
	}

	parts := []*genai.Part{genai.NewPartFromText(buildSuggestionPrompt(products, language))}
	text, usage, err := g.generate(ctx, parts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, g.fail(ctx, KindRecipeFailed, err, language)
	}

	recipes, err := parseSuggestions(text)
	if err != nil {
		return nil, g.fail(ctx, KindRecipeFailed, errors.Unwrap(err), language)
	}

	log.Info().
		Str("model", g.model).
		Int("recipes", len(recipes)).
		Float64("costUSD", usage.CostUSD).
		Msg("recipe suggestion llm call")

	return recipes, nil
}

func (g *GeminiAnalyzer) generate(ctx context.Context, parts []*genai.Part) (string, Usage, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", Usage{}, errors.New("no response from Gemini")
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens)
	}

	return result.Text(), usage, nil
}

func (g *GeminiAnalyzer) fail(ctx context.Context, kind ErrorKind, err error, language string) error {
	g.sink.RecordError(ctx, "vision analysis failed", err,
		attribute.String("kind", string(kind)),
		attribute.String("model", g.model),
		attribute.String("language", language),
	)
	log.Error().Err(err).Str("kind", string(kind)).Msg("vision analysis failed")
	return newAnalysisError(kind, err)
}

func calculateGeminiCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * geminiInputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * geminiOutputPricePerMillion
	return inputCost + outputCost
}
