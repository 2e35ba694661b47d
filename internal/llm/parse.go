package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var errNoJSON = errors.New("no JSON found in response")

// extractSpan returns the first balanced span delimited by open and close,
// skipping delimiters inside JSON strings. When the first opening delimiter
// is never balanced it falls back to the widest span so the caller still
// gets something to reject as malformed.
func extractSpan(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(text, close)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

type rawAnalysis struct {
	Products        []Product `json:"products"`
	CompleteRecipes []Recipe  `json:"completeRecipes"`
	NeedMoreRecipes []Recipe  `json:"needMoreRecipes"`
}

// parseAnalysis turns raw model text into a validated result. A response
// without any JSON object is KindNotFridgeImage, anything that fails to
// decode or validate is KindAnalysisFailed.
func parseAnalysis(text string) (*AnalysisResult, error) {
	span, ok := extractSpan(text, '{', '}')
	if !ok {
		return nil, newAnalysisError(KindNotFridgeImage, errNoJSON)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, newAnalysisError(KindAnalysisFailed, fmt.Errorf("failed to parse response JSON: %w", err))
	}

	result, err := validateAnalysis(raw)
	if err != nil {
		return nil, newAnalysisError(KindAnalysisFailed, err)
	}
	return result, nil
}

func validateAnalysis(raw rawAnalysis) (*AnalysisResult, error) {
	result := &AnalysisResult{
		Products:        []Product{},
		CompleteRecipes: []Recipe{},
		NeedMoreRecipes: []Recipe{},
	}

	seenProducts := map[string]bool{}
	for _, p := range raw.Products {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		p.ID = uniqueID(p.ID, seenProducts)
		if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
			p.Confidence = nil
		}
		result.Products = append(result.Products, p)
	}

	seenRecipes := map[string]bool{}
	for i, r := range raw.CompleteRecipes {
		r, err := normalizeRecipe(r, seenRecipes)
		if err != nil {
			return nil, fmt.Errorf("completeRecipes[%d]: %w", i, err)
		}
		// Something beyond the pantry is still missing, so it cannot be
		// cooked from what is on hand.
		if len(r.MissingIngredients) > 0 {
			r.Category = CategoryNeedMore
			result.NeedMoreRecipes = append(result.NeedMoreRecipes, r)
			continue
		}
		r.Category = CategoryComplete
		result.CompleteRecipes = append(result.CompleteRecipes, r)
	}
	for i, r := range raw.NeedMoreRecipes {
		r, err := normalizeRecipe(r, seenRecipes)
		if err != nil {
			return nil, fmt.Errorf("needMoreRecipes[%d]: %w", i, err)
		}
		r.Category = CategoryNeedMore
		result.NeedMoreRecipes = append(result.NeedMoreRecipes, r)
	}

	return result, nil
}

func normalizeRecipe(r Recipe, seen map[string]bool) (Recipe, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return r, errors.New("recipe without a name")
	}
	// Models number recipes from 1 in every answer, so ids are assigned
	// here to stay unique across scans.
	r.ID = uniqueID("", seen)

	r.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(r.Difficulty))))
	if r.Difficulty != "" && !r.Difficulty.Valid() {
		r.Difficulty = ""
	}

	r.Ingredients = nonNil(r.Ingredients)
	r.AvailableIngredients = nonNil(r.AvailableIngredients)

	missing := make([]string, 0, len(r.MissingIngredients))
	for _, m := range r.MissingIngredients {
		if strings.TrimSpace(m) == "" || isPantryStaple(m) {
			continue
		}
		missing = append(missing, m)
	}
	r.MissingIngredients = missing

	if r.Substitution != nil && (r.Substitution.Original == "" || r.Substitution.Replacement == "") {
		r.Substitution = nil
	}
	if len(r.Alternatives) == 0 {
		r.Alternatives = nil
	}
	r.ImageSearchTerm = strings.TrimSpace(r.ImageSearchTerm)
	r.ImageURL = ""
	return r, nil
}

// parseSuggestions decodes the first JSON array of recipes in text.
func parseSuggestions(text string) ([]Recipe, error) {
	span, ok := extractSpan(text, '[', ']')
	if !ok {
		return nil, newAnalysisError(KindRecipeFailed, errNoJSON)
	}

	var raw []Recipe
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, newAnalysisError(KindRecipeFailed, fmt.Errorf("failed to parse recipes JSON: %w", err))
	}

	seen := map[string]bool{}
	recipes := make([]Recipe, 0, len(raw))
	for i, r := range raw {
		r, err := normalizeRecipe(r, seen)
		if err != nil {
			return nil, newAnalysisError(KindRecipeFailed, fmt.Errorf("recipe %d: %w", i, err))
		}
		r.Category = CategoryComplete
		if len(r.MissingIngredients) > 0 {
			r.Category = CategoryNeedMore
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// uniqueID keeps id when it is set and unused, otherwise it generates one.
func uniqueID(id string, seen map[string]bool) string {
	id = strings.TrimSpace(id)
	if id == "" || seen[id] {
		id = uuid.NewString()
	}
	seen[id] = true
	return id
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
