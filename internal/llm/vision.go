package llm

import (
	"context"
	"strings"
)

// Difficulty is how hard a recipe is to cook.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Category tells whether a recipe can be cooked from what is on hand.
type Category string

const (
	CategoryComplete Category = "complete"
	CategoryNeedMore Category = "needMore"
)

// Product is a food item identified in the photo.
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Confidence *float64 `json:"confidence,omitempty"`
	Emoji      string   `json:"emoji,omitempty"`
}

// Substitution swaps a missing ingredient for one on hand.
type Substitution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Reason      string `json:"reason,omitempty"`
}

// AlternativeRecipe is a simpler dish offered next to a needMore recipe.
type AlternativeRecipe struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	MissingIngredient string `json:"missingIngredient"`
}

// Recipe is a suggested dish. AvailableIngredients marks which of the
// ingredients are already on hand; ImageURL is the only field filled in
// after analysis.
type Recipe struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Ingredients          []string            `json:"ingredients"`
	AvailableIngredients []string            `json:"availableIngredients"`
	MissingIngredients   []string            `json:"missingIngredients"`
	Instructions         string              `json:"instructions"`
	PrepTime             string              `json:"prepTime,omitempty"`
	Difficulty           Difficulty          `json:"difficulty,omitempty"`
	Substitution         *Substitution       `json:"substitution,omitempty"`
	Alternatives         []AlternativeRecipe `json:"alternatives,omitempty"`
	Category             Category            `json:"category,omitempty"`
	ImageSearchTerm      string              `json:"imageSearchTerm,omitempty"`
	ImageURL             string              `json:"imageUrl,omitempty"`
}

// HasIngredient reports whether name is marked as available.
func (r Recipe) HasIngredient(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range r.AvailableIngredients {
		if strings.ToLower(strings.TrimSpace(a)) == name {
			return true
		}
	}
	return false
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// AnalysisResult is what one analysis of a fridge photo produces.
type AnalysisResult struct {
	Products        []Product `json:"products"`
	CompleteRecipes []Recipe  `json:"completeRecipes"`
	NeedMoreRecipes []Recipe  `json:"needMoreRecipes"`
	Usage           Usage     `json:"-"`
}

// Recipes returns complete recipes followed by needMore recipes.
func (r *AnalysisResult) Recipes() []Recipe {
	all := make([]Recipe, 0, len(r.CompleteRecipes)+len(r.NeedMoreRecipes))
	all = append(all, r.CompleteRecipes...)
	return append(all, r.NeedMoreRecipes...)
}

// FindRecipe looks a recipe up by id in both categories.
func (r *AnalysisResult) FindRecipe(id string) (Recipe, bool) {
	for _, rec := range r.Recipes() {
		if rec.ID == id {
			return rec, true
		}
	}
	return Recipe{}, false
}

// Analyzer turns a prepared photo into products and recipes.
type Analyzer interface {
	// Analyze takes a base64 JPEG and the output language code.
	Analyze(ctx context.Context, imageBase64, language string) (*AnalysisResult, error)
}

// RecipeSuggester proposes recipes for an already known product list.
type RecipeSuggester interface {
	SuggestRecipes(ctx context.Context, products []Product, language string) ([]Recipe, error)
}
