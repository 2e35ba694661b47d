// Package storage persists scans, favorites and per-profile settings.
package storage

import "github.com/forcetech/cookvision/internal/llm"

// Keys of the per-profile values.
const (
	KeyRecentScans        = "recent_scans"
	KeyFavoriteRecipes    = "favorite_recipes"
	KeyOnboardingComplete = "onboarding_complete"
	KeyLanguage           = "language"
)

// RecentScan is a saved analysis. ID is the creation time in Unix
// milliseconds and grows strictly within a profile.
type RecentScan struct {
	ID              string        `json:"id"`
	ImageBase64     string        `json:"imageBase64"`
	Products        []llm.Product `json:"products"`
	CompleteRecipes []llm.Recipe  `json:"completeRecipes"`
	NeedMoreRecipes []llm.Recipe  `json:"needMoreRecipes"`
	Timestamp       int64         `json:"timestamp"`
	Language        string        `json:"language"`
}

// Result rebuilds the analysis result stored in the scan.
func (s *RecentScan) Result() *llm.AnalysisResult {
	return &llm.AnalysisResult{
		Products:        s.Products,
		CompleteRecipes: s.CompleteRecipes,
		NeedMoreRecipes: s.NeedMoreRecipes,
	}
}

// FavoriteRecipe is a recipe the user kept.
type FavoriteRecipe struct {
	llm.Recipe
	SavedAt  int64  `json:"savedAt"`
	Language string `json:"language"`
}

// matchesLanguage keeps records without a language visible everywhere.
func matchesLanguage(recordLanguage, language string) bool {
	return recordLanguage == "" || recordLanguage == language
}
