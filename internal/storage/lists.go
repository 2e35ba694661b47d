package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/rs/zerolog/log"
)

// KV is the key-value persistence Lists is built on.
type KV interface {
	Get(ctx context.Context, profile, key string) ([]byte, error)
	Set(ctx context.Context, profile, key string, value []byte) error
	Update(ctx context.Context, profile, key string, fn func(current []byte) ([]byte, error)) error
}

var errFavoritesFull = errors.New("favorites list is full")

// Lists manages recent scans, favorites and settings of a profile. Storage
// failures are logged and turn into empty results, so callers never need
// to handle them.
type Lists struct {
	kv  KV
	now func() time.Time
}

// NewLists creates the lists façade over kv.
func NewLists(kv KV) *Lists {
	return &Lists{kv: kv, now: time.Now}
}

func readList[T any](b []byte) ([]T, error) {
	if b == nil {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (l *Lists) list(ctx context.Context, profile, key string) ([]byte, bool) {
	b, err := l.kv.Get(ctx, profile, key)
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Str("key", key).Msg("failed to read list")
		return nil, false
	}
	return b, true
}

// SaveRecentScan stores a new scan at the head of the list and trims the
// list to the tier's capacity. It returns nil if the scan could not be saved.
func (l *Lists) SaveRecentScan(ctx context.Context, profile, imageBase64 string, result *llm.AnalysisResult, language string, isPro bool) *RecentScan {
	var saved *RecentScan
	err := l.kv.Update(ctx, profile, KeyRecentScans, func(current []byte) ([]byte, error) {
		scans, err := readList[RecentScan](current)
		if err != nil {
			return nil, err
		}

		now := l.now().UnixMilli()
		id := now
		if len(scans) > 0 {
			if newest, err := strconv.ParseInt(scans[0].ID, 10, 64); err == nil && newest >= id {
				id = newest + 1
			}
		}

		scan := RecentScan{
			ID:              strconv.FormatInt(id, 10),
			ImageBase64:     imageBase64,
			Products:        result.Products,
			CompleteRecipes: result.CompleteRecipes,
			NeedMoreRecipes: result.NeedMoreRecipes,
			Timestamp:       now,
			Language:        language,
		}
		scans = append([]RecentScan{scan}, scans...)
		if limit := entitlement.MaxRecentScans(isPro); len(scans) > limit {
			scans = scans[:limit]
		}
		saved = &scan
		return json.Marshal(scans)
	})
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to save recent scan")
		return nil
	}
	return saved
}

// RecentScans returns scans in language, newest first.
func (l *Lists) RecentScans(ctx context.Context, profile, language string) []RecentScan {
	out := []RecentScan{}
	for _, s := range l.AllRecentScans(ctx, profile) {
		if matchesLanguage(s.Language, language) {
			out = append(out, s)
		}
	}
	return out
}

// AllRecentScans returns every stored scan, newest first.
func (l *Lists) AllRecentScans(ctx context.Context, profile string) []RecentScan {
	b, ok := l.list(ctx, profile, KeyRecentScans)
	if !ok {
		return []RecentScan{}
	}
	scans, err := readList[RecentScan](b)
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to decode recent scans")
		return []RecentScan{}
	}
	return scans
}

// RecentScanByID returns the scan with id, or nil.
func (l *Lists) RecentScanByID(ctx context.Context, profile, id string) *RecentScan {
	for _, s := range l.AllRecentScans(ctx, profile) {
		if s.ID == id {
			return &s
		}
	}
	return nil
}

// DeleteRecentScan removes the scan with id, if present.
func (l *Lists) DeleteRecentScan(ctx context.Context, profile, id string) {
	err := l.kv.Update(ctx, profile, KeyRecentScans, func(current []byte) ([]byte, error) {
		scans, err := readList[RecentScan](current)
		if err != nil {
			return nil, err
		}
		kept := make([]RecentScan, 0, len(scans))
		for _, s := range scans {
			if s.ID != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(scans) {
			return nil, ErrSkipWrite
		}
		return json.Marshal(kept)
	})
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Str("scanId", id).Msg("failed to delete recent scan")
	}
}

// SaveFavoriteRecipe adds recipe to the favorites. It returns true when the
// recipe is now a favorite (including when it already was) and false when
// the list is full or storage failed. A full list never evicts.
func (l *Lists) SaveFavoriteRecipe(ctx context.Context, profile string, recipe llm.Recipe, language string, isPro bool) bool {
	err := l.kv.Update(ctx, profile, KeyFavoriteRecipes, func(current []byte) ([]byte, error) {
		favorites, err := readList[FavoriteRecipe](current)
		if err != nil {
			return nil, err
		}
		for _, f := range favorites {
			if f.ID == recipe.ID {
				return nil, ErrSkipWrite
			}
		}
		if len(favorites) >= entitlement.MaxFavorites(isPro) {
			return nil, errFavoritesFull
		}
		fav := FavoriteRecipe{Recipe: recipe, SavedAt: l.now().UnixMilli(), Language: language}
		return json.Marshal(append([]FavoriteRecipe{fav}, favorites...))
	})
	if errors.Is(err, errFavoritesFull) {
		log.Info().Str("profile", profile).Bool("isPro", isPro).Msg("favorites limit reached")
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to save favorite recipe")
		return false
	}
	return true
}

// RemoveFavoriteRecipe removes the favorite with id, if present.
func (l *Lists) RemoveFavoriteRecipe(ctx context.Context, profile, id string) {
	err := l.kv.Update(ctx, profile, KeyFavoriteRecipes, func(current []byte) ([]byte, error) {
		favorites, err := readList[FavoriteRecipe](current)
		if err != nil {
			return nil, err
		}
		kept := make([]FavoriteRecipe, 0, len(favorites))
		for _, f := range favorites {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		if len(kept) == len(favorites) {
			return nil, ErrSkipWrite
		}
		return json.Marshal(kept)
	})
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Str("recipeId", id).Msg("failed to remove favorite recipe")
	}
}

// AllFavoriteRecipes returns favorites of every language, newest first.
func (l *Lists) AllFavoriteRecipes(ctx context.Context, profile string) []FavoriteRecipe {
	b, ok := l.list(ctx, profile, KeyFavoriteRecipes)
	if !ok {
		return []FavoriteRecipe{}
	}
	favorites, err := readList[FavoriteRecipe](b)
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to decode favorite recipes")
		return []FavoriteRecipe{}
	}
	return favorites
}

// FavoriteRecipes returns favorites saved in language, newest first.
func (l *Lists) FavoriteRecipes(ctx context.Context, profile, language string) []FavoriteRecipe {
	out := []FavoriteRecipe{}
	for _, f := range l.AllFavoriteRecipes(ctx, profile) {
		if matchesLanguage(f.Language, language) {
			out = append(out, f)
		}
	}
	return out
}

// IsRecipeFavorite reports whether id is among the favorites.
func (l *Lists) IsRecipeFavorite(ctx context.Context, profile, id string) bool {
	for _, f := range l.AllFavoriteRecipes(ctx, profile) {
		if f.ID == id {
			return true
		}
	}
	return false
}

// FavoritesCount counts favorites in every language.
func (l *Lists) FavoritesCount(ctx context.Context, profile string) int {
	return len(l.AllFavoriteRecipes(ctx, profile))
}

// OnboardingComplete reports whether the profile finished onboarding.
func (l *Lists) OnboardingComplete(ctx context.Context, profile string) bool {
	b, ok := l.list(ctx, profile, KeyOnboardingComplete)
	return ok && string(b) == "true"
}

// SetOnboardingComplete marks onboarding as done.
func (l *Lists) SetOnboardingComplete(ctx context.Context, profile string) {
	if err := l.kv.Set(ctx, profile, KeyOnboardingComplete, []byte("true")); err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to save onboarding state")
	}
}

// Language returns the stored output language, or "" if none was chosen.
func (l *Lists) Language(ctx context.Context, profile string) string {
	b, ok := l.list(ctx, profile, KeyLanguage)
	if !ok {
		return ""
	}
	return string(b)
}

// SetLanguage stores the output language.
func (l *Lists) SetLanguage(ctx context.Context, profile, language string) {
	if err := l.kv.Set(ctx, profile, KeyLanguage, []byte(language)); err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to save language")
	}
}
