package enrich

import (
	"context"
	"strings"
	"sync"

	"github.com/forcetech/cookvision/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PhotoSearcher finds a photo URL for a query.
type PhotoSearcher interface {
	SearchPhoto(ctx context.Context, query string) (string, error)
}

// DefaultConcurrency bounds parallel lookups in EnrichRecipes.
const DefaultConcurrency = 4

// Resolver finds recipe photos and remembers successful lookups for its
// whole lifetime. Misses are not remembered.
type Resolver struct {
	searcher    PhotoSearcher
	concurrency int

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver creates a resolver. A nil searcher makes every lookup miss.
func NewResolver(searcher PhotoSearcher, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{searcher: searcher, concurrency: concurrency, cache: map[string]string{}}
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// lookup resolves one query through the cache.
func (r *Resolver) lookup(ctx context.Context, query string) (string, bool) {
	key := cacheKey(query)
	if key == "" {
		return "", false
	}

	r.mu.RLock()
	url, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return url, true
	}

	url, err := r.searcher.SearchPhoto(ctx, query)
	if err != nil {
		log.Debug().Err(err).Str("query", query).Msg("photo search failed")
		return "", false
	}
	if url == "" {
		return "", false
	}

	r.mu.Lock()
	r.cache[key] = url
	r.mu.Unlock()
	return url, true
}

// ResolveImage tries name and then each keyword in order, returning the
// first photo found. A keyword hit is also cached under name.
func (r *Resolver) ResolveImage(ctx context.Context, name string, keywords []string) (string, bool) {
	if r.searcher == nil {
		return "", false
	}
	for i, q := range append([]string{name}, keywords...) {
		if ctx.Err() != nil {
			return "", false
		}
		if url, ok := r.lookup(ctx, q); ok {
			if i > 0 {
				r.remember(name, url)
			}
			return url, true
		}
	}
	return "", false
}

// remember stores a fallback hit under the primary query so the next
// lookup for it skips the search.
func (r *Resolver) remember(query, url string) {
	key := cacheKey(query)
	if key == "" {
		return
	}
	r.mu.Lock()
	r.cache[key] = url
	r.mu.Unlock()
}

// Keywords lists fallback search terms for a recipe: the dish name when a
// dedicated search term exists, then the first available ingredient.
func Keywords(recipe llm.Recipe) []string {
	var kw []string
	if recipe.ImageSearchTerm != "" && recipe.Name != recipe.ImageSearchTerm {
		kw = append(kw, recipe.Name)
	}
	if len(recipe.AvailableIngredients) > 0 {
		kw = append(kw, recipe.AvailableIngredients[0])
	}
	return kw
}

func primaryQuery(recipe llm.Recipe) string {
	if recipe.ImageSearchTerm != "" {
		return recipe.ImageSearchTerm
	}
	return recipe.Name
}

// EnrichRecipes returns a copy of recipes with ImageURL set where a photo
// was found. It never fails; cancelling ctx stops outstanding lookups.
func (r *Resolver) EnrichRecipes(ctx context.Context, recipes []llm.Recipe) []llm.Recipe {
	out := make([]llm.Recipe, len(recipes))
	copy(out, recipes)
	if r.searcher == nil {
		return out
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range out {
		if out[i].ImageURL != "" {
			continue
		}
		g.Go(func() error {
			if url, ok := r.ResolveImage(ctx, primaryQuery(out[i]), Keywords(out[i])); ok {
				out[i].ImageURL = url
			}
			return nil
		})
	}
	g.Wait()
	return out
}
