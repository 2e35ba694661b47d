package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/forcetech/cookvision/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPexelsClient_SearchPhoto(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "key123", r.Header.Get("Authorization"))
		assert.Equal(t, "omelette food", r.URL.Query().Get("query"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		assert.Equal(t, "landscape", r.URL.Query().Get("orientation"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"photos":[{"src":{"medium":"https://img/1.jpg"}},{"src":{"medium":"https://img/2.jpg"}}]}`)
	}))
	defer server.Close()

	c := NewPexelsClient(PexelsOpts{BaseURL: server.URL, APIKey: "key123"})
	url, err := c.SearchPhoto(context.Background(), "omelette")
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.jpg", url)
}

func TestPexelsClient_NoPhotosAndErrors(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, `{"photos":[]}`)
	}))
	defer server.Close()

	c := NewPexelsClient(PexelsOpts{BaseURL: server.URL})
	url, err := c.SearchPhoto(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, url)

	status = http.StatusTooManyRequests
	_, err = c.SearchPhoto(context.Background(), "nothing")
	assert.Error(t, err)
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]string
	fail    map[string]bool
	queries []string
}

func (f *fakeSearcher) SearchPhoto(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.fail[query] {
		return "", errors.New("rate limited")
	}
	return f.results[query], nil
}

func TestResolver_FallbackOrder(t *testing.T) {
	s := &fakeSearcher{
		results: map[string]string{"eggs": "https://img/eggs.jpg"},
		fail:    map[string]bool{"shakshuka": true},
	}
	r := NewResolver(s, 0)

	url, ok := r.ResolveImage(context.Background(), "shakshuka", []string{"tomato eggs", "eggs", "tomato"})
	assert.True(t, ok)
	assert.Equal(t, "https://img/eggs.jpg", url)
	assert.Equal(t, []string{"shakshuka", "tomato eggs", "eggs"}, s.queries)
}

func TestResolver_CachesFallbackUnderPrimaryQuery(t *testing.T) {
	s := &fakeSearcher{results: map[string]string{"eggs": "https://img/eggs.jpg"}}
	r := NewResolver(s, 0)
	ctx := context.Background()

	url, ok := r.ResolveImage(ctx, "Shakshuka", []string{"eggs"})
	require.True(t, ok)
	assert.Equal(t, "https://img/eggs.jpg", url)

	url, ok = r.ResolveImage(ctx, "shakshuka", []string{"eggs"})
	assert.True(t, ok)
	assert.Equal(t, "https://img/eggs.jpg", url)
	assert.Equal(t, []string{"Shakshuka", "eggs"}, s.queries)
}

func TestResolver_CachesHitsOnly(t *testing.T) {
	s := &fakeSearcher{results: map[string]string{"Omelette": "https://img/o.jpg"}}
	r := NewResolver(s, 0)
	ctx := context.Background()

	_, ok := r.ResolveImage(ctx, "Omelette", nil)
	require.True(t, ok)
	url, ok := r.ResolveImage(ctx, "  omelette ", nil)
	assert.True(t, ok)
	assert.Equal(t, "https://img/o.jpg", url)

	_, ok = r.ResolveImage(ctx, "unknown", nil)
	assert.False(t, ok)
	_, ok = r.ResolveImage(ctx, "unknown", nil)
	assert.False(t, ok)

	assert.Equal(t, []string{"Omelette", "unknown", "unknown"}, s.queries)
}

func TestResolver_NoSearcher(t *testing.T) {
	r := NewResolver(nil, 0)
	_, ok := r.ResolveImage(context.Background(), "soup", []string{"broth"})
	assert.False(t, ok)

	recipes := []llm.Recipe{{ID: "1", Name: "Soup"}}
	assert.Equal(t, recipes, r.EnrichRecipes(context.Background(), recipes))
}

func TestResolver_EnrichRecipes(t *testing.T) {
	s := &fakeSearcher{results: map[string]string{
		"tomato soup": "https://img/soup.jpg",
		"eggs":        "https://img/eggs.jpg",
	}}
	r := NewResolver(s, 2)

	recipes := []llm.Recipe{
		{ID: "1", Name: "Zupa pomidorowa", ImageSearchTerm: "tomato soup"},
		{ID: "2", Name: "Jajecznica", AvailableIngredients: []string{"eggs"}},
		{ID: "3", Name: "Mystery"},
		{ID: "4", Name: "Kept", ImageURL: "https://img/kept.jpg"},
	}
	out := r.EnrichRecipes(context.Background(), recipes)

	assert.Equal(t, "https://img/soup.jpg", out[0].ImageURL)
	assert.Equal(t, "https://img/eggs.jpg", out[1].ImageURL)
	assert.Empty(t, out[2].ImageURL)
	assert.Equal(t, "https://img/kept.jpg", out[3].ImageURL)
	assert.Empty(t, recipes[0].ImageURL, "input must not be modified")
}

func TestResolver_EnrichCancelled(t *testing.T) {
	s := &fakeSearcher{results: map[string]string{"soup": "https://img/soup.jpg"}}
	r := NewResolver(s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.EnrichRecipes(ctx, []llm.Recipe{{ID: "1", Name: "soup"}})
	assert.Empty(t, out[0].ImageURL)
	assert.Empty(t, s.queries)
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"Zupa", "pomidory"}, Keywords(llm.Recipe{Name: "Zupa", ImageSearchTerm: "soup", AvailableIngredients: []string{"pomidory", "cebula"}}))
	assert.Nil(t, Keywords(llm.Recipe{Name: "Soup"}))
}

func TestPlaceholderFor(t *testing.T) {
	tests := []struct {
		recipe   llm.Recipe
		icon     string
		gradient [3]string
	}{
		{llm.Recipe{Name: "Tomato Soup", Category: llm.CategoryComplete}, "🍲", completeGradient},
		{llm.Recipe{Name: "Sałatka grecka", Category: llm.CategoryNeedMore}, "🥗", needMoreGradient},
		{llm.Recipe{Name: "Spaghetti Carbonara"}, "🍝", completeGradient},
		{llm.Recipe{Name: "Cheese omelette"}, "🍳", completeGradient},
		{llm.Recipe{Name: "Grilled salmon"}, "🐟", completeGradient},
		{llm.Recipe{Name: "Apple cake"}, "🍰", completeGradient},
		{llm.Recipe{Name: "Something"}, defaultIcon, completeGradient},
	}
	for _, tt := range tests {
		t.Run(tt.recipe.Name, func(t *testing.T) {
			p := PlaceholderFor(tt.recipe)
			assert.Equal(t, tt.icon, p.Icon)
			assert.Equal(t, tt.gradient, p.Gradient)
			assert.Equal(t, p, PlaceholderFor(tt.recipe))
		})
	}
}
