package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// VisionCache stores serialized analysis results by key.
type VisionCache interface {
	GetVisionCache(ctx context.Context, key string) ([]byte, error)
	SetVisionCache(ctx context.Context, key string, payload []byte) error
}

// CachedAnalyzer wraps an Analyzer so sending the same photo twice in the
// same language does not call the model again.
type CachedAnalyzer struct {
	inner Analyzer
	cache VisionCache
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner Analyzer, cache VisionCache) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, cache: cache}
}

// cacheKey hashes the image together with the language. Lengths are
// written first so different splits of the same bytes never collide.
func cacheKey(imageBase64, language string) string {
	h := sha256.New()
	for _, part := range []string{imageBase64, language} {
		binary.Write(h, binary.LittleEndian, int64(len(part)))
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze implements the Analyzer interface with caching.
func (c *CachedAnalyzer) Analyze(ctx context.Context, imageBase64, language string) (*AnalysisResult, error) {
	key := cacheKey(imageBase64, language)

	if payload, err := c.cache.GetVisionCache(ctx, key); err != nil {
		log.Warn().Err(err).Msg("failed to check vision cache")
	} else if payload != nil {
		var cached AnalysisResult
		if err := json.Unmarshal(payload, &cached); err != nil {
			log.Warn().Err(err).Msg("ignoring corrupt vision cache entry")
		} else {
			log.Debug().Str("hash", key[:16]).Msg("vision cache hit")
			return &cached, nil
		}
	}

	result, err := c.inner.Analyze(ctx, imageBase64, language)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode vision result")
		return result, nil
	}
	if err := c.cache.SetVisionCache(ctx, key, payload); err != nil {
		log.Warn().Err(err).Msg("failed to cache vision result")
	} else {
		log.Debug().Str("hash", key[:16]).Msg("cached vision result")
	}
	return result, nil
}

// SuggestRecipes passes through to the wrapped analyzer when it can
// suggest recipes.
func (c *CachedAnalyzer) SuggestRecipes(ctx context.Context, products []Product, language string) ([]Recipe, error) {
	if s, ok := c.inner.(RecipeSuggester); ok {
		return s.SuggestRecipes(ctx, products, language)
	}
	return nil, newAnalysisError(KindRecipeFailed, errNoSuggester)
}
