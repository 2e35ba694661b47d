// Package app wires the scan pipeline from a configuration. The bot and the
// CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/forcetech/cookvision/internal/billing"
	"github.com/forcetech/cookvision/internal/config"
	"github.com/forcetech/cookvision/internal/enrich"
	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/imageprep"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/scan"
	"github.com/forcetech/cookvision/internal/storage"
	"github.com/forcetech/cookvision/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// ErrNoAnalyzer is returned by Scanner when no vision key is configured.
var ErrNoAnalyzer = errors.New("GEMINI_API_KEY is not set")

// Options adjusts how services are built.
type Options struct {
	// Sink receives model and purchase failures. Defaults to telemetry.Nop.
	Sink telemetry.Sink
	// AppUserID maps profiles to billing user ids.
	AppUserID func(profile string) string
	// Analyzer replaces the Gemini analyzer.
	Analyzer llm.Analyzer
	// Searcher replaces the Pexels client.
	Searcher enrich.PhotoSearcher
}

// Services are the long-lived pipeline objects.
type Services struct {
	Store     *storage.SQLiteStore
	Lists     *storage.Lists
	Gate      *entitlement.Gate
	Preparer  *imageprep.Preparer
	Resolver  *enrich.Resolver
	Analyzer  llm.Analyzer
	Suggester llm.RecipeSuggester

	scanner *scan.Service
}

// Open builds the services described by cfg. The analyzer is left nil when
// no vision key is set, so commands that never scan still work.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Services, error) {
	if opts.Sink == nil {
		opts.Sink = telemetry.Nop{}
	}

	var key []byte
	if cfg.StoreKey != "" {
		derived, err := storage.DeriveKey(cfg.StoreKey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		key = derived
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	log.Debug().Str("dbPath", cfg.DBPath).Bool("encrypted", key != nil).Msg("store opened")

	s := &Services{
		Store:    store,
		Lists:    storage.NewLists(store),
		Preparer: imageprep.NewPreparer(imageprep.Options{MaxWidth: cfg.Image.MaxWidth, Quality: cfg.Image.Quality}),
	}

	if cfg.Billing.APIKey != "" {
		s.Gate = entitlement.NewGate(store, billing.NewClient(billing.ClientOpts{
			BaseURL:  cfg.Billing.BaseURL,
			APIKey:   cfg.Billing.APIKey,
			Platform: cfg.Billing.Platform,
		}))
	} else {
		s.Gate = entitlement.NewGate(store, nil)
	}
	if opts.AppUserID != nil {
		s.Gate.AppUserID = opts.AppUserID
	}
	s.Gate.Sink = opts.Sink

	searcher := opts.Searcher
	if searcher == nil && cfg.Enrich.APIKey != "" {
		searcher = enrich.NewPexelsClient(enrich.PexelsOpts{BaseURL: cfg.Enrich.BaseURL, APIKey: cfg.Enrich.APIKey})
	}
	s.Resolver = enrich.NewResolver(searcher, cfg.Enrich.Concurrency)

	analyzer := opts.Analyzer
	if analyzer == nil && cfg.Vision.APIKey != "" {
		gemini, err := llm.NewGeminiAnalyzer(ctx, cfg.Vision.APIKey, cfg.Vision.Model, opts.Sink)
		if err != nil {
			store.Close()
			return nil, err
		}
		analyzer = gemini
	}
	if analyzer != nil {
		_, canSuggest := analyzer.(llm.RecipeSuggester)
		if cfg.Vision.Cache {
			analyzer = llm.NewCachedAnalyzer(analyzer, store)
		}
		s.Analyzer = analyzer
		// The cache wrapper always has SuggestRecipes; only expose it when
		// the model behind it can answer.
		if canSuggest {
			s.Suggester = analyzer.(llm.RecipeSuggester)
		}
		s.scanner = scan.NewService(s.Preparer, s.Gate, analyzer, s.Lists, s.Resolver)
	}

	return s, nil
}

// Scanner returns the pipeline, or ErrNoAnalyzer.
func (s *Services) Scanner() (*scan.Service, error) {
	if s.scanner == nil {
		return nil, ErrNoAnalyzer
	}
	return s.scanner, nil
}

// Close releases the store.
func (s *Services) Close() error {
	return s.Store.Close()
}
