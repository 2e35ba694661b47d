// Package scan runs the photo-to-recipes pipeline.
package scan

import (
	"context"
	"fmt"
	"io"

	"github.com/forcetech/cookvision/internal/entitlement"
	"github.com/forcetech/cookvision/internal/llm"
	"github.com/forcetech/cookvision/internal/storage"
	"github.com/rs/zerolog/log"
)

// Preparer converts a photo into a base64 JPEG.
type Preparer interface {
	Prepare(r io.Reader) (string, error)
}

// Gate is the quota side of the entitlement gate.
type Gate interface {
	CheckProStatus(ctx context.Context, profile string) bool
	CanScan(ctx context.Context, profile string, isPro bool) bool
	RecordScan(ctx context.Context, profile string)
	RemainingScans(ctx context.Context, profile string, isPro bool) entitlement.Remaining
}

// Saver persists finished scans.
type Saver interface {
	SaveRecentScan(ctx context.Context, profile, imageBase64 string, result *llm.AnalysisResult, language string, isPro bool) *storage.RecentScan
}

// Enricher adds photos to recipes.
type Enricher interface {
	EnrichRecipes(ctx context.Context, recipes []llm.Recipe) []llm.Recipe
}

// Request is one scan of one photo.
type Request struct {
	Profile  string
	Photo    io.Reader
	Language string
}

// Outcome is what a finished pipeline run produced. When LimitReached is
// set nothing else was done.
type Outcome struct {
	LimitReached bool
	IsPro        bool
	Remaining    entitlement.Remaining
	ImageBase64  string
	Result       *llm.AnalysisResult
	// Scan is the saved record; nil if saving failed.
	Scan *storage.RecentScan
}

// Service wires the pipeline steps together.
type Service struct {
	preparer Preparer
	gate     Gate
	analyzer llm.Analyzer
	saver    Saver
	enricher Enricher
}

// NewService creates a pipeline. enricher may be nil.
func NewService(preparer Preparer, gate Gate, analyzer llm.Analyzer, saver Saver, enricher Enricher) *Service {
	return &Service{
		preparer: preparer,
		gate:     gate,
		analyzer: analyzer,
		saver:    saver,
		enricher: enricher,
	}
}

// Run prepares the photo, checks the quota, analyzes, records the scan
// and saves it, strictly in that order. Preparation errors wrap
// imageprep.ErrPrepareFailed and analysis errors are llm analysis errors;
// in both cases nothing is recorded or saved.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	imageBase64, err := s.preparer.Prepare(req.Photo)
	if err != nil {
		return nil, err
	}

	isPro := s.gate.CheckProStatus(ctx, req.Profile)
	if !s.gate.CanScan(ctx, req.Profile, isPro) {
		log.Info().Str("profile", req.Profile).Msg("daily scan limit reached")
		return &Outcome{
			LimitReached: true,
			IsPro:        isPro,
			Remaining:    s.gate.RemainingScans(ctx, req.Profile, isPro),
		}, nil
	}

	result, err := s.analyzer.Analyze(ctx, imageBase64, req.Language)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	s.gate.RecordScan(ctx, req.Profile)
	saved := s.saver.SaveRecentScan(ctx, req.Profile, imageBase64, result, req.Language, isPro)

	log.Info().
		Str("profile", req.Profile).
		Str("language", req.Language).
		Bool("isPro", isPro).
		Bool("saved", saved != nil).
		Msg("scan finished")

	return &Outcome{
		IsPro:       isPro,
		Remaining:   s.gate.RemainingScans(ctx, req.Profile, isPro),
		ImageBase64: imageBase64,
		Result:      result,
		Scan:        saved,
	}, nil
}

// Enrich fills recipe photos in the background of a displayed result. It
// returns recipes unchanged when no enricher is configured.
func (s *Service) Enrich(ctx context.Context, recipes []llm.Recipe) []llm.Recipe {
	if s.enricher == nil {
		return recipes
	}
	return s.enricher.EnrichRecipes(ctx, recipes)
}
