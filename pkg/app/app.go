// Package app wires configuration into a ready-to-run research engine.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/agents"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
)

// Stack holds the collaborators shared by every research run. They are
// stateless, so one Stack can serve concurrent engines.
type Stack struct {
	Research  research.Config
	Generator research.Generator
	Retriever research.Retriever
}

// New validates cfg and builds the search client, scraper and generation service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	search, err := tools.NewSerpAPI(cfg.SerpAPIKey,
		tools.WithLocation(cfg.SearchLocation),
		tools.WithNumResults(cfg.SearchNumResults),
		tools.WithRetry(cfg.SearchMaxAttempts, cfg.SearchRetryDelay),
		tools.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	scraper := tools.NewScraper(ScraperOptions(cfg)...)

	llm, err := clients.GoogleAi(ctx, cfg.GeminiApiKey, clients.ModelType(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("failed to init LLM: %w", err)
	}

	opts := []agents.Option{agents.WithLogger(logger)}
	if cfg.Summarizer == config.SummarizerAgent {
		summarizer, err := agents.NewToolSummarizer(ctx, cfg.Model, cfg.GeminiApiKey, scraper)
		if err != nil {
			return nil, fmt.Errorf("failed to init tool summarizer: %w", err)
		}
		summarizer.Logger = logger
		opts = append(opts, agents.WithSummarizer(summarizer))
	}

	gen, err := agents.NewService(llm, scraper, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init generation service: %w", err)
	}

	return &Stack{
		Research:  ResearchConfig(cfg),
		Generator: gen,
		Retriever: search,
	}, nil
}

// ScraperOptions configures page extraction. PDF documents are read through
// Mistral OCR only when MISTRAL_API_KEY is set.
func ScraperOptions(cfg *config.Config) []tools.ScraperOption {
	opts := []tools.ScraperOption{
		tools.WithScrapeTimeout(cfg.ScrapeTimeout),
		tools.WithMaxChars(cfg.ScrapeMaxChars),
	}
	if ocr, err := tools.NewMistralOCR(cfg.MistralAPIKey, nil); err == nil {
		opts = append(opts, tools.WithPDFReader(ocr))
	}
	return opts
}

// ResearchConfig extracts the loop settings from cfg.
func ResearchConfig(cfg *config.Config) research.Config {
	return research.Config{
		MaxFollowUps: cfg.MaxFollowUps,
		DedupeURLs:   cfg.DedupeURLs,
		Concurrency:  cfg.Concurrency,
	}
}

// NewEngine returns a fresh engine; each run gets its own.
func (s *Stack) NewEngine(logger *slog.Logger) *research.ResearchEngine {
	e := research.NewEngine(s.Research, s.Generator, s.Retriever)
	if logger != nil {
		e.Logger = logger
	}
	return e
}
