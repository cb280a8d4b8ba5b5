package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ResearchEngine runs one research protocol at a time. A zero MaxFollowUps
// means a single round; use DefaultConfig for the standard loop.
type ResearchEngine struct {
	Config        Config
	Generator     Generator
	Retriever     Retriever
	Observer      Observer
	Logger        *slog.Logger
	OnStateUpdate func(state Session)
}

func NewEngine(cfg Config, gen Generator, retriever Retriever) *ResearchEngine {
	// Follow-ups are capped at DefaultMaxFollowUps whatever the caller asks for.
	if cfg.MaxFollowUps < 0 {
		cfg.MaxFollowUps = 0
	}
	if cfg.MaxFollowUps > DefaultMaxFollowUps {
		cfg.MaxFollowUps = DefaultMaxFollowUps
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &ResearchEngine{
		Config:    cfg,
		Generator: gen,
		Retriever: retriever,
		Observer:  NopObserver{},
		Logger:    slog.Default(),
	}
}

// Run researches topic and returns the synthesized markdown report.
func (e *ResearchEngine) Run(ctx context.Context, topic string) (string, error) {
	report, err := e.Research(ctx, topic)
	if err != nil {
		return "", err
	}
	return report.Markdown, nil
}

// Research runs the full protocol and returns the report together with the
// sources it was built from.
func (e *ResearchEngine) Research(ctx context.Context, topic string) (*Report, error) {
	obs := e.observer()
	if strings.TrimSpace(topic) == "" {
		obs.ResearchFailed(ErrEmptyTopic)
		return nil, ErrEmptyTopic
	}

	session := newSession(topic)
	ctx = WithObserver(ctx, obs)

	e.Logger.Info("Starting research loop", "topic", topic, "max_follow_ups", e.Config.MaxFollowUps)
	obs.ResearchStarted(topic)

	report, err := e.run(ctx, session, obs)
	if err != nil {
		e.Logger.Error("Research aborted", "topic", topic, "iteration", session.Iteration, "error", err)
		obs.ResearchFailed(err)
		return nil, err
	}
	return report, nil
}

func (e *ResearchEngine) run(ctx context.Context, s *Session, obs Observer) (*Report, error) {
	batch, err := e.planPhase(ctx, s, obs)
	if err != nil {
		return nil, err
	}
	queries := batch.Queries

	for {
		e.Logger.Info("Starting round", "iteration", s.Iteration, "queries", len(queries))
		if err := e.searchPhase(ctx, s, queries, obs); err != nil {
			return nil, err
		}
		e.notifyState(s)

		decision, err := e.evaluatePhase(ctx, s, obs)
		if err != nil {
			return nil, err
		}

		if !decision.ShouldFollowUp {
			e.Logger.Info("Research complete", "iteration", s.Iteration)
			break
		}
		if s.Iteration > e.Config.MaxFollowUps {
			e.Logger.Info("Follow-up cap reached", "iteration", s.Iteration, "max_follow_ups", e.Config.MaxFollowUps)
			break
		}
		if len(decision.Queries) == 0 {
			obs.Warning("Follow-up requested without queries, finishing research")
			break
		}

		queries = decision.Queries
		s.Iteration++
	}

	markdown, err := e.synthesizePhase(ctx, s, obs)
	if err != nil {
		return nil, err
	}

	return &Report{
		Topic:    s.Topic,
		Markdown: markdown,
		Sources:  s.Findings().Results,
		Rounds:   s.Iteration,
	}, nil
}

// --- Phase Implementations ---

func (e *ResearchEngine) planPhase(ctx context.Context, s *Session, obs Observer) (QueryBatch, error) {
	batch, err := e.Generator.GenerateQueries(ctx, s.Topic)
	if err != nil {
		return QueryBatch{}, &PhaseError{Phase: PhasePlan, Iteration: s.Iteration, Err: err}
	}
	e.Logger.Info("Generated queries", "queries", batch.Queries)
	obs.QueriesPlanned(batch)
	return batch, nil
}

func (e *ResearchEngine) searchPhase(ctx context.Context, s *Session, queries []string, obs Observer) error {
	if e.Config.Concurrency <= 1 || len(queries) <= 1 {
		for _, q := range queries {
			hits := e.filterHits(e.retrieve(ctx, s.Iteration, q, obs), s.Seen, make(map[string]bool))
			results, err := e.summarizeHits(ctx, s.Iteration, hits)
			if err != nil {
				return err
			}
			e.merge(s, results, obs)
		}
		return nil
	}

	// Units only read the session; merging happens here after Wait.
	shared := &syncObserver{next: obs}
	gctx := WithObserver(ctx, shared)

	found := make([][]Hit, len(queries))
	g, rctx := errgroup.WithContext(gctx)
	g.SetLimit(e.Config.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			found[i] = e.retrieve(rctx, s.Iteration, q, shared)
			return nil
		})
	}
	_ = g.Wait()

	// Claims are made in query order so each link is summarized once and
	// stays under the query a sequential run would file it under.
	claimed := make(map[string]bool)
	for i := range found {
		found[i] = e.filterHits(found[i], s.Seen, claimed)
	}

	batches := make([][]SearchResult, len(queries))
	g, sctx := errgroup.WithContext(gctx)
	g.SetLimit(e.Config.Concurrency)
	for i := range queries {
		g.Go(func() error {
			results, err := e.summarizeHits(sctx, s.Iteration, found[i])
			if err != nil {
				return err
			}
			batches[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, results := range batches {
		e.merge(s, results, obs)
	}
	return nil
}

func (e *ResearchEngine) retrieve(ctx context.Context, iteration int, query string, obs Observer) []Hit {
	obs.Searching(iteration, query)
	hits := e.Retriever.Search(ctx, query)
	e.Logger.Info("Search returned", "query", query, "count", len(hits))
	return hits
}

// filterHits drops incomplete hits and, with deduplication on, links that were
// already summarized or claimed. Kept links are added to claimed.
func (e *ResearchEngine) filterHits(hits []Hit, seen func(string) bool, claimed map[string]bool) []Hit {
	var kept []Hit
	for _, hit := range hits {
		if hit.Title == "" || hit.Link == "" {
			continue
		}
		if e.Config.DedupeURLs && (seen(hit.Link) || claimed[hit.Link]) {
			e.Logger.Info("Skipping already summarized source", "url", hit.Link)
			continue
		}
		claimed[hit.Link] = true
		kept = append(kept, hit)
	}
	return kept
}

func (e *ResearchEngine) summarizeHits(ctx context.Context, iteration int, hits []Hit) ([]SearchResult, error) {
	var results []SearchResult
	for _, hit := range hits {
		summary, err := e.Generator.Summarize(ctx, hit)
		if err != nil {
			return nil, &PhaseError{Phase: PhaseSummarize, Iteration: iteration, Err: fmt.Errorf("%s: %w", hit.Link, err)}
		}
		results = append(results, SearchResult{Title: hit.Title, URL: hit.Link, Summary: summary})
	}
	return results, nil
}

func (e *ResearchEngine) merge(s *Session, results []SearchResult, obs Observer) {
	for _, r := range results {
		s.add(r)
		obs.ResultSummarized(r)
	}
}

func (e *ResearchEngine) evaluatePhase(ctx context.Context, s *Session, obs Observer) (FollowUpDecision, error) {
	decision, err := e.Generator.DecideFollowUp(ctx, s.Findings())
	if err != nil {
		return FollowUpDecision{}, &PhaseError{Phase: PhaseEvaluate, Iteration: s.Iteration, Err: err}
	}
	e.Logger.Info("Follow-up decision", "iteration", s.Iteration, "should_follow_up", decision.ShouldFollowUp)
	obs.FollowUpDecided(s.Iteration, decision)
	return decision, nil
}

func (e *ResearchEngine) synthesizePhase(ctx context.Context, s *Session, obs Observer) (string, error) {
	e.Logger.Info("Compiling final report", "results", len(s.Results))
	obs.Synthesizing()

	report, err := e.Generator.Synthesize(ctx, s.Findings())
	if err != nil {
		return "", &PhaseError{Phase: PhaseSynthesize, Iteration: s.Iteration, Err: err}
	}

	e.Logger.Info("Final report generated", "length", len(report))
	obs.ReportReady(report)
	return report, nil
}

func (e *ResearchEngine) notifyState(s *Session) {
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(*s)
	}
}

func (e *ResearchEngine) observer() Observer {
	if e.Observer == nil {
		return NopObserver{}
	}
	return e.Observer
}

// syncObserver serializes notifications coming from concurrent units.
type syncObserver struct {
	mu   sync.Mutex
	next Observer
}

func (o *syncObserver) ResearchStarted(topic string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.ResearchStarted(topic)
}

func (o *syncObserver) QueriesPlanned(batch QueryBatch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.QueriesPlanned(batch)
}

func (o *syncObserver) Searching(iteration int, query string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.Searching(iteration, query)
}

func (o *syncObserver) ResultSummarized(result SearchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.ResultSummarized(result)
}

func (o *syncObserver) FollowUpDecided(iteration int, decision FollowUpDecision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.FollowUpDecided(iteration, decision)
}

func (o *syncObserver) Synthesizing() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.Synthesizing()
}

func (o *syncObserver) ReportReady(report string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.ReportReady(report)
}

func (o *syncObserver) Warning(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.Warning(message)
}

func (o *syncObserver) ResearchFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next.ResearchFailed(err)
}
