package research

import (
	"context"
	"log/slog"
)

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) ResearchStarted(string)                {}
func (NopObserver) QueriesPlanned(QueryBatch)             {}
func (NopObserver) Searching(int, string)                 {}
func (NopObserver) ResultSummarized(SearchResult)         {}
func (NopObserver) FollowUpDecided(int, FollowUpDecision) {}
func (NopObserver) Synthesizing()                         {}
func (NopObserver) ReportReady(string)                    {}
func (NopObserver) Warning(string)                        {}
func (NopObserver) ResearchFailed(error)                  {}

// LogObserver writes notifications as structured log records.
type LogObserver struct {
	Logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) ResearchStarted(topic string) {
	o.Logger.Info("Research started", "topic", topic)
}

func (o *LogObserver) QueriesPlanned(batch QueryBatch) {
	o.Logger.Info("Queries planned", "queries", batch.Queries, "thoughts", batch.Thoughts)
}

func (o *LogObserver) Searching(iteration int, query string) {
	o.Logger.Info("Searching", "iteration", iteration, "query", query)
}

func (o *LogObserver) ResultSummarized(result SearchResult) {
	o.Logger.Info("Result summarized", "title", result.Title, "url", result.URL, "summary_len", len(result.Summary))
}

func (o *LogObserver) FollowUpDecided(iteration int, decision FollowUpDecision) {
	o.Logger.Info("Follow-up decided",
		"iteration", iteration,
		"should_follow_up", decision.ShouldFollowUp,
		"reasoning", decision.Reasoning,
		"queries", decision.Queries)
}

func (o *LogObserver) Synthesizing() {
	o.Logger.Info("Synthesizing final report")
}

func (o *LogObserver) ReportReady(report string) {
	o.Logger.Info("Final report ready", "length", len(report))
}

func (o *LogObserver) Warning(message string) {
	o.Logger.Warn(message)
}

func (o *LogObserver) ResearchFailed(err error) {
	o.Logger.Error("Research failed", "error", err)
}

// MultiObserver fans each notification out to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) ResearchStarted(topic string) {
	for _, o := range m {
		o.ResearchStarted(topic)
	}
}

func (m MultiObserver) QueriesPlanned(batch QueryBatch) {
	for _, o := range m {
		o.QueriesPlanned(batch)
	}
}

func (m MultiObserver) Searching(iteration int, query string) {
	for _, o := range m {
		o.Searching(iteration, query)
	}
}

func (m MultiObserver) ResultSummarized(result SearchResult) {
	for _, o := range m {
		o.ResultSummarized(result)
	}
}

func (m MultiObserver) FollowUpDecided(iteration int, decision FollowUpDecision) {
	for _, o := range m {
		o.FollowUpDecided(iteration, decision)
	}
}

func (m MultiObserver) Synthesizing() {
	for _, o := range m {
		o.Synthesizing()
	}
}

func (m MultiObserver) ReportReady(report string) {
	for _, o := range m {
		o.ReportReady(report)
	}
}

func (m MultiObserver) Warning(message string) {
	for _, o := range m {
		o.Warning(message)
	}
}

func (m MultiObserver) ResearchFailed(err error) {
	for _, o := range m {
		o.ResearchFailed(err)
	}
}

type observerKey struct{}

// WithObserver attaches an observer to ctx so collaborators deeper in the call
// chain (retrievers, scrapers) can emit advisory warnings.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

// ObserverFrom returns the observer attached to ctx, or a NopObserver.
func ObserverFrom(ctx context.Context) Observer {
	if o, ok := ctx.Value(observerKey{}).(Observer); ok && o != nil {
		return o
	}
	return NopObserver{}
}
