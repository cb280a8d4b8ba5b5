package research

import "context"

// Generator is the language-model-backed side of a research run. Each call is
// a single request/response exchange.
type Generator interface {
	GenerateQueries(ctx context.Context, topic string) (QueryBatch, error)
	DecideFollowUp(ctx context.Context, findings Findings) (FollowUpDecision, error)
	Summarize(ctx context.Context, hit Hit) (string, error)
	Synthesize(ctx context.Context, findings Findings) (string, error)
}

// Retriever maps a query to candidate pages. Implementations recover from
// provider failures themselves and return an empty slice instead of an error.
type Retriever interface {
	Search(ctx context.Context, query string) []Hit
}

// Observer receives progress notifications. Notifications are fire-and-forget.
type Observer interface {
	ResearchStarted(topic string)
	QueriesPlanned(batch QueryBatch)
	Searching(iteration int, query string)
	ResultSummarized(result SearchResult)
	FollowUpDecided(iteration int, decision FollowUpDecision)
	Synthesizing()
	ReportReady(report string)
	Warning(message string)
	ResearchFailed(err error)
}
