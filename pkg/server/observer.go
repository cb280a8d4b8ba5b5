package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Event types written to research_events.
const (
	EventResearchStarted  = "research_started"
	EventQueriesPlanned   = "queries_planned"
	EventSearching        = "searching"
	EventResultSummarized = "result_summarized"
	EventFollowUpDecided  = "follow_up_decided"
	EventSynthesizing     = "synthesizing"
	EventReportReady      = "report_ready"
	EventWarning          = "warning"
	EventResearchFailed   = "research_failed"
)

// EventObserver records every progress notification of one job.
type EventObserver struct {
	Store  Store
	JobID  uuid.UUID
	Logger *slog.Logger
}

func NewEventObserver(store Store, jobID uuid.UUID, logger *slog.Logger) *EventObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventObserver{Store: store, JobID: jobID, Logger: logger}
}

var _ research.Observer = (*EventObserver)(nil)

func (o *EventObserver) record(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.Logger.Error("Failed to marshal event", "type", eventType, "error", err)
		return
	}
	if err := o.Store.AppendEvent(context.Background(), o.JobID, eventType, data); err != nil {
		o.Logger.Error("Failed to save event", "type", eventType, "error", err)
	}
}

func (o *EventObserver) ResearchStarted(topic string) {
	o.record(EventResearchStarted, map[string]string{"topic": topic})
}

func (o *EventObserver) QueriesPlanned(batch research.QueryBatch) {
	o.record(EventQueriesPlanned, batch)
}

func (o *EventObserver) Searching(iteration int, query string) {
	o.record(EventSearching, map[string]any{"iteration": iteration, "query": query})
}

func (o *EventObserver) ResultSummarized(result research.SearchResult) {
	o.record(EventResultSummarized, result)
}

func (o *EventObserver) FollowUpDecided(iteration int, decision research.FollowUpDecision) {
	o.record(EventFollowUpDecided, map[string]any{"iteration": iteration, "decision": decision})
}

func (o *EventObserver) Synthesizing() {
	o.record(EventSynthesizing, struct{}{})
}

func (o *EventObserver) ReportReady(report string) {
	o.record(EventReportReady, map[string]int{"length": len(report)})
}

func (o *EventObserver) Warning(message string) {
	o.record(EventWarning, map[string]string{"message": message})
}

func (o *EventObserver) ResearchFailed(err error) {
	o.record(EventResearchFailed, map[string]string{"error": err.Error()})
}
