package research

import (
	"context"
	"testing"
)

func TestFindingsTranscript(t *testing.T) {
	f := Findings{
		Topic: "Is fluoride good for health?",
		Results: []SearchResult{
			{Title: "A", URL: "https://a", Summary: "first"},
			{Title: "B", URL: "https://b", Summary: "second"},
		},
	}

	want := "Query: Is fluoride good for health?\n\n" +
		"Title: A\nURL: https://a\nSummary: first\n\n" +
		"Title: B\nURL: https://b\nSummary: second\n\n"
	if got := f.Transcript(); got != want {
		t.Errorf("Transcript() =\n%q\nwant\n%q", got, want)
	}
}

func TestSessionFindingsIsSnapshot(t *testing.T) {
	s := newSession("topic")
	s.add(SearchResult{Title: "A", URL: "u1"})

	f := s.Findings()
	s.add(SearchResult{Title: "B", URL: "u2"})
	f.Results[0].Title = "changed"

	if len(f.Results) != 1 {
		t.Errorf("snapshot grew to %d results", len(f.Results))
	}
	if s.Results[0].Title != "A" {
		t.Error("mutating a snapshot changed the session")
	}
	if !s.Seen("u2") || s.Seen("u3") {
		t.Error("Seen does not track accumulated URLs")
	}
	if s.Iteration != 1 {
		t.Errorf("new session iteration = %d, want 1", s.Iteration)
	}
}

func TestObserverFromContext(t *testing.T) {
	if _, ok := ObserverFrom(context.Background()).(NopObserver); !ok {
		t.Error("expected NopObserver for a bare context")
	}

	obs := &recordingObserver{}
	ctx := WithObserver(context.Background(), obs)
	ObserverFrom(ctx).Searching(1, "q")
	if len(obs.events) != 1 || obs.events[0] != "search:q" {
		t.Errorf("events = %v", obs.events)
	}
}

func TestMultiObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	m := MultiObserver{a, b}
	m.ResearchStarted("t")
	m.Synthesizing()

	for _, o := range []*recordingObserver{a, b} {
		if len(o.events) != 2 {
			t.Errorf("events = %v, want 2", o.events)
		}
	}
}
