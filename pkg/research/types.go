package research

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxFollowUps is the hard cap on extra rounds after the initial one.
const DefaultMaxFollowUps = 3

// Config holds runtime configuration for a research run
type Config struct {
	MaxFollowUps int
	DedupeURLs   bool
	Concurrency  int
}

// DefaultConfig returns the sequential, non-deduplicating configuration.
func DefaultConfig() Config {
	return Config{
		MaxFollowUps: DefaultMaxFollowUps,
		Concurrency:  1,
	}
}

// Hit is a single record returned by a Retriever.
type Hit struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// SearchResult represents a single summarized page
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// QueryBatch is the set of search intents for one round.
type QueryBatch struct {
	Queries  []string `json:"queries" jsonschema:"description=Diverse high quality web search queries"`
	Thoughts string   `json:"thoughts" jsonschema:"description=Your reasoning and search strategy"`
}

// FollowUpDecision is the verdict of the follow-up role after a round.
type FollowUpDecision struct {
	ShouldFollowUp bool     `json:"should_follow_up" jsonschema:"description=True if more research is needed"`
	Reasoning      string   `json:"reasoning" jsonschema:"description=Why more research is or is not needed"`
	Queries        []string `json:"queries" jsonschema:"description=Follow-up search queries. Empty when should_follow_up is false"`
}

// Session tracks the progress of one research run
type Session struct {
	Topic     string         `json:"topic"`
	Iteration int            `json:"iteration"`
	Results   []SearchResult `json:"results"`
	StartedAt time.Time      `json:"started_at"`

	seen map[string]bool
}

func newSession(topic string) *Session {
	return &Session{
		Topic:     topic,
		Iteration: 1,
		Results:   []SearchResult{},
		StartedAt: time.Now(),
		seen:      make(map[string]bool),
	}
}

func (s *Session) add(r SearchResult) {
	s.Results = append(s.Results, r)
	s.seen[r.URL] = true
}

// Seen reports whether a result with the given URL was already accumulated.
func (s *Session) Seen(url string) bool {
	return s.seen[url]
}

// Findings returns a snapshot of the session for the follow-up and synthesis roles.
func (s *Session) Findings() Findings {
	results := make([]SearchResult, len(s.Results))
	copy(results, s.Results)
	return Findings{
		Topic:     s.Topic,
		Iteration: s.Iteration,
		Results:   results,
	}
}

// Findings is the accumulated context handed to the follow-up and synthesis roles.
type Findings struct {
	Topic     string
	Iteration int
	Results   []SearchResult
}

// Transcript renders the topic followed by every result in discovery order.
func (f Findings) Transcript() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Query: %s\n\n", f.Topic))
	for _, r := range f.Results {
		sb.WriteString(fmt.Sprintf("Title: %s\nURL: %s\nSummary: %s\n\n", r.Title, r.URL, r.Summary))
	}
	return sb.String()
}

// Report is the outcome of a completed run.
type Report struct {
	Topic    string         `json:"topic"`
	Markdown string         `json:"markdown"`
	Sources  []SearchResult `json:"sources"`
	Rounds   int            `json:"rounds"`
}
