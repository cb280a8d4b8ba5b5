package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

type warningObserver struct {
	research.NopObserver
	warnings []string
}

func (o *warningObserver) Warning(message string) { o.warnings = append(o.warnings, message) }

func newTestSerpAPI(t *testing.T, endpoint string, opts ...SerpAPIOption) (*SerpAPI, *[]time.Duration) {
	t.Helper()
	opts = append([]SerpAPIOption{
		WithEndpoint(endpoint),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	s, err := NewSerpAPI("test-key", opts...)
	if err != nil {
		t.Fatalf("NewSerpAPI() error = %v", err)
	}
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestNewSerpAPIRequiresKey(t *testing.T) {
	if _, err := NewSerpAPI("  "); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestSerpAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "fluoride" || q.Get("location") != "United States" || q.Get("num") != "5" || q.Get("api_key") != "test-key" {
			t.Errorf("unexpected query params: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"organic_results": [
			{"title": "A", "link": "u1", "snippet": "ignored"},
			{"link": "u2"},
			{"title": "C", "link": "u3"},
			{"title": "D", "link": "u4"},
			{"title": "E", "link": "u5"},
			{"title": "F", "link": "u6"}
		]}`)
	}))
	defer srv.Close()

	s, slept := newTestSerpAPI(t, srv.URL)
	hits := s.Search(context.Background(), "fluoride")

	if len(hits) != 5 {
		t.Fatalf("hits = %d, want 5", len(hits))
	}
	if hits[0] != (research.Hit{Title: "A", Link: "u1"}) {
		t.Errorf("first hit = %+v", hits[0])
	}
	if hits[1].Title != "" || hits[1].Link != "u2" {
		t.Errorf("incomplete hit should be passed through unchanged, got %+v", hits[1])
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v on success", *slept)
	}
}

func TestSerpAPIRetriesThenDegradesToEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, slept := newTestSerpAPI(t, srv.URL)
	obs := &warningObserver{}
	ctx := research.WithObserver(context.Background(), obs)

	hits := s.Search(ctx, "anything")

	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %#v, want empty non-nil slice", hits)
	}
	if got := calls.Load(); got != DefaultMaxAttempts {
		t.Errorf("provider calls = %d, want %d", got, DefaultMaxAttempts)
	}
	if len(*slept) != DefaultMaxAttempts-1 {
		t.Errorf("sleeps = %d, want %d", len(*slept), DefaultMaxAttempts-1)
	}
	for _, d := range *slept {
		if d != DefaultRetryDelay {
			t.Errorf("sleep = %v, want %v", d, DefaultRetryDelay)
		}
	}
	if len(obs.warnings) != DefaultMaxAttempts {
		t.Fatalf("warnings = %d, want %d", len(obs.warnings), DefaultMaxAttempts)
	}
	if !strings.HasPrefix(obs.warnings[0], "[Search Error] Attempt 1:") {
		t.Errorf("warning = %q", obs.warnings[0])
	}
}

func TestSerpAPIRecoversOnLaterAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			io.WriteString(w, `{"error": "Your account has run out of searches."}`)
			return
		}
		io.WriteString(w, `{"organic_results": [{"title": "A", "link": "u1"}]}`)
	}))
	defer srv.Close()

	s, slept := newTestSerpAPI(t, srv.URL, WithRetry(3, time.Millisecond))
	hits := s.Search(context.Background(), "q")

	if len(hits) != 1 {
		t.Errorf("hits = %d, want 1", len(hits))
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(*slept) != 1 || (*slept)[0] != time.Millisecond {
		t.Errorf("sleeps = %v", *slept)
	}
}

func TestSerpAPIInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	s, _ := newTestSerpAPI(t, srv.URL, WithRetry(2, 0))
	if hits := s.Search(context.Background(), "q"); len(hits) != 0 {
		t.Errorf("hits = %v, want empty", hits)
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
