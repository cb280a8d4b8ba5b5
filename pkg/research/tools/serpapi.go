package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

const (
	DefaultSerpAPIEndpoint = "https://serpapi.com/search.json"
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 2 * time.Second
	DefaultNumResults      = 5
	DefaultLocation        = "United States"
)

// ErrMissingAPIKey is returned when the search provider is built without a credential.
var ErrMissingAPIKey = errors.New("SERPAPI_API_KEY is not set")

// SerpAPI searches Google through SerpAPI. Failed attempts are retried with a
// fixed delay; when every attempt fails Search returns an empty slice.
type SerpAPI struct {
	APIKey      string
	Endpoint    string
	Location    string
	NumResults  int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger

	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

// SerpAPIOption configures a SerpAPI client.
type SerpAPIOption func(*SerpAPI)

func WithEndpoint(endpoint string) SerpAPIOption {
	return func(s *SerpAPI) { s.Endpoint = endpoint }
}

func WithLocation(location string) SerpAPIOption {
	return func(s *SerpAPI) { s.Location = location }
}

func WithNumResults(n int) SerpAPIOption {
	return func(s *SerpAPI) { s.NumResults = n }
}

func WithRetry(maxAttempts int, delay time.Duration) SerpAPIOption {
	return func(s *SerpAPI) {
		s.MaxAttempts = maxAttempts
		s.RetryDelay = delay
	}
}

func WithHTTPClient(client *http.Client) SerpAPIOption {
	return func(s *SerpAPI) { s.client = client }
}

func WithLogger(logger *slog.Logger) SerpAPIOption {
	return func(s *SerpAPI) { s.Logger = logger }
}

// NewSerpAPI creates a SerpAPI search client.
func NewSerpAPI(apiKey string, opts ...SerpAPIOption) (*SerpAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	s := &SerpAPI{
		APIKey:      apiKey,
		Endpoint:    DefaultSerpAPIEndpoint,
		Location:    DefaultLocation,
		NumResults:  DefaultNumResults,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
		Logger:      slog.Default(),
		client:      &http.Client{Timeout: 30 * time.Second},
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	return s, nil
}

type serpResponse struct {
	Error          string         `json:"error"`
	OrganicResults []research.Hit `json:"organic_results"`
}

// Search returns at most NumResults hits for query. It never fails: provider
// errors are logged, reported as warnings and retried until MaxAttempts is
// exhausted, after which the result is empty.
func (s *SerpAPI) Search(ctx context.Context, query string) []research.Hit {
	obs := research.ObserverFrom(ctx)

	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		hits, err := s.search(ctx, query)
		if err == nil {
			return hits
		}

		s.Logger.Warn("Search attempt failed", "query", query, "attempt", attempt, "error", err)
		obs.Warning(fmt.Sprintf("[Search Error] Attempt %d: %v", attempt, err))

		if attempt == s.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, s.RetryDelay); err != nil {
			break
		}
	}

	s.Logger.Error("Search failed after retries", "query", query, "attempts", s.MaxAttempts)
	return []research.Hit{}
}

func (s *SerpAPI) search(ctx context.Context, query string) ([]research.Hit, error) {
	params := url.Values{}
	params.Add("engine", "google")
	params.Add("q", query)
	params.Add("location", s.Location)
	params.Add("num", strconv.Itoa(s.NumResults))
	params.Add("api_key", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var parsed serpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("provider error: %s", parsed.Error)
	}

	hits := parsed.OrganicResults
	if hits == nil {
		hits = []research.Hit{}
	}
	if s.NumResults > 0 && len(hits) > s.NumResults {
		hits = hits[:s.NumResults]
	}
	return hits, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
