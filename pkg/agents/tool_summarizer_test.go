package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/mikeboe/deep-research/pkg/research"
)

// scriptedModel answers each model call with the next canned response.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*model.LLMResponse
	err       error
	requests  []*model.LLMRequest
}

func (m *scriptedModel) Name() string { return "scripted-model" }

func (m *scriptedModel) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		m.mu.Lock()
		m.requests = append(m.requests, req)
		idx := len(m.requests) - 1
		m.mu.Unlock()

		if m.err != nil {
			yield(nil, m.err)
			return
		}
		if idx >= len(m.responses) {
			yield(nil, fmt.Errorf("unexpected model call %d", idx+1))
			return
		}
		yield(m.responses[idx], nil)
	}
}

func modelText(text string) *model.LLMResponse {
	return &model.LLMResponse{Content: genai.NewContentFromText(text, genai.RoleModel)}
}

func modelToolCall(url string) *model.LLMResponse {
	return &model.LLMResponse{Content: &genai.Content{
		Role: genai.RoleModel,
		Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
			Name: "url_scrape",
			Args: map[string]any{"url": url},
		}}},
	}}
}

func newTestToolSummarizer(t *testing.T, m model.LLM, reader PageReader) *ToolSummarizer {
	t.Helper()
	s, err := NewToolSummarizerWithModel(m, reader)
	if err != nil {
		t.Fatalf("NewToolSummarizerWithModel() error = %v", err)
	}
	s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return s
}

func TestToolSummarizerCallsScrapeTool(t *testing.T) {
	reader := &fakeReader{pages: map[string]string{"https://cdc.gov/fluoride": "Community water fluoridation prevents tooth decay."}}
	m := &scriptedModel{responses: []*model.LLMResponse{
		modelToolCall("https://cdc.gov/fluoride"),
		modelText("  The CDC reports fluoridation prevents decay.  "),
	}}
	s := newTestToolSummarizer(t, m, reader)

	got, err := s.Summarize(context.Background(), research.Hit{Title: "CDC", Link: "https://cdc.gov/fluoride"})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "The CDC reports fluoridation prevents decay." {
		t.Errorf("Summarize() = %q", got)
	}
	if len(reader.urls) != 1 || reader.urls[0] != "https://cdc.gov/fluoride" {
		t.Errorf("scraped urls = %v", reader.urls)
	}
	if len(m.requests) != 2 {
		t.Fatalf("model calls = %d, want 2", len(m.requests))
	}

	var toolResult string
	for _, c := range m.requests[1].Contents {
		for _, p := range c.Parts {
			if p.FunctionResponse != nil && p.FunctionResponse.Name == "url_scrape" {
				toolResult = fmt.Sprint(p.FunctionResponse.Response)
			}
		}
	}
	if !strings.Contains(toolResult, "prevents tooth decay") {
		t.Errorf("tool result sent to model = %q", toolResult)
	}

	var firstPrompt string
	for _, c := range m.requests[0].Contents {
		for _, p := range c.Parts {
			firstPrompt += p.Text
		}
	}
	if !strings.Contains(firstPrompt, "Title: CDC\nURL: https://cdc.gov/fluoride") {
		t.Errorf("user prompt = %q", firstPrompt)
	}
}

func TestToolSummarizerWithoutText(t *testing.T) {
	m := &scriptedModel{responses: []*model.LLMResponse{modelText("   ")}}
	s := newTestToolSummarizer(t, m, &fakeReader{})

	_, err := s.Summarize(context.Background(), research.Hit{Title: "Empty", Link: "https://empty"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	var re *ResponseError
	if !errors.As(err, &re) || re.Role != RoleSummarize {
		t.Errorf("error = %#v, want summarization ResponseError", err)
	}
}

func TestToolSummarizerModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	s := newTestToolSummarizer(t, &scriptedModel{err: boom}, &fakeReader{})

	_, err := s.Summarize(context.Background(), research.Hit{Title: "x", Link: "https://x"})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Error("backend failure reported as malformed response")
	}
}
