package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/research"
)

// PageReader returns the text of a web page. Failures are encoded in the
// returned text rather than as an error.
type PageReader interface {
	Scrape(ctx context.Context, url string) string
}

// Summarizer turns a retrieval hit into a free-text summary.
type Summarizer interface {
	Summarize(ctx context.Context, hit research.Hit) (string, error)
}

// Service implements research.Generator on top of a langchaingo model. Every
// role is exactly one model call; nothing is retried here.
type Service struct {
	LLM        llms.Model
	Reader     PageReader
	Summarizer Summarizer
	Logger     *slog.Logger

	querySchema    schemaFor
	followUpSchema schemaFor
}

type Option func(*Service)

// WithSummarizer replaces the prompt-based summarization role.
func WithSummarizer(s Summarizer) Option {
	return func(svc *Service) { svc.Summarizer = s }
}

func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) { svc.Logger = logger }
}

func NewService(llm llms.Model, reader PageReader, opts ...Option) (*Service, error) {
	r := newReflector()
	querySchema, err := reflectSchema(r, &research.QueryBatch{})
	if err != nil {
		return nil, err
	}
	followUpSchema, err := reflectSchema(r, &research.FollowUpDecision{})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		LLM:            llm,
		Reader:         reader,
		Logger:         slog.Default(),
		querySchema:    querySchema,
		followUpSchema: followUpSchema,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

var _ research.Generator = (*Service)(nil)

func (s *Service) GenerateQueries(ctx context.Context, topic string) (research.QueryBatch, error) {
	var batch research.QueryBatch
	err := s.generateStructured(ctx, RoleQuery, queryPlannerPrompt, s.querySchema, topic, &batch)
	if err != nil {
		return research.QueryBatch{}, err
	}
	return batch, nil
}

func (s *Service) DecideFollowUp(ctx context.Context, findings research.Findings) (research.FollowUpDecision, error) {
	input := fmt.Sprintf("%sCompleted research rounds: %d", findings.Transcript(), findings.Iteration)

	var decision research.FollowUpDecision
	err := s.generateStructured(ctx, RoleFollowUp, followUpPrompt, s.followUpSchema, input, &decision)
	if err != nil {
		return research.FollowUpDecision{}, err
	}
	return decision, nil
}

func (s *Service) Summarize(ctx context.Context, hit research.Hit) (string, error) {
	if s.Summarizer != nil {
		return s.Summarizer.Summarize(ctx, hit)
	}

	content := ""
	if s.Reader != nil {
		content = s.Reader.Scrape(ctx, hit.Link)
	}
	input := fmt.Sprintf("Title: %s\nURL: %s\n\nPage content:\n%s", hit.Title, hit.Link, content)

	return s.generateText(ctx, RoleSummarize, summarizerPrompt, input)
}

func (s *Service) Synthesize(ctx context.Context, findings research.Findings) (string, error) {
	return s.generateText(ctx, RoleSynthesis, synthesisPrompt, findings.Transcript())
}

func (s *Service) generateText(ctx context.Context, role Role, system, input string) (string, error) {
	content, err := s.generate(ctx, role, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (s *Service) generateStructured(ctx context.Context, role Role, system string, schema schemaFor, input string, out any) error {
	content, err := s.generate(ctx, role, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system+"\n\n# Response Format:\n"+responseFormatPreamble+schema.text),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, llms.WithJSONMode())
	if err != nil {
		return err
	}

	if err := decodeResponse(content, out, schema.required); err != nil {
		s.Logger.Error("Structured response rejected", "role", role, "error", err)
		return &ResponseError{Role: role, Raw: content, Err: err}
	}
	return nil
}

func (s *Service) generate(ctx context.Context, role Role, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	s.Logger.Debug("Invoking model", "role", role)

	resp, err := s.LLM.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", role, err)
	}
	if len(resp.Choices) == 0 {
		return "", &ResponseError{Role: role, Err: fmt.Errorf("llm returned no choices")}
	}
	return resp.Choices[0].Content, nil
}
