package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"

	"github.com/mikeboe/deep-research/pkg/research"
)

const toolSummarizerApp = "deep-research"

// ToolSummarizer summarizes pages with an ADK agent that decides on its own
// when to call the url_scrape tool.
type ToolSummarizer struct {
	Agent  agent.Agent
	Logger *slog.Logger
}

func NewToolSummarizer(ctx context.Context, modelName, apiKey string, reader PageReader) (*ToolSummarizer, error) {
	modelClient, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return NewToolSummarizerWithModel(modelClient, reader)
}

// NewToolSummarizerWithModel builds the summarizing agent on an existing model.
func NewToolSummarizerWithModel(llm model.LLM, reader PageReader) (*ToolSummarizer, error) {
	searchAgent, err := llmagent.New(llmagent.Config{
		Name:        "search_agent",
		Model:       llm,
		Description: "Summarizes a single web page.",
		Instruction: toolSummarizerInstruction,
		Toolsets: []tool.Toolset{
			&scrapeToolset{reader: reader},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &ToolSummarizer{Agent: searchAgent, Logger: slog.Default()}, nil
}

// Summarize runs the agent once in a fresh in-memory session and returns the
// text of its last response.
func (s *ToolSummarizer) Summarize(ctx context.Context, hit research.Hit) (string, error) {
	sessionSvc := session.InMemoryService()
	userID := "researcher"
	sessionID := uuid.NewString()

	if _, err := sessionSvc.Create(ctx, &session.CreateRequest{
		AppName:   toolSummarizerApp,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	r, err := runner.New(runner.Config{
		AppName:        toolSummarizerApp,
		Agent:          s.Agent,
		SessionService: sessionSvc,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create runner: %w", err)
	}

	userContent := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: fmt.Sprintf("Title: %s\nURL: %s", hit.Title, hit.Link)},
		},
	}

	var summary string
	for event, err := range r.Run(ctx, userID, sessionID, userContent, agent.RunConfig{}) {
		if err != nil {
			return "", fmt.Errorf("%s generation failed: %w", RoleSummarize, err)
		}
		if event.LLMResponse.Content == nil {
			continue
		}

		var text strings.Builder
		for _, part := range event.LLMResponse.Content.Parts {
			if part.FunctionCall != nil {
				s.Logger.Debug("Agent tool call", "tool", part.FunctionCall.Name, "url", hit.Link)
			}
			text.WriteString(part.Text)
		}
		if t := strings.TrimSpace(text.String()); t != "" {
			summary = t
		}
	}

	if summary == "" {
		return "", &ResponseError{Role: RoleSummarize, Err: errors.New("agent returned no text")}
	}
	return summary, nil
}

type scrapeToolset struct {
	reader PageReader
}

func (t *scrapeToolset) Name() string {
	return "scrape_tools"
}

func (t *scrapeToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	scrapeTool, err := functiontool.New[ScrapeArgs, ScrapeResp](
		functiontool.Config{
			Name:        "url_scrape",
			Description: "Fetch a web page and return its main text content, truncated to a few thousand characters.",
		},
		t.scrapeTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create url_scrape tool: %w", err)
	}
	return []tool.Tool{scrapeTool}, nil
}

type ScrapeArgs struct {
	URL string `json:"url" description:"The URL of the page to read"`
}

type ScrapeResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *scrapeToolset) scrapeTool(ctx tool.Context, args ScrapeArgs) (ScrapeResp, error) {
	return t.ReadPage(ctx, args)
}

func (t *scrapeToolset) ReadPage(ctx context.Context, args ScrapeArgs) (ScrapeResp, error) {
	if strings.TrimSpace(args.URL) == "" {
		return ScrapeResp{}, errors.New("url is required")
	}
	return ScrapeResp{Content: t.reader.Scrape(ctx, args.URL)}, nil
}
