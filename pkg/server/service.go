package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/research"
)

// EngineFactory hands out a fresh engine per job.
type EngineFactory interface {
	NewEngine(logger *slog.Logger) *research.ResearchEngine
}

type Service struct {
	Store   Store
	Engines EngineFactory
	Cfg     research.Config

	wg sync.WaitGroup
}

func NewService(store Store, engines EngineFactory, cfg research.Config) *Service {
	return &Service{
		Store:   store,
		Engines: engines,
		Cfg:     cfg,
	}
}

type CreateJobRequest struct {
	Topic string `json:"topic" binding:"required"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, research.ErrEmptyTopic
	}

	configJSON, err := json.Marshal(map[string]any{
		"max_follow_ups": s.Cfg.MaxFollowUps,
		"dedupe_urls":    s.Cfg.DedupeURLs,
		"concurrency":    s.Cfg.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}

	job, err := s.Store.CreateJob(ctx, topic, configJSON)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.runWorker(job.ID, topic)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	return s.Store.ListJobs(ctx)
}

func (s *Service) GetJobLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error) {
	if _, err := s.Store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListLogs(ctx, id)
}

func (s *Service) GetJobEvents(ctx context.Context, id uuid.UUID) ([]Event, error) {
	if _, err := s.Store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListEvents(ctx, id)
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runWorker(jobID uuid.UUID, topic string) {
	defer s.wg.Done()
	ctx := context.Background()

	dbLogger := slog.New(NewDBLogHandler(s.Store, jobID))

	if err := s.Store.UpdateStatus(ctx, jobID, StatusRunning); err != nil {
		slog.Error("Failed to mark job running", "job_id", jobID, "error", err)
	}

	engine := s.Engines.NewEngine(dbLogger)
	engine.Observer = research.MultiObserver{
		NewEventObserver(s.Store, jobID, dbLogger),
		research.NewLogObserver(slog.Default().With("job_id", jobID)),
	}

	// Hook for state persistence
	engine.OnStateUpdate = func(state research.Session) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			dbLogger.Error("Failed to marshal state", "error", err)
			return
		}
		if err := s.Store.SaveState(ctx, jobID, stateJSON); err != nil {
			dbLogger.Error("Failed to save state to DB", "error", err)
		}
	}

	report, err := engine.Research(ctx, topic)
	if err != nil {
		s.failJob(ctx, jobID, dbLogger, fmt.Sprintf("Research failed: %v", err))
		return
	}

	if err := s.Store.CompleteJob(ctx, jobID, report.Markdown); err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, logger *slog.Logger, reason string) {
	logger.Error(reason)
	if err := s.Store.FailJob(ctx, jobID, reason); err != nil {
		slog.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
}
