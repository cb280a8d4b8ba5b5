package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/deep-research/pkg/database"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("research job not found")

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Report    *string         `json:"report,omitempty"`
	Error     *string         `json:"error,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

type Event struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Store persists jobs together with their progress events and logs.
type Store interface {
	CreateJob(ctx context.Context, topic string, config json.RawMessage) (*Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveState(ctx context.Context, id uuid.UUID, state json.RawMessage) error
	CompleteJob(ctx context.Context, id uuid.UUID, report string) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error

	AppendEvent(ctx context.Context, id uuid.UUID, eventType string, payload json.RawMessage) error
	ListEvents(ctx context.Context, id uuid.UUID) ([]Event, error)
	AppendLog(ctx context.Context, id uuid.UUID, entry LogEntry) error
	ListLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error)
}

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	DB *database.PostgresDB
}

func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{DB: db}
}

const jobColumns = "id, topic, status, report, error, state, config, created_at, updated_at"

func scanJob(row pgx.Row, job *Job) error {
	return row.Scan(&job.ID, &job.Topic, &job.Status, &job.Report, &job.Error,
		&job.State, &job.Config, &job.CreatedAt, &job.UpdatedAt)
}

func (p *PostgresStore) CreateJob(ctx context.Context, topic string, config json.RawMessage) (*Job, error) {
	query := `
		INSERT INTO research_jobs (id, topic, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + jobColumns

	job := &Job{}
	if err := scanJob(p.DB.Pool.QueryRow(ctx, query, uuid.New(), topic, StatusPending, config), job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (p *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := "SELECT " + jobColumns + " FROM research_jobs WHERE id = $1"

	job := &Job{}
	if err := scanJob(p.DB.Pool.QueryRow(ctx, query, id), job); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (p *PostgresStore) ListJobs(ctx context.Context) ([]Job, error) {
	query := "SELECT " + jobColumns + " FROM research_jobs ORDER BY created_at DESC LIMIT 50"

	rows, err := p.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := scanJob(rows, &job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (p *PostgresStore) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := p.DB.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return p.exec(ctx, "update status",
		"UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
}

func (p *PostgresStore) SaveState(ctx context.Context, id uuid.UUID, state json.RawMessage) error {
	return p.exec(ctx, "save state",
		"UPDATE research_jobs SET state = $2, updated_at = NOW() WHERE id = $1", id, state)
}

func (p *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, report string) error {
	return p.exec(ctx, "save report",
		"UPDATE research_jobs SET status = $2, report = $3, updated_at = NOW() WHERE id = $1",
		id, StatusCompleted, report)
}

func (p *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	return p.exec(ctx, "mark job failed",
		"UPDATE research_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1",
		id, StatusFailed, reason)
}

func (p *PostgresStore) AppendEvent(ctx context.Context, id uuid.UUID, eventType string, payload json.RawMessage) error {
	return p.exec(ctx, "insert event",
		"INSERT INTO research_events (job_id, type, payload) VALUES ($1, $2, $3)", id, eventType, payload)
}

func (p *PostgresStore) ListEvents(ctx context.Context, id uuid.UUID) ([]Event, error) {
	rows, err := p.DB.Pool.Query(ctx, `
		SELECT id, timestamp, type, payload
		FROM research_events
		WHERE job_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Type, &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *PostgresStore) AppendLog(ctx context.Context, id uuid.UUID, entry LogEntry) error {
	return p.exec(ctx, "insert log",
		"INSERT INTO research_logs (job_id, timestamp, level, message, metadata) VALUES ($1, $2, $3, $4, $5)",
		id, entry.Timestamp, entry.Level, entry.Message, entry.Metadata)
}

func (p *PostgresStore) ListLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error) {
	rows, err := p.DB.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
