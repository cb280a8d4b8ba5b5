package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// DBLogHandler is a slog.Handler that writes records to a job's log table.
type DBLogHandler struct {
	Store Store
	JobID uuid.UUID
	Level slog.Leveler

	attrs []slog.Attr
	group string
}

func NewDBLogHandler(store Store, jobID uuid.UUID) *DBLogHandler {
	return &DBLogHandler{
		Store: store,
		JobID: jobID,
		Level: slog.LevelInfo,
	}
}

func (h *DBLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.Level == nil {
		return true
	}
	return level >= h.Level.Level()
}

func (h *DBLogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = attrValue(a.Value)
		return true
	})

	meta, err := json.Marshal(attrs)
	if err != nil {
		meta = []byte("{}")
	}

	// Logs must outlive the request that started the job.
	return h.Store.AppendLog(context.Background(), h.JobID, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  meta,
	})
}

// attrValue keeps errors readable; json.Marshal renders most of them as {}.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}

func (h *DBLogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.key(name)
	return &next
}
