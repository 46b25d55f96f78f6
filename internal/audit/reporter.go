package audit

import (
	"context"
	"log/slog"
)

// Reporter is a sink for accepted audit records. Implementations own their
// failure handling; errors returned here are logged by the dispatcher and
// never surfaced back to the producing call site.
type Reporter interface {
	Report(ctx context.Context, rec Record) error
}

// RecordStore persists audit records. Implemented by
// repositories.AuditLogRepository.
type RecordStore interface {
	Create(ctx context.Context, rec *Record) error
}

// StoreReporter persists records through a RecordStore.
type StoreReporter struct {
	store RecordStore
}

// NewStoreReporter creates a reporter backed by a record store.
func NewStoreReporter(store RecordStore) *StoreReporter {
	return &StoreReporter{store: store}
}

func (r *StoreReporter) Report(ctx context.Context, rec Record) error {
	return r.store.Create(ctx, &rec)
}

// LogReporter writes records to the structured log, success at info and
// failure at warn.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a slog-backed reporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ctx context.Context, rec Record) error {
	attrs := []slog.Attr{
		slog.String("audit_id", rec.ID),
		slog.String("event_type", rec.Type),
		slog.String("outcome", string(rec.Outcome)),
		slog.String("occurred_at", rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")),
	}
	if rec.Actor != "" {
		attrs = append(attrs, slog.String("actor", rec.Actor))
	}
	if rec.Target != "" {
		attrs = append(attrs, slog.String("target", rec.Target))
	}
	if rec.Domain != "" {
		attrs = append(attrs, slog.String("domain", rec.Domain))
	}
	if len(rec.Attributes) > 0 {
		attrs = append(attrs, slog.Any("attributes", map[string]interface{}(rec.Attributes)))
	}

	level := slog.LevelInfo
	if rec.Outcome == OutcomeFailure {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "audit", attrs...)
	return nil
}

// MultiReporter fans a record out to every configured sink. A failing sink
// does not stop delivery to the others; its error is logged here and
// dropped, per the gateway contract.
type MultiReporter struct {
	reporters []Reporter
	logger    *slog.Logger
}

// NewMultiReporter creates a fanout over the given sinks.
func NewMultiReporter(logger *slog.Logger, reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters, logger: logger}
}

func (r *MultiReporter) Report(ctx context.Context, rec Record) error {
	for _, reporter := range r.reporters {
		if err := reporter.Report(ctx, rec); err != nil {
			r.logger.Error("audit sink failed",
				slog.String("event_type", rec.Type),
				slog.Any("error", err),
			)
		}
	}
	return nil
}
