package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"menuetl/internal/config"
	"menuetl/internal/extract"
	"menuetl/internal/llm"
	"menuetl/internal/metrics"
	"menuetl/internal/store"
)

// Run statuses written to the audit log and returned to the trigger.
const (
	StatusStarted = "started"
	StatusSuccess = "success"
	StatusError   = "error"
)

// RowSource fetches one row-range of raw menu rows for a source selector.
type RowSource interface {
	FetchMenuBatch(ctx context.Context, start, end int, source string) ([]extract.RawRow, error)
}

// RowSink persists extraction records for a source selector and reports the
// number of rows written.
type RowSink interface {
	UploadCleaned(ctx context.Context, records []extract.Record, source string, truncate bool) (int, error)
}

// RunLogger appends audit records. Implementations may fail; callers treat
// every write as best-effort.
type RunLogger interface {
	InsertRunLog(ctx context.Context, e store.RunLogEntry) error
}

// Result is the typed outcome of one ETL invocation. Errors are folded into
// Status/Message so the trigger can always log and return the outcome.
type Result struct {
	Status    string `json:"status"`
	Processed int    `json:"processed,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ETL runs the batch pipeline: fetch a row-range, extract and validate via
// one LLM round trip, upload the cleaned records, and audit the outcome. It
// holds no per-run state; concurrent runs are independent.
type ETL struct {
	source   RowSource
	sink     RowSink
	logs     RunLogger
	runner   *extract.Runner
	truncate bool
	logger   *slog.Logger
}

// NewETL wires the pipeline against the store and classification client.
func NewETL(st *store.Store, client llm.Classifier, cfg *config.Config, logger *slog.Logger) *ETL {
	return &ETL{
		source:   st,
		sink:     st,
		logs:     st,
		runner:   extract.NewRunner(client),
		truncate: cfg.Pipeline.TruncateBeforeUpload,
		logger:   logger,
	}
}

// NewETLFromParts is the fully-injected constructor used by tests.
func NewETLFromParts(source RowSource, sink RowSink, logs RunLogger, client llm.Classifier, truncate bool, logger *slog.Logger) *ETL {
	return &ETL{
		source:   source,
		sink:     sink,
		logs:     logs,
		runner:   extract.NewRunner(client),
		truncate: truncate,
		logger:   logger,
	}
}

// Run processes one bounded row-range. Any failure aborts the whole batch;
// there is no partial success and no retry.
func (e *ETL) Run(ctx context.Context, start, end int, source string) Result {
	e.audit(ctx, start, end, source, StatusStarted, "", nil)

	rows, err := e.source.FetchMenuBatch(ctx, start, end, source)
	if err != nil {
		return e.fail(ctx, start, end, source, err)
	}

	records, err := e.runner.Run(ctx, rows, extract.Options{})
	if err != nil {
		return e.fail(ctx, start, end, source, err)
	}

	processed, err := e.sink.UploadCleaned(ctx, records, source, e.truncate)
	if err != nil {
		return e.fail(ctx, start, end, source, err)
	}

	meta, _ := json.Marshal(map[string]int{"processed": processed})
	e.audit(ctx, start, end, source, StatusSuccess, "", meta)
	metrics.RecordRun(source, StatusSuccess, processed)

	return Result{Status: StatusSuccess, Processed: processed}
}

func (e *ETL) fail(ctx context.Context, start, end int, source string, cause error) Result {
	var meta json.RawMessage
	var valErr *extract.ValidationError
	if errors.As(cause, &valErr) {
		meta, _ = json.Marshal(map[string]any{"invalid_values": valErr.Values})
	}

	e.audit(ctx, start, end, source, StatusError, cause.Error(), meta)
	metrics.RecordRun(source, StatusError, 0)

	return Result{Status: StatusError, Message: cause.Error()}
}

// audit writes one run-log record. Log-write failures are reported to the
// process log and otherwise ignored.
func (e *ETL) audit(ctx context.Context, start, end int, source, status, message string, metadata json.RawMessage) {
	err := e.logs.InsertRunLog(ctx, store.RunLogEntry{
		StartRow: start,
		EndRow:   end,
		Source:   source,
		Status:   status,
		Message:  message,
		Metadata: metadata,
	})
	if err != nil && e.logger != nil {
		e.logger.Warn("run log write failed",
			"start_row", start,
			"end_row", end,
			"source", source,
			"status", status,
			"error", err,
		)
	}
}
