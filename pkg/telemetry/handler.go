package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

type contextKey string

const (
	// ContextKeyOperation carries the exposed operation name (IngestResume, GetJobMatches, ...).
	ContextKeyOperation contextKey = "operation"
	// ContextKeyRecordID carries the resume or job id being processed.
	ContextKeyRecordID contextKey = "record_id"
	// ContextKeyRequestSource carries the caller surface (http, cli).
	ContextKeyRequestSource contextKey = "request_source"
)

// WithOperation annotates ctx with the operation and record id picked up
// by ParquetHandler.
func WithOperation(ctx context.Context, operation, recordID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyOperation, operation)
	if recordID != "" {
		ctx = context.WithValue(ctx, ContextKeyRecordID, recordID)
	}
	return ctx
}

// WithRequestSource annotates ctx with the caller surface.
func WithRequestSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestSource, source)
}

// LogRecord represents a single log entry for Parquet storage
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	Operation     string    `parquet:"operation"`
	RecordID      string    `parquet:"record_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON string
}

// sink is the buffer shared by a handler and its clones.
type sink struct {
	outputDir string
	batchSize int

	mu     sync.Mutex
	buffer []LogRecord
}

// ParquetHandler is a slog.Handler that writes error logs to Parquet files
type ParquetHandler struct {
	next  slog.Handler
	attrs []slog.Attr
	sink  *sink
}

// NewParquetHandler creates a new ParquetHandler
func NewParquetHandler(next slog.Handler, outputDir string) (*ParquetHandler, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	return &ParquetHandler{
		next: next,
		sink: &sink{
			outputDir: outputDir,
			batchSize: 100,
			buffer:    make([]LogRecord, 0, 100),
		},
	}, nil
}

// Enabled implements slog.Handler
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always pass to next handler first
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}

	// Only errors (and above) are persisted
	if r.Level < slog.LevelError {
		return nil
	}

	var operation, recordID, requestSource string
	if v, ok := ctx.Value(ContextKeyOperation).(string); ok {
		operation = v
	}
	if v, ok := ctx.Value(ContextKeyRecordID).(string); ok {
		recordID = v
	}
	if v, ok := ctx.Value(ContextKeyRequestSource).(string); ok {
		requestSource = v
	}

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = attrValue(a.Value)
		return true
	})
	attrsJSON, _ := json.Marshal(attrs)

	var sourceFile string
	var line int
	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		sourceFile, line = f.File, f.Line
	}

	record := LogRecord{
		ID:            uuid.New().String(),
		Timestamp:     r.Time.UTC(),
		Level:         r.Level.String(),
		Message:       r.Message,
		Operation:     operation,
		RecordID:      recordID,
		RequestSource: requestSource,
		SourceFile:    sourceFile,
		LineNumber:    line,
		Attributes:    string(attrsJSON),
	}

	s := h.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.batchSize {
		return s.flush()
	}
	return nil
}

// errors are not JSON-marshalable as values; keep their text.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}

// Flush writes buffered records to a new Parquet file.
func (h *ParquetHandler) Flush() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.flush()
}

// Close flushes any buffered records.
func (h *ParquetHandler) Close() error {
	return h.Flush()
}

// flush writes the current buffer to a new Parquet file.
// Caller must hold the lock.
func (s *sink) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("ingestion_errors_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(s.outputDir, filename)

	if err := parquet.WriteFile(path, s.buffer); err != nil {
		return fmt.Errorf("failed to write telemetry parquet file: %w", err)
	}

	s.buffer = s.buffer[:0]
	return nil
}

// WithAttrs implements slog.Handler
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ParquetHandler{
		next:  h.next.WithAttrs(attrs),
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
		sink:  h.sink,
	}
}

// WithGroup implements slog.Handler
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	return &ParquetHandler{
		next:  h.next.WithGroup(name),
		attrs: h.attrs,
		sink:  h.sink,
	}
}
