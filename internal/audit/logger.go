package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/codec"
)

// Outcomes.
const (
	OutcomeSuccess  = "SUCCESS"
	OutcomeRejected = "REJECTED"
	OutcomeIgnored  = "IGNORED"
	OutcomeError    = "ERROR"
)

// FileName is the audit file inside the configured directory.
const FileName = "audit.jsonl"

// Entry is a single audit line.
type Entry struct {
	Timestamp     time.Time              `json:"ts"`
	CorrelationID string                 `json:"correlationId"`
	Node          string                 `json:"node"`
	Actor         string                 `json:"actor"`
	Action        string                 `json:"action"`
	Params        map[string]interface{} `json:"params,omitempty"`
	Outcome       string                 `json:"outcome"`
	Code          string                 `json:"code"`
	LatencyMs     int64                  `json:"latencyMs"`
}

// Record is what callers hand to Log.
type Record struct {
	Actor   string
	Action  string
	Params  map[string]interface{}
	Outcome string
	Err     error
	Latency time.Duration
}

// Options configures file rotation.
type Options struct {
	Dir        string
	Node       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger writes audit entries as JSON lines.
type Logger struct {
	mu       sync.Mutex
	node     string
	filePath string
	out      io.WriteCloser
}

type correlationKey struct{}

// WithCorrelationID attaches a correlation id that Log will reuse.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// NewLogger creates an audit logger writing to Options.Dir/audit.jsonl.
func NewLogger(opts Options) (*Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(opts.Dir, FileName)
	return &Logger{
		node:     opts.Node,
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
	}, nil
}

// NewWriterLogger creates an audit logger on an arbitrary writer.
func NewWriterLogger(node string, w io.WriteCloser) *Logger {
	return &Logger{node: node, out: w}
}

// Log writes one audit record.
func (l *Logger) Log(ctx context.Context, r Record) {
	id, _ := ctx.Value(correlationKey{}).(string)
	if id == "" {
		id = uuid.NewString()
	}

	outcome := r.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
		if r.Err != nil {
			outcome = OutcomeError
		}
	}

	entry := Entry{
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
		Node:          l.node,
		Actor:         r.Actor,
		Action:        r.Action,
		Params:        r.Params,
		Outcome:       outcome,
		Code:          codeFor(outcome, r.Err),
		LatencyMs:     r.Latency.Milliseconds(),
	}

	l.writeEntry(entry)
}

func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// codeFor maps an outcome and error to a normalized code.
func codeFor(outcome string, err error) string {
	switch outcome {
	case OutcomeRejected:
		return "UNAUTHORIZED"
	case OutcomeIgnored:
		return "IGNORED"
	}
	if err == nil {
		return "SUCCESS"
	}

	switch {
	case errors.Is(err, adapter.ErrInvalidRange):
		return "INVALID_RANGE"
	case errors.Is(err, adapter.ErrBusy):
		return "BUSY"
	case errors.Is(err, adapter.ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, adapter.ErrInternal):
		return "INTERNAL"
	case errors.Is(err, codec.ErrEmptyFrame):
		return "EMPTY_FRAME"
	default:
		return "ERROR"
	}
}

// Close closes the underlying writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil {
		err := l.out.Close()
		l.out = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate closes the current file and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lj, ok := l.out.(*lumberjack.Logger); ok {
		return lj.Rotate()
	}
	return nil
}
