package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/radio-control/lorabridge/internal/adapter"
	"github.com/radio-control/lorabridge/internal/codec"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func readEntries(t *testing.T, r io.Reader) []Entry {
	t.Helper()
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNewLoggerWritesJSONL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	logger, err := NewLogger(Options{Dir: dir, Node: "controller", MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Log(context.Background(), Record{
		Actor:   "25235518",
		Action:  "startActuation",
		Params:  map[string]interface{}{"frame": "110"},
		Latency: 12 * time.Millisecond,
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if logger.GetFilePath() != filepath.Join(dir, FileName) {
		t.Errorf("Unexpected file path %s", logger.GetFilePath())
	}

	f, err := os.Open(logger.GetFilePath())
	if err != nil {
		t.Fatalf("Failed to open audit file: %v", err)
	}
	defer f.Close()

	entries := readEntries(t, f)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Node != "controller" || e.Actor != "25235518" || e.Action != "startActuation" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.Outcome != OutcomeSuccess || e.Code != "SUCCESS" {
		t.Errorf("Expected SUCCESS, got %s/%s", e.Outcome, e.Code)
	}
	if e.LatencyMs != 12 {
		t.Errorf("Expected latency 12ms, got %d", e.LatencyMs)
	}
	if e.CorrelationID == "" {
		t.Error("Expected a correlation id")
	}
	if e.Params["frame"] != "110" {
		t.Errorf("Expected frame param, got %v", e.Params)
	}
}

func TestCodes(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		outcome string
		code    string
	}{
		{"rejected", Record{Outcome: OutcomeRejected}, OutcomeRejected, "UNAUTHORIZED"},
		{"ignored", Record{Outcome: OutcomeIgnored}, OutcomeIgnored, "IGNORED"},
		{"busy", Record{Err: adapter.ErrBusy}, OutcomeError, "BUSY"},
		{"wrapped unavailable", Record{Err: fmt.Errorf("send: %w", adapter.ErrUnavailable)}, OutcomeError, "UNAVAILABLE"},
		{"vendor", Record{Err: &adapter.VendorError{Code: adapter.ErrInvalidRange, Original: errors.New("+ERR=5")}}, OutcomeError, "INVALID_RANGE"},
		{"empty frame", Record{Err: codec.ErrEmptyFrame}, OutcomeError, "EMPTY_FRAME"},
		{"other", Record{Err: errors.New("boom")}, OutcomeError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger("receiver", nopCloser{&buf})
			logger.Log(context.Background(), tt.record)

			entries := readEntries(t, &buf)
			if len(entries) != 1 {
				t.Fatalf("Expected 1 entry, got %d", len(entries))
			}
			if entries[0].Outcome != tt.outcome {
				t.Errorf("Expected outcome %s, got %s", tt.outcome, entries[0].Outcome)
			}
			if entries[0].Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, entries[0].Code)
			}
		})
	}
}

func TestCorrelationIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("controller", nopCloser{&buf})

	ctx := WithCorrelationID(context.Background(), "corr-1")
	logger.Log(ctx, Record{Action: "help"})
	logger.Log(ctx, Record{Action: "startActuation"})
	logger.Log(context.Background(), Record{Action: "stopActuation"})

	entries := readEntries(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].CorrelationID != "corr-1" || entries[1].CorrelationID != "corr-1" {
		t.Error("Expected context correlation id to be reused")
	}
	if entries[2].CorrelationID == "corr-1" || entries[2].CorrelationID == "" {
		t.Errorf("Expected a fresh correlation id, got %q", entries[2].CorrelationID)
	}
}

func TestConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("controller", nopCloser{&buf})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Log(context.Background(), Record{Actor: fmt.Sprint(i), Action: "help"})
		}(i)
	}
	wg.Wait()

	if got := len(readEntries(t, &buf)); got != 20 {
		t.Errorf("Expected 20 entries, got %d", got)
	}
}

func TestLogAfterClose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("controller", nopCloser{&buf})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(context.Background(), Record{Action: "help"})
	if buf.Len() != 0 {
		t.Error("Expected no output after Close")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(Options{Dir: dir, Node: "receiver"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Log(context.Background(), Record{Action: "frame"})
	if err := logger.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	logger.Log(context.Background(), Record{Action: "frame"})

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected current file plus one backup, got %d files", len(files))
	}
}
