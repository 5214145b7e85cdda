package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// CapturedRecord is one log line seen by a CaptureHandler
type CapturedRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type captureSink struct {
	mu      sync.Mutex
	records []CapturedRecord
}

// CaptureHandler is an slog.Handler that keeps every record in memory.
// Handlers derived with WithAttrs share the same sink.
type CaptureHandler struct {
	sink  *captureSink
	attrs []slog.Attr
}

// NewCaptureLogger returns a logger backed by a fresh CaptureHandler
func NewCaptureLogger() (*slog.Logger, *CaptureHandler) {
	h := &CaptureHandler{sink: &captureSink{}}
	return slog.New(h), h
}

// Enabled implements slog.Handler
func (h *CaptureHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler
func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.records = append(h.sink.records, CapturedRecord{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

// WithAttrs implements slog.Handler
func (h *CaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &CaptureHandler{sink: h.sink, attrs: merged}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *CaptureHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns a copy of everything captured so far
func (h *CaptureHandler) Records() []CapturedRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	out := make([]CapturedRecord, len(h.sink.records))
	copy(out, h.sink.records)
	return out
}

// Find returns the first record whose message contains substr
func (h *CaptureHandler) Find(substr string) (CapturedRecord, bool) {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, substr) {
			return r, true
		}
	}
	return CapturedRecord{}, false
}

// RequireLogged fails the test unless a record containing substr was captured
// with every given attribute.
func (h *CaptureHandler) RequireLogged(t testing.TB, substr string, attrs map[string]any) {
	t.Helper()

	for _, r := range h.Records() {
		if !strings.Contains(r.Message, substr) {
			continue
		}
		matched := true
		for k, v := range attrs {
			if r.Attrs[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}

	t.Errorf("no log record matching %q with %v", substr, attrs)
	for _, r := range h.Records() {
		t.Logf("  [%s] %s %v", r.Level, r.Message, r.Attrs)
	}
}
