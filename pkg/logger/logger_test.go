package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func newBufferedLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	l, err := NewLogger(&Config{Level: DebugLevel, Format: "json", AppName: "cab-tracker", Version: "test"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	var buf bytes.Buffer
	l.SetOutput(&buf)
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q is not JSON: %v", buf.String(), err)
	}
	return entry
}

func TestWithFieldDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()
	l, buf := newBufferedLogger(t)

	child := l.WithTripToken("abc123")
	l.Info("parent")

	entry := decodeLine(t, buf)
	if _, ok := entry["trip_token"]; ok {
		t.Errorf("parent entry carries child field: %v", entry)
	}

	buf.Reset()
	child.Info("child")
	entry = decodeLine(t, buf)
	if entry["trip_token"] != "abc123" {
		t.Errorf("trip_token = %v, want abc123", entry["trip_token"])
	}
	if entry["app"] != "cab-tracker" || entry["version"] != "test" {
		t.Errorf("app/version = %v/%v, want cab-tracker/test", entry["app"], entry["version"])
	}
}

func TestWithContextExtractsKnownKeys(t *testing.T) {
	t.Parallel()
	l, buf := newBufferedLogger(t)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTripToken(ctx, "abc123")
	l.WithContext(ctx).Warn("ctx")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req-1" || entry["trip_token"] != "abc123" {
		t.Errorf("entry = %v, want request_id and trip_token from context", entry)
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want warning", entry["level"])
	}
}

func TestLogTripEvent(t *testing.T) {
	t.Parallel()
	l, buf := newBufferedLogger(t)

	l.LogTripEvent("abc123", "ride_started", map[string]interface{}{"lat": 28.61})

	entry := decodeLine(t, buf)
	if entry["event"] != "ride_started" || entry["type"] != "trip_event" {
		t.Errorf("entry = %v, want trip_event ride_started", entry)
	}
}

func TestWithErrorNil(t *testing.T) {
	t.Parallel()
	l := NewNop()
	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}
}
