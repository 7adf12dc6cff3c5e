package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithOutput(&buf), WithSource(false)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Get().Info(context.Background(), "contact scored", String("contact_id", "c-1"), Int("score", 72))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "contact scored" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["contact_id"] != "c-1" {
		t.Errorf("unexpected contact_id: %v", rec["contact_id"])
	}
	if _, ok := rec["source"]; ok {
		t.Errorf("source attribute should be disabled")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer SetLevel(slog.LevelInfo)

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "boom") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf), WithSource(false)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("store").With(String("driver", "sqlite")).Info(context.Background(), "opened")

	out := buf.String()
	if !strings.Contains(out, "store.driver=sqlite") {
		t.Errorf("expected grouped attribute, got %q", out)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Error(context.Background(), "discarded")
	l.Named("x").With(Bool("ok", true)).Debug(context.Background(), "discarded")
}
