package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubline/internal/config"
	"dubline/internal/logging"
	"dubline/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "dubline.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")
	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerRendersSubjectPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "orchestrator")

	ctx := services.WithWorkflowID(context.Background(), "0123456789abcdef")
	ctx = services.WithStage(ctx, "synthesize")
	ctx = services.WithLanguage(ctx, "ta")
	logging.WithContext(ctx, logger).Info("voice ready", logging.String("uri", "s3://b/k"))

	line := buf.String()
	if !strings.Contains(line, "[wf 01234567 synthesize ta] orchestrator: voice ready") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, "uri=s3://b/k") {
		t.Fatalf("expected tail attribute in %q", line)
	}
	if strings.Contains(line, "workflow_id=") {
		t.Fatalf("subject fields should not repeat in the tail: %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithWorkflowID(context.Background(), "wf-9")
	ctx = services.WithStage(ctx, "translate")
	ctx = services.WithRequestID(ctx, "req-xyz")
	err = services.Wrap(services.ErrTranslation, "translate", "validate", "missing tamil", errors.New("bad keys"))
	logging.WithContext(ctx, logger).Error("translation rejected", logging.Args(logging.ErrorAttrs(err)...)...)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"level":                    "error",
		logging.FieldWorkflowID:    "wf-9",
		logging.FieldStage:         "translate",
		logging.FieldCorrelationID: "req-xyz",
		logging.FieldErrorKind:     "translation",
	} {
		if got, _ := payload[key].(string); got != want {
			t.Fatalf("field %s = %q, want %q", key, got, want)
		}
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "duration defaulted", "ingest_degraded")
	out := buf.String()
	for _, fragment := range []string{`"event_type":"ingest_degraded"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %q", fragment, out)
		}
	}
}
