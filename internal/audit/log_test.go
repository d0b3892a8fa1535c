package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = identity.ContextWithUser(ctx, identity.User{ID: "user-42"})

	if err := LogEvent(ctx, "section_saved", map[string]any{"field_count": 4}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "section_saved" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["field_count"] != float64(4) {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestRecorderPersistsRow(t *testing.T) {
	store := intake.NewInMemory()
	ctx := context.Background()
	app, _ := store.CreateApplication(ctx, intake.NewApplication{UserID: "u-1"})

	rec := NewRecorder(store)
	ctx = identity.ContextWithUser(ctx, identity.User{ID: "u-1"})
	saved, err := rec.Record(ctx, intake.AuditEntry{
		ApplicationID: app.ID,
		Action:        "section_saved",
		SectionKey:    intake.SectionCompany,
		Details:       map[string]any{"field_count": 3},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if saved.UserID != "u-1" {
		t.Fatalf("user id not filled from context: %+v", saved)
	}

	entries, err := store.ListAudit(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "section_saved" {
		t.Fatalf("audit trail = %+v", entries)
	}
}
