// Package audit records significant intake actions twice: as structured log
// lines for operators and as durable rows on the application's audit trail.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// RequestIDFrom returns the request id attached to the context, or "".
func RequestIDFrom(ctx context.Context) string {
	return requestIDFromContext(ctx)
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if user, ok := identity.UserFromContext(ctx); ok {
		entry["user_id"] = user.ID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

// Recorder appends durable audit rows and mirrors them to the log.
type Recorder struct {
	store intake.Store
}

// NewRecorder wraps the given store.
func NewRecorder(store intake.Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one audit row. The user id is taken from the context when
// not set on the entry. Log mirroring is best-effort.
func (r *Recorder) Record(ctx context.Context, entry intake.AuditEntry) (intake.AuditEntry, error) {
	if entry.UserID == "" {
		if user, ok := identity.UserFromContext(ctx); ok {
			entry.UserID = user.ID
		}
	}
	saved, err := r.store.AppendAudit(ctx, entry)
	if err != nil {
		return intake.AuditEntry{}, err
	}
	fields := map[string]any{
		"application_id": saved.ApplicationID,
	}
	if saved.SectionKey != "" {
		fields["section_key"] = string(saved.SectionKey)
	}
	for k, v := range saved.Details {
		fields[k] = v
	}
	LogEvent(ctx, saved.Action, fields)
	return saved, nil
}
