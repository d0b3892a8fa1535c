package section

import (
	"context"
	"time"

	"boldx.dev/intake/internal/draft"
	"boldx.dev/intake/internal/intake"
)

// Local adapts one section of a draft store to the Store interface. It never
// fails: draft writes are best-effort and submission is only marked, the
// real submit happens after authentication.
type Local struct {
	drafts *draft.Store
	key    intake.SectionKey
}

var _ Store = (*Local)(nil)

func newLocal(drafts *draft.Store, key intake.SectionKey) *Local {
	return &Local{drafts: drafts, key: key}
}

func (l *Local) Key() intake.SectionKey   { return l.key }
func (l *Local) Data() intake.SectionData { return l.drafts.Data(l.key) }
func (l *Local) Status() string           { return l.drafts.Status(l.key) }
func (l *Local) Saving() bool             { return l.drafts.Saving(l.key) }
func (l *Local) LastSaved() *time.Time    { return l.drafts.LastSaved(l.key) }
func (l *Local) Err() error               { return nil }

func (l *Local) SaveField(field string, value any) { l.drafts.SaveField(l.key, field, value) }
func (l *Local) SaveBulk(data intake.SectionData)  { l.drafts.SaveBulk(l.key, data) }

func (l *Local) SaveNow(ctx context.Context) error {
	l.drafts.SaveNow(l.key)
	return nil
}

func (l *Local) Submit(ctx context.Context) error {
	l.drafts.SaveNow(l.key)
	l.drafts.MarkSubmitted(l.key)
	return nil
}

func (l *Local) Close() {}
