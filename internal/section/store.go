// Package section exposes one save surface for wizard steps regardless of
// where the data lives. Anonymous sessions write drafts to local storage;
// authenticated sessions write through to the record store. The wizard
// drives both through the same Store interface and never branches on mode.
package section

import (
	"context"
	"time"

	"boldx.dev/intake/internal/draft"
	"boldx.dev/intake/internal/intake"
)

// RemoteDebounce is how long authenticated field edits coalesce before the
// write goes out. Local drafts use the shorter draft.DefaultDebounce.
const RemoteDebounce = 1500 * time.Millisecond

// Store is the mode-independent surface for one wizard section.
type Store interface {
	Key() intake.SectionKey
	// Data returns the current working copy, which may be ahead of what
	// has been persisted.
	Data() intake.SectionData
	Status() string
	Saving() bool
	LastSaved() *time.Time
	// Err reports the last persistence failure, cleared by the next
	// successful write. The working copy survives failures.
	Err() error

	SaveField(field string, value any)
	SaveBulk(data intake.SectionData)
	SaveNow(ctx context.Context) error
	Submit(ctx context.Context) error

	// Close cancels any pending debounced write without flushing it.
	Close()
}

// Options tune Open.
type Options struct {
	// Debounce overrides the remote flush delay when positive.
	Debounce time.Duration
	// UserID attributes authenticated saves on the audit trail.
	UserID string
}

// Open returns the store variant for the session: a draft-backed one when
// applicationID is empty, otherwise a record-store one loaded with the
// section's persisted state.
func Open(ctx context.Context, backend intake.Store, drafts *draft.Store, applicationID string, key intake.SectionKey, opts Options) (Store, error) {
	if applicationID == "" {
		return newLocal(drafts, key), nil
	}
	return openRemote(ctx, backend, applicationID, key, opts)
}
