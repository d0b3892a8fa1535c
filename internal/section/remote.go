package section

import (
	"context"
	"sync"
	"time"

	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/obs"
)

// flushTimeout bounds a debounced background write.
const flushTimeout = 10 * time.Second

// Remote persists one section through the record store. Field edits
// coalesce for RemoteDebounce before the write goes out; SaveNow and Submit
// cancel the window and write synchronously. A failed write keeps the
// working copy and surfaces through Err.
type Remote struct {
	backend  intake.Store
	appID    string
	key      intake.SectionKey
	userID   string
	debounce time.Duration

	mu        sync.Mutex
	data      intake.SectionData
	status    string
	saving    bool
	lastSaved *time.Time
	err       error
	timer     *time.Timer
}

var _ Store = (*Remote)(nil)

func openRemote(ctx context.Context, backend intake.Store, appID string, key intake.SectionKey, opts Options) (*Remote, error) {
	sec, err := backend.GetSection(ctx, appID, key)
	if err != nil {
		return nil, err
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = RemoteDebounce
	}
	return &Remote{
		backend:   backend,
		appID:     appID,
		key:       key,
		userID:    opts.UserID,
		debounce:  debounce,
		data:      sec.Data.Clone(),
		status:    sec.Status,
		lastSaved: sec.LastSavedAt,
	}, nil
}

func (r *Remote) Key() intake.SectionKey { return r.key }

func (r *Remote) Data() intake.SectionData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.Clone()
}

func (r *Remote) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Remote) Saving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saving
}

func (r *Remote) LastSaved() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSaved
}

func (r *Remote) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Remote) SaveField(field string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[field] = value
	r.schedule()
}

func (r *Remote) SaveBulk(data intake.SectionData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data.Clone()
	r.schedule()
}

// schedule restarts the debounce window. Caller holds the lock.
func (r *Remote) schedule() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.saving = true
	r.timer = time.AfterFunc(r.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		r.mu.Lock()
		if !r.saving {
			r.mu.Unlock()
			return
		}
		payload := r.data.Clone()
		r.mu.Unlock()

		sec, err := r.backend.SaveSection(ctx, r.appID, r.key, payload)
		r.record(sec, err)
	})
}

// record applies a write result. The working copy is left alone so a failed
// write loses nothing.
func (r *Remote) record(sec intake.Section, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saving = false
	if err != nil {
		r.err = err
		obs.LogRequest(map[string]any{
			"level":   "error",
			"msg":     "section save failed",
			"section": string(r.key),
			"error":   err.Error(),
		})
		return
	}
	r.err = nil
	r.status = sec.Status
	r.lastSaved = sec.LastSavedAt
}

// SaveNow flushes the working copy synchronously, cancelling any pending
// debounced write. On success an authenticated save lands on the audit
// trail with the saved field count.
func (r *Remote) SaveNow(ctx context.Context) error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.saving = true
	payload := r.data.Clone()
	r.mu.Unlock()

	sec, err := r.backend.SaveSection(ctx, r.appID, r.key, payload)
	r.record(sec, err)
	if err != nil {
		return err
	}

	if r.userID != "" {
		// Best-effort: the save already succeeded.
		if _, auditErr := r.backend.AppendAudit(ctx, intake.AuditEntry{
			ApplicationID: r.appID,
			UserID:        r.userID,
			Action:        "section_saved",
			SectionKey:    r.key,
			Details:       map[string]any{"field_count": len(payload)},
		}); auditErr != nil {
			obs.LogRequest(map[string]any{
				"level":   "error",
				"msg":     "audit append failed",
				"section": string(r.key),
				"error":   auditErr.Error(),
			})
		}
	}
	return nil
}

// Submit writes the working copy with submitted status.
func (r *Remote) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.saving = true
	payload := r.data.Clone()
	r.mu.Unlock()

	sec, err := r.backend.SubmitSection(ctx, r.appID, r.key, payload)
	r.record(sec, err)
	return err
}

func (r *Remote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.saving = false
}
