// Package draft persists anonymous wizard drafts to local key/value storage.
// It mirrors the authenticated save path's shape (debounced field saves, an
// immediate save, per-section status) without any network dependency, so the
// wizard can run the same flow before sign-in.
package draft

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/obs"
)

// KeyPrefix namespaces draft keys so unrelated entries in the same storage
// are never touched.
const KeyPrefix = "bxe_intake_"

// DefaultDebounce is how long field edits coalesce before hitting storage.
const DefaultDebounce = 500 * time.Millisecond

type sectionState struct {
	data      intake.SectionData
	status    string
	loaded    bool
	saving    bool
	lastSaved *time.Time
	timer     *time.Timer
}

// Store manages all ten section drafts over one Storage backend. Writes are
// best-effort: storage failures are logged and the in-memory copy stays
// authoritative, matching how a browser treats a full local store.
type Store struct {
	mu       sync.Mutex
	storage  Storage
	debounce time.Duration
	now      func() time.Time
	sections map[intake.SectionKey]*sectionState
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides the flush delay.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New creates a draft store over the given backend.
func New(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:  storage,
		debounce: DefaultDebounce,
		now:      time.Now,
		sections: make(map[intake.SectionKey]*sectionState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func storageKey(key intake.SectionKey) string { return KeyPrefix + string(key) }

// state loads the section from storage on first touch. Caller holds the lock.
func (s *Store) state(key intake.SectionKey) *sectionState {
	if st, ok := s.sections[key]; ok {
		return st
	}
	st := &sectionState{data: intake.SectionData{}, status: intake.SectionNotStarted}
	if raw, ok, err := s.storage.ReadItem(storageKey(key)); err == nil && ok {
		var data intake.SectionData
		if json.Unmarshal(raw, &data) == nil {
			st.data = data
			st.status = intake.SectionInProgress
		}
	}
	st.loaded = true
	s.sections[key] = st
	return st
}

// Data returns a copy of the section's current draft.
func (s *Store) Data(key intake.SectionKey) intake.SectionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(key).data.Clone()
}

// Status returns not_started, in_progress or submitted.
func (s *Store) Status(key intake.SectionKey) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(key).status
}

// Saving reports whether a debounced write is pending.
func (s *Store) Saving(key intake.SectionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(key).saving
}

// LastSaved returns when the section last reached storage, or nil.
func (s *Store) LastSaved(key intake.SectionKey) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(key).lastSaved
}

// SaveField merges one field into the draft and schedules a debounced flush.
// A new edit within the window restarts the timer.
func (s *Store) SaveField(key intake.SectionKey, field string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(key)
	st.data[field] = value
	s.schedule(key, st)
}

// SaveBulk replaces the whole draft payload and schedules a flush. Used for
// array-valued sections where row edits arrive as one object.
func (s *Store) SaveBulk(key intake.SectionKey, data intake.SectionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(key)
	st.data = data.Clone()
	s.schedule(key, st)
}

func (s *Store) schedule(key intake.SectionKey, st *sectionState) {
	if st.timer != nil {
		st.timer.Stop()
	}
	st.saving = true
	st.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.sections[key]
		if !ok || !cur.saving {
			return
		}
		s.flush(key, cur)
	})
}

// flush writes the section to storage. Caller holds the lock.
func (s *Store) flush(key intake.SectionKey, st *sectionState) {
	st.saving = false
	raw, err := json.Marshal(st.data)
	if err == nil {
		err = s.storage.WriteItem(storageKey(key), raw)
	}
	if err != nil {
		obs.LogRequest(map[string]any{
			"level":   "error",
			"msg":     "draft write failed",
			"section": string(key),
			"error":   err.Error(),
		})
		return
	}
	now := s.now().UTC()
	st.lastSaved = &now
	if st.status == intake.SectionNotStarted {
		st.status = intake.SectionInProgress
	}
}

// SaveNow flushes the section immediately, cancelling any pending timer.
func (s *Store) SaveNow(key intake.SectionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(key)
	if st.timer != nil {
		st.timer.Stop()
	}
	s.flush(key, st)
}

// MarkSubmitted records section submission locally. Nothing is sent
// anywhere; the real submit happens after authentication.
func (s *Store) MarkSubmitted(key intake.SectionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(key).status = intake.SectionSubmitted
}

// Flush synchronously writes every section with a pending save.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, st := range s.sections {
		if st.saving {
			if st.timer != nil {
				st.timer.Stop()
			}
			s.flush(key, st)
		}
	}
}

// LoadAll returns every non-empty section draft, flushing pending saves
// first so nothing in flight is lost. Used by the migration path.
func (s *Store) LoadAll() map[intake.SectionKey]intake.SectionData {
	s.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[intake.SectionKey]intake.SectionData)
	for _, info := range intake.Sections {
		raw, ok, err := s.storage.ReadItem(storageKey(info.Key))
		if err != nil || !ok {
			continue
		}
		var data intake.SectionData
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}
		if len(data) > 0 {
			out[info.Key] = data
		}
	}
	return out
}

// ClearAll removes every section draft from storage and resets in-memory
// state. Called once the drafts are safely migrated.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, info := range intake.Sections {
		if st, ok := s.sections[info.Key]; ok && st.timer != nil {
			st.timer.Stop()
		}
		if err := s.storage.RemoveItem(storageKey(info.Key)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clear %s: %w", info.Key, err)
		}
	}
	s.sections = make(map[intake.SectionKey]*sectionState)
	return firstErr
}
