package perk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/techperks/internal/storage"
)

// Storage keys shared with the settings store.
const (
	KeyPerks               = "perks"
	KeyDemoCleared         = "demo-cleared"
	KeyDemoNoticeDismissed = "demo-notice-dismissed"
)

// KV is the durable key/value mirror the Store writes through to.
// Implemented by storage.Store; GetValue returns storage.ErrNotFound for
// absent keys.
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store owns the perk collection for the lifetime of the process and mirrors
// every mutation to KV before it becomes visible.
//
// Until Load completes, mutations only touch memory so an empty initial
// collection can never overwrite saved data.
type Store struct {
	kv    KV
	clock Clock
	newID func() string

	mu     sync.RWMutex
	perks  []Perk
	loaded bool
}

// NewStore creates an unloaded Store backed by kv.
func NewStore(kv KV) *Store {
	return NewStoreWithClock(kv, realClock{})
}

// NewStoreWithClock creates a Store with a custom clock (for testing).
func NewStoreWithClock(kv KV, clock Clock) *Store {
	return &Store{
		kv:    kv,
		clock: clock,
		newID: uuid.NewString,
		perks: []Perk{},
	}
}

// Load reads the saved collection. A set demo-cleared flag yields an empty
// collection; missing or unreadable data yields the demo dataset, while
// individual bad records are repaired or skipped. Only storage I/O failures
// are returned.
func (s *Store) Load(ctx context.Context) error {
	perks, err := s.readSaved(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.perks = perks
	s.loaded = true
	if err := s.write(ctx, s.perks); err != nil {
		slog.Warn("could not write back loaded perks", "error", err)
	}
	return nil
}

func (s *Store) readSaved(ctx context.Context) ([]Perk, error) {
	cleared, err := s.flag(ctx, KeyDemoCleared)
	if err != nil {
		return nil, err
	}
	if cleared {
		return []Perk{}, nil
	}

	raw, err := s.kv.GetValue(ctx, KeyPerks)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Info("no saved perks, seeding demo data")
		return Demo(s.clock.Now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading perks: %w", err)
	}

	perks, err := decodeSaved(raw)
	if err != nil {
		slog.Warn("saved perks unreadable, falling back to demo data", "error", err)
		return Demo(s.clock.Now()), nil
	}
	return perks, nil
}

// decodeSaved reads the saved array one record at a time so a single bad
// record cannot discard the rest. It fails only when the value is not an
// array or no record at all is readable.
func decodeSaved(raw string) ([]Perk, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, errors.New("saved perks are null")
	}

	perks := make([]Perk, 0, len(items))
	for i, item := range items {
		p, err := decodeSavedPerk(item)
		if err != nil {
			slog.Warn("skipping unreadable saved perk", "index", i, "error", err)
			continue
		}
		if p.Notes == nil {
			p.Notes = []string{}
		}
		perks = append(perks, p)
	}
	if len(perks) == 0 && len(items) > 0 {
		return nil, errors.New("no saved perk is readable")
	}
	return perks, nil
}

// decodeSavedPerk decodes one record. Hand-edited dates that no longer parse
// are cleared rather than losing the record.
func decodeSavedPerk(item json.RawMessage) (Perk, error) {
	var p Perk
	err := json.Unmarshal(item, &p)
	if err == nil {
		return p, nil
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(item, &obj) != nil {
		return Perk{}, err
	}
	var cleared []string
	if v, ok := obj["expiryDate"]; ok {
		var d Date
		if d.UnmarshalJSON(v) != nil {
			delete(obj, "expiryDate")
			cleared = append(cleared, "expiryDate")
		}
	}
	if v, ok := obj["createdAt"]; ok {
		var ts string
		if json.Unmarshal(v, &ts) != nil {
			delete(obj, "createdAt")
			cleared = append(cleared, "createdAt")
		} else if ts != "" {
			if _, perr := parseTimestamp(ts); perr != nil {
				delete(obj, "createdAt")
				cleared = append(cleared, "createdAt")
			}
		}
	}
	if len(cleared) == 0 {
		return Perk{}, err
	}

	repaired, merr := json.Marshal(obj)
	if merr != nil {
		return Perk{}, err
	}
	p = Perk{}
	if uerr := json.Unmarshal(repaired, &p); uerr != nil {
		return Perk{}, uerr
	}
	slog.Warn("saved perk has unreadable dates, keeping it without them",
		"id", p.ID, "fields", strings.Join(cleared, ","))
	return p, nil
}

func (s *Store) flag(ctx context.Context, key string) (bool, error) {
	v, err := s.kv.GetValue(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	return v == "true", nil
}

func (s *Store) write(ctx context.Context, perks []Perk) error {
	data, err := json.Marshal(perks)
	if err != nil {
		return fmt.Errorf("encoding perks: %w", err)
	}
	if err := s.kv.SetValue(ctx, KeyPerks, string(data)); err != nil {
		return fmt.Errorf("saving perks: %w", err)
	}
	return nil
}

// commit persists next (when loaded) and only then makes it current.
// Caller holds s.mu.
func (s *Store) commit(ctx context.Context, next []Perk) error {
	if s.loaded {
		if err := s.write(ctx, next); err != nil {
			return err
		}
	}
	s.perks = next
	return nil
}

// Loaded reports whether Load has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []Perk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Perk, len(s.perks))
	for i, p := range s.perks {
		out[i] = p.clone()
	}
	return out
}

// Get returns the perk with id.
func (s *Store) Get(id string) (Perk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.perks {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return Perk{}, false
}

// Add assigns an id and creation time, validates, appends and persists.
// Duplicate names are allowed.
func (s *Store) Add(ctx context.Context, in Input) (Perk, error) {
	p := Perk{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		Link:        in.Link,
		ExpiryDate:  in.ExpiryDate,
		Category:    in.Category,
		Status:      in.Status,
		Value:       in.Value,
		Provider:    in.Provider,
		Notes:       append([]string{}, in.Notes...),
		Progress:    in.Progress,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if p.Status == "" {
		p.Status = StatusUnused
	}
	if err := Validate(p); err != nil {
		return Perk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clone(s.perks), p)
	if err := s.commit(ctx, next); err != nil {
		return Perk{}, err
	}
	return p.clone(), nil
}

// Update merges patch into the perk with id. An unknown id is a no-op and
// reports false.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Perk, bool, error) {
	return s.mutate(ctx, id, func(p Perk) (Perk, error) {
		return patch.Apply(p), nil
	})
}

// AddNote appends a note to the perk's notes.
func (s *Store) AddNote(ctx context.Context, id, note string) (Perk, bool, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return Perk{}, false, fmt.Errorf("%w: note cannot be blank", ErrInvalid)
	}
	return s.mutate(ctx, id, func(p Perk) (Perk, error) {
		notes := append(slices.Clone(p.Notes), note)
		return Patch{Notes: &notes}.Apply(p), nil
	})
}

// RemoveNote drops the note at index.
func (s *Store) RemoveNote(ctx context.Context, id string, index int) (Perk, bool, error) {
	return s.mutate(ctx, id, func(p Perk) (Perk, error) {
		if index < 0 || index >= len(p.Notes) {
			return Perk{}, fmt.Errorf("%w: note index %d out of range", ErrInvalid, index)
		}
		notes := slices.Delete(slices.Clone(p.Notes), index, index+1)
		return Patch{Notes: &notes}.Apply(p), nil
	})
}

// SetProgress replaces the perk's progress.
func (s *Store) SetProgress(ctx context.Context, id string, progress Progress) (Perk, bool, error) {
	return s.Update(ctx, id, Patch{Progress: &progress})
}

func (s *Store) mutate(ctx context.Context, id string, fn func(Perk) (Perk, error)) (Perk, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.perks, func(p Perk) bool { return p.ID == id })
	if idx < 0 {
		return Perk{}, false, nil
	}

	updated, err := fn(s.perks[idx])
	if err != nil {
		return Perk{}, true, err
	}
	if err := Validate(updated); err != nil {
		return Perk{}, true, err
	}

	next := slices.Clone(s.perks)
	next[idx] = updated
	if err := s.commit(ctx, next); err != nil {
		return Perk{}, true, err
	}
	return updated.clone(), true, nil
}

// Remove deletes the perk with id. An unknown id is a no-op and reports false.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.perks, func(p Perk) bool { return p.ID == id })
	if idx < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.perks), idx, idx+1)
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// ClearAll empties the collection, erases the saved copy and sets the
// demo-cleared flag so the next Load starts empty.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		// Flag first: if the delete then fails, Load still starts empty.
		if err := s.kv.SetValue(ctx, KeyDemoCleared, "true"); err != nil {
			return fmt.Errorf("setting demo-cleared flag: %w", err)
		}
		if err := s.kv.DeleteValue(ctx, KeyPerks); err != nil {
			return fmt.Errorf("erasing perks: %w", err)
		}
	}
	s.perks = []Perk{}
	return nil
}

// Replace swaps the whole collection, as when importing a file. Every perk is
// checked first and nothing changes unless all pass. Missing ids and
// creation times are filled in; duplicate ids are rejected.
func (s *Store) Replace(ctx context.Context, perks []Perk) ([]Perk, error) {
	now := s.clock.Now().UTC()
	next := make([]Perk, len(perks))
	seen := make(map[string]bool, len(perks))
	for i, p := range perks {
		p = p.clone()
		if p.ID == "" {
			p.ID = s.newID()
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: perk %d: duplicate id %q", ErrInvalid, i, p.ID)
		}
		seen[p.ID] = true
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.Status == "" {
			p.Status = StatusUnused
		}
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("perk %d: %w", i, err)
		}
		next[i] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	out := make([]Perk, len(next))
	for i, p := range next {
		out[i] = p.clone()
	}
	return out, nil
}

// Categorize buckets the current collection as of the store clock.
func (s *Store) Categorize() Buckets {
	return Categorize(s.clock.Now(), s.List())
}

// Dashboard computes buckets and metrics as of the store clock.
func (s *Store) Dashboard() Dashboard {
	return BuildDashboard(s.clock.Now(), s.List())
}

// Export snapshots the collection as an export document.
func (s *Store) Export() Document {
	return Export(s.clock.Now(), s.List())
}

// DemoNoticeDismissed reports whether the user hid the demo-data notice.
func (s *Store) DemoNoticeDismissed(ctx context.Context) (bool, error) {
	return s.flag(ctx, KeyDemoNoticeDismissed)
}

// DismissDemoNotice records that the demo-data notice was hidden.
func (s *Store) DismissDemoNotice(ctx context.Context) error {
	return s.kv.SetValue(ctx, KeyDemoNoticeDismissed, "true")
}
