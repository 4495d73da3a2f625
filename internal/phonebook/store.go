// Package phonebook keeps the ordered list of saved phone numbers and mirrors
// it into a persistence slot after every change.
package phonebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/dialbook/internal/phone"
)

// DefaultSlotKey is the slot the list is persisted under.
const DefaultSlotKey = "savedPhones"

var (
	// ErrEmptyInput is returned when the input is blank.
	ErrEmptyInput = errors.New("phone number is empty")
	// ErrInvalidFormat is returned when the input is not a number of the plan.
	ErrInvalidFormat = errors.New("phone number format is invalid")
	// ErrDuplicateNumber is returned when the normalized number is already saved.
	ErrDuplicateNumber = errors.New("phone number is already saved")
	// ErrNotFound is returned by Resolve when no record matches.
	ErrNotFound = errors.New("phone number not found")
	// ErrAmbiguousID is returned by Resolve when a prefix matches several records.
	ErrAmbiguousID = errors.New("id prefix matches more than one phone number")
)

// SavedPhone is one saved number. Number is always in E.164 form.
type SavedPhone struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// SavedAt returns the creation time of the record.
func (p SavedPhone) SavedAt() time.Time { return time.UnixMilli(p.Timestamp) }

// Slot is the key-value persistence the Store reads once and overwrites on
// every mutation. Implemented by storage.Store.
type Slot interface {
	GetSlot(key string) (value string, ok bool, err error)
	PutSlot(key, value string) error
}

// Option configures a Store.
type Option func(*Store)

// WithPlan sets the numbering plan used to validate and normalize input.
func WithPlan(plan phone.Plan) Option { return func(s *Store) { s.plan = plan } }

// WithSlotKey sets the slot key the list is persisted under.
func WithSlotKey(key string) Option { return func(s *Store) { s.key = key } }

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDGenerator sets the function that produces record ids.
func WithIDGenerator(newID func() string) Option { return func(s *Store) { s.newID = newID } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option { return func(s *Store) { s.logger = logger } }

// Store owns the saved-number sequence, newest first. Save, Delete and Clear
// are its only mutators; each one rewrites the whole sequence into the slot.
type Store struct {
	slot   Slot
	key    string
	plan   phone.Plan
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	mu        sync.Mutex
	phones    []SavedPhone
	version   uint64 // bumped on every load and committed mutation
	draft     string
	observers map[int]func([]SavedPhone)
	nextObs   int

	// notifyMu orders observer deliveries; delivered is the newest version
	// handed to observers.
	notifyMu  sync.Mutex
	delivered uint64
}

// New creates an empty Store backed by slot. Call Load to read persisted state.
func New(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:      slot,
		key:       DefaultSlotKey,
		plan:      phone.DefaultPlan,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		logger:    slog.Default(),
		observers: make(map[int]func([]SavedPhone)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan returns the numbering plan the store validates against.
func (s *Store) Plan() phone.Plan { return s.plan }

// Load replaces the in-memory sequence with the persisted one. A missing,
// unreadable or malformed payload leaves the store empty; Load never fails.
func (s *Store) Load() {
	phones := s.read()

	s.mu.Lock()
	s.phones = phones
	s.commitLocked()
}

func (s *Store) read() []SavedPhone {
	raw, ok, err := s.slot.GetSlot(s.key)
	if err != nil {
		s.logger.Warn("failed to read saved phones, starting empty", "key", s.key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var phones []SavedPhone
	if err := json.Unmarshal([]byte(raw), &phones); err != nil {
		s.logger.Warn("failed to parse saved phones, starting empty", "key", s.key, "error", err)
		return nil
	}

	// Hand-edited payloads may repeat a number; keep the newest.
	seen := make(map[string]bool, len(phones))
	out := phones[:0]
	for _, p := range phones {
		if seen[p.Number] {
			s.logger.Warn("dropping duplicate saved phone", "id", p.ID, "number", p.Number)
			continue
		}
		seen[p.Number] = true
		out = append(out, p)
	}
	return out
}

// Save validates and normalizes raw, then prepends it to the sequence.
// It returns ErrEmptyInput, ErrInvalidFormat or ErrDuplicateNumber for input
// that cannot be saved.
func (s *Store) Save(raw string) (SavedPhone, error) {
	if strings.TrimSpace(raw) == "" {
		return SavedPhone{}, ErrEmptyInput
	}
	if !s.plan.IsValid(raw) {
		return SavedPhone{}, ErrInvalidFormat
	}
	number := s.plan.FormatToE164(raw)

	s.mu.Lock()
	for _, p := range s.phones {
		if p.Number == number {
			s.mu.Unlock()
			return SavedPhone{}, ErrDuplicateNumber
		}
	}

	rec := SavedPhone{
		ID:        s.newID(),
		Number:    number,
		Timestamp: s.now().UnixMilli(),
	}
	next := make([]SavedPhone, 0, len(s.phones)+1)
	next = append(next, rec)
	next = append(next, s.phones...)
	if err := s.persistLocked(next); err != nil {
		s.mu.Unlock()
		return SavedPhone{}, err
	}
	s.phones = next
	s.logger.Info("phone number saved", "id", rec.ID, "number", rec.Number)
	s.commitLocked()
	return rec, nil
}

// Delete removes the record with the given id. A missing id is not an error;
// the sequence is persisted either way.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	next := make([]SavedPhone, 0, len(s.phones))
	for _, p := range s.phones {
		if p.ID != id {
			next = append(next, p)
		}
	}
	removed := len(next) != len(s.phones)
	if err := s.persistLocked(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.phones = next
	if removed {
		s.logger.Info("phone number deleted", "id", id)
	}
	s.commitLocked()
	return nil
}

// Clear removes every record and persists the empty sequence.
func (s *Store) Clear() error {
	s.mu.Lock()
	if err := s.persistLocked(nil); err != nil {
		s.mu.Unlock()
		return err
	}
	n := len(s.phones)
	s.phones = nil
	s.logger.Info("phone numbers cleared", "count", n)
	s.commitLocked()
	return nil
}

func (s *Store) persistLocked(phones []SavedPhone) error {
	if phones == nil {
		phones = []SavedPhone{}
	}
	data, err := json.Marshal(phones)
	if err != nil {
		return fmt.Errorf("encoding saved phones: %w", err)
	}
	if err := s.slot.PutSlot(s.key, string(data)); err != nil {
		return fmt.Errorf("persisting saved phones: %w", err)
	}
	return nil
}

// commitLocked stamps the current sequence with a new version, releases mu
// and hands the snapshot to observers. It must be called with mu held.
func (s *Store) commitLocked() {
	s.version++
	version := s.version
	snapshot := s.snapshotLocked()
	fns := make([]func([]SavedPhone), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.notify(version, snapshot, fns)
}

// notify delivers snapshot unless a newer one has already been delivered,
// so observers never see the sequence move backwards.
func (s *Store) notify(version uint64, snapshot []SavedPhone, fns []func([]SavedPhone)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if version <= s.delivered {
		return
	}
	s.delivered = version
	for _, fn := range fns {
		fn(snapshot)
	}
}

// List returns a copy of the sequence, newest first.
func (s *Store) List() []SavedPhone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []SavedPhone {
	out := make([]SavedPhone, len(s.phones))
	copy(out, s.phones)
	return out
}

// Len returns the number of saved phones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.phones)
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (SavedPhone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.phones {
		if p.ID == id {
			return p, true
		}
	}
	return SavedPhone{}, false
}

// Resolve finds the single record whose id equals or starts with prefix.
func (s *Store) Resolve(prefix string) (SavedPhone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ResolveID(s.phones, prefix)
}

// ResolveID finds the single record in phones whose id equals or starts with
// prefix. It returns ErrNotFound or ErrAmbiguousID otherwise.
func ResolveID(phones []SavedPhone, prefix string) (SavedPhone, error) {
	if prefix == "" {
		return SavedPhone{}, ErrNotFound
	}

	var match *SavedPhone
	for i := range phones {
		p := &phones[i]
		if p.ID == prefix {
			return *p, nil
		}
		if strings.HasPrefix(p.ID, prefix) {
			if match != nil {
				return SavedPhone{}, ErrAmbiguousID
			}
			match = p
		}
	}
	if match == nil {
		return SavedPhone{}, ErrNotFound
	}
	return *match, nil
}

// Draft returns the current unsaved input.
func (s *Store) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the current unsaved input.
func (s *Store) SetDraft(v string) {
	s.mu.Lock()
	s.draft = v
	s.mu.Unlock()
}

// SaveDraft saves the current draft. On success the draft is cleared unless
// it was replaced while the save was in flight.
func (s *Store) SaveDraft() (SavedPhone, error) {
	draft := s.Draft()
	rec, err := s.Save(draft)
	if err != nil {
		return SavedPhone{}, err
	}

	s.mu.Lock()
	if s.draft == draft {
		s.draft = ""
	}
	s.mu.Unlock()
	return rec, nil
}

// Subscribe registers fn to receive a snapshot after every load and every
// successful mutation. Snapshots arrive in commit order; one superseded by a
// newer commit before delivery is skipped. fn must not mutate the store.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func([]SavedPhone)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}
