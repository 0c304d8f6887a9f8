package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when mutating a subscriber that was never registered
var ErrNotFound = errors.New("subscriber not found")

// Settings holds the relay preferences of one subscriber
type Settings struct {
	Enabled       bool `json:"enabled"`
	Notifications bool `json:"notifications"`
}

// DefaultSettings is what a subscriber gets on first contact
var DefaultSettings = Settings{Enabled: true, Notifications: true}

// Field names a single toggle of Settings
type Field int

const (
	FieldEnabled Field = iota
	FieldNotifications
)

func (f Field) String() string {
	switch f {
	case FieldEnabled:
		return "enabled"
	case FieldNotifications:
		return "notifications"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Backend reads and writes the whole subscriber mapping
type Backend interface {
	Load() (map[string]Settings, error)
	Save(map[string]Settings) error
}

// Store maps subscriber ids to their settings. Every mutation is written
// through to the backend before returning.
//
// A Store is not safe for concurrent use; the relay serializes access.
type Store struct {
	backend Backend
	log     zerolog.Logger
	subs    map[string]Settings
}

// NewStore creates an empty store backed by b
func NewStore(b Backend, log zerolog.Logger) *Store {
	return &Store{
		backend: b,
		log:     log,
		subs:    make(map[string]Settings),
	}
}

// Load reads the subscriber mapping from b. It never fails hard: when the
// data cannot be read or parsed the returned store is empty and usable, and
// the error is returned alongside so the caller can report it. A missing
// file is a fresh install and not an error.
func Load(b Backend, log zerolog.Logger) (*Store, error) {
	s := NewStore(b, log)
	subs, err := b.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Msg("No subscriber settings found, starting empty")
			return s, nil
		}
		log.Warn().Err(err).Msg("Could not load subscriber settings, starting empty")
		return s, err
	}
	for id, st := range subs {
		s.subs[id] = st
	}
	log.Debug().Int("subscribers", len(s.subs)).Msg("Loaded subscriber settings")
	return s, nil
}

// Get returns the settings of id, if registered
func (s *Store) Get(id string) (Settings, bool) {
	st, ok := s.subs[id]
	return st, ok
}

// GetOrCreate returns the settings of id, registering it with the defaults
// on first contact.
func (s *Store) GetOrCreate(id string) Settings {
	if st, ok := s.subs[id]; ok {
		return st
	}
	s.log.Info().Str("subscriber", id).Msg("New subscriber")
	s.subs[id] = DefaultSettings
	if err := s.Persist(); err != nil {
		s.log.Error().Err(err).Str("subscriber", id).Msg("Error saving new subscriber")
	}
	return DefaultSettings
}

// Set changes one field of a registered subscriber and persists the store
func (s *Store) Set(id string, field Field, value bool) error {
	st, ok := s.subs[id]
	if !ok {
		return fmt.Errorf("set %s on %q: %w", field, id, ErrNotFound)
	}
	switch field {
	case FieldEnabled:
		st.Enabled = value
	case FieldNotifications:
		st.Notifications = value
	default:
		return fmt.Errorf("set %s on %q: unknown field", field, id)
	}
	s.subs[id] = st
	return s.Persist()
}

// IDs returns all registered subscriber ids in sorted order
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered subscribers
func (s *Store) Len() int {
	return len(s.subs)
}

// Snapshot returns a copy of the full mapping
func (s *Store) Snapshot() map[string]Settings {
	out := make(map[string]Settings, len(s.subs))
	for id, st := range s.subs {
		out[id] = st
	}
	return out
}

// Persist writes the full mapping to the backend, overwriting it
func (s *Store) Persist() error {
	if err := s.backend.Save(s.subs); err != nil {
		return fmt.Errorf("persist subscribers: %w", err)
	}
	return nil
}
