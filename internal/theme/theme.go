package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/contentlab/seo-assistant/internal/storage"
	"github.com/sirupsen/logrus"
)

// StorageKey is where the preference is persisted
const StorageKey = "globalTheme"

// Theme is the UI color scheme
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ErrInvalidTheme is returned for values other than light and dark
var ErrInvalidTheme = errors.New("theme must be 'light' or 'dark'")

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	return t == Light || t == Dark
}

// Store holds the current theme and fans changes out to subscribers.
// It is built once in the composition root and handed to whoever needs it.
type Store struct {
	storage storage.StorageInterface

	mu          sync.Mutex
	current     Theme
	subscribers map[uint64]func(Theme)
	nextID      uint64
}

// NewStore loads the persisted preference, falling back to def when it is
// missing or unreadable.
func NewStore(st storage.StorageInterface, def Theme) *Store {
	if !def.Valid() {
		def = Light
	}
	s := &Store{
		storage:     st,
		current:     def,
		subscribers: make(map[uint64]func(Theme)),
	}

	data, err := st.Retrieve(StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotExist):
	case err != nil:
		logrus.Warnf("Failed to read theme preference, using %s: %v", def, err)
	default:
		var persisted Theme
		if err := json.Unmarshal(data, &persisted); err != nil || !persisted.Valid() {
			logrus.Warnf("Ignoring malformed theme preference %q", string(data))
		} else {
			s.current = persisted
		}
	}

	return s
}

// Get returns the current theme
func (s *Store) Get() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set persists the theme and then notifies every subscriber
func (s *Store) Set(t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, t)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode theme: %w", err)
	}

	s.mu.Lock()
	if err := s.storage.Store(StorageKey, data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	s.current = t
	callbacks := make([]func(Theme), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(t)
	}

	logrus.Debugf("Theme set to %s (%d subscribers)", t, len(callbacks))
	return nil
}

// Toggle flips between light and dark and returns the new value
func (s *Store) Toggle() (Theme, error) {
	next := Dark
	if s.Get() == Dark {
		next = Light
	}
	if err := s.Set(next); err != nil {
		return s.Get(), err
	}
	return next, nil
}

// Subscribe registers fn for future changes. The returned function removes
// it and is safe to call more than once.
func (s *Store) Subscribe(fn func(Theme)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// SubscriberCount is the number of live subscriptions
func (s *Store) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
