package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/storage"
	"github.com/sirupsen/logrus"
)

// StorageKey is where the ordered session list is persisted
const StorageKey = "allDashboardSessions"

var (
	// ErrNotFound is returned when no session has the requested id
	ErrNotFound = errors.New("session not found")
	// ErrMissingID is returned when saving a session without an id
	ErrMissingID = errors.New("session id is required")
)

// Store is the registry of dashboard sessions. Sessions are keyed by id and
// remember their insertion order; exactly one id (or none) is current.
type Store struct {
	storage storage.StorageInterface

	mu        sync.RWMutex
	order     []string
	byID      map[string]*models.Session
	currentID string
}

// NewStore loads persisted sessions. Missing or corrupt data yields an empty
// registry; it is never an error.
func NewStore(st storage.StorageInterface) *Store {
	s := &Store{
		storage: st,
		byID:    make(map[string]*models.Session),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := s.storage.Retrieve(StorageKey)
	if errors.Is(err, storage.ErrNotExist) {
		return
	}
	if err != nil {
		logrus.Warnf("Failed to read persisted sessions, starting empty: %v", err)
		return
	}

	var persisted []models.Session
	if err := json.Unmarshal(data, &persisted); err != nil {
		logrus.Warnf("Persisted sessions are corrupt, starting empty: %v", err)
		return
	}

	for _, session := range persisted {
		if session.ID == "" {
			continue
		}
		session := normalize(session)
		if _, dup := s.byID[session.ID]; !dup {
			s.order = append(s.order, session.ID)
		}
		s.byID[session.ID] = &session
	}
	if len(s.order) > 0 {
		s.currentID = s.order[len(s.order)-1]
	}

	logrus.Infof("Loaded %d dashboard sessions", len(s.order))
}

// persistLocked writes the whole list in order. Callers hold s.mu.
func (s *Store) persistLocked() error {
	list := make([]models.Session, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, *s.byID[id])
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if err := s.storage.Store(StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	return nil
}

// Save upserts a session. An existing session is shallow-merged: zero-valued
// fields of the incoming value are treated as unlisted and keep their stored
// value. A new session is appended. When the saved session is the last in
// the list it becomes current.
func (s *Store) Save(session models.Session) error {
	if session.ID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[session.ID]; ok {
		merged := merge(*existing, session)
		s.byID[session.ID] = &merged
	} else {
		added := normalize(session.Clone())
		s.byID[session.ID] = &added
		s.order = append(s.order, session.ID)
	}

	if s.order[len(s.order)-1] == session.ID {
		s.currentID = session.ID
	}

	return s.persistLocked()
}

// LoadByID makes id current. An unknown id is accepted; Current then reports
// no session. The return value tells whether the id exists.
func (s *Store) LoadByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = id
	_, ok := s.byID[id]
	if !ok {
		logrus.Debugf("Current session set to unknown id %s", id)
	}
	return ok
}

// DeleteByID removes a session. Deleting the current session re-points
// current at the new last session, or at nothing when the list is empty.
func (s *Store) DeleteByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.currentID == id {
		s.currentID = ""
		if len(s.order) > 0 {
			s.currentID = s.order[len(s.order)-1]
		}
	}

	return s.persistLocked()
}

// PatchDetailedData merges related posts into the session's data, leaving
// every other field untouched. A missing session (for example one deleted
// while its job was running) is a no-op; the boolean reports whether a
// session was patched.
func (s *Store) PatchDetailedData(id string, relatedPosts map[string][]models.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok {
		logrus.Debugf("Detailed data for missing session %s dropped", id)
		return false, nil
	}

	patched := session.Clone()
	if patched.AllData.RelatedPosts == nil {
		patched.AllData.RelatedPosts = make(map[string][]models.Post)
	}
	for name, posts := range relatedPosts {
		patched.AllData.RelatedPosts[name] = append([]models.Post(nil), posts...)
	}
	s.byID[id] = &patched

	return true, s.persistLocked()
}

// Update applies fn to a copy of the session and stores the result. If fn
// returns an error nothing changes.
func (s *Store) Update(id string, fn func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.applyLocked(session, fn)
}

// UpdateCurrent is Update on the current session
func (s *Store) UpdateCurrent(fn func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.currentLocked()
	if session == nil {
		return ErrNotFound
	}
	return s.applyLocked(session, fn)
}

func (s *Store) applyLocked(session *models.Session, fn func(*models.Session) error) error {
	updated := session.Clone()
	if err := fn(&updated); err != nil {
		return err
	}
	updated.ID = session.ID
	updated = normalize(updated)
	s.byID[session.ID] = &updated
	return s.persistLocked()
}

// Get returns a copy of the session with the given id
func (s *Store) Get(id string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byID[id]
	if !ok {
		return models.Session{}, false
	}
	return session.Clone(), true
}

// Current returns a copy of the current session
func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := s.currentLocked()
	if session == nil {
		return models.Session{}, false
	}
	return session.Clone(), true
}

// currentLocked resolves the current id. With no id set it falls back to the
// last session; an id that no longer exists resolves to nothing.
func (s *Store) currentLocked() *models.Session {
	if s.currentID == "" {
		if len(s.order) == 0 {
			return nil
		}
		return s.byID[s.order[len(s.order)-1]]
	}
	return s.byID[s.currentID]
}

// CurrentID returns the explicit current id, which may be empty
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// All returns copies of every session in insertion order
func (s *Store) All() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len is the number of sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// merge copies the listed (non-zero) fields of src over dst
func merge(dst, src models.Session) models.Session {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Type != "" {
		dst.Type = src.Type
	}
	if src.Timestamp != 0 {
		dst.Timestamp = src.Timestamp
	}
	if src.LastUserMessage != "" {
		dst.LastUserMessage = src.LastUserMessage
	}
	if !isZeroData(src.AllData) {
		dst.AllData = src.AllData.Clone()
	}
	if src.SelectedKeyword != nil {
		k := src.SelectedKeyword.Clone()
		dst.SelectedKeyword = &k
	}
	if src.ActivityTrends != nil {
		dst.ActivityTrends = append([]models.ActivityTrend(nil), src.ActivityTrends...)
	}
	if src.GenerationBreakdown != nil {
		dst.GenerationBreakdown = append([]models.GenerationBreakdown(nil), src.GenerationBreakdown...)
	}
	if src.RecentGenerations != nil {
		dst.RecentGenerations = append([]models.RecentGeneration(nil), src.RecentGenerations...)
	}
	return normalize(dst)
}

func isZeroData(d models.AggregatedData) bool {
	return d.Keywords == nil && d.Suggested == nil && d.PlatformTrends == nil && d.RelatedPosts == nil
}

// normalize allocates nil collections so readers never special-case them,
// and drops a selected keyword that is no longer in the keyword list.
func normalize(s models.Session) models.Session {
	if s.AllData.Keywords == nil {
		s.AllData.Keywords = []models.Keyword{}
	}
	if s.AllData.Suggested == nil {
		s.AllData.Suggested = make(map[string][]string)
	}
	if s.AllData.PlatformTrends == nil {
		s.AllData.PlatformTrends = make(map[string][]models.PlatformScore)
	}
	if s.AllData.RelatedPosts == nil {
		s.AllData.RelatedPosts = make(map[string][]models.Post)
	}
	if s.SelectedKeyword != nil {
		if i := s.AllData.FindKeyword(s.SelectedKeyword.ID); i < 0 {
			s.SelectedKeyword = nil
		}
	}
	return s
}
